package torrent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// delugeClient implements the Client interface for the Deluge Web UI JSON-RPC.
// It is private and only exposed via the Client interface.
type delugeClient struct {
	url        string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger
	nextID     atomic.Int64
}

type delugeRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int64  `json:"id"`
}

type delugeError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type delugeResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *delugeError    `json:"error"`
	ID     int64           `json:"id"`
}

type delugeTorrentStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Hash  string `json:"hash"`
}

// setLogger implements configurable for shared options.
func (c *delugeClient) setLogger(logger zerolog.Logger) {
	c.logger = logger
}

func newDeluge(cfg Config) *delugeClient {
	jar, _ := cookiejar.New(nil)

	return &delugeClient{
		url:      strings.TrimSuffix(cfg.URL, "/") + "/json",
		password: cfg.Password,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: cfg.HTTPTimeout,
		},
		logger: zerolog.Nop(),
	}
}

func (c *delugeClient) connect(ctx context.Context) error {
	raw, err := c.call(ctx, "auth.login", c.password)
	if err != nil {
		return fmt.Errorf("deluge login failed: %w", err)
	}

	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil || !ok {
		return ErrAuth
	}
	return nil
}

func (c *delugeClient) Pause(ctx context.Context, h Handle) error {
	id, err := h.key()
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "core.pause_torrent", []string{id})
	return err
}

func (c *delugeClient) Resume(ctx context.Context, h Handle) error {
	id, err := h.key()
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "core.resume_torrent", []string{id})
	return err
}

func (c *delugeClient) Remove(ctx context.Context, h Handle, deleteData bool) error {
	id, err := h.key()
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "core.remove_torrent", id, deleteData)
	return err
}

func (c *delugeClient) List(ctx context.Context) ([]Handle, error) {
	raw, err := c.call(ctx, "core.get_torrents_status", map[string]any{}, []string{"name", "state", "hash"})
	if err != nil {
		return nil, err
	}

	var status map[string]delugeTorrentStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode torrents status: %w", err)
	}

	ids := make([]string, 0, len(status))
	for id := range status {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	handles := make([]Handle, 0, len(ids))
	for _, id := range ids {
		s := status[id]
		hash := s.Hash
		if hash == "" {
			hash = id
		}
		handles = append(handles, Handle{
			Kind:   KindDeluge,
			ID:     id,
			Hash:   hash,
			Name:   s.Name,
			Status: s.State,
		})
	}
	return handles, nil
}

func (c *delugeClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(delugeRequest{Method: method, Params: params, ID: c.nextID.Add(1)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrRPC, method, resp.StatusCode)
	}

	var out delugeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrRPC, method, out.Error.Message)
	}

	c.logger.Debug().Str("method", method).Msg("deluge rpc succeeded")
	return out.Result, nil
}
