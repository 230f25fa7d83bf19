package torrent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var utorrentTokenPattern = regexp.MustCompile(`<div[^>]*id=['"]token['"][^>]*>([^<]+)</div>`)

// utorrentClient implements the Client interface for the uTorrent Web UI.
// It is private and only exposed via the Client interface.
type utorrentClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.Mutex
	token string
}

// setLogger implements configurable for shared options.
func (c *utorrentClient) setLogger(logger zerolog.Logger) {
	c.logger = logger
}

func newUTorrent(cfg Config) *utorrentClient {
	jar, _ := cookiejar.New(nil)

	base := cfg.URL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return &utorrentClient{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: cfg.HTTPTimeout,
		},
		logger: zerolog.Nop(),
	}
}

func (c *utorrentClient) connect(ctx context.Context) error {
	body, err := c.get(ctx, c.baseURL+"token.html")
	if err != nil {
		return fmt.Errorf("utorrent token request failed: %w", err)
	}

	m := utorrentTokenPattern.FindSubmatch(body)
	if m == nil {
		return fmt.Errorf("%w: token not found in response", ErrAuth)
	}

	c.mu.Lock()
	c.token = string(m[1])
	c.mu.Unlock()
	return nil
}

func (c *utorrentClient) Pause(ctx context.Context, h Handle) error {
	return c.action(ctx, "stop", h)
}

func (c *utorrentClient) Resume(ctx context.Context, h Handle) error {
	return c.action(ctx, "start", h)
}

func (c *utorrentClient) Remove(ctx context.Context, h Handle, deleteData bool) error {
	if deleteData {
		return c.action(ctx, "removedata", h)
	}
	return c.action(ctx, "remove", h)
}

func (c *utorrentClient) List(ctx context.Context) ([]Handle, error) {
	body, err := c.get(ctx, c.query(url.Values{"list": {"1"}}))
	if err != nil {
		return nil, err
	}

	var out struct {
		Torrents [][]json.RawMessage `json:"torrents"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode torrent list: %w", err)
	}

	// row layout: hash, status bitfield, name, ...
	handles := make([]Handle, 0, len(out.Torrents))
	for _, row := range out.Torrents {
		if len(row) < 3 {
			continue
		}
		var hash, name string
		var status int
		_ = json.Unmarshal(row[0], &hash)
		_ = json.Unmarshal(row[1], &status)
		_ = json.Unmarshal(row[2], &name)

		handles = append(handles, Handle{
			Kind:   KindUTorrent,
			ID:     hash,
			Hash:   hash,
			Name:   name,
			Status: utorrentStatus(status),
		})
	}
	return handles, nil
}

func utorrentStatus(bits int) string {
	const (
		started = 1
		paused  = 32
	)
	switch {
	case bits&paused != 0:
		return "paused"
	case bits&started != 0:
		return "started"
	default:
		return "stopped"
	}
}

func (c *utorrentClient) action(ctx context.Context, action string, h Handle) error {
	hash, err := h.key()
	if err != nil {
		return err
	}
	_, err = c.get(ctx, c.query(url.Values{"action": {action}, "hash": {hash}}))
	if err != nil {
		return fmt.Errorf("utorrent %s %s: %w", action, hash, err)
	}
	return nil
}

func (c *utorrentClient) query(params url.Values) string {
	c.mu.Lock()
	params.Set("token", c.token)
	c.mu.Unlock()
	return c.baseURL + "?" + params.Encode()
}

func (c *utorrentClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuth
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrRPC, resp.StatusCode)
	}

	return body, nil
}
