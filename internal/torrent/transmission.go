package torrent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hekmon/transmissionrpc/v3"
	"github.com/rs/zerolog"
)

// transmissionFields are the torrent-get fields a Handle is built from.
//
//nolint:gochecknoglobals // static field list
var transmissionFields = []string{"id", "hashString", "name", "status"}

// transmissionStatus maps tr_torrent_activity values to names.
//
//nolint:gochecknoglobals // static status table
var transmissionStatus = map[int64]string{
	0: "stopped",
	1: "check_wait",
	2: "checking",
	3: "download_wait",
	4: "downloading",
	5: "seed_wait",
	6: "seeding",
}

// transmissionClient implements the Client interface for Transmission's RPC.
// It is private and only exposed via the Client interface.
type transmissionClient struct {
	api     *transmissionrpc.Client
	initErr error
	logger  zerolog.Logger
}

// setLogger implements configurable for shared options.
func (c *transmissionClient) setLogger(logger zerolog.Logger) {
	c.logger = logger
}

func newTransmission(cfg Config) *transmissionClient {
	c := &transmissionClient{logger: zerolog.Nop()}

	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		c.initErr = fmt.Errorf("invalid transmission url %q: %w", cfg.URL, err)
		return c
	}
	if cfg.Username != "" || cfg.Password != "" {
		endpoint.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	c.api, c.initErr = transmissionrpc.New(endpoint, &transmissionrpc.Config{
		CustomClient: &http.Client{Timeout: cfg.HTTPTimeout},
	})
	return c
}

func (c *transmissionClient) connect(ctx context.Context) error {
	if c.initErr != nil {
		return c.initErr
	}

	ok, serverVersion, minimumVersion, err := c.api.RPCVersion(ctx)
	if err != nil {
		return fmt.Errorf("transmission connect failed: %w", err)
	}
	if !ok {
		c.logger.Warn().
			Int64("rpc_version", serverVersion).
			Int64("rpc_version_minimum", minimumVersion).
			Msg("transmission rpc version is outside the supported range")
	}
	return nil
}

// transmissionTarget splits a handle into a hash or a numeric id. The hash
// wins when both are known.
func transmissionTarget(h Handle) (string, int64, error) {
	if h.Hash != "" {
		return h.Hash, 0, nil
	}
	if h.ID != "" {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			return "", 0, fmt.Errorf("transmission torrent id %q: %w", h.ID, err)
		}
		return "", id, nil
	}
	return "", 0, ErrNoIdentifier
}

func (c *transmissionClient) Pause(ctx context.Context, h Handle) error {
	hash, id, err := transmissionTarget(h)
	if err != nil {
		return err
	}
	if hash != "" {
		err = c.api.TorrentStopHashes(ctx, []string{hash})
	} else {
		err = c.api.TorrentStopIDs(ctx, []int64{id})
	}
	if err != nil {
		return fmt.Errorf("%w: transmission stop: %w", ErrRPC, err)
	}
	return nil
}

func (c *transmissionClient) Resume(ctx context.Context, h Handle) error {
	hash, id, err := transmissionTarget(h)
	if err != nil {
		return err
	}
	if hash != "" {
		err = c.api.TorrentStartHashes(ctx, []string{hash})
	} else {
		err = c.api.TorrentStartIDs(ctx, []int64{id})
	}
	if err != nil {
		return fmt.Errorf("%w: transmission start: %w", ErrRPC, err)
	}
	return nil
}

// Remove addresses the torrent by numeric id, which torrent-remove requires;
// a hash is looked up first.
func (c *transmissionClient) Remove(ctx context.Context, h Handle, deleteData bool) error {
	hash, id, err := transmissionTarget(h)
	if err != nil {
		return err
	}

	if hash != "" {
		torrents, err := c.api.TorrentGetHashes(ctx, []string{"id"}, []string{hash})
		if err != nil {
			return fmt.Errorf("%w: transmission lookup %s: %w", ErrRPC, hash, err)
		}
		if len(torrents) == 0 || torrents[0].ID == nil {
			return fmt.Errorf("%w: transmission has no torrent %s", ErrRPC, hash)
		}
		id = *torrents[0].ID
	}

	err = c.api.TorrentRemove(ctx, transmissionrpc.TorrentRemovePayload{
		IDs:             []int64{id},
		DeleteLocalData: deleteData,
	})
	if err != nil {
		return fmt.Errorf("%w: transmission remove: %w", ErrRPC, err)
	}
	return nil
}

func (c *transmissionClient) List(ctx context.Context) ([]Handle, error) {
	torrents, err := c.api.TorrentGet(ctx, transmissionFields, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: transmission list: %w", ErrRPC, err)
	}

	handles := make([]Handle, 0, len(torrents))
	for _, t := range torrents {
		h := Handle{Kind: KindTransmission}
		if t.ID != nil {
			h.ID = strconv.FormatInt(*t.ID, 10)
		}
		if t.HashString != nil {
			h.Hash = *t.HashString
		}
		if t.Name != nil {
			h.Name = *t.Name
		}
		if t.Status != nil {
			h.Status = transmissionStatus[int64(*t.Status)]
		}
		handles = append(handles, h)
	}
	return handles, nil
}
