package torrent

import (
	"context"
	"fmt"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
)

// qbittorrentClient implements the Client interface for qBittorrent.
// It is private and only exposed via the Client interface.
type qbittorrentClient struct {
	api    *qbt.Client
	logger zerolog.Logger
}

// setLogger implements configurable for shared options.
func (c *qbittorrentClient) setLogger(logger zerolog.Logger) {
	c.logger = logger
}

func newQBittorrent(cfg Config) *qbittorrentClient {
	return &qbittorrentClient{
		api: qbt.NewClient(qbt.Config{
			Host:     strings.TrimSuffix(cfg.URL, "/"),
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  int(cfg.HTTPTimeout.Seconds()),
		}),
		logger: zerolog.Nop(),
	}
}

func (c *qbittorrentClient) connect(ctx context.Context) error {
	if err := c.api.LoginCtx(ctx); err != nil {
		return fmt.Errorf("qbittorrent login failed: %w", err)
	}
	return nil
}

func (c *qbittorrentClient) Pause(ctx context.Context, h Handle) error {
	hash, err := h.key()
	if err != nil {
		return err
	}
	if err := c.api.PauseCtx(ctx, []string{hash}); err != nil {
		return fmt.Errorf("qbittorrent pause %s: %w", hash, err)
	}
	return nil
}

func (c *qbittorrentClient) Resume(ctx context.Context, h Handle) error {
	hash, err := h.key()
	if err != nil {
		return err
	}
	if err := c.api.ResumeCtx(ctx, []string{hash}); err != nil {
		return fmt.Errorf("qbittorrent resume %s: %w", hash, err)
	}
	return nil
}

func (c *qbittorrentClient) Remove(ctx context.Context, h Handle, deleteData bool) error {
	hash, err := h.key()
	if err != nil {
		return err
	}
	if err := c.api.DeleteTorrentsCtx(ctx, []string{hash}, deleteData); err != nil {
		return fmt.Errorf("qbittorrent delete %s: %w", hash, err)
	}
	return nil
}

func (c *qbittorrentClient) List(ctx context.Context) ([]Handle, error) {
	torrents, err := c.api.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("qbittorrent list: %w", err)
	}

	handles := make([]Handle, 0, len(torrents))
	for _, t := range torrents {
		handles = append(handles, Handle{
			Kind:   KindQBittorrent,
			ID:     t.Hash,
			Hash:   t.Hash,
			Name:   t.Name,
			Status: string(t.State),
		})
	}
	return handles, nil
}
