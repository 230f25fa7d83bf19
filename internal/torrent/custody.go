package torrent

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Custody tracks a torrent paused for processing and guarantees it is
// resumed or removed exactly once.
type Custody struct {
	client Client
	handle Handle
	logger zerolog.Logger

	mu       sync.Mutex
	paused   bool
	released bool
}

// Acquire pauses h and returns its custody. A failed pause is logged and
// custody is still returned, so the release decision runs regardless.
func Acquire(ctx context.Context, client Client, h Handle, logger zerolog.Logger) *Custody {
	c := &Custody{client: client, handle: h, logger: logger}

	logger.Debug().Str("torrent", h.Name).Msg("pausing torrent while processing")
	if err := client.Pause(ctx, h); err != nil {
		logger.Warn().Err(err).Str("torrent", h.Name).Msg("failed to pause torrent")
	} else {
		c.paused = true
	}

	return c
}

// Handle returns the torrent under custody.
func (c *Custody) Handle() Handle {
	return c.handle
}

// Paused reports whether the pause succeeded.
func (c *Custody) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Released reports whether Release has run.
func (c *Custody) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Release removes the torrent when remove is set and resumes it otherwise.
// Only the first call acts; later calls return nil without touching the client.
func (c *Custody) Release(ctx context.Context, remove, deleteData bool) error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	c.mu.Unlock()

	if remove {
		c.logger.Debug().Str("torrent", c.handle.Name).Bool("delete_data", deleteData).Msg("removing torrent")
		return c.client.Remove(ctx, c.handle, deleteData)
	}

	c.logger.Debug().Str("torrent", c.handle.Name).Msg("resuming torrent")
	return c.client.Resume(ctx, c.handle)
}
