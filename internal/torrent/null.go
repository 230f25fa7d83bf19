package torrent

import (
	"context"

	"github.com/rs/zerolog"
)

// nullClient stands in when no client is reachable. Every call logs and succeeds.
type nullClient struct {
	kind   Kind
	logger zerolog.Logger
}

// NewNull returns a client that only logs.
func NewNull(kind Kind, logger zerolog.Logger) Client {
	return &nullClient{kind: kind, logger: logger}
}

func (c *nullClient) Pause(_ context.Context, h Handle) error {
	c.logger.Debug().Str("kind", string(c.kind)).Str("torrent", h.Name).Msg("no torrent client, skipping pause")
	return nil
}

func (c *nullClient) Resume(_ context.Context, h Handle) error {
	c.logger.Debug().Str("kind", string(c.kind)).Str("torrent", h.Name).Msg("no torrent client, skipping resume")
	return nil
}

func (c *nullClient) Remove(_ context.Context, h Handle, _ bool) error {
	c.logger.Debug().Str("kind", string(c.kind)).Str("torrent", h.Name).Msg("no torrent client, skipping remove")
	return nil
}

func (c *nullClient) List(context.Context) ([]Handle, error) {
	return nil, nil
}

// IsNull reports whether c is the logging stand-in.
func IsNull(c Client) bool {
	_, ok := c.(*nullClient)
	return ok
}
