// Package torrent provides a uniform pause/resume/remove/list surface over
// the supported torrent clients.
package torrent

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies a torrent client implementation.
type Kind string

// Supported client kinds. Any other kind yields a client that only logs.
const (
	KindQBittorrent  Kind = "qbittorrent"
	KindTransmission Kind = "transmission"
	KindDeluge       Kind = "deluge"
	KindUTorrent     Kind = "utorrent"
)

// DefaultGraceDelay is the pause after every state change, giving the client
// time to apply it before files are touched.
const DefaultGraceDelay = 5 * time.Second

// Handle identifies a torrent inside a client.
type Handle struct {
	Kind Kind
	// ID is the client-assigned identifier (numeric for Transmission).
	ID string
	// Hash is the info hash.
	Hash string
	// Name is the display name.
	Name string
	// Status is the client's state string, filled by List.
	Status string
}

// key returns the identifier to address the torrent with, preferring the hash.
func (h Handle) key() (string, error) {
	if h.Hash != "" {
		return h.Hash, nil
	}
	if h.ID != "" {
		return h.ID, nil
	}
	return "", ErrNoIdentifier
}

// Client is the capability surface shared by every torrent client.
type Client interface {
	// Pause stops the torrent so its files can be processed.
	Pause(ctx context.Context, h Handle) error
	// Resume restarts seeding.
	Resume(ctx context.Context, h Handle) error
	// Remove deletes the torrent, and its data when deleteData is set.
	Remove(ctx context.Context, h Handle, deleteData bool) error
	// List returns the torrents known to the client.
	List(ctx context.Context) ([]Handle, error)
}

// connector is implemented by clients that must authenticate before use.
type connector interface {
	Client
	connect(ctx context.Context) error
}

// configurable is implemented by all clients to support shared options.
type configurable interface {
	setLogger(zerolog.Logger)
}

// Option is a functional option for configuring clients.
type Option func(configurable)

// WithLogger sets the logger for any client.
func WithLogger(logger zerolog.Logger) Option {
	return func(c configurable) {
		c.setLogger(logger)
	}
}

// Config holds the connection parameters of one torrent client.
type Config struct {
	Kind Kind
	// URL is the client's web endpoint: the Web UI root for qBittorrent and
	// Deluge, the /gui/ root for uTorrent and the RPC URL for Transmission.
	URL      string
	Username string
	Password string

	HTTPTimeout time.Duration
	// GraceDelay follows every state-changing call. Zero disables it.
	GraceDelay time.Duration
}

// New connects to the configured client. It never fails: an unsupported
// kind or a connection failure yields a client that logs and does nothing,
// so processing can continue without torrent control.
func New(ctx context.Context, cfg Config, opts ...Option) Client {
	logger := zerolog.Nop()
	for _, opt := range opts {
		opt(loggerSink{&logger})
	}

	kind := Kind(strings.ToLower(string(cfg.Kind)))

	var c connector
	switch kind {
	case KindQBittorrent:
		c = newQBittorrent(cfg)
	case KindTransmission:
		c = newTransmission(cfg)
	case KindDeluge:
		c = newDeluge(cfg)
	case KindUTorrent:
		c = newUTorrent(cfg)
	default:
		logger.Debug().Str("kind", string(cfg.Kind)).Msg("no torrent control for this client")
		return NewNull(kind, logger)
	}

	if cc, ok := c.(configurable); ok {
		for _, opt := range opts {
			opt(cc)
		}
	}

	if err := c.connect(ctx); err != nil {
		logger.Error().Err(err).Str("kind", string(kind)).Str("url", cfg.URL).Msg("failed to connect to torrent client")
		return NewNull(kind, logger)
	}

	logger.Info().Str("kind", string(kind)).Str("url", cfg.URL).Msg("connected to torrent client")

	return WithGraceDelay(c, cfg.GraceDelay)
}

// loggerSink captures the logger passed through WithLogger.
type loggerSink struct {
	logger *zerolog.Logger
}

func (s loggerSink) setLogger(l zerolog.Logger) {
	*s.logger = l
}
