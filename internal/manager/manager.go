// Package manager talks to downstream media-library managers: it detects the
// API dialect a manager speaks, dispatches "process this content" requests and
// polls for confirmation that the manager acted on them.
package manager

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies a manager implementation.
type Kind string

// Supported manager kinds.
const (
	KindCouchPotato Kind = "couchpotato"
	KindSickBeard   Kind = "sickbeard"
	KindSonarr      Kind = "sonarr"
	KindRadarr      Kind = "radarr"
	KindGamez       Kind = "gamez"
)

// DialectAuto requests dialect detection.
const DialectAuto = "auto"

// Section is one configured manager profile.
type Section struct {
	Name     string
	Kind     Kind
	Category string

	Host    string
	Port    int
	SSL     bool
	WebRoot string

	APIKey   string
	Username string
	Password string

	// Dialect is the configured API variant, or DialectAuto.
	Dialect string
	Enabled bool

	// Method selects the CouchPotato command: "renamer" (default) or "manage".
	Method string
	// Delay is waited before dispatch on automatic runs.
	Delay time.Duration
	// WaitFor bounds the completion poll.
	WaitFor time.Duration
	// TimePerGiB is added to the dispatch timeout per GiB of content.
	TimePerGiB time.Duration
	// DeleteFailed removes the local directory of a failed download.
	DeleteFailed bool
	// RemotePath replaces the parent of the content directory in requests,
	// for managers that see the downloads under another path.
	RemotePath string
	// ProcessMethod is passed through to SickBeard forks that accept it.
	ProcessMethod string
	// TorrentNoLink drops process_method for torrent-aware forks on torrent runs.
	TorrentNoLink bool
	// WatchDir is scanned for pending content in scan mode.
	WatchDir string
	// Remote omits the local media folder from CouchPotato requests.
	Remote bool

	HTTPTimeout time.Duration
}

// BaseURL returns scheme://host:port/webroot without a trailing slash.
func (s Section) BaseURL() string {
	scheme := "http"
	if s.SSL {
		scheme = "https"
	}

	host := s.Host
	if s.Port > 0 {
		host = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	}

	root := strings.Trim(s.WebRoot, "/")
	if root != "" {
		root = "/" + root
	}

	return scheme + "://" + host + root
}

// MapPath rewrites dir for the manager's view of the filesystem.
func (s Section) MapPath(dir string) string {
	if s.RemotePath == "" {
		return dir
	}
	base := path.Base(strings.ReplaceAll(dir, "\\", "/"))
	return path.Join(strings.ReplaceAll(s.RemotePath, "\\", "/"), base)
}

// Request is one dispatch to a manager.
type Request struct {
	// Dir is the content directory.
	Dir string
	// Name is the download's display name.
	Name string
	// Failed is set for downloads that did not complete.
	Failed bool
	// Client is the invoking download client ("manual" for manual runs).
	Client string
	// DownloadID is the download client's identifier, if known.
	DownloadID string
	// Timeout bounds the dispatch call. Zero uses the section's HTTP timeout.
	Timeout time.Duration
	// Torrent is set when the content came from a torrent client.
	Torrent bool
}

// Manual reports whether the request was started by hand.
func (r Request) Manual() bool {
	return r.Client == "" || r.Client == "manual"
}

// Status is a two-level status snapshot of a library item.
type Status struct {
	// Item is the status of the library item (movie, command, ...).
	Item string
	// Sub is the status of the specific release or sub-item.
	Sub string
}

// Changed reports whether either level differs from prev. Empty values never count.
func (s Status) Changed(prev Status) bool {
	if s.Item != "" && prev.Item != "" && s.Item != prev.Item {
		return true
	}
	return s.Sub != "" && prev.Sub != "" && s.Sub != prev.Sub
}

// Target identifies the library item a request concerns.
type Target struct {
	// ID is the manager's identifier for the item. Empty when unknown.
	ID string
	// ExternalID is the imdb-style id, if known.
	ExternalID string
	// DownloadID is the download identifier the manager knows the release by.
	DownloadID string
	// Status is the snapshot taken before dispatch.
	Status Status
}

// Pollable reports whether the target can be polled for completion.
func (t Target) Pollable() bool {
	return t.ID != ""
}

// Manager is the surface every manager kind implements.
type Manager interface {
	// Section returns the manager's configuration.
	Section() Section

	// Lookup identifies the library item for req and snapshots its status.
	// A zero Target with a nil error means the kind has nothing to look up.
	Lookup(ctx context.Context, req Request) (Target, error)

	// Dispatch sends the process request and returns the target to poll.
	// A response that does not explicitly accept the request yields ErrRejected.
	Dispatch(ctx context.Context, req Request, target Target) (Target, error)

	// NotifyFailed reports a failed download. Kinds or dialects without
	// failed-download handling return ErrUnsupported.
	NotifyFailed(ctx context.Context, req Request, target Target) error

	// Status returns the current status of target.
	Status(ctx context.Context, target Target) (Status, error)
}

// configurable is implemented by all managers to support shared options.
type configurable interface {
	setLogger(zerolog.Logger)
	setHTTPClient(*http.Client)
}

// Option is a functional option for configuring managers.
type Option func(configurable)

// WithLogger sets the logger for any manager.
func WithLogger(logger zerolog.Logger) Option {
	return func(c configurable) {
		c.setLogger(logger)
	}
}

// WithHTTPClient replaces the HTTP client for any manager.
func WithHTTPClient(client *http.Client) Option {
	return func(c configurable) {
		c.setHTTPClient(client)
	}
}

// New creates the manager for section. SickBeard sections need the detected dialect.
func New(section Section, dialect Dialect, opts ...Option) (Manager, error) {
	var m interface {
		Manager
		configurable
	}

	switch Kind(strings.ToLower(string(section.Kind))) {
	case KindCouchPotato:
		m = newCouchPotato(section)
	case KindSickBeard:
		m = newSickBeard(section, dialect)
	case KindSonarr:
		m = newArr(section, "DownloadedEpisodesScan")
	case KindRadarr:
		m = newArr(section, "DownloadedMoviesScan")
	case KindGamez:
		m = newGamez(section)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, section.Kind)
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Registry holds the configured sections by name and category.
type Registry struct {
	sections   map[string]Section
	byCategory map[string]Section
}

// NewRegistry creates a registry from sections. Disabled sections are skipped.
// When several sections claim a category the first one wins.
func NewRegistry(sections []Section) *Registry {
	r := &Registry{
		sections:   make(map[string]Section),
		byCategory: make(map[string]Section),
	}

	for _, s := range sections {
		if !s.Enabled {
			continue
		}
		r.sections[s.Name] = s
		if _, ok := r.byCategory[s.Category]; !ok {
			r.byCategory[s.Category] = s
		}
	}

	return r
}

// Get returns a section by name.
func (r *Registry) Get(name string) (Section, bool) {
	s, ok := r.sections[name]
	return s, ok
}

// ForCategory returns the section handling category.
func (r *Registry) ForCategory(category string) (Section, bool) {
	s, ok := r.byCategory[category]
	return s, ok
}

// Categories returns all categories, sorted.
func (r *Registry) Categories() []string {
	cats := make([]string, 0, len(r.byCategory))
	for cat := range r.byCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// All returns every enabled section ordered by name.
func (r *Registry) All() []Section {
	out := make([]Section, 0, len(r.sections))
	for _, s := range r.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
