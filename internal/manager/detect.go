package manager

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Dialect names.
const (
	DialectDefault       = "default"
	DialectFailed        = "failed"
	DialectFailedTorrent = "failed-torrent"
)

// Dialect is one API variant of a manager kind.
type Dialect struct {
	Name string
	// Params are the parameter names the variant's process endpoint accepts.
	Params []string
	// HandlesFailed reports whether the variant accepts failed downloads.
	HandlesFailed bool
	// Torrent reports whether the variant processes torrent content itself.
	Torrent bool
}

// Accepts reports whether the variant takes param.
func (d Dialect) Accepts(param string) bool {
	for _, p := range d.Params {
		if p == param {
			return true
		}
	}
	return false
}

// Dialects returns the known variants of kind, sorted by name.
func Dialects(kind Kind) []Dialect {
	var out []Dialect

	switch Kind(strings.ToLower(string(kind))) {
	case KindSickBeard:
		out = []Dialect{
			{Name: DialectFailedTorrent, Params: []string{"dir", "failed", "process_method"}, HandlesFailed: true, Torrent: true},
			{Name: DialectDefault, Params: []string{"dir"}},
			{Name: DialectFailed, Params: []string{"dirName", "failed"}, HandlesFailed: true},
		}
	case KindCouchPotato:
		out = []Dialect{{Name: DialectDefault, HandlesFailed: true}}
	case KindGamez:
		out = []Dialect{{Name: DialectDefault, HandlesFailed: true}}
	default:
		out = []Dialect{{Name: DialectDefault}}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupDialect returns the variant of kind called name.
func LookupDialect(kind Kind, name string) (Dialect, bool) {
	for _, d := range Dialects(kind) {
		if d.Name == name {
			return d, true
		}
	}
	return Dialect{}, false
}

// DefaultDialect returns the variant used when detection fails.
func DefaultDialect(kind Kind) Dialect {
	d, _ := LookupDialect(kind, DialectDefault)
	return d
}

// probePath returns the endpoint probed for kind, or "" when kind has a single variant.
func probePath(kind Kind) string {
	if Kind(strings.ToLower(string(kind))) == KindSickBeard {
		return processEpisodePath
	}
	return ""
}

// Detector resolves the dialect of each section once and caches the result.
type Detector struct {
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.Mutex
	cache map[string]Dialect
}

// NewDetector creates a Detector. WithLogger and WithHTTPClient apply.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
		cache:      make(map[string]Dialect),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// setLogger implements configurable for shared options.
func (d *Detector) setLogger(logger zerolog.Logger) {
	d.logger = logger
}

// setHTTPClient implements configurable for shared options.
func (d *Detector) setHTTPClient(client *http.Client) {
	d.httpClient = client
}

// Detect returns the dialect for s. An explicitly configured dialect is used
// as is. Otherwise the known variants are probed in name order and the first
// one the manager accepts wins; a connection failure stops probing and the
// default variant is used. The result is cached per section name.
func (d *Detector) Detect(ctx context.Context, s Section) Dialect {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dialect, ok := d.cache[s.Name]; ok {
		return dialect
	}

	dialect := d.detect(ctx, s)
	d.cache[s.Name] = dialect

	d.logger.Info().Str("section", s.Name).Str("dialect", dialect.Name).Msg("dialect set")
	return dialect
}

func (d *Detector) detect(ctx context.Context, s Section) Dialect {
	fallback := DefaultDialect(s.Kind)

	if s.Dialect != "" && s.Dialect != DialectAuto {
		if dialect, ok := LookupDialect(s.Kind, s.Dialect); ok {
			return dialect
		}
		d.logger.Warn().Str("section", s.Name).Str("dialect", s.Dialect).Msg("unknown dialect, using default")
		return fallback
	}

	dialects := Dialects(s.Kind)
	endpoint := probePath(s.Kind)
	if len(dialects) == 1 || endpoint == "" {
		return dialects[0]
	}

	d.logger.Info().Str("section", s.Name).Msg("attempting to auto-detect dialect")

	for _, dialect := range dialects {
		err := d.probe(ctx, s, endpoint, dialect)
		if err == nil {
			d.logger.Info().Str("section", s.Name).Msg("dialect auto-detection successful")
			return dialect
		}
		if errors.Is(err, ErrConnection) {
			d.logger.Warn().Err(err).Str("section", s.Name).Msg("could not connect to perform dialect detection")
			break
		}
		d.logger.Debug().Err(err).Str("section", s.Name).Str("dialect", dialect.Name).Msg("dialect probe rejected")
	}

	d.logger.Info().Str("section", s.Name).Msg("dialect auto-detection failed")
	return fallback
}

func (d *Detector) probe(ctx context.Context, s Section, endpoint string, dialect Dialect) error {
	ctx, cancel := withTimeout(ctx, s.HTTPTimeout)
	defer cancel()

	params := url.Values{}
	for _, p := range dialect.Params {
		params.Set(p, "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL()+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if s.Username != "" || s.Password != "" {
		req.SetBasicAuth(s.Username, s.Password)
	}

	base := httpBase{section: s, httpClient: d.httpClient, logger: d.logger}
	_, err = base.do(req)
	return err
}
