// Package pipeline sequences the post-processing of a finished download:
// locating its content, extraction, tidying, transcoding, the hand-off to a
// media manager, completion polling and the release of the torrent.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seedreap/postreap/internal/archive"
	"github.com/seedreap/postreap/internal/manager"
	"github.com/seedreap/postreap/internal/media"
	"github.com/seedreap/postreap/internal/resolver"
	"github.com/seedreap/postreap/internal/timeline"
	"github.com/seedreap/postreap/internal/torrent"
	"github.com/seedreap/postreap/internal/transcode"
)

// ClientManual marks a run started by hand.
const ClientManual = "manual"

// Request describes a finished download.
type Request struct {
	// Dir is the path reported by the download client, a directory or a file.
	Dir string
	// Name is the display name of the download.
	Name string
	// Category is the client's category hint.
	Category string
	// Failed is set when the download did not complete.
	Failed bool
	// Client is the invoking download client, or ClientManual.
	Client string
	// DownloadID is the client's identifier; the info hash for torrents.
	DownloadID string
	// TorrentID is the client's numeric torrent id, when it has one.
	TorrentID string
	// Torrent is set when the download came from a torrent client.
	Torrent bool
}

// Manual reports whether the run was started by hand.
func (r Request) Manual() bool {
	return r.Client == "" || r.Client == ClientManual
}

// Policy holds the settings that apply to every run.
type Policy struct {
	// OutputDirectory receives a copy of torrent content before processing.
	OutputDirectory string
	// ForceClean removes processed directories even when media files remain.
	ForceClean bool
	// ASCIIConvert renames content to ASCII-only names.
	ASCIIConvert bool
	// DeleteOriginal removes the torrent and its data after a successful run.
	DeleteOriginal bool
	// UseLink selects how torrent content is staged: no, hard, sym or move.
	UseLink string
}

// removeTorrent reports whether a successful run removes the torrent.
func (p Policy) removeTorrent() bool {
	return p.DeleteOriginal || p.UseLink == "move"
}

// ManagerFactory creates the manager for a section.
type ManagerFactory func(section manager.Section, dialect manager.Dialect) (manager.Manager, error)

// TorrentConnector returns the torrent client, connecting on first use.
type TorrentConnector func(ctx context.Context) torrent.Client

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration)

// Orchestrator runs requests through the pipeline, one at a time.
type Orchestrator struct {
	registry   *manager.Registry
	scanner    *media.Scanner
	resolver   *resolver.Resolver
	extractor  *archive.Extractor
	transcoder *transcode.Transcoder
	detector   *manager.Detector
	poller     *manager.Poller
	timeline   timeline.Recorder
	managers   ManagerFactory
	policy     Policy
	sleep      SleepFunc
	logger     zerolog.Logger

	connect   TorrentConnector
	torrentMu sync.Mutex
	torrent   torrent.Client
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithExtractor enables archive extraction.
func WithExtractor(e *archive.Extractor) Option {
	return func(o *Orchestrator) {
		o.extractor = e
	}
}

// WithTranscoder enables transcoding.
func WithTranscoder(t *transcode.Transcoder) Option {
	return func(o *Orchestrator) {
		o.transcoder = t
	}
}

// WithTorrentConnector enables torrent control for torrent requests.
func WithTorrentConnector(connect TorrentConnector) Option {
	return func(o *Orchestrator) {
		o.connect = connect
	}
}

// WithDetector sets the dialect detector.
func WithDetector(d *manager.Detector) Option {
	return func(o *Orchestrator) {
		o.detector = d
	}
}

// WithPoller sets the completion poller.
func WithPoller(p *manager.Poller) Option {
	return func(o *Orchestrator) {
		o.poller = p
	}
}

// WithTimeline sets the timeline recorder.
func WithTimeline(t timeline.Recorder) Option {
	return func(o *Orchestrator) {
		o.timeline = t
	}
}

// WithManagerFactory replaces the manager constructor.
func WithManagerFactory(f ManagerFactory) Option {
	return func(o *Orchestrator) {
		o.managers = f
	}
}

// WithPolicy sets the run-wide policy.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithSleep replaces the wait used for the pre-dispatch delay.
func WithSleep(sleep SleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// New creates an Orchestrator for the sections in registry. The resolver
// works on the scanner's filesystem and knows the registry's categories.
func New(registry *manager.Registry, scanner *media.Scanner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		scanner:  scanner,
		sleep:    sleepCtx,
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.resolver = resolver.New(scanner.Fs(), registry.Categories(), resolver.WithLogger(o.logger))
	if o.detector == nil {
		o.detector = manager.NewDetector(manager.WithLogger(o.logger))
	}
	if o.poller == nil {
		o.poller = manager.NewPoller(manager.WithPollLogger(o.logger))
	}
	if o.timeline == nil {
		o.timeline = timeline.NewRecorder(timeline.WithLogger(o.logger))
	}
	if o.managers == nil {
		o.managers = func(s manager.Section, d manager.Dialect) (manager.Manager, error) {
			return manager.New(s, d, manager.WithLogger(o.logger))
		}
	}

	return o
}

// Timeline returns the recorder holding the state history of every run.
func (o *Orchestrator) Timeline() timeline.Recorder {
	return o.timeline
}

// torrentClient returns the connected torrent client, or nil without torrent control.
func (o *Orchestrator) torrentClient(ctx context.Context) torrent.Client {
	if o.connect == nil {
		return nil
	}

	o.torrentMu.Lock()
	defer o.torrentMu.Unlock()

	if o.torrent == nil {
		o.torrent = o.connect(ctx)
	}
	return o.torrent
}

// Process runs req through the pipeline. Torrent release and the final
// timeline entry happen exactly once, on every exit path.
//
//nolint:nonamedreturns // the deferred finalize must update the returned result
func (o *Orchestrator) Process(ctx context.Context, req Request) (result Result) {
	r := o.newRun(req)

	defer func() {
		r.finalize(ctx)
		result = r.result
	}()

	r.execute(ctx)
	return r.result
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
