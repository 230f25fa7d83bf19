package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/seedreap/postreap/internal/archive"
	"github.com/seedreap/postreap/internal/fileutil"
	"github.com/seedreap/postreap/internal/manager"
	"github.com/seedreap/postreap/internal/resolver"
	"github.com/seedreap/postreap/internal/timeline"
	"github.com/seedreap/postreap/internal/torrent"
)

const (
	gib = 1 << 30
	// dispatchBaseTimeout is the dispatch timeout before the per-GiB allowance.
	dispatchBaseTimeout = 60 * time.Second
)

// run is the state of one request moving through the pipeline.
type run struct {
	o      *Orchestrator
	req    Request
	logger zerolog.Logger
	result Result

	section manager.Section
	name    string
	// staged is set when processing works on a copy of the torrent content.
	staged  bool
	custody *torrent.Custody

	finalized bool
}

func (o *Orchestrator) newRun(req Request) *run {
	id := ulid.Make().String()

	return &run{
		o:      o,
		req:    req,
		name:   req.Name,
		result: Result{RunID: id, Dir: req.Dir},
		logger: o.logger.With().Str("run_id", id).Str("name", req.Name).Logger(),
	}
}

func (r *run) record(state timeline.State, message string, details map[string]any) {
	r.o.timeline.Record(timeline.Event{
		RunID:     r.result.RunID,
		State:     state,
		Timestamp: time.Now(),
		Message:   message,
		Name:      r.name,
		Section:   r.section.Name,
		Details:   details,
	})
}

func (r *run) execute(ctx context.Context) {
	r.record(timeline.StateReceived, "request received", map[string]any{
		"dir":      r.req.Dir,
		"category": r.req.Category,
		"client":   r.req.Client,
		"failed":   r.req.Failed,
	})

	loc, ok := r.locate()
	if !ok {
		return
	}

	if r.req.Failed {
		r.failedDownload(ctx, loc)
		return
	}

	r.acquireTorrent(ctx)

	if !r.stage(&loc) {
		return
	}

	dir := r.isolate(loc)
	r.extract(ctx, dir)

	if r.o.policy.ASCIIConvert {
		name, newDir, err := r.o.scanner.ConvertToASCII(r.name, dir)
		if err != nil {
			r.logger.Warn().Err(err).Str("dir", dir).Msg("could not convert names to ASCII")
			r.result.fail(StepASCII, err, Success)
		} else {
			r.name, dir = name, newDir
			r.result.ok(StepASCII, newDir)
		}
	}
	r.result.Dir = dir

	if !r.scan(dir) {
		return
	}

	r.transcode(ctx, dir)

	if r.dispatch(ctx, dir) {
		r.cleanup(dir)
	}
}

// locate resolves the content directory and the section handling it.
func (r *run) locate() (resolver.Location, bool) {
	loc, err := r.o.resolver.Resolve(r.req.Dir, r.req.Name, r.req.Category)
	if err != nil {
		r.logger.Error().Err(err).Msg("could not resolve category of download")
		r.result.fail(StepResolve, err, Failed)
		return loc, false
	}

	section, ok := r.o.registry.ForCategory(loc.Category)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrNoSection, loc.Category)
		r.logger.Error().Err(err).Msg("category is not configured")
		r.result.fail(StepResolve, err, Failed)
		return loc, false
	}

	r.section = section
	r.name = loc.Name
	r.result.Section = section.Name
	r.result.Dir = loc.Dir
	r.logger = r.logger.With().Str("section", section.Name).Str("kind", string(section.Kind)).Logger()

	r.logger.Info().
		Str("dir", loc.Dir).
		Str("category", loc.Category).
		Stringer("confidence", loc.Confidence).
		Msg("download located")

	r.result.ok(StepResolve, fmt.Sprintf("%s (%s)", loc.Dir, loc.Confidence))
	r.record(timeline.StateLocated, "download located", map[string]any{
		"dir":        loc.Dir,
		"category":   loc.Category,
		"confidence": loc.Confidence.String(),
	})

	return loc, true
}

// failedDownload tells the manager about a failed download and optionally
// removes what was left of it.
func (r *run) failedDownload(ctx context.Context, loc resolver.Location) {
	// The download itself failed, whatever the manager makes of it.
	r.result.Outcome = Failed

	r.logger.Info().Msg("download failed, notifying manager")

	mgr, err := r.o.managers(r.section, r.o.detector.Detect(ctx, r.section))
	if err != nil {
		r.result.fail(StepNotify, err, Failed)
		return
	}

	mreq := r.managerRequest(loc.Dir)
	mreq.Failed = true

	target, err := mgr.Lookup(ctx, mreq)
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not identify the failed release")
	}

	err = mgr.NotifyFailed(ctx, mreq, target)
	switch {
	case errors.Is(err, manager.ErrUnsupported):
		r.logger.Info().Err(err).Msg("manager does not handle failed downloads")
		r.result.ok(StepNotify, "unsupported")
	case err != nil:
		r.logger.Error().Err(err).Msg("failed to notify manager of failed download")
		r.result.fail(StepNotify, err, Failed)
	default:
		r.result.ok(StepNotify, "notified")
		r.record(timeline.StateFailureNotified, "manager notified of failed download", nil)
	}

	if !r.section.DeleteFailed {
		return
	}
	if err := r.safeToDelete(loc.Dir); err != nil {
		r.logger.Warn().Err(err).Str("dir", loc.Dir).Msg("not deleting failed download")
		r.result.fail(StepDelete, err, Failed)
		return
	}
	if err := r.o.scanner.Delete(loc.Dir); err != nil {
		r.logger.Error().Err(err).Str("dir", loc.Dir).Msg("could not delete failed download")
		r.result.fail(StepDelete, err, Failed)
		return
	}
	r.result.ok(StepDelete, loc.Dir)
	r.record(timeline.StateDeletedLocal, "failed download deleted", map[string]any{"dir": loc.Dir})
}

// acquireTorrent pauses the torrent for the duration of the run.
func (r *run) acquireTorrent(ctx context.Context) {
	if !r.req.Torrent || (r.req.DownloadID == "" && r.req.TorrentID == "") {
		return
	}

	client := r.o.torrentClient(ctx)
	if client == nil {
		return
	}

	r.custody = torrent.Acquire(ctx, client, torrent.Handle{
		ID:   r.req.TorrentID,
		Hash: r.req.DownloadID,
		Name: r.req.Name,
	}, r.logger)
}

// stage copies, links or moves torrent content below the output directory.
// It reports whether processing can go on.
func (r *run) stage(loc *resolver.Location) bool {
	out := r.o.policy.OutputDirectory
	if out == "" || !r.req.Torrent {
		return true
	}

	fs := r.o.scanner.Fs()
	dest := filepath.Join(out, loc.Category, resolver.SanitizeFileName(loc.Name))

	files := []string{loc.File}
	if !loc.Single() {
		var err error
		if files, err = r.o.scanner.Files(loc.Dir); err != nil {
			r.result.fail(StepStage, err, Failed)
			return false
		}
	}

	mode := r.o.policy.UseLink
	for _, src := range files {
		rel, err := filepath.Rel(loc.Dir, src)
		if err != nil {
			rel = filepath.Base(src)
		}
		if err := stageFile(fs, mode, src, filepath.Join(dest, rel)); err != nil {
			r.logger.Error().Err(err).Str("file", src).Msg("could not stage file")
			r.result.fail(StepStage, err, Failed)
			return false
		}
	}

	r.logger.Info().Str("dest", dest).Str("mode", mode).Int("files", len(files)).Msg("content staged")
	r.result.ok(StepStage, dest)

	loc.Dir = dest
	loc.File = ""
	loc.Confidence = resolver.Dedicated
	r.staged = true
	return true
}

func stageFile(fs afero.Fs, mode, src, dst string) error {
	switch mode {
	case "move":
		return fileutil.MoveFile(fs, src, dst)
	case "hard":
		if _, ok := fs.(*afero.OsFs); ok {
			if err := fs.MkdirAll(filepath.Dir(dst), 0750); err != nil {
				return err
			}
			if err := os.Link(src, dst); err == nil {
				return nil
			}
		}
	case "sym":
		if linker, ok := fs.(afero.Linker); ok {
			if err := fs.MkdirAll(filepath.Dir(dst), 0750); err != nil {
				return err
			}
			return linker.SymlinkIfPossible(src, dst)
		}
	}
	return fileutil.CopyFile(fs, src, dst)
}

// isolate gives a download without a dedicated directory a folder of its own
// and returns the directory to process.
func (r *run) isolate(loc resolver.Location) string {
	if !loc.Single() && loc.Confidence != resolver.Shared {
		return loc.Dir
	}

	folder := resolver.SanitizeFileName(r.name)
	if loc.Single() && r.name == filepath.Base(loc.File) {
		folder = strings.TrimSuffix(folder, filepath.Ext(folder))
	}
	if folder == "" {
		return loc.Dir
	}
	unit := filepath.Join(loc.Dir, folder)

	var files []string
	if loc.Single() {
		files = []string{loc.File}
	} else {
		files = r.looseFiles(loc.Dir, folder)
	}
	if len(files) == 0 {
		return loc.Dir
	}

	moved := 0
	for _, src := range files {
		if err := fileutil.MoveFile(r.o.scanner.Fs(), src, filepath.Join(unit, filepath.Base(src))); err != nil {
			r.logger.Warn().Err(err).Str("file", src).Msg("could not move file into its own folder")
			continue
		}
		moved++
	}
	if moved == 0 {
		return loc.Dir
	}

	r.logger.Info().Str("dir", unit).Int("files", moved).Msg("moved download into its own folder")
	r.result.ok(StepIsolate, unit)
	return unit
}

// looseFiles returns the media and archive files directly in dir whose names
// contain folder. An empty folder name matches everything.
func (r *run) looseFiles(dir, folder string) []string {
	entries, err := afero.ReadDir(r.o.scanner.Fs(), dir)
	if err != nil {
		r.logger.Warn().Err(err).Str("dir", dir).Msg("could not list directory")
		return nil
	}

	rules := r.o.scanner.Rules()
	needle := strings.ToLower(folder)

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !rules.IsMediaExtension(name) && !rules.IsCompressedExtension(name) {
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files
}

// extract unpacks every archive below dir into dir. Failures mark the run
// failed but processing continues with whatever media is present.
func (r *run) extract(ctx context.Context, dir string) {
	if r.o.extractor == nil {
		return
	}

	files, err := r.o.scanner.Files(dir)
	if err != nil {
		r.logger.Warn().Err(err).Str("dir", dir).Msg("could not list files for extraction")
		return
	}

	extracted, failed := 0, 0
	for _, f := range files {
		if !r.o.extractor.IsArchive(f) || archive.IsLaterVolume(f) {
			continue
		}

		res, err := r.o.extractor.Extract(ctx, f, dir)
		if err != nil {
			r.logger.Error().Err(err).Str("archive", f).Int("attempts", res.Attempts).Msg("extraction failed")
			r.result.fail(StepExtract, err, Failed)
			failed++
			continue
		}
		extracted++
	}

	if extracted == 0 {
		return
	}

	r.result.ok(StepExtract, fmt.Sprintf("%d archives", extracted))
	r.record(timeline.StateExtracted, "archives extracted", map[string]any{
		"extracted": extracted,
		"failed":    failed,
	})
}

// flattenKinds are the manager kinds that expect every file at the top level.
//
//nolint:gochecknoglobals // static lookup table
var flattenKinds = map[manager.Kind]bool{
	manager.KindSickBeard: true,
	manager.KindSonarr:    true,
}

// scan removes samples, flattens TV downloads and checks that there is media
// to hand off. It reports whether dispatch should follow.
func (r *run) scan(dir string) bool {
	sr, err := r.o.scanner.Scan(dir, r.name)
	if err != nil {
		r.logger.Error().Err(err).Str("dir", dir).Msg("could not scan download")
		r.result.fail(StepScan, err, Failed)
		return false
	}

	if flattenKinds[r.section.Kind] {
		if err := r.o.scanner.Flatten(dir); err != nil {
			r.logger.Warn().Err(err).Str("dir", dir).Msg("could not flatten download")
		}
	}

	if r.section.Kind == manager.KindGamez {
		r.result.ok(StepScan, "media check skipped")
		return true
	}

	files, err := r.o.scanner.ListMediaFiles(dir)
	if err != nil {
		r.result.fail(StepScan, err, Failed)
		return false
	}

	if len(files) == 0 {
		if r.req.Manual() {
			r.logger.Info().Str("dir", dir).Msg("no media files found, skipping")
			r.result.ok(StepScan, "no media files")
			return false
		}
		r.logger.Error().Str("dir", dir).Msg("no media files found")
		r.result.fail(StepScan, fmt.Errorf("%w in %s", ErrNoMedia, dir), Failed)
		return false
	}

	r.result.ok(StepScan, fmt.Sprintf("%d media files, %d samples removed", len(files), len(sr.SamplesDeleted)))
	return true
}

// transcode encodes the media in dir. Failures are recorded but never change
// the outcome.
func (r *run) transcode(ctx context.Context, dir string) {
	if r.o.transcoder == nil || r.section.Kind == manager.KindGamez {
		return
	}

	failures, err := r.o.transcoder.TranscodeDirectory(ctx, dir)
	switch {
	case err != nil:
		r.logger.Error().Err(err).Msg("transcoding could not run")
		r.result.fail(StepTranscode, err, Success)
	case failures > 0:
		r.logger.Error().Int("failures", failures).Msg("transcoding failed for at least one file")
		r.result.fail(StepTranscode, fmt.Errorf("%w: exit code sum %d", ErrTranscode, failures), Success)
	default:
		r.result.ok(StepTranscode, "")
		r.record(timeline.StateTranscoded, "media transcoded", nil)
	}
}

func (r *run) managerRequest(dir string) manager.Request {
	return manager.Request{
		Dir:        dir,
		Name:       r.name,
		Client:     r.req.Client,
		DownloadID: r.req.DownloadID,
		Torrent:    r.req.Torrent,
	}
}

// dispatchTimeout allows TimePerGiB for every GiB of content on top of a base timeout.
func dispatchTimeout(section manager.Section, size int64) time.Duration {
	return dispatchBaseTimeout + time.Duration(float64(section.TimePerGiB)*float64(size)/gib)
}

// dispatch hands dir to the manager and waits for confirmation where the
// manager offers a status to poll. It reports whether the run succeeded.
func (r *run) dispatch(ctx context.Context, dir string) bool {
	dialect := r.o.detector.Detect(ctx, r.section)
	r.result.ok(StepDialect, dialect.Name)
	r.record(timeline.StateDialectResolved, "dialect resolved", map[string]any{"dialect": dialect.Name})

	mgr, err := r.o.managers(r.section, dialect)
	if err != nil {
		r.result.fail(StepDispatch, err, Failed)
		r.record(timeline.StateRejected, err.Error(), nil)
		return false
	}

	if !r.req.Manual() && r.section.Delay > 0 {
		r.logger.Info().Dur("delay", r.section.Delay).Msg("waiting before dispatch")
		r.o.sleep(ctx, r.section.Delay)
	}

	mreq := r.managerRequest(dir)

	target, err := mgr.Lookup(ctx, mreq)
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not identify the release in the library")
	}

	size, err := r.o.scanner.DirSize(dir)
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not size download")
	}
	mreq.Timeout = dispatchTimeout(r.section, size)

	r.logger.Info().
		Str("dir", dir).
		Str("size", humanize.IBytes(uint64(max(size, 0)))).
		Dur("timeout", mreq.Timeout).
		Msg("dispatching to manager")

	dispatched, err := mgr.Dispatch(ctx, mreq, target)
	if err != nil {
		r.logger.Error().Err(err).Msg("manager did not accept the request")
		r.result.fail(StepDispatch, err, Failed)
		r.record(timeline.StateRejected, err.Error(), nil)
		return false
	}
	r.result.ok(StepDispatch, dispatched.ID)
	r.record(timeline.StateDispatched, "request accepted", map[string]any{"target": dispatched.ID})

	if r.req.Manual() {
		return true
	}
	if !dispatched.Pollable() {
		return r.unpollable(ctx, mgr, dispatched)
	}

	status, err := r.o.poller.Poll(ctx, dispatched.Status, r.section.WaitFor, func(ctx context.Context) (manager.Status, error) {
		return mgr.Status(ctx, dispatched)
	})
	if err != nil {
		r.logger.Warn().Err(err).Dur("wait_for", r.section.WaitFor).Msg("manager did not confirm the request")
		r.result.fail(StepPoll, err, Unconfirmed)
		r.record(timeline.StateTimedOut, "no status change before deadline", map[string]any{
			"item_status": status.Item,
			"sub_status":  status.Sub,
		})
		return false
	}

	r.result.ok(StepPoll, status.Item+"/"+status.Sub)
	r.record(timeline.StateConfirmed, "manager confirmed the request", map[string]any{
		"item_status": status.Item,
		"sub_status":  status.Sub,
	})
	return true
}

// unpollable settles an automatic run whose dispatched item has no handle to
// poll. Managers without a status surface, and runs without a download id,
// succeed. A known download the manager never matched stays unconfirmed so
// that its torrent is resumed rather than removed.
func (r *run) unpollable(ctx context.Context, mgr manager.Manager, target manager.Target) bool {
	if r.req.DownloadID == "" {
		return true
	}
	if _, err := mgr.Status(ctx, target); errors.Is(err, manager.ErrUnsupported) {
		return true
	}

	err := fmt.Errorf("%w: download %s was not matched to a library item", manager.ErrNotFound, r.req.DownloadID)
	r.logger.Warn().Err(err).Msg("manager cannot confirm the request")
	r.result.fail(StepPoll, err, Unconfirmed)
	r.record(timeline.StateTimedOut, "no library item to poll", map[string]any{"download_id": r.req.DownloadID})
	return false
}

// cleanup removes the processed directory once the manager took its media.
// Torrent content is only touched when it was staged.
func (r *run) cleanup(dir string) {
	if r.req.Torrent && !r.staged {
		return
	}
	if err := r.safeToDelete(dir); err != nil {
		r.logger.Debug().Err(err).Str("dir", dir).Msg("skipping cleanup")
		return
	}

	removed, err := r.o.scanner.Cleanup(dir, r.o.policy.ForceClean)
	if err != nil {
		r.logger.Warn().Err(err).Str("dir", dir).Msg("cleanup failed")
		r.result.fail(StepCleanup, err, Success)
		return
	}
	if removed {
		r.result.ok(StepCleanup, dir)
	}
}

// safeToDelete refuses roots, watch directories and category directories.
func (r *run) safeToDelete(dir string) error {
	clean := filepath.Clean(dir)
	switch {
	case clean == filepath.Dir(clean),
		filepath.Dir(clean) == filepath.Dir(filepath.Dir(clean)),
		r.section.WatchDir != "" && clean == filepath.Clean(r.section.WatchDir),
		filepath.Base(clean) == r.section.Category,
		r.o.policy.OutputDirectory != "" && clean == filepath.Clean(r.o.policy.OutputDirectory):
		return fmt.Errorf("%w: %s", ErrUnsafeDelete, dir)
	}
	return nil
}

// finalize releases the torrent and records the end of the run. Only the
// first call acts.
func (r *run) finalize(ctx context.Context) {
	if r.finalized {
		return
	}
	r.finalized = true

	if r.custody != nil {
		remove := r.result.Outcome == Success && r.o.policy.removeTorrent()
		if err := r.custody.Release(ctx, remove, remove); err != nil {
			r.logger.Error().Err(err).Msg("failed to release torrent")
			r.result.fail(StepRelease, err, Success)
		} else if remove {
			r.result.ok(StepRelease, "removed")
		} else {
			r.result.ok(StepRelease, "resumed")
		}
	}

	r.record(timeline.StateFinalized, "run finished", map[string]any{"outcome": r.result.Outcome.String()})

	event := r.logger.Info()
	if r.result.Outcome != Success {
		event = r.logger.Warn().AnErr("error", r.result.Err())
	}
	event.Stringer("outcome", r.result.Outcome).Str("dir", r.result.Dir).Msg("processing finished")
}
