package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/seedreap/postreap/internal/archive"
	"github.com/seedreap/postreap/internal/config"
	"github.com/seedreap/postreap/internal/execx"
	"github.com/seedreap/postreap/internal/manager"
	"github.com/seedreap/postreap/internal/media"
	"github.com/seedreap/postreap/internal/timeline"
	"github.com/seedreap/postreap/internal/torrent"
	"github.com/seedreap/postreap/internal/transcode"
)

// FromConfig builds an orchestrator backed by the real filesystem and the
// tools on PATH. A missing encoder disables transcoding with a warning; a
// password file that cannot be read is an error.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Orchestrator, error) {
	fs := afero.NewOsFs()
	runner := execx.NewOSRunner(logger)

	scanner := media.NewScanner(fs, MediaRules(cfg), media.WithLogger(logger))

	passwords, err := archive.LoadPasswords(fs, cfg.Extraction.PasswordFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive passwords: %w", err)
	}
	extractor := archive.NewExtractor(
		archive.NewRegistry(archive.DefaultTools(), exec.LookPath, logger),
		runner,
		archive.WithLogger(logger),
		archive.WithFs(fs),
		archive.WithPasswords(passwords),
	)

	opts := []Option{
		WithLogger(logger),
		WithExtractor(extractor),
		WithDetector(manager.NewDetector(manager.WithLogger(logger))),
		WithPoller(manager.NewPoller(
			manager.WithPollLogger(logger),
			manager.WithInterval(cfg.General.PollInterval),
		)),
		WithTimeline(timeline.NewRecorder(timeline.WithLogger(logger))),
		WithPolicy(Policy{
			OutputDirectory: cfg.General.OutputDirectory,
			ForceClean:      cfg.General.ForceClean,
			ASCIIConvert:    cfg.General.ASCIIConvert,
			DeleteOriginal:  cfg.Torrent.DeleteOriginal,
			UseLink:         cfg.Torrent.UseLink,
		}),
	}

	if cfg.Transcoder.Enabled {
		t := transcode.New(TranscodeProfile(cfg), runner,
			transcode.WithLogger(logger),
			transcode.WithFs(fs),
			transcode.WithBinary(cfg.Transcoder.Binary),
		)
		if err := t.CheckEncoder(exec.LookPath); err != nil {
			logger.Warn().Err(err).Msg("transcoding disabled")
		} else {
			opts = append(opts, WithTranscoder(t))
		}
	}

	if cfg.Torrent.Client != "" {
		tcfg := TorrentClientConfig(cfg)
		opts = append(opts, WithTorrentConnector(func(ctx context.Context) torrent.Client {
			return torrent.New(ctx, tcfg, torrent.WithLogger(logger))
		}))
	}

	return New(manager.NewRegistry(Sections(cfg)), scanner, opts...), nil
}

// Sections converts the configured sections, ordered by name.
func Sections(cfg *config.Config) []manager.Section {
	names := make([]string, 0, len(cfg.Sections))
	for name := range cfg.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]manager.Section, 0, len(names))
	for _, name := range names {
		s := cfg.Sections[name]
		sections = append(sections, manager.Section{
			Name:          name,
			Kind:          manager.Kind(s.Kind),
			Category:      s.Category,
			Host:          s.Host,
			Port:          s.Port,
			SSL:           s.SSL,
			WebRoot:       s.WebRoot,
			APIKey:        s.APIKey,
			Username:      s.Username,
			Password:      s.Password,
			Dialect:       s.Dialect,
			Enabled:       s.IsEnabled(),
			Method:        s.Method,
			Delay:         s.Delay,
			WaitFor:       s.WaitFor,
			TimePerGiB:    s.TimePerGiB,
			DeleteFailed:  s.DeleteFailed,
			RemotePath:    s.RemotePath,
			ProcessMethod: s.ProcessMethod,
			TorrentNoLink: s.TorrentNoLink,
			WatchDir:      s.WatchDir,
			Remote:        s.Remote,
			HTTPTimeout:   s.HTTPTimeout,
		})
	}
	return sections
}

// MediaRules converts the media settings.
func MediaRules(cfg *config.Config) media.Rules {
	m := cfg.Media
	return media.NewRules(m.MediaExtensions, m.MetaExtensions, m.CompressedExtensions, m.MinSampleSizeMB, m.SampleIDs)
}

// TranscodeProfile converts the transcoder settings.
func TranscodeProfile(cfg *config.Config) transcode.Profile {
	t := cfg.Transcoder
	return transcode.Profile{
		MediaExtensions:  t.MediaExtensions,
		IgnoreExtensions: t.IgnoreExtensions,
		OutputExtension:  t.OutputExtension,
		VideoCodec:       t.VideoCodec,
		VideoPreset:      t.VideoPreset,
		VideoFramerate:   t.VideoFramerate,
		VideoBitrate:     t.VideoBitrate,
		AudioCodec:       t.AudioCodec,
		AudioBitrate:     t.AudioBitrate,
		SubtitleCodec:    t.SubtitleCodec,
		FastStart:        t.FastStart,
		QualityPercent:   t.QualityPercent,
		Duplicate:        t.Duplicate,
		Niceness:         t.Niceness,
	}
}

// TorrentClientConfig converts the torrent client settings.
func TorrentClientConfig(cfg *config.Config) torrent.Config {
	t := cfg.Torrent
	return torrent.Config{
		Kind:        torrent.Kind(t.Client),
		URL:         t.URL,
		Username:    t.Username,
		Password:    t.Password,
		HTTPTimeout: t.HTTPTimeout,
		GraceDelay:  t.GraceDelay,
	}
}
