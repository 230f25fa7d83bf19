// Package transcode re-encodes video files with ffmpeg according to a profile.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/seedreap/postreap/internal/execx"
)

// ErrEncoderNotFound is returned when the encoder binary is not on PATH.
var ErrEncoderNotFound = errors.New("encoder not found")

// CollisionSuffix is inserted before the output extension when it equals the
// source extension.
const CollisionSuffix = "-transcoded"

// Profile configures the encode.
type Profile struct {
	// MediaExtensions selects the files considered for transcoding.
	MediaExtensions []string
	// IgnoreExtensions are media extensions left untouched.
	IgnoreExtensions []string
	// OutputExtension is the container of the encoded file, e.g. ".mp4".
	OutputExtension string

	VideoCodec     string
	VideoPreset    string
	VideoFramerate string
	VideoBitrate   string
	AudioCodec     string
	AudioBitrate   string
	SubtitleCodec  string
	FastStart      bool
	QualityPercent int

	// Duplicate keeps the original file after a successful encode.
	Duplicate bool
	// Niceness runs the encoder under nice when greater than zero.
	Niceness int
}

// Transcoder runs encodes for a directory.
type Transcoder struct {
	profile Profile
	runner  execx.Runner
	fs      afero.Fs
	binary  string
	logger  zerolog.Logger
}

// Option is a functional option for configuring the Transcoder.
type Option func(*Transcoder)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transcoder) {
		t.logger = logger
	}
}

// WithFs sets the filesystem.
func WithFs(fs afero.Fs) Option {
	return func(t *Transcoder) {
		t.fs = fs
	}
}

// WithBinary sets the encoder binary. Defaults to "ffmpeg".
func WithBinary(binary string) Option {
	return func(t *Transcoder) {
		t.binary = binary
	}
}

// New creates a Transcoder.
func New(profile Profile, runner execx.Runner, opts ...Option) *Transcoder {
	t := &Transcoder{
		profile: profile,
		runner:  runner,
		fs:      afero.NewOsFs(),
		binary:  "ffmpeg",
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// CheckEncoder verifies the encoder binary can be found.
func (t *Transcoder) CheckEncoder(lookPath execx.LookPathFunc) error {
	if _, err := lookPath(t.binary); err != nil {
		return fmt.Errorf("%w: %s", ErrEncoderNotFound, t.binary)
	}
	return nil
}

// Eligible reports whether path should be transcoded.
func (t *Transcoder) Eligible(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return containsFold(t.profile.MediaExtensions, ext) && !containsFold(t.profile.IgnoreExtensions, ext)
}

// OutputPath returns the encode target for input.
func (t *Transcoder) OutputPath(input string) string {
	ext := filepath.Ext(input)
	out := t.profile.OutputExtension
	if strings.EqualFold(ext, out) {
		out = CollisionSuffix + out
	}
	return filepath.Clean(strings.TrimSuffix(input, ext) + out)
}

// Command builds the encoder invocation for input. Argument order is fixed:
// input, stream mapping, video, audio, container and subtitle flags, output.
func (t *Transcoder) Command(input string) execx.Command {
	p := t.profile

	args := []string{"-loglevel", "warning", "-i", input, "-map", "0"}

	if p.VideoCodec != "" {
		args = append(args, "-c:v", p.VideoCodec)
		if p.VideoCodec == "libx264" && p.VideoPreset != "" {
			args = append(args, "-preset", p.VideoPreset)
		}
	} else {
		args = append(args, "-c:v", "copy")
	}
	if p.VideoFramerate != "" {
		args = append(args, "-r", p.VideoFramerate)
	}
	if p.VideoBitrate != "" {
		args = append(args, "-b:v", p.VideoBitrate)
	}

	if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec)
		if p.AudioCodec == "aac" {
			args = append(args, "-strict", "-2")
		}
	} else {
		args = append(args, "-c:a", "copy")
	}
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}

	if p.FastStart {
		args = append(args, "-movflags", "+faststart")
	}
	if p.QualityPercent > 0 {
		args = append(args, "-q:a", strconv.Itoa(p.QualityPercent))
	}

	if p.SubtitleCodec != "" {
		args = append(args, "-c:s", p.SubtitleCodec)
	} else {
		args = append(args, "-sn")
	}

	args = append(args, t.OutputPath(input))

	if p.Niceness > 0 {
		return execx.Command{
			Name: "nice",
			Args: append([]string{"-" + strconv.Itoa(p.Niceness), t.binary}, args...),
		}
	}
	return execx.Command{Name: t.binary, Args: args}
}

// TranscodeDirectory encodes every eligible file under dir. It returns the
// sum of the encoder's non-zero exit codes, so zero means every file succeeded.
// A failing file never stops the remaining ones.
func (t *Transcoder) TranscodeDirectory(ctx context.Context, dir string) (int, error) {
	files, err := t.candidates(dir)
	if err != nil {
		return 0, err
	}

	failures := 0
	for _, input := range files {
		failures += t.TranscodeFile(ctx, input)
	}

	return failures, nil
}

func (t *Transcoder) candidates(dir string) ([]string, error) {
	var files []string
	err := afero.Walk(t.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !containsFold(t.profile.MediaExtensions, ext) {
			return nil
		}
		if containsFold(t.profile.IgnoreExtensions, ext) {
			t.logger.Info().Str("ext", ext).Msg("no need to transcode video type")
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// TranscodeFile encodes a single file and returns the encoder's exit code,
// or 1 when it could not be started.
func (t *Transcoder) TranscodeFile(ctx context.Context, input string) int {
	output := t.OutputPath(input)

	if err := t.fs.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Debug().Err(err).Str("path", output).Msg("error when removing transcoding target")
	}

	t.logger.Info().Str("file", filepath.Base(input)).Msg("transcoding video")

	code, err := t.runner.Run(ctx, t.Command(input))
	if err != nil {
		t.logger.Error().Err(err).Str("path", input).Msg("transcoding failed to start")
		return 1
	}
	if code != 0 {
		t.logger.Error().
			Str("path", input).
			Str("output", output).
			Int("exit_code", code).
			Msg("transcoding failed")
		return code
	}

	t.logger.Info().Str("path", input).Str("output", output).Msg("transcoding succeeded")

	if !t.profile.Duplicate {
		if err := t.fs.Remove(input); err != nil {
			t.logger.Warn().Err(err).Str("path", input).Msg("failed to remove original after transcoding")
		}
	}

	return 0
}

func containsFold(list []string, ext string) bool {
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), ext)
	})
}
