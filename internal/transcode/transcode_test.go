package transcode_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedreap/postreap/internal/execx"
	testutil "github.com/seedreap/postreap/internal/testing"
	"github.com/seedreap/postreap/internal/transcode"
)

func baseProfile() transcode.Profile {
	return transcode.Profile{
		MediaExtensions:  []string{".mkv", ".avi", ".mp4"},
		IgnoreExtensions: []string{".avi"},
		OutputExtension:  ".mp4",
	}
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name     string
		profile  transcode.Profile
		input    string
		expected execx.Command
	}{
		{
			name:    "copies streams when codecs are unset",
			profile: baseProfile(),
			input:   "/dl/movie.mkv",
			expected: execx.Command{
				Name: "ffmpeg",
				Args: []string{
					"-loglevel", "warning", "-i", "/dl/movie.mkv", "-map", "0",
					"-c:v", "copy", "-c:a", "copy", "-sn", "/dl/movie.mp4",
				},
			},
		},
		{
			name: "full profile in fixed order",
			profile: transcode.Profile{
				OutputExtension: ".mp4",
				VideoCodec:      "libx264",
				VideoPreset:     "medium",
				VideoFramerate:  "24",
				VideoBitrate:    "800k",
				AudioCodec:      "aac",
				AudioBitrate:    "128k",
				SubtitleCodec:   "mov_text",
				FastStart:       true,
				QualityPercent:  80,
			},
			input: "/dl/movie.mkv",
			expected: execx.Command{
				Name: "ffmpeg",
				Args: []string{
					"-loglevel", "warning", "-i", "/dl/movie.mkv", "-map", "0",
					"-c:v", "libx264", "-preset", "medium",
					"-r", "24", "-b:v", "800k",
					"-c:a", "aac", "-strict", "-2", "-b:a", "128k",
					"-movflags", "+faststart", "-q:a", "80",
					"-c:s", "mov_text", "/dl/movie.mp4",
				},
			},
		},
		{
			name: "preset only applies to libx264",
			profile: transcode.Profile{
				OutputExtension: ".mkv",
				VideoCodec:      "libx265",
				VideoPreset:     "slow",
				AudioCodec:      "ac3",
			},
			input: "/dl/movie.avi",
			expected: execx.Command{
				Name: "ffmpeg",
				Args: []string{
					"-loglevel", "warning", "-i", "/dl/movie.avi", "-map", "0",
					"-c:v", "libx265", "-c:a", "ac3", "-sn", "/dl/movie.mkv",
				},
			},
		},
		{
			name:    "same extension gets collision suffix",
			profile: baseProfile(),
			input:   "/dl/movie.mp4",
			expected: execx.Command{
				Name: "ffmpeg",
				Args: []string{
					"-loglevel", "warning", "-i", "/dl/movie.mp4", "-map", "0",
					"-c:v", "copy", "-c:a", "copy", "-sn", "/dl/movie-transcoded.mp4",
				},
			},
		},
		{
			name: "niceness wraps the encoder",
			profile: transcode.Profile{
				OutputExtension: ".mp4",
				Niceness:        10,
			},
			input: "/dl/movie.mkv",
			expected: execx.Command{
				Name: "nice",
				Args: []string{
					"-10", "ffmpeg",
					"-loglevel", "warning", "-i", "/dl/movie.mkv", "-map", "0",
					"-c:v", "copy", "-c:a", "copy", "-sn", "/dl/movie.mp4",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := transcode.New(tt.profile, testutil.NewMockRunner())
			assert.Equal(t, tt.expected, tr.Command(tt.input))
		})
	}
}

func TestTranscodeDirectory(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) afero.Fs {
		t.Helper()
		fs := afero.NewMemMapFs()
		for _, f := range []string{"/dl/a.mkv", "/dl/sub/b.mkv", "/dl/c.mkv", "/dl/skip.avi", "/dl/notes.txt"} {
			require.NoError(t, fs.MkdirAll(filepath.Dir(f), 0750))
			require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0600))
		}
		return fs
	}

	t.Run("AllSucceedAndOriginalsRemoved", func(t *testing.T) {
		fs := setup(t)
		runner := testutil.NewMockRunner()
		tr := transcode.New(baseProfile(), runner, transcode.WithFs(fs))

		failures, err := tr.TranscodeDirectory(ctx, "/dl")
		require.NoError(t, err)
		assert.Equal(t, 0, failures)
		assert.Len(t, runner.Calls(), 3)

		for _, f := range []string{"/dl/a.mkv", "/dl/sub/b.mkv", "/dl/c.mkv"} {
			exists, err := afero.Exists(fs, f)
			require.NoError(t, err)
			assert.False(t, exists, f)
		}
		exists, err := afero.Exists(fs, "/dl/skip.avi")
		require.NoError(t, err)
		assert.True(t, exists, "ignored extensions are left alone")
	})

	t.Run("SumsNonZeroExitCodes", func(t *testing.T) {
		fs := setup(t)
		runner := testutil.NewMockRunner()
		runner.OnRun = func(_ context.Context, cmd execx.Command) (int, error) {
			switch cmd.Args[3] {
			case "/dl/a.mkv":
				return 2, nil
			case "/dl/c.mkv":
				return 5, nil
			}
			return 0, nil
		}
		tr := transcode.New(baseProfile(), runner, transcode.WithFs(fs))

		failures, err := tr.TranscodeDirectory(ctx, "/dl")
		require.NoError(t, err)
		assert.Equal(t, 7, failures)
		assert.Len(t, runner.Calls(), 3, "a failing file does not stop the rest")

		exists, err := afero.Exists(fs, "/dl/a.mkv")
		require.NoError(t, err)
		assert.True(t, exists, "failed originals are kept")
	})

	t.Run("DuplicateKeepsOriginals", func(t *testing.T) {
		fs := setup(t)
		profile := baseProfile()
		profile.Duplicate = true
		tr := transcode.New(profile, testutil.NewMockRunner(), transcode.WithFs(fs))

		failures, err := tr.TranscodeDirectory(ctx, "/dl")
		require.NoError(t, err)
		assert.Equal(t, 0, failures)

		exists, err := afero.Exists(fs, "/dl/a.mkv")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("RemovesStaleOutput", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/dl/a.mkv", []byte("x"), 0600))
		require.NoError(t, afero.WriteFile(fs, "/dl/a.mp4", []byte("stale"), 0600))

		runner := testutil.NewMockRunner()
		runner.OnRun = func(_ context.Context, _ execx.Command) (int, error) {
			exists, err := afero.Exists(fs, "/dl/a.mp4")
			require.NoError(t, err)
			assert.False(t, exists, "stale output removed before encoding")
			return 0, nil
		}
		profile := baseProfile()
		profile.MediaExtensions = []string{".mkv"}
		tr := transcode.New(profile, runner, transcode.WithFs(fs))

		failures, err := tr.TranscodeDirectory(ctx, "/dl")
		require.NoError(t, err)
		assert.Equal(t, 0, failures)
	})
}

func TestCheckEncoder(t *testing.T) {
	tr := transcode.New(baseProfile(), testutil.NewMockRunner())

	require.NoError(t, tr.CheckEncoder(testutil.LookPathFor("ffmpeg")))
	require.ErrorIs(t, tr.CheckEncoder(testutil.LookPathFor()), transcode.ErrEncoderNotFound)
}

func TestEligible(t *testing.T) {
	tr := transcode.New(baseProfile(), testutil.NewMockRunner())

	assert.True(t, tr.Eligible("/dl/a.MKV"))
	assert.False(t, tr.Eligible("/dl/a.avi"))
	assert.False(t, tr.Eligible("/dl/a.nfo"))
}
