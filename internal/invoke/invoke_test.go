package invoke_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedreap/postreap/internal/invoke"
	"github.com/seedreap/postreap/internal/pipeline"
)

func envFrom(vars map[string]string) invoke.LookupEnv {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func nzbgetEnv(overrides map[string]string) map[string]string {
	env := map[string]string{
		"NZBOP_SCRIPTDIR":    "/scripts",
		"NZBOP_VERSION":      "21.1",
		"NZBOP_UNPACK":       "yes",
		"NZBPP_DIRECTORY":    "/downloads/tv/Show.S01E01",
		"NZBPP_NZBFILENAME":  "Show.S01E01.nzb",
		"NZBPP_CATEGORY":     "tv",
		"NZBPP_PARSTATUS":    "2",
		"NZBPP_UNPACKSTATUS": "2",
		"NZBPP_HEALTH":       "1000",
	}
	for k, v := range overrides {
		env[k] = v
	}
	return env
}

func TestNZBGet(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/downloads/tv/Show.S01E01", 0750))

	tests := []struct {
		name      string
		overrides map[string]string
		failed    bool
		skip      bool
	}{
		{name: "Success"},
		{name: "ParRepairDisabled", overrides: map[string]string{"NZBPP_PARSTATUS": "3"}, skip: true},
		{name: "ParRepairFailed", overrides: map[string]string{"NZBPP_PARSTATUS": "1"}, failed: true},
		{name: "ParCheckFailed", overrides: map[string]string{"NZBPP_PARSTATUS": "4"}, failed: true},
		{name: "UnpackFailed", overrides: map[string]string{"NZBPP_UNPACKSTATUS": "1"}, failed: true},
		{
			name:      "SkippedWithLowHealth",
			overrides: map[string]string{"NZBPP_PARSTATUS": "0", "NZBPP_UNPACKSTATUS": "0", "NZBPP_HEALTH": "999"},
			failed:    true,
		},
		{
			name:      "SkippedWithFullHealth",
			overrides: map[string]string{"NZBPP_PARSTATUS": "0", "NZBPP_UNPACKSTATUS": "0"},
		},
		{name: "MissingDirectory", overrides: map[string]string{"NZBPP_DIRECTORY": "/downloads/tv/Gone"}, failed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := invoke.NZBGet(envFrom(nzbgetEnv(tt.overrides)), fs, zerolog.Nop())
			require.NoError(t, err)

			assert.Equal(t, tt.skip, job.Skip)
			if tt.skip {
				return
			}
			assert.Equal(t, tt.failed, job.Request.Failed)
			assert.Equal(t, invoke.ClientNZBGet, job.Request.Client)
			assert.Equal(t, "tv", job.Request.Category)
			assert.Equal(t, "Show.S01E01.nzb", job.Request.Name)
		})
	}

	t.Run("CouchPotatoDownloadID", func(t *testing.T) {
		job, err := invoke.NZBGet(envFrom(nzbgetEnv(map[string]string{"NZBPR_COUCHPOTATO": "abc123"})), fs, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, "abc123", job.Request.DownloadID)
	})

	t.Run("Errors", func(t *testing.T) {
		env := nzbgetEnv(nil)
		delete(env, "NZBOP_SCRIPTDIR")
		_, err := invoke.NZBGet(envFrom(env), fs, zerolog.Nop())
		require.ErrorIs(t, err, invoke.ErrNotNZBGet)

		_, err = invoke.NZBGet(envFrom(nzbgetEnv(map[string]string{"NZBOP_VERSION": "10.2"})), fs, zerolog.Nop())
		require.ErrorIs(t, err, invoke.ErrNZBGetVersion)

		_, err = invoke.NZBGet(envFrom(nzbgetEnv(map[string]string{"NZBOP_VERSION": "11.0-testing-r1234"})), fs, zerolog.Nop())
		require.NoError(t, err)

		_, err = invoke.NZBGet(envFrom(nzbgetEnv(map[string]string{"NZBOP_UNPACK": "no"})), fs, zerolog.Nop())
		require.ErrorIs(t, err, invoke.ErrUnpackDisabled)
	})
}

func TestSABnzbd(t *testing.T) {
	args := []string{"/downloads/movies/Movie.2010", "Movie.2010.nzb", "Movie.2010", "", "movies", "alt.binaries.x", "0"}

	req, err := invoke.SABnzbd(args)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Request{
		Dir:      "/downloads/movies/Movie.2010",
		Name:     "Movie.2010.nzb",
		Category: "movies",
		Client:   invoke.ClientSABnzbd,
	}, req)

	failed := append(append([]string{}, args[:6]...), "2", "http://indexer/failure")
	req, err = invoke.SABnzbd(failed)
	require.NoError(t, err)
	assert.True(t, req.Failed)

	_, err = invoke.SABnzbd(args[:5])
	require.ErrorIs(t, err, invoke.ErrArguments)
}

func TestTorrent(t *testing.T) {
	const hash = "0123456789abcdef0123456789abcdef01234567"

	tests := []struct {
		name   string
		client string
		args   []string
		env    map[string]string
		want   pipeline.Request
	}{
		{
			name:   "RTorrent",
			client: "rtorrent",
			args:   []string{"/torrents/tv/Show/", "Show", "tv", hash},
			want:   pipeline.Request{Dir: "/torrents/tv/Show", Name: "Show", Category: "tv", DownloadID: hash},
		},
		{
			name:   "RTorrentDirOnly",
			client: "rtorrent",
			args:   []string{"/torrents/tv/Show"},
			want:   pipeline.Request{Dir: "/torrents/tv/Show"},
		},
		{
			name:   "UTorrent",
			client: "uTorrent",
			args:   []string{"/torrents/movies/Movie", "Movie", "movies", hash},
			want:   pipeline.Request{Dir: "/torrents/movies/Movie", Name: "Movie", Category: "movies", DownloadID: hash},
		},
		{
			name:   "Deluge",
			client: "deluge",
			args:   []string{hash, "Movie", "/torrents/movies"},
			want:   pipeline.Request{Dir: "/torrents/movies", Name: "Movie", DownloadID: hash},
		},
		{
			name:   "Transmission",
			client: "transmission",
			env: map[string]string{
				"TR_TORRENT_DIR":  "/torrents/tv",
				"TR_TORRENT_NAME": "Show",
				"TR_TORRENT_HASH": hash,
				"TR_TORRENT_ID":   "7",
			},
			want: pipeline.Request{Dir: "/torrents/tv", Name: "Show", DownloadID: hash, TorrentID: "7"},
		},
		{
			name:   "QBittorrent",
			client: "qbittorrent",
			args:   []string{"/torrents/tv/Show", "Show", "tv", hash},
			want:   pipeline.Request{Dir: "/torrents/tv/Show", Name: "Show", Category: "tv", DownloadID: hash},
		},
		{
			name:   "Other",
			client: "other",
			args:   []string{"/torrents/tv/Show"},
			want:   pipeline.Request{Dir: "/torrents/tv/Show"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := invoke.Torrent(tt.client, tt.args, envFrom(tt.env))
			require.NoError(t, err)

			want := tt.want
			want.Torrent = true
			want.Client = req.Client
			assert.Equal(t, want, req)
			assert.False(t, req.Manual())
		})
	}

	t.Run("Errors", func(t *testing.T) {
		_, err := invoke.Torrent("utorrent", []string{"/torrents/tv"}, envFrom(nil))
		require.ErrorIs(t, err, invoke.ErrArguments)

		_, err = invoke.Torrent("deluge", []string{hash, "Movie"}, envFrom(nil))
		require.ErrorIs(t, err, invoke.ErrArguments)

		_, err = invoke.Torrent("transmission", nil, envFrom(nil))
		require.ErrorIs(t, err, invoke.ErrArguments)

		_, err = invoke.Torrent("vuze", []string{"/torrents"}, envFrom(nil))
		require.ErrorIs(t, err, invoke.ErrUnknownClient)
	})
}
