package media_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedreap/postreap/internal/media"
)

const mb = 1024 * 1024

func testRules() media.Rules {
	return media.NewRules(
		[]string{".mkv", ".avi", "mp4"},
		[]string{".nfo", ".srt"},
		[]string{".rar", ".zip"},
		200,
		[]string{"sample", "-s."},
	)
}

func writeFile(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0600))
}

func TestClassify(t *testing.T) {
	rules := testRules()
	sizeOnly := media.NewRules([]string{".mkv"}, nil, nil, 200, []string{"SizeOnly"})

	tests := []struct {
		name        string
		rules       media.Rules
		file        string
		size        int64
		displayName string
		expected    media.Class
	}{
		{
			name:        "small file with marker absent from display name",
			rules:       rules,
			file:        "movie.sample.mkv",
			size:        50 * mb,
			displayName: "movie",
			expected:    media.Sample,
		},
		{
			name:        "marker also present in display name",
			rules:       rules,
			file:        "movie.sample.mkv",
			size:        50 * mb,
			displayName: "Movie Sample Edition",
			expected:    media.Media,
		},
		{
			name:        "marker match is case insensitive",
			rules:       rules,
			file:        "SAMPLE-movie.mkv",
			size:        10 * mb,
			displayName: "movie",
			expected:    media.Sample,
		},
		{
			name:        "large file with marker is media",
			rules:       rules,
			file:        "movie.sample.mkv",
			size:        700 * mb,
			displayName: "movie",
			expected:    media.Media,
		},
		{
			name:        "size only mode ignores the name",
			rules:       sizeOnly,
			file:        "movie.mkv",
			size:        100 * mb,
			displayName: "movie",
			expected:    media.Sample,
		},
		{
			name:        "size only mode keeps large files",
			rules:       sizeOnly,
			file:        "movie.mkv",
			size:        300 * mb,
			displayName: "movie",
			expected:    media.Media,
		},
		{
			name:        "meta file",
			rules:       rules,
			file:        "movie.NFO",
			size:        1024,
			displayName: "movie",
			expected:    media.Meta,
		},
		{
			name:        "compressed file",
			rules:       rules,
			file:        "movie.rar",
			size:        700 * mb,
			displayName: "movie",
			expected:    media.Compressed,
		},
		{
			name:        "extension without leading dot is normalized",
			rules:       rules,
			file:        "movie.mp4",
			size:        700 * mb,
			displayName: "movie",
			expected:    media.Media,
		},
		{
			name:        "unknown extension",
			rules:       rules,
			file:        "readme.txt",
			size:        1024,
			displayName: "movie",
			expected:    media.Other,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rules.Classify(tt.file, tt.size, tt.displayName)
			assert.Equal(t, tt.expected, got, "got %s", got)
		})
	}
}

func TestIsListableMedia(t *testing.T) {
	rules := testRules()

	tests := []struct {
		name     string
		file     string
		expected bool
	}{
		{name: "plain media", file: "Show.S01E01.mkv", expected: true},
		{name: "sample token", file: "show-sample.mkv", expected: false},
		{name: "numbered sample", file: "show.sample2.mkv", expected: false},
		{name: "resource fork", file: "._Show.S01E01.mkv", expected: false},
		{name: "extras suffix", file: "Show.Extras.mkv", expected: false},
		{name: "not media", file: "Show.nfo", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rules.IsListableMedia(tt.file))
		})
	}
}

func TestScan(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/dl/movie/movie.mkv", 2*mb)
	writeFile(t, fs, "/dl/movie/sub/movie.sample.mkv", 1)
	writeFile(t, fs, "/dl/movie/movie.nfo", 1)
	writeFile(t, fs, "/dl/movie/movie.rar", 1)

	rules := media.NewRules([]string{".mkv"}, []string{".nfo"}, []string{".rar"}, 1, []string{"sample"})
	scanner := media.NewScanner(fs, rules)
	result, err := scanner.Scan("/dl/movie", "movie")
	require.NoError(t, err)

	assert.Equal(t, []string{"/dl/movie/movie.mkv"}, result.Media)
	assert.Equal(t, []string{"/dl/movie/movie.nfo"}, result.Meta)
	assert.Equal(t, []string{"/dl/movie/movie.rar"}, result.Compressed)
	assert.Equal(t, []string{"/dl/movie/sub/movie.sample.mkv"}, result.SamplesDeleted)

	exists, err := afero.Exists(fs, "/dl/movie/sub/movie.sample.mkv")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = afero.Exists(fs, "/dl/movie/movie.nfo")
	require.NoError(t, err)
	assert.True(t, exists, "meta files are not deleted by a scan")
}

func snapshot(t *testing.T, fs afero.Fs, root string) []string {
	t.Helper()
	var paths []string
	require.NoError(t, afero.Walk(fs, root, func(path string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}))
	return paths
}

func TestFlatten(t *testing.T) {
	t.Run("MovesNestedFilesAndRemovesEmptyDirs", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/dl/show/a/b/episode1.mkv", 3)
		writeFile(t, fs, "/dl/show/a/episode2.mkv", 3)
		writeFile(t, fs, "/dl/show/episode3.mkv", 3)
		require.NoError(t, fs.MkdirAll("/dl/show/empty/deeper", 0750))

		scanner := media.NewScanner(fs, testRules())
		require.NoError(t, scanner.Flatten("/dl/show"))

		assert.Equal(t, []string{
			"/dl/show",
			"/dl/show/episode1.mkv",
			"/dl/show/episode2.mkv",
			"/dl/show/episode3.mkv",
		}, snapshot(t, fs, "/dl/show"))
	})

	t.Run("Idempotent", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		for i := range 8 {
			dir := filepath.Join("/dl/release", gofakeit.Noun(), gofakeit.Noun())
			name := fmt.Sprintf("%s.%d.mkv", strings.ReplaceAll(gofakeit.MovieName(), "/", "-"), i)
			writeFile(t, fs, filepath.Join(dir, name), 1)
		}

		scanner := media.NewScanner(fs, testRules())
		require.NoError(t, scanner.Flatten("/dl/release"))
		first := snapshot(t, fs, "/dl/release")

		require.NoError(t, scanner.Flatten("/dl/release"))
		second := snapshot(t, fs, "/dl/release")

		assert.Equal(t, first, second)
		for _, p := range first[1:] {
			assert.Equal(t, "/dl/release", filepath.Dir(p), "no subdirectories remain")
		}
	})

	t.Run("FlatDirectoryIsUnchanged", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/dl/flat/one.mkv", 1)
		writeFile(t, fs, "/dl/flat/two.nfo", 1)

		scanner := media.NewScanner(fs, testRules())
		before := snapshot(t, fs, "/dl/flat")
		require.NoError(t, scanner.Flatten("/dl/flat"))
		assert.Equal(t, before, snapshot(t, fs, "/dl/flat"))
	})
}

func TestListMediaFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/dl/movie/movie.mkv", 1)
	writeFile(t, fs, "/dl/movie/movie-sample.mkv", 1)
	writeFile(t, fs, "/dl/movie/._movie.mkv", 1)
	writeFile(t, fs, "/dl/movie/Extras/behind.mkv", 1)
	writeFile(t, fs, "/dl/movie/.hidden/secret.mkv", 1)
	writeFile(t, fs, "/dl/movie/cd2/movie.cd2.avi", 1)

	scanner := media.NewScanner(fs, testRules())
	files, err := scanner.ListMediaFiles("/dl/movie")
	require.NoError(t, err)
	assert.Equal(t, []string{"/dl/movie/cd2/movie.cd2.avi", "/dl/movie/movie.mkv"}, files)

	files, err = scanner.ListMediaFiles("/missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCleanup(t *testing.T) {
	t.Run("RemovesDirectoryWithoutMediaOrMeta", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/dl/done/leftover.txt", 1)

		removed, err := media.NewScanner(fs, testRules()).Cleanup("/dl/done", false)
		require.NoError(t, err)
		assert.True(t, removed)

		exists, err := afero.DirExists(fs, "/dl/done")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("KeepsDirectoryWithMedia", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/dl/pending/movie.mkv", 1)

		removed, err := media.NewScanner(fs, testRules()).Cleanup("/dl/pending", false)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("ForceRemovesAnyway", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/dl/pending/movie.nfo", 1)

		removed, err := media.NewScanner(fs, testRules()).Cleanup("/dl/pending", true)
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		removed, err := media.NewScanner(afero.NewMemMapFs(), testRules()).Cleanup("/nope", false)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestPendingDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/watch/Loose.Movie.2010.mkv", 1)
	writeFile(t, fs, "/watch/Show.S01E01/episode.mkv", 1)
	writeFile(t, fs, "/watch/notes.txt", 1)

	dirs, err := media.NewScanner(fs, testRules()).PendingDirs("/watch")
	require.NoError(t, err)
	assert.Equal(t, []string{"/watch/Loose.Movie", "/watch/Show.S01E01"}, dirs)

	exists, err := afero.Exists(fs, "/watch/Loose.Movie/Loose.Movie.2010.mkv")
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("MissingWatchDir", func(t *testing.T) {
		dirs, err := media.NewScanner(fs, testRules()).PendingDirs("/gone")
		require.NoError(t, err)
		assert.Empty(t, dirs)
	})
}

func TestToASCII(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "Amélie.2001", expected: "Amelie.2001"},
		{in: "Plain.Name", expected: "Plain.Name"},
		{in: "東京.mkv", expected: "__.mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, media.ToASCII(tt.in))
		})
	}
}

func TestConvertToASCII(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Café")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Café.mkv"), []byte("x"), 0600))

	scanner := media.NewScanner(afero.NewOsFs(), testRules())
	name, newDir, err := scanner.ConvertToASCII("Café", dir)
	require.NoError(t, err)

	assert.Equal(t, "Cafe", name)
	assert.Equal(t, filepath.Join(root, "Cafe"), newDir)
	assert.FileExists(t, filepath.Join(root, "Cafe", "Cafe.mkv"))
}
