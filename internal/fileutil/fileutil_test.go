package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedreap/postreap/internal/fileutil"
)

func TestCopyFile(t *testing.T) {
	t.Run("SuccessCases", func(t *testing.T) {
		tests := []struct {
			name    string
			content []byte
		}{
			{
				name:    "copies small file",
				content: []byte("hello world"),
			},
			{
				name:    "copies empty file",
				content: []byte{},
			},
			{
				name:    "copies binary content",
				content: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				fs := afero.NewMemMapFs()

				require.NoError(t, afero.WriteFile(fs, "/src/source.bin", tt.content, 0600))

				err := fileutil.CopyFile(fs, "/src/source.bin", "/dst/dest.bin")
				require.NoError(t, err)

				dstContent, err := afero.ReadFile(fs, "/dst/dest.bin")
				require.NoError(t, err)
				assert.Equal(t, tt.content, dstContent)

				srcContent, err := afero.ReadFile(fs, "/src/source.bin")
				require.NoError(t, err)
				assert.Equal(t, tt.content, srcContent)
			})
		}
	})

	t.Run("CreatesParentDirectories", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/source.txt", []byte("test content"), 0600))

		err := fileutil.CopyFile(fs, "/source.txt", "/deep/nested/dir/dest.txt")
		require.NoError(t, err)

		content, err := afero.ReadFile(fs, "/deep/nested/dir/dest.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("test content"), content)
	})

	t.Run("SourceDoesNotExist", func(t *testing.T) {
		fs := afero.NewOsFs()
		tmpDir := t.TempDir()

		err := fileutil.CopyFile(fs, filepath.Join(tmpDir, "nonexistent.txt"), filepath.Join(tmpDir, "dest.txt"))
		require.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("SourceIsDirectory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/srcdir", 0750))

		err := fileutil.CopyFile(fs, "/srcdir", "/dest.txt")
		require.Error(t, err)
	})
}

func TestMoveFile(t *testing.T) {
	t.Run("MovesAndRemovesSource", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/in/sub/episode.mkv", []byte("video"), 0600))

		err := fileutil.MoveFile(fs, "/in/sub/episode.mkv", "/in/episode.mkv")
		require.NoError(t, err)

		exists, err := afero.Exists(fs, "/in/sub/episode.mkv")
		require.NoError(t, err)
		assert.False(t, exists)

		content, err := afero.ReadFile(fs, "/in/episode.mkv")
		require.NoError(t, err)
		assert.Equal(t, []byte("video"), content)
	})

	t.Run("ReplacesExistingDestination", func(t *testing.T) {
		fs := afero.NewOsFs()
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "a", "file.nfo")
		dst := filepath.Join(tmpDir, "file.nfo")

		require.NoError(t, os.MkdirAll(filepath.Dir(src), 0750))
		require.NoError(t, os.WriteFile(src, []byte("new"), 0600))
		require.NoError(t, os.WriteFile(dst, []byte("old"), 0600))

		require.NoError(t, fileutil.MoveFile(fs, src, dst))

		content, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), content)
	})
}
