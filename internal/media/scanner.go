package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/seedreap/postreap/internal/fileutil"
)

// ScanResult summarizes a directory scan.
type ScanResult struct {
	// Media holds the paths of real media files.
	Media []string
	// Meta holds the paths of meta files, kept for cleanup decisions.
	Meta []string
	// Compressed holds the paths of archive files.
	Compressed []string
	// SamplesDeleted holds the paths of removed sample files.
	SamplesDeleted []string
	// TotalSize is the combined size of every file seen, samples included.
	TotalSize int64
}

// Scanner walks and tidies download directories.
type Scanner struct {
	fs     afero.Fs
	rules  Rules
	logger zerolog.Logger
}

// Option is a functional option for configuring the Scanner.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a Scanner over fs.
func NewScanner(fs afero.Fs, rules Rules, opts ...Option) *Scanner {
	s := &Scanner{
		fs:     fs,
		rules:  rules,
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Rules returns the classification rules.
func (s *Scanner) Rules() Rules {
	return s.rules
}

// Fs returns the filesystem the scanner operates on.
func (s *Scanner) Fs() afero.Fs {
	return s.fs
}

// Scan walks dir recursively, deletes every sample and collects the rest.
// Samples that cannot be removed are logged and skipped.
func (s *Scanner) Scan(dir, displayName string) (ScanResult, error) {
	var result ScanResult

	err := afero.Walk(s.fs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		result.TotalSize += info.Size()

		switch s.rules.Classify(info.Name(), info.Size(), displayName) {
		case Sample:
			s.logger.Debug().
				Str("path", path).
				Str("size", humanize.IBytes(uint64(info.Size()))).
				Msg("removing sample file")
			if err := s.fs.Remove(path); err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("failed to remove sample file")
				return nil
			}
			result.SamplesDeleted = append(result.SamplesDeleted, path)
		case Media:
			result.Media = append(result.Media, path)
		case Meta:
			result.Meta = append(result.Meta, path)
		case Compressed:
			result.Compressed = append(result.Compressed, path)
		case Other:
		}

		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", dir, err)
	}

	s.logger.Debug().
		Str("dir", dir).
		Int("media", len(result.Media)).
		Int("meta", len(result.Meta)).
		Int("compressed", len(result.Compressed)).
		Int("samples_deleted", len(result.SamplesDeleted)).
		Str("size", humanize.IBytes(uint64(result.TotalSize))).
		Msg("directory scanned")

	return result, nil
}

// Flatten moves every file below dir into dir itself and then removes the
// emptied subdirectories. A directory without subdirectories is left unchanged.
func (s *Scanner) Flatten(dir string) error {
	s.logger.Info().Str("dir", dir).Msg("flattening directory")

	var nested []string
	err := afero.Walk(s.fs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Dir(path) != filepath.Clean(dir) {
			nested = append(nested, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("flatten %s: %w", dir, err)
	}

	for _, src := range nested {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := fileutil.MoveFile(s.fs, src, dst); err != nil {
			s.logger.Error().Err(err).Str("path", src).Msg("could not flatten file")
		}
	}

	return s.RemoveEmptyDirs(dir, false)
}

// RemoveEmptyDirs removes empty directories below dir, bottom-up. dir itself
// is removed only when removeRoot is set and it ends up empty.
func (s *Scanner) RemoveEmptyDirs(dir string, removeRoot bool) error {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}

	remaining := len(entries)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if err := s.RemoveEmptyDirs(sub, true); err != nil {
			return err
		}
		if exists, _ := afero.DirExists(s.fs, sub); !exists {
			remaining--
		}
	}

	if removeRoot && remaining == 0 {
		s.logger.Debug().Str("dir", dir).Msg("removing empty folder")
		if err := s.fs.Remove(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}

	return nil
}

// ListMediaFiles returns media files under dir, skipping samples, resource
// forks, extras and hidden directories. A missing dir yields nothing.
func (s *Scanner) ListMediaFiles(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") || entry.Name() == "Extras" {
				continue
			}
			sub, err := s.ListMediaFiles(full)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		if s.rules.IsListableMedia(entry.Name()) {
			files = append(files, full)
		}
	}

	return files, nil
}

// Cleanup removes dir once every media and meta file has been handed off.
// With force set, dir is removed regardless. It reports whether dir was removed.
func (s *Scanner) Cleanup(dir string, force bool) (bool, error) {
	exists, err := afero.DirExists(s.fs, dir)
	if err != nil || !exists {
		return false, err
	}

	var leftovers []string
	err = afero.Walk(s.fs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && (s.rules.IsMediaExtension(info.Name()) || s.rules.IsMetaExtension(info.Name())) {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cleanup %s: %w", dir, err)
	}

	if len(leftovers) > 0 && !force {
		s.logger.Info().
			Str("dir", dir).
			Int("files", len(leftovers)).
			Msg("directory still contains media or meta files, not removing")
		for _, f := range leftovers {
			s.logger.Debug().Str("path", f).Msg("media/meta file found")
		}
		return false, nil
	}

	s.logger.Info().Str("dir", dir).Msg("all files processed, cleaning directory")
	if err := s.fs.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("remove %s: %w", dir, err)
	}
	return true, nil
}

// Delete removes dir and everything below it.
func (s *Scanner) Delete(dir string) error {
	s.logger.Info().Str("dir", dir).Msg("deleting directory")
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete %s: %w", dir, err)
	}
	return nil
}

// Files returns every regular file under dir in sorted order.
func (s *Scanner) Files(dir string) ([]string, error) {
	var files []string
	err := afero.Walk(s.fs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// DirSize returns the combined size of every file under dir.
func (s *Scanner) DirSize(dir string) (int64, error) {
	var total int64
	err := afero.Walk(s.fs, dir, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// PendingDirs prepares a watch directory for batch processing: loose media
// files at its root are moved into a folder of their own, then every
// subdirectory is returned in sorted order.
func (s *Scanner) PendingDirs(watchDir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, watchDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", watchDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !s.rules.IsListableMedia(entry.Name()) {
			continue
		}

		// strip up to two extensions: "Movie.2010.mkv" -> "Movie", "a.b.c" -> "a"
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
		folder := filepath.Join(watchDir, stem)

		if exists, _ := afero.Exists(s.fs, folder); exists {
			continue
		}
		if err := fileutil.MoveFile(s.fs, filepath.Join(watchDir, name), filepath.Join(folder, name)); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("could not move loose media file into its own folder")
		}
	}

	entries, err = afero.ReadDir(s.fs, watchDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", watchDir, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(watchDir, entry.Name()))
		}
	}
	slices.Sort(dirs)

	return dirs, nil
}
