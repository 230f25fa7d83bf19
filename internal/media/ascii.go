package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/seedreap/postreap/internal/fileutil"
)

// ToASCII folds accented letters to their base form and replaces every
// remaining non-ASCII rune with an underscore.
func ToASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '_'
		}
		return r
	}, folded)
}

// ConvertToASCII renames dir and every file below it to ASCII-only names.
// It returns the converted display name and the directory's new path.
func (s *Scanner) ConvertToASCII(displayName, dir string) (string, string, error) {
	newName := ToASCII(displayName)

	newDir := filepath.Join(filepath.Dir(dir), ToASCII(filepath.Base(dir)))
	if newDir != dir {
		s.logger.Info().Str("from", dir).Str("to", newDir).Msg("renaming directory")
		if err := s.fs.Rename(dir, newDir); err != nil {
			return displayName, dir, fmt.Errorf("rename %s: %w", dir, err)
		}
	}

	files, err := s.Files(newDir)
	if err != nil {
		return newName, newDir, err
	}

	var renames [][2]string
	for _, path := range files {
		base := filepath.Base(path)
		if ascii := ToASCII(base); ascii != base {
			renames = append(renames, [2]string{path, filepath.Join(filepath.Dir(path), ascii)})
		}
	}

	for _, r := range renames {
		s.logger.Info().Str("from", r[0]).Str("to", r[1]).Msg("renaming file")
		if err := fileutil.MoveFile(s.fs, r[0], r[1]); err != nil {
			s.logger.Warn().Err(err).Str("path", r[0]).Msg("could not rename file")
		}
	}

	return newName, newDir, nil
}
