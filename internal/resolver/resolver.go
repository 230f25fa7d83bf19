// Package resolver locates the content directory and category of a finished download.
package resolver

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Confidence describes how certain the resolved directory is.
type Confidence int

// Confidence levels.
const (
	// Dedicated means a directory holding only this download was found.
	Dedicated Confidence = 0
	// NameInPath means the display name matches a path segment but no
	// dedicated directory was found.
	NameInPath Confidence = 1
	// Shared means the directory may hold other downloads; its media files
	// must be handled one by one.
	Shared Confidence = 2
)

func (c Confidence) String() string {
	switch c {
	case Dedicated:
		return "dedicated"
	case NameInPath:
		return "name-in-path"
	default:
		return "shared"
	}
}

// Location is the result of resolving a download.
type Location struct {
	// Dir is the content directory. For a single file it is the file's parent.
	Dir string
	// File is set when the input path is a single file.
	File string
	// Name is the display name, possibly replaced by an external-id tag segment.
	Name string
	// Category is the resolved category.
	Category string
	// Confidence rates the certainty of Dir.
	Confidence Confidence
}

// Single reports whether the download is a single file.
func (l Location) Single() bool {
	return l.File != ""
}

var (
	externalIDTag = regexp.MustCompile(`\.cp\((tt\d+)\)`)
	imdbID        = regexp.MustCompile(`tt\d{7,}`)
)

// Resolver finds download locations.
type Resolver struct {
	fs         afero.Fs
	categories []string
	logger     zerolog.Logger
}

// Option is a functional option for configuring the Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver for the given known categories.
func New(fs afero.Fs, categories []string, opts ...Option) *Resolver {
	r := &Resolver{
		fs:         fs,
		categories: slices.Clone(categories),
		logger:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve determines the content directory, category and confidence for path.
// It fails with ErrNotFound only when no category can be resolved; an
// uncertain directory only lowers the confidence.
func (r *Resolver) Resolve(path, displayName, categoryHint string) (Location, error) {
	path = filepath.Clean(path)
	segments := splitPath(path)

	category := r.deepestCategory(segments)
	switch {
	case category != "":
		r.logger.Debug().Str("category", category).Msg("found category in directory structure")
	case slices.Contains(r.categories, categoryHint):
		category = categoryHint
	default:
		return Location{}, fmt.Errorf("%w: path %q, hint %q", ErrNotFound, path, categoryHint)
	}

	loc := Location{Dir: path, Name: displayName, Category: category}

	if r.isFile(path) {
		loc.Dir = filepath.Dir(path)
		loc.File = path
		if loc.Name == "" {
			loc.Name = filepath.Base(path)
		}
		loc.Confidence = Dedicated
		return loc, nil
	}

	dedicated := false

	if r.isDir(filepath.Join(loc.Dir, category)) {
		loc.Dir = filepath.Join(loc.Dir, category)
		r.logger.Info().Str("dir", loc.Dir).Msg("found category directory")
	}

	if loc.Name != "" {
		for _, candidate := range []string{loc.Name, SanitizeFileName(loc.Name)} {
			if candidate != "" && r.isDir(filepath.Join(loc.Dir, candidate)) {
				loc.Dir = filepath.Join(loc.Dir, candidate)
				r.logger.Info().Str("dir", loc.Dir).Msg("found download directory")
				dedicated = true
				break
			}
		}
	}

	if tag := taggedSegment(segments); tag != "" && !externalIDTag.MatchString(loc.Name) {
		loc.Name = tag
		dedicated = true
	}

	if !dedicated {
		if i := slices.Index(segments, category); i >= 0 && i+1 < len(segments) {
			dedicated = true
			r.logger.Info().Str("dir", segments[i+1]).Msg("found a unique directory in the category directory")
			if loc.Name == "" {
				loc.Name = segments[i+1]
			}
		}
	}

	switch {
	case dedicated:
		loc.Confidence = Dedicated
	case loc.Name != "" && (slices.Contains(segments, loc.Name) || slices.Contains(segments, SanitizeFileName(loc.Name))):
		loc.Confidence = NameInPath
	default:
		loc.Confidence = Shared
	}

	if loc.Confidence != Dedicated {
		r.logger.Info().
			Str("dir", loc.Dir).
			Stringer("confidence", loc.Confidence).
			Msg("could not find a unique directory for this download, files will be handled individually")
	}

	return loc, nil
}

func (r *Resolver) deepestCategory(segments []string) string {
	for i := len(segments) - 1; i >= 0; i-- {
		if slices.Contains(r.categories, segments[i]) {
			return segments[i]
		}
	}
	return ""
}

func (r *Resolver) isDir(path string) bool {
	ok, err := afero.IsDir(r.fs, path)
	return err == nil && ok
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func splitPath(path string) []string {
	var out []string
	for s := range strings.SplitSeq(filepath.ToSlash(path), "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func taggedSegment(segments []string) string {
	for _, s := range segments {
		if externalIDTag.MatchString(s) {
			return s
		}
	}
	return ""
}

// SanitizeFileName strips characters that are not allowed in file names:
// path separators and '*' become '-', `:"<>|?` are removed, and leading or
// trailing dots and spaces are trimmed.
func SanitizeFileName(name string) string {
	name = strings.NewReplacer(`\`, "-", "/", "-", "*", "-").Replace(name)
	name = strings.NewReplacer(":", "", `"`, "", "<", "", ">", "", "|", "", "?", "").Replace(name)
	return strings.Trim(name, " .")
}

// ExternalID returns the id inside a ".cp(ttNNN)" tag in any of the given
// strings, or an empty string.
func ExternalID(values ...string) string {
	for _, v := range values {
		if m := externalIDTag.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	}
	return ""
}

// IMDbID returns the first IMDb id (tt followed by at least seven digits)
// found in the given strings, or an empty string.
func IMDbID(values ...string) string {
	for _, v := range values {
		if m := imdbID.FindString(v); m != "" {
			return m
		}
	}
	return ""
}
