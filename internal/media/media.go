// Package media classifies downloaded files and tidies download directories:
// sample removal, flattening, empty-folder cleanup and name conversion.
package media

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Class is the classification of a single file.
type Class int

// File classes.
const (
	Other Class = iota
	Sample
	Media
	Meta
	Compressed
)

func (c Class) String() string {
	switch c {
	case Sample:
		return "sample"
	case Media:
		return "media"
	case Meta:
		return "meta"
	case Compressed:
		return "compressed"
	default:
		return "other"
	}
}

// SizeOnlyMarker in the sample markers treats every file under the cutoff as a sample.
const SizeOnlyMarker = "SizeOnly"

// Rules holds the extension sets and sample detection settings.
type Rules struct {
	MediaExtensions      []string
	MetaExtensions       []string
	CompressedExtensions []string

	// SampleCutoff is the size in bytes under which a file may be a sample.
	SampleCutoff int64
	// SampleMarkers are case-insensitive tokens identifying samples.
	SampleMarkers []string
	// SizeOnly classifies every file under the cutoff as a sample.
	SizeOnly bool
}

// DefaultRules returns the extension sets used when none are configured.
func DefaultRules() Rules {
	return Rules{
		MediaExtensions: []string{
			".mkv", ".avi", ".divx", ".xvid", ".mov", ".wmv", ".mp4",
			".mpg", ".mpeg", ".vob", ".iso", ".m4v", ".ts",
		},
		MetaExtensions:       []string{".nfo", ".sub", ".srt", ".idx", ".jpg", ".gif"},
		CompressedExtensions: []string{".zip", ".rar", ".7z", ".gz", ".bz", ".tar", ".arj", ".1", ".01", ".001"},
		SampleCutoff:         200 * 1024 * 1024,
		SampleMarkers:        []string{"sample", "-s."},
	}
}

// NewRules builds Rules from configured values. A SizeOnly marker in
// sampleMarkers switches on size-only mode.
func NewRules(mediaExt, metaExt, compressedExt []string, minSampleSizeMB int64, sampleMarkers []string) Rules {
	r := Rules{
		MediaExtensions:      normalizeExtensions(mediaExt),
		MetaExtensions:       normalizeExtensions(metaExt),
		CompressedExtensions: normalizeExtensions(compressedExt),
		SampleCutoff:         minSampleSizeMB * 1024 * 1024,
	}
	for _, m := range sampleMarkers {
		m = strings.TrimSpace(m)
		switch {
		case m == "":
		case strings.EqualFold(m, SizeOnlyMarker):
			r.SizeOnly = true
		default:
			r.SampleMarkers = append(r.SampleMarkers, m)
		}
	}
	return r
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func hasExtension(name string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(name)))
}

// IsMediaExtension reports whether name has a media container extension.
func (r Rules) IsMediaExtension(name string) bool {
	return hasExtension(name, r.MediaExtensions)
}

// IsMetaExtension reports whether name has a meta file extension.
func (r Rules) IsMetaExtension(name string) bool {
	return hasExtension(name, r.MetaExtensions)
}

// IsCompressedExtension reports whether name has a compressed container extension.
func (r Rules) IsCompressedExtension(name string) bool {
	return hasExtension(name, r.CompressedExtensions)
}

// IsSample reports whether a file of the given size is a sample. A marker
// only counts when it is absent from displayName, so releases legitimately
// named "...sample..." are kept.
func (r Rules) IsSample(name string, size int64, displayName string) bool {
	if size >= r.SampleCutoff {
		return false
	}
	if r.SizeOnly {
		return true
	}

	lowerName := strings.ToLower(name)
	lowerDisplay := strings.ToLower(displayName)
	for _, marker := range r.SampleMarkers {
		m := strings.ToLower(marker)
		if strings.Contains(lowerName, m) && !strings.Contains(lowerDisplay, m) {
			return true
		}
	}
	return false
}

// Classify returns the class of a file. Meta and compressed files are never
// treated as samples.
func (r Rules) Classify(name string, size int64, displayName string) Class {
	switch {
	case r.IsMetaExtension(name):
		return Meta
	case r.IsCompressedExtension(name):
		return Compressed
	case r.IsSample(name, size, displayName):
		return Sample
	case r.IsMediaExtension(name):
		return Media
	default:
		return Other
	}
}

var (
	sampleNamePattern = regexp.MustCompile(`(?i)(^|[\W_])(sample\d*)[\W_]`)
	extrasPattern     = regexp.MustCompile(`(?i)extras?$`)
)

// IsListableMedia reports whether a bare file name is a media file worth
// handing to a manager: not a sample, not a resource fork, not an extra.
func (r Rules) IsListableMedia(name string) bool {
	if sampleNamePattern.MatchString(name) {
		return false
	}
	if strings.HasPrefix(name, "._") {
		return false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if extrasPattern.MatchString(stem) {
		return false
	}
	return r.IsMediaExtension(name)
}
