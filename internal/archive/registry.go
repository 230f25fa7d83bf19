package archive

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seedreap/postreap/internal/execx"
)

// Tool describes how to invoke one extraction binary.
type Tool struct {
	// Binary is the executable name probed on PATH.
	Binary string
	// Args precede the optional password flag and the archive path.
	Args []string
	// PasswordArgs renders the password flag. Nil means the tool has no password support.
	PasswordArgs func(password string) []string
	// NoPasswordArg, when set, is appended on the password-less attempt so the tool
	// never prompts interactively.
	NoPasswordArg string
}

// SupportsPasswords reports whether the tool can retry with password candidates.
func (t Tool) SupportsPasswords() bool {
	return t.PasswordArgs != nil
}

// Command builds the invocation for archivePath. An empty password produces the
// password-less form.
func (t Tool) Command(archivePath, dir, password string) execx.Command {
	args := slices.Clone(t.Args)
	switch {
	case password != "" && t.PasswordArgs != nil:
		args = append(args, t.PasswordArgs(password)...)
	case t.NoPasswordArg != "":
		args = append(args, t.NoPasswordArg)
	}
	args = append(args, archivePath)

	return execx.Command{Name: t.Binary, Args: args, Dir: dir}
}

// Container suffixes whose segmented form (.001, .01, .1) routes to the container's tool.
//
//nolint:gochecknoglobals // immutable lookup table
var segmentedContainers = []string{".rar", ".zip", ".7z"}

//nolint:gochecknoglobals // immutable lookup table
var segmentSuffixes = []string{".1", ".01", ".001"}

// Compressed tar suffixes that must be matched together with a preceding ".tar".
//
//nolint:gochecknoglobals // immutable lookup table
var tarCompressions = []string{".gz", ".bz2", ".lzma", ".xz"}

func attachedPassword(p string) []string { return []string{"-p" + p} }

func separatePassword(p string) []string { return []string{"-P", p} }

// DefaultTools returns the extension table for Unix-like systems, keyed by
// normalized (lower-case) suffix.
func DefaultTools() map[string]Tool {
	tar := func(flags ...string) Tool {
		return Tool{Binary: "tar", Args: flags}
	}

	return map[string]Tool{
		".rar": {
			Binary:        "unrar",
			Args:          []string{"x", "-o+", "-y"},
			PasswordArgs:  attachedPassword,
			NoPasswordArg: "-p-",
		},
		".zip": {
			Binary:       "unzip",
			Args:         []string{"-o"},
			PasswordArgs: separatePassword,
		},
		".7z": {
			Binary:       "7zr",
			Args:         []string{"x", "-y"},
			PasswordArgs: attachedPassword,
		},
		".tar":      tar("-xf"),
		".tar.gz":   tar("-xzf"),
		".tgz":      tar("-xzf"),
		".tar.bz2":  tar("-xjf"),
		".tbz":      tar("-xjf"),
		".tar.lzma": tar("--lzma", "-xf"),
		".tlz":      tar("--lzma", "-xf"),
		".tar.xz":   tar("--xz", "-xf"),
		".txz":      tar("--xz", "-xf"),
	}
}

// Registry maps archive suffixes to the tools available on this host.
// It is built once and never modified afterwards.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry probes every tool in table with lookPath and keeps only the
// suffixes whose binary is present.
func NewRegistry(table map[string]Tool, lookPath execx.LookPathFunc, logger zerolog.Logger) *Registry {
	tools := make(map[string]Tool, len(table))
	found := make(map[string]bool)

	for ext, tool := range table {
		ok, probed := found[tool.Binary]
		if !probed {
			_, err := lookPath(tool.Binary)
			ok = err == nil
			found[tool.Binary] = ok
			if !ok {
				logger.Warn().Str("tool", tool.Binary).Msg("extraction tool not found, archives needing it will be skipped")
			}
		}
		if ok {
			tools[strings.ToLower(ext)] = tool
		}
	}

	if len(tools) == 0 {
		logger.Warn().Msg("no extraction tools found, archive extraction is disabled")
	}

	return &Registry{tools: tools}
}

// Lookup returns the tool for path, matching compound and segmented suffixes
// before the bare suffix.
func (r *Registry) Lookup(path string) (Tool, bool) {
	key, ok := Suffix(path)
	if !ok {
		return Tool{}, false
	}
	tool, ok := r.tools[key]
	return tool, ok
}

// Suffixes returns the registered suffixes in sorted order.
func (r *Registry) Suffixes() []string {
	out := make([]string, 0, len(r.tools))
	for ext := range r.tools {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Suffix returns the registry key for a file name: ".tar.gz" for "a.tar.gz",
// ".rar" for "a.rar.001", ".zip" for "a.zip". The bool is false when the name has no suffix.
func Suffix(path string) (string, bool) {
	name := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(name)
	if ext == "" {
		return "", false
	}
	stem := strings.TrimSuffix(name, ext)
	inner := filepath.Ext(stem)

	if slices.Contains(tarCompressions, ext) && inner == ".tar" {
		return ".tar" + ext, true
	}
	if slices.Contains(segmentSuffixes, ext) && slices.Contains(segmentedContainers, inner) {
		return inner, true
	}

	return ext, true
}

var laterVolume = regexp.MustCompile(`(?i)\.part0*([2-9]|[1-9]\d+)\.rar$`)

// IsLaterVolume reports whether path is a second or later part of a
// multi-volume rar set. The tool reads those through the first part.
func IsLaterVolume(path string) bool {
	return laterVolume.MatchString(filepath.Base(path))
}
