package filter

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SizeFilter bounds the file size in bytes. MaxBytes == 0 means no upper bound.
type SizeFilter struct {
	Enabled  bool
	MinBytes int64
	MaxBytes int64
}

// DateFilter is an inclusive range over modification time. A nil bound
// leaves that side open.
type DateFilter struct {
	Enabled bool
	Start   *time.Time
	End     *time.Time
}

// Config is the full set of filter options for one run.
type Config struct {
	UseRegex bool
	// FileTypes is an extension allow-list. Empty means every type passes.
	FileTypes []string
	Size      SizeFilter
	Date      DateFilter
}

// Decision is the outcome of classifying one file.
type Decision int

const (
	// Excluded files failed a type, size or date filter and appear in
	// neither output list.
	Excluded Decision = iota
	Matched
	Unmatched
)

func (d Decision) String() string {
	switch d {
	case Matched:
		return "matched"
	case Unmatched:
		return "unmatched"
	default:
		return "excluded"
	}
}

// Included reports whether the file takes part in the run at all.
func (d Decision) Included() bool {
	return d != Excluded
}

// NormalizeExtension lowercases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// PassesTypeFilter reports whether the extension of name is allowed.
func PassesTypeFilter(name string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if NormalizeExtension(a) == ext {
			return true
		}
	}
	return false
}

// PassesSizeFilter checks the size of the file at path. A file that cannot
// be stat'ed never passes an enabled filter.
func PassesSizeFilter(path string, f SizeFilter) bool {
	if !f.Enabled {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	size := info.Size()
	if size < f.MinBytes {
		return false
	}
	if f.MaxBytes > 0 && size > f.MaxBytes {
		return false
	}
	return true
}

// PassesDateFilter checks the modification time of the file at path.
// A file that cannot be stat'ed never passes an enabled filter.
func PassesDateFilter(path string, f DateFilter) bool {
	if !f.Enabled {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mtime := info.ModTime()
	if f.Start != nil && mtime.Before(*f.Start) {
		return false
	}
	if f.End != nil && mtime.After(*f.End) {
		return false
	}
	return true
}

// Classify applies the filters first and the keywords second: filters decide
// whether the file participates, keywords decide its bucket. name is the
// entry name used for keyword and type checks; path is the extracted file
// used for size and date checks.
func Classify(name, path string, keywords *KeywordMatcher, cfg Config) Decision {
	if !PassesTypeFilter(name, cfg.FileTypes) {
		return Excluded
	}
	if !PassesSizeFilter(path, cfg.Size) {
		return Excluded
	}
	if !PassesDateFilter(path, cfg.Date) {
		return Excluded
	}
	if keywords.Match(name) {
		return Matched
	}
	return Unmatched
}
