package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// IgnoreFileName is the per-workspace file of extra ignore patterns.
const IgnoreFileName = ".fmignore"

// DefaultIgnorePatterns cover the metadata that archivers on macOS and
// Windows add next to real content.
var DefaultIgnorePatterns = []string{"__MACOSX/", ".DS_Store", "Thumbs.db", "desktop.ini"}

type patternKind int

const (
	matchBase patternKind = iota // glob against the entry's base name
	matchPath                    // glob against the whole entry name
	matchDir                     // glob against every directory component
)

type ignorePattern struct {
	pattern string
	kind    patternKind
}

// IgnoreMatcher decides which archive entries never take part in
// classification. Entry names are slash-separated paths inside the archive.
//
//	*.log      matches a base name anywhere
//	docs/*.tmp matches the full entry name
//	__MACOSX/  matches any entry below a directory with that name
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		switch {
		case strings.HasSuffix(raw, "/"):
			patterns = append(patterns, ignorePattern{pattern: strings.TrimSuffix(raw, "/"), kind: matchDir})
		case strings.Contains(raw, "/"):
			patterns = append(patterns, ignorePattern{pattern: raw, kind: matchPath})
		default:
			patterns = append(patterns, ignorePattern{pattern: raw, kind: matchBase})
		}
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the entry should be ignored.
func (m *IgnoreMatcher) Match(entryName string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	normalized := strings.TrimPrefix(strings.ReplaceAll(entryName, "\\", "/"), "./")
	base := path.Base(normalized)
	dirs := strings.Split(path.Dir(normalized), "/")

	for _, p := range m.patterns {
		switch p.kind {
		case matchBase:
			if globMatch(p.pattern, base) {
				return true
			}
		case matchPath:
			if globMatch(p.pattern, normalized) {
				return true
			}
		case matchDir:
			for _, d := range dirs {
				if d != "." && globMatch(p.pattern, d) {
					return true
				}
			}
		}
	}
	return false
}

// globMatch treats a malformed pattern as never matching.
func globMatch(pattern, name string) bool {
	matched, err := path.Match(pattern, name)
	return err == nil && matched
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
