package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultHistoryMax is the number of keywords the history keeps.
const DefaultHistoryMax = 20

// KeywordHistory is the list of recently used keywords, newest first.
type KeywordHistory struct {
	Keywords []string `toml:"keywords"`
}

// Push puts keywords at the front in the order given, removing earlier
// occurrences and blanks, and truncates the list to max entries.
func (h *KeywordHistory) Push(keywords []string, max int) {
	var fresh []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		fresh = append(fresh, kw)
	}
	for _, kw := range h.Keywords {
		if !seen[kw] {
			seen[kw] = true
			fresh = append(fresh, kw)
		}
	}
	if len(fresh) > max {
		fresh = fresh[:max]
	}
	h.Keywords = fresh
}

// LoadKeywordHistory reads the history file. A missing file is an empty history.
func LoadKeywordHistory(path string) (*KeywordHistory, error) {
	var h KeywordHistory
	if _, err := toml.DecodeFile(path, &h); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &KeywordHistory{}, nil
		}
		return nil, fmt.Errorf("reading keyword history %s: %w", path, err)
	}
	return &h, nil
}

// SaveKeywordHistory writes the history file, creating its directory.
func SaveKeywordHistory(path string, h *KeywordHistory) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating keyword history: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(h); err != nil {
		return fmt.Errorf("writing keyword history %s: %w", path, err)
	}
	return nil
}
