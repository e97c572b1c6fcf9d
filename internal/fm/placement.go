package fm

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UniqueDestination returns path unchanged when nothing exists there.
// Otherwise it inserts the first free numeric suffix before the extension:
// name_1.ext, name_2.ext, and so on. It only checks; nothing is created.
func UniqueDestination(fsmgr FilesystemManager, path string) string {
	if !fsmgr.Exists(path) {
		return path
	}

	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// Dotfiles such as ".env" have no extension to preserve.
		stem, ext = base, ""
	}

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if !fsmgr.Exists(candidate) {
			return candidate
		}
	}
}
