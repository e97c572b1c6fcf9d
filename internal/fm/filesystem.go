package fm

import (
	"io"
	"io/fs"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access so that executor and ledger failures can be
// simulated in tests.
type FilesystemManager interface {
	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// Exists reports whether anything is present at path.
	Exists(path string) bool

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error

	// Remove deletes a single file.
	Remove(path string) error

	// RemoveAll deletes path and everything below it.
	RemoveAll(path string) error

	// Move renames src to dst, copying across filesystem boundaries.
	Move(src, dst string) error

	// Copy copies src to dst, preserving permissions and modification time.
	Copy(src, dst string) error

	// Link creates dst as a hard link to src.
	Link(src, dst string) error

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// WriteFile atomically replaces path with the contents of r.
	WriteFile(path string, r io.Reader) error
}
