package fm

import (
	"context"
	"path"
	"strings"
	"time"
)

// ArchiveEntry is one record inside a source archive.
type ArchiveEntry struct {
	// Name is the path inside the archive, always slash-separated.
	Name string
	Size int64
	// Modified is only meaningful when HasModTime is true; some formats
	// do not store a timestamp for every entry.
	Modified   time.Time
	HasModTime bool
	IsDir      bool
}

// Extension returns the lowercase extension of the entry name, dot included.
func (e ArchiveEntry) Extension() string {
	return strings.ToLower(path.Ext(e.Name))
}

// ArchiveReader lists, inspects and extracts archives. Implementations
// dispatch on the file extension.
type ArchiveReader interface {
	// List returns every entry, directories included, in archive order.
	List(archivePath string) ([]ArchiveEntry, error)

	// IsPasswordProtected reports whether a password is needed to read the
	// archive. Probing errors yield false.
	IsPasswordProtected(archivePath string) bool

	// VerifyPassword reports whether password can read one entry.
	// Any failure, including corruption, counts as a wrong password.
	VerifyPassword(archivePath, password string) bool

	// Extract writes every entry below destDir and returns the extracted
	// entries in archive order. It leaves partial output in place on failure;
	// removing destDir is the caller's job.
	Extract(ctx context.Context, archivePath, destDir, password string) ([]ArchiveEntry, error)

	// Supports reports whether the extension of archivePath has a handler.
	Supports(archivePath string) bool
}

// PasswordSource supplies a verified password for a protected archive.
// ok is false when the user declined or every attempt failed.
type PasswordSource interface {
	GetPassword(archivePath string) (password string, ok bool)
}
