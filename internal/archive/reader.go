// Package archive reads ZIP, RAR and 7Z archives behind a single
// extension-dispatched reader.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mazongYY/FileMover/internal/fm"
)

// ErrUnsafePath is returned when an entry would be written outside the
// extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// errStopWalk ends a walk early without reporting failure.
var errStopWalk = errors.New("stop walk")

// member is one entry as seen while walking an archive. open is only valid
// for the duration of the callback.
type member struct {
	fm.ArchiveEntry
	symlink bool
	open    func() (io.ReadCloser, error)
}

// walkFunc visits every entry of an archive in order. Returning errStopWalk
// from fn ends the walk successfully.
type walkFunc func(ctx context.Context, archivePath, password string, fn func(m member) error) error

// format is the capability record for one archive type.
type format struct {
	walk walkFunc
	// passwordProtected reports whether the archive needs a password.
	// Read errors yield false.
	passwordProtected func(archivePath string) bool
}

// formats maps a lowercase extension to its handler. Adding a format is one
// entry here plus its walk and password check functions.
var formats = map[string]format{
	".zip": {walk: walkZip, passwordProtected: zipPasswordProtected},
	".rar": {walk: walkRar, passwordProtected: rarPasswordProtected},
	".7z":  {walk: walkSevenZip, passwordProtected: sevenZipPasswordProtected},
}

// Reader implements fm.ArchiveReader.
type Reader struct {
	logger fm.Logger
}

func NewReader(logger fm.Logger) *Reader {
	return &Reader{logger: logger}
}

// SupportedExtensions returns the handled extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func lookup(archivePath string) (format, error) {
	ext := strings.ToLower(filepath.Ext(archivePath))
	f, ok := formats[ext]
	if !ok {
		return format{}, fmt.Errorf("%w: %q", fm.ErrUnsupportedFormat, ext)
	}
	return f, nil
}

func (r *Reader) Supports(archivePath string) bool {
	_, err := lookup(archivePath)
	return err == nil
}

// List returns every entry in archive order. It fails with
// fm.ErrUnsupportedFormat for unknown extensions and fm.ErrNotFound when
// the file does not exist.
func (r *Reader) List(archivePath string) ([]fm.ArchiveEntry, error) {
	f, err := lookup(archivePath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(archivePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fm.ErrNotFound, archivePath)
		}
		return nil, err
	}

	var entries []fm.ArchiveEntry
	err = f.walk(context.Background(), archivePath, "", func(m member) error {
		entries = append(entries, m.ArchiveEntry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", archivePath, err)
	}
	return entries, nil
}

func (r *Reader) IsPasswordProtected(archivePath string) bool {
	f, err := lookup(archivePath)
	if err != nil {
		return false
	}
	protected := f.passwordProtected(archivePath)
	r.logger.Debug("password check", "archive", archivePath, "protected", protected)
	return protected
}

// VerifyPassword reads the first file entry with password. An archive
// without file entries accepts any password.
func (r *Reader) VerifyPassword(archivePath, password string) bool {
	f, err := lookup(archivePath)
	if err != nil {
		return false
	}
	err = f.walk(context.Background(), archivePath, password, func(m member) error {
		if m.IsDir || m.symlink {
			return nil
		}
		rc, err := m.open()
		if err != nil {
			return err
		}
		defer rc.Close()
		if _, err := io.Copy(io.Discard, rc); err != nil {
			return err
		}
		return errStopWalk
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		r.logger.Debug("password rejected", "archive", archivePath, "error", err)
		return false
	}
	return true
}

// Extract writes every entry below destDir. Symbolic links are skipped and
// file modification times are set from the archive.
func (r *Reader) Extract(ctx context.Context, archivePath, destDir, password string) ([]fm.ArchiveEntry, error) {
	f, err := lookup(archivePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", destDir, err)
	}

	var entries []fm.ArchiveEntry
	err = f.walk(ctx, archivePath, password, func(m member) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeJoin(destDir, m.Name)
		if err != nil {
			return err
		}

		switch {
		case m.symlink:
			r.logger.Warn("skipping symbolic link", "archive", archivePath, "name", m.Name)
			return nil
		case m.IsDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", m.Name, err)
			}
		default:
			if err := writeMember(target, m); err != nil {
				return fmt.Errorf("extracting %s: %w", m.Name, err)
			}
		}
		entries = append(entries, m.ArchiveEntry)
		return nil
	})
	if err != nil {
		return nil, fm.NewExtractionError(archivePath, err)
	}
	r.logger.Debug("archive extracted", "archive", archivePath, "entries", len(entries), "dest", destDir)
	return entries, nil
}

// safeJoin resolves an archive entry name below dest. Leading slashes are
// dropped by the join; names that climb out of dest are rejected.
func safeJoin(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	target := filepath.Join(dest, filepath.FromSlash(name))
	root := filepath.Clean(dest) + string(os.PathSeparator)
	if !strings.HasPrefix(target+string(os.PathSeparator), root) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func writeMember(target string, m member) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := m.open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if m.HasModTime {
		if err := os.Chtimes(target, m.Modified, m.Modified); err != nil {
			return fmt.Errorf("setting modification time: %w", err)
		}
	}
	return nil
}

var _ fm.ArchiveReader = (*Reader)(nil)
