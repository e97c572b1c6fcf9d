package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yeka/zip"

	"github.com/mazongYY/FileMover/internal/fm"
)

// FakeFile is one entry of a FakeArchiveReader archive.
type FakeFile struct {
	Name    string
	Content []byte
	ModTime time.Time
	Dir     bool
}

type fakeArchive struct {
	files      []FakeFile
	password   string
	extractErr error
}

// FakeArchiveReader serves archives described in memory. Archive paths must
// still exist on disk so that callers can stat them; Add writes a placeholder.
type FakeArchiveReader struct {
	mu       sync.Mutex
	archives map[string]*fakeArchive
	dests    []string
}

func NewFakeArchiveReader() *FakeArchiveReader {
	return &FakeArchiveReader{archives: make(map[string]*fakeArchive)}
}

// Add registers an archive at path with the given entries and creates a
// placeholder file there.
func (r *FakeArchiveReader) Add(t *testing.T, path string, files ...FakeFile) {
	t.Helper()
	WriteFile(t, path, []byte("fake archive"))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archives[path] = &fakeArchive{files: files}
}

// Protect makes the archive at path require password.
func (r *FakeArchiveReader) Protect(path, password string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archives[path].password = password
}

// FailExtract makes Extract fail with err after writing the first entry.
func (r *FakeArchiveReader) FailExtract(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archives[path].extractErr = err
}

// Destinations returns every destDir passed to Extract, in call order.
func (r *FakeArchiveReader) Destinations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dests...)
}

func (r *FakeArchiveReader) get(path string) (*fakeArchive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.archives[path]
	if !ok {
		return nil, fmt.Errorf("no fake archive at %s", path)
	}
	return a, nil
}

func (r *FakeArchiveReader) List(path string) ([]fm.ArchiveEntry, error) {
	a, err := r.get(path)
	if err != nil {
		return nil, err
	}
	entries := make([]fm.ArchiveEntry, 0, len(a.files))
	for _, f := range a.files {
		entries = append(entries, f.entry())
	}
	return entries, nil
}

func (r *FakeArchiveReader) IsPasswordProtected(path string) bool {
	a, err := r.get(path)
	return err == nil && a.password != ""
}

func (r *FakeArchiveReader) VerifyPassword(path, password string) bool {
	a, err := r.get(path)
	return err == nil && a.password == password
}

func (r *FakeArchiveReader) Extract(ctx context.Context, path, destDir, password string) ([]fm.ArchiveEntry, error) {
	a, err := r.get(path)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.dests = append(r.dests, destDir)
	r.mu.Unlock()

	if a.password != "" && password != a.password {
		return nil, errors.New("fake: wrong password")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	var entries []fm.ArchiveEntry
	for i, f := range a.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i == 1 && a.extractErr != nil {
			return nil, a.extractErr
		}
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if f.Dir {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, err
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(target, f.Content, 0644); err != nil {
				return nil, err
			}
			if !f.ModTime.IsZero() {
				if err := os.Chtimes(target, f.ModTime, f.ModTime); err != nil {
					return nil, err
				}
			}
		}
		entries = append(entries, f.entry())
	}
	if len(a.files) <= 1 && a.extractErr != nil {
		return nil, a.extractErr
	}
	return entries, nil
}

func (r *FakeArchiveReader) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".rar", ".7z":
		return true
	}
	return false
}

func (f FakeFile) entry() fm.ArchiveEntry {
	return fm.ArchiveEntry{
		Name:       f.Name,
		Size:       int64(len(f.Content)),
		Modified:   f.ModTime,
		HasModTime: !f.ModTime.IsZero(),
		IsDir:      f.Dir,
	}
}

var _ fm.ArchiveReader = (*FakeArchiveReader)(nil)

// ZipEntry is one entry written by WriteZip. Names ending in "/" are
// directories.
type ZipEntry struct {
	Name    string
	Content []byte
	ModTime time.Time
}

// WriteZip creates a ZIP archive at path.
func WriteZip(t *testing.T, path string, entries ...ZipEntry) {
	t.Helper()
	writeZip(t, path, "", 0, entries)
}

// ZipEncryption selects how WriteEncryptedZip protects file entries.
type ZipEncryption = zip.EncryptionMethod

const (
	// ZipCrypto is the legacy PKWARE scheme written by zip -e and Windows.
	ZipCrypto ZipEncryption = zip.StandardEncryption
	// ZipAES256 is WinZip AES-256.
	ZipAES256 ZipEncryption = zip.AES256Encryption
)

// WriteEncryptedZip creates a ZIP archive at path with every file entry
// encrypted under password. Encrypted entries carry no modification time.
func WriteEncryptedZip(t *testing.T, path, password string, method ZipEncryption, entries ...ZipEntry) {
	t.Helper()
	writeZip(t, path, password, method, entries)
}

func writeZip(t *testing.T, path, password string, method ZipEncryption, entries []ZipEntry) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		isDir := strings.HasSuffix(e.Name, "/")
		if password != "" && !isDir {
			fw, err := w.Encrypt(e.Name, password, method)
			if err != nil {
				t.Fatalf("adding %s: %v", e.Name, err)
			}
			if _, err := fw.Write(e.Content); err != nil {
				t.Fatalf("writing %s: %v", e.Name, err)
			}
			continue
		}

		fh := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		modTime := e.ModTime
		if modTime.IsZero() {
			modTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		}
		fh.SetModTime(modTime)
		if isDir {
			fh.Method = zip.Store
		}
		fw, err := w.CreateHeader(fh)
		if err != nil {
			t.Fatalf("adding %s: %v", e.Name, err)
		}
		if isDir {
			continue
		}
		if _, err := fw.Write(e.Content); err != nil {
			t.Fatalf("writing %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
}
