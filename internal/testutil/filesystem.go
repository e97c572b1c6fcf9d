package testutil

import (
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/mazongYY/FileMover/internal/fm"
	fmfs "github.com/mazongYY/FileMover/internal/fs"
)

// FaultyFilesystemManager wraps the real filesystem and fails selected
// operations. Failures are keyed by operation name ("move", "copy", "link",
// "remove", "removeall", "mkdir", "open", "write") and match any path that
// contains the registered substring.
type FaultyFilesystemManager struct {
	inner fm.FilesystemManager
	mu    sync.Mutex
	fails map[string][]string
	calls []string
}

// NewFaultyFilesystemManager wraps an OSFilesystemManager.
func NewFaultyFilesystemManager() *FaultyFilesystemManager {
	return &FaultyFilesystemManager{
		inner: fmfs.NewOSFilesystemManager(),
		fails: make(map[string][]string),
	}
}

// FailOn makes op fail for every path containing substr. An empty substr
// fails op for every path.
func (f *FaultyFilesystemManager) FailOn(op, substr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[op] = append(f.fails[op], substr)
}

// Calls returns the operations performed so far as "op path" strings.
func (f *FaultyFilesystemManager) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FaultyFilesystemManager) check(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+path)
	for _, substr := range f.fails[op] {
		if strings.Contains(path, substr) {
			return fmt.Errorf("injected %s failure: %s", op, path)
		}
	}
	return nil
}

func (f *FaultyFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return f.inner.Stat(path)
}

func (f *FaultyFilesystemManager) Exists(path string) bool {
	return f.inner.Exists(path)
}

func (f *FaultyFilesystemManager) MkdirAll(path string) error {
	if err := f.check("mkdir", path); err != nil {
		return err
	}
	return f.inner.MkdirAll(path)
}

func (f *FaultyFilesystemManager) Remove(path string) error {
	if err := f.check("remove", path); err != nil {
		return err
	}
	return f.inner.Remove(path)
}

func (f *FaultyFilesystemManager) RemoveAll(path string) error {
	if err := f.check("removeall", path); err != nil {
		return err
	}
	return f.inner.RemoveAll(path)
}

func (f *FaultyFilesystemManager) Move(src, dst string) error {
	if err := f.check("move", src); err != nil {
		return err
	}
	return f.inner.Move(src, dst)
}

func (f *FaultyFilesystemManager) Copy(src, dst string) error {
	if err := f.check("copy", src); err != nil {
		return err
	}
	return f.inner.Copy(src, dst)
}

func (f *FaultyFilesystemManager) Link(src, dst string) error {
	if err := f.check("link", src); err != nil {
		return err
	}
	return f.inner.Link(src, dst)
}

func (f *FaultyFilesystemManager) Open(path string) (io.ReadCloser, error) {
	if err := f.check("open", path); err != nil {
		return nil, err
	}
	return f.inner.Open(path)
}

func (f *FaultyFilesystemManager) WriteFile(path string, r io.Reader) error {
	if err := f.check("write", path); err != nil {
		return err
	}
	return f.inner.WriteFile(path, r)
}

// Compile-time check
var _ fm.FilesystemManager = (*FaultyFilesystemManager)(nil)
