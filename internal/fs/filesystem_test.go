package fs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func write(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, data, 0640); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestOSFilesystemManager_Copy(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	mtime := time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)
	write(t, src, []byte("payload"), mtime)

	if err := m.Copy(src, dst); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading copy: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Errorf("copy content = %q, want payload", got)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("copy mtime = %v, want %v", info.ModTime(), mtime)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("copy mode = %v, want 0640", info.Mode().Perm())
	}
	if !m.Exists(src) {
		t.Error("Copy() removed the source")
	}
}

func TestOSFilesystemManager_CopyRejectsDirectory(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	if err := m.Copy(dir, filepath.Join(dir, "out")); err == nil {
		t.Fatal("Copy() of a directory should fail")
	}
}

func TestOSFilesystemManager_Move(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "sub", "b.txt")
	write(t, src, []byte("x"), time.Now())

	if err := m.MkdirAll(filepath.Dir(dst)); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := m.Move(src, dst); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if m.Exists(src) {
		t.Error("source still exists after Move()")
	}
	if !m.Exists(dst) {
		t.Error("target missing after Move()")
	}
}

func TestOSFilesystemManager_MoveMissingSource(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	err := m.Move(filepath.Join(dir, "missing"), filepath.Join(dir, "x"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Move() error = %v, want ErrNotExist", err)
	}
}

func TestOSFilesystemManager_Link(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	write(t, src, []byte("linked"), time.Now())

	if err := m.Link(src, dst); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	a, _ := os.Stat(src)
	b, _ := os.Stat(dst)
	if !os.SameFile(a, b) {
		t.Error("Link() target is not the same file as the source")
	}
}

func TestOSFilesystemManager_WriteFile(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.bin")

	if err := m.WriteFile(path, strings.NewReader("first")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := m.WriteFile(path, strings.NewReader("second")); err != nil {
		t.Fatalf("WriteFile() overwrite error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want second", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries (temp file leaked?)", len(entries))
	}
}
