package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/mazongYY/FileMover/internal/config"
	"github.com/mazongYY/FileMover/internal/filter"
	"github.com/mazongYY/FileMover/internal/fm"
	"github.com/mazongYY/FileMover/internal/password"
	"github.com/mazongYY/FileMover/internal/testutil"
)

func TestBuildFilter(t *testing.T) {
	presets := filter.MergePresets(map[string][]string{"notes": {"md", ".TXT"}})

	t.Run("types and presets are unioned", func(t *testing.T) {
		cfg, err := BuildFilter(FilterOptions{Types: []string{"pdf,.Docx", "txt"}, Presets: []string{"Notes"}}, presets)
		if err != nil {
			t.Fatalf("BuildFilter() error = %v", err)
		}
		want := []string{".pdf", ".docx", ".txt", ".md"}
		if !reflect.DeepEqual(cfg.FileTypes, want) {
			t.Errorf("FileTypes = %v, want %v", cfg.FileTypes, want)
		}
	})

	t.Run("sizes are human readable", func(t *testing.T) {
		cfg, err := BuildFilter(FilterOptions{MinSize: "1KB", MaxSize: "2 MiB"}, presets)
		if err != nil {
			t.Fatalf("BuildFilter() error = %v", err)
		}
		if !cfg.Size.Enabled || cfg.Size.MinBytes != 1000 || cfg.Size.MaxBytes != 2<<20 {
			t.Errorf("Size = %+v", cfg.Size)
		}
	})

	t.Run("before covers the whole day", func(t *testing.T) {
		cfg, err := BuildFilter(FilterOptions{After: "2024-01-01", Before: "2024-01-31"}, presets)
		if err != nil {
			t.Fatalf("BuildFilter() error = %v", err)
		}
		if !cfg.Date.Enabled || cfg.Date.Start == nil || cfg.Date.End == nil {
			t.Fatalf("Date = %+v", cfg.Date)
		}
		lastMoment := time.Date(2024, 1, 31, 23, 59, 59, 0, time.Local)
		if cfg.Date.End.Before(lastMoment) {
			t.Errorf("End = %v, want at or after %v", cfg.Date.End, lastMoment)
		}
		if cfg.Date.End.After(time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local)) {
			t.Errorf("End = %v spills into the next day", cfg.Date.End)
		}
	})

	t.Run("empty options disable every filter", func(t *testing.T) {
		cfg, err := BuildFilter(FilterOptions{UseRegex: true}, presets)
		if err != nil {
			t.Fatalf("BuildFilter() error = %v", err)
		}
		if !cfg.UseRegex || cfg.Size.Enabled || cfg.Date.Enabled || len(cfg.FileTypes) != 0 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	invalid := []struct {
		name string
		opts FilterOptions
	}{
		{name: "unknown preset", opts: FilterOptions{Presets: []string{"nope"}}},
		{name: "bad size", opts: FilterOptions{MinSize: "lots"}},
		{name: "min above max", opts: FilterOptions{MinSize: "2MB", MaxSize: "1MB"}},
		{name: "bad date", opts: FilterOptions{After: "01/02/2024"}},
		{name: "inverted dates", opts: FilterOptions{After: "2024-02-01", Before: "2024-01-01"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildFilter(tt.opts, presets)
			if !errors.Is(err, fm.ErrInvalidInput) {
				t.Errorf("BuildFilter() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestDefaultClassifyOptions(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Defaults = config.DefaultsConfig{
		OperationMode: "copy",
		RegexMode:     true,
		FileTypes:     []string{".pdf"},
		Size:          config.SizeConfig{Enabled: false, MinSize: "1KB"},
		Date:          config.DateConfig{Enabled: true, After: "2024-01-01"},
	}

	opts := DefaultClassifyOptions(cfg)
	if opts.Mode != "copy" || !opts.Filter.UseRegex {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Filter.MinSize != "" {
		t.Errorf("disabled size filter leaked MinSize %q", opts.Filter.MinSize)
	}
	if opts.Filter.After != "2024-01-01" {
		t.Errorf("After = %q, want 2024-01-01", opts.Filter.After)
	}
}

func newTestApp(t *testing.T) (*FMApp, *config.Config) {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Journal.Type = "memory"
	cfg.Backup.Type = "memory"

	a, err := NewFMApp(cfg, "test", nil, Options{
		Prompter: password.StaticPrompter{},
		Stderr:   io.Discard,
	})
	if err != nil {
		t.Fatalf("NewFMApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, cfg
}

func TestFMApp_ClassifyAndUndo(t *testing.T) {
	a, cfg := newTestApp(t)
	archivePath := filepath.Join(cfg.BaseDir, "bundle.zip")
	testutil.WriteZip(t, archivePath,
		testutil.ZipEntry{Name: "docs/report_2024.txt", Content: []byte("quarterly")},
		testutil.ZipEntry{Name: "photo.jpg", Content: []byte("jpeg")},
		testutil.ZipEntry{Name: "__MACOSX/._photo.jpg", Content: []byte("meta")},
	)

	opts := DefaultClassifyOptions(cfg)
	opts.Archive = archivePath
	opts.Keywords = []string{"report"}

	preview, err := a.Preview(context.Background(), opts)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if preview.Matched != 1 || preview.Unmatched != 1 {
		t.Errorf("Preview() = %+v, want 1 matched and 1 unmatched", preview)
	}

	res, err := a.Classify(context.Background(), opts)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(res.Matched) != 1 || len(res.Unmatched) != 1 {
		t.Fatalf("Classify() = %+v", res)
	}
	matched := filepath.Join(cfg.Workspace.MatchedDir, "report_2024.txt")
	if got := testutil.ReadFile(t, matched); string(got) != "quarterly" {
		t.Errorf("matched content = %q", got)
	}

	stats := a.Statistics()
	if stats.Total != 2 || stats.ByType[fm.Move] != 2 {
		t.Errorf("Statistics() = %+v, want 2 moves", stats)
	}

	keywords, err := a.Keywords()
	if err != nil {
		t.Fatalf("Keywords() error = %v", err)
	}
	if !reflect.DeepEqual(keywords, []string{"report"}) {
		t.Errorf("Keywords() = %v, want [report]", keywords)
	}

	results := a.UndoLast(2)
	if len(results) != 2 {
		t.Fatalf("UndoLast() = %v, want 2 results", results)
	}
	for id, ok := range results {
		if !ok {
			t.Errorf("undo %s failed", id)
		}
	}
	testutil.AssertMissing(t, matched)
	if !a.run.Succeeded() {
		t.Errorf("run status = %s, want success", a.run.Status)
	}
}

func TestFMApp_ClassifyRejectsBadMode(t *testing.T) {
	a, cfg := newTestApp(t)
	opts := ClassifyOptions{Archive: filepath.Join(cfg.BaseDir, "x.zip"), Keywords: []string{"a"}, Mode: "shred"}

	_, err := a.Classify(context.Background(), opts)
	if !errors.Is(err, fm.ErrInvalidInput) {
		t.Fatalf("Classify() error = %v, want ErrInvalidInput", err)
	}
	if a.run.Succeeded() {
		t.Error("run should be marked failed")
	}
}

func TestFMApp_IgnoreFile(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, ".fmignore"), []byte("# scratch\n*.tmp\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.NewConfig(base)
	cfg.Filesystem.Ignore = []string{"*.bak"}

	patterns, err := ignorePatterns(cfg)
	if err != nil {
		t.Fatalf("ignorePatterns() error = %v", err)
	}
	want := map[string]bool{"__MACOSX/": true, "*.bak": true, "*.tmp": true}
	for _, p := range patterns {
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("patterns %v missing %v", patterns, want)
	}
}

func TestNewFMApp_EncryptionWithoutKeys(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Journal.Type = "memory"
	cfg.Backup.Type = "memory"
	cfg.Backup.Encrypt = true

	_, err := NewFMApp(cfg, "test", nil, Options{Stderr: io.Discard})
	if err == nil {
		t.Fatal("NewFMApp() should fail when encryption keys are missing")
	}
}

func TestSetupEncryption(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	if err := SetupEncryption(cfg, "correct horse"); err != nil {
		t.Fatalf("SetupEncryption() error = %v", err)
	}
	for _, p := range []string{cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("key file %s: %v", p, err)
		}
	}

	cfg.Journal.Type = "memory"
	cfg.Backup.Type = "memory"
	cfg.Backup.Encrypt = true
	a, err := NewFMApp(cfg, "test", nil, Options{
		Stderr:     io.Discard,
		Passphrase: func() (string, error) { return "correct horse", nil },
	})
	if err != nil {
		t.Fatalf("NewFMApp() with keys error = %v", err)
	}
	a.Close()
}
