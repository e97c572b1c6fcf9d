package journal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mazongYY/FileMover/internal/fm"
)

func sampleOps() []*fm.FileOperation {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return []*fm.FileOperation{
		{ID: "op_1", Type: fm.Move, SourcePath: "/s/a.txt", TargetPath: "/t/a.txt", Timestamp: ts, FileSize: 3, FileHash: "h", BackupPath: "/b/op_1_a.txt"},
		{ID: "op_2", Type: fm.Copy, SourcePath: "/s/b.txt", TargetPath: "/t/b.txt", Timestamp: ts.Add(time.Second), FileSize: 4},
	}
}

func TestJSONJournal_MissingFile(t *testing.T) {
	t.Parallel()
	j := NewJSONJournal(filepath.Join(t.TempDir(), "undo_history.json"), nil)
	ops, err := j.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("Load() = %d ops, want 0", len(ops))
	}
}

func TestJSONJournal_SaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "undo_history.json")
	j := NewJSONJournal(path, nil)
	ops := sampleOps()
	updated := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)

	if err := j.Save(ops, updated); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := j.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, ops) {
		t.Errorf("Load() = %+v, want %+v", got, ops)
	}

	// The document uses the journal field names.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["last_updated"]; !ok {
		t.Error("document has no last_updated")
	}
	first := raw["operations"].([]any)[0].(map[string]any)
	for _, key := range []string{"operation_id", "operation_type", "source_path", "target_path", "timestamp", "file_size", "backup_path", "undone"} {
		if _, ok := first[key]; !ok {
			t.Errorf("operation is missing %q", key)
		}
	}
	if first["operation_type"] != "move" {
		t.Errorf("operation_type = %v, want move", first["operation_type"])
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestJSONJournal_SaveEmptyWritesArray(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "undo_history.json")
	j := NewJSONJournal(path, nil)
	if err := j.Save(nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"operations": []`) {
		t.Errorf("empty journal = %s", data)
	}
}

func TestJSONJournal_CorruptFileMovedAside(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "undo_history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	j := NewJSONJournal(path, nil)
	ops, err := j.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("Load() = %d ops, want 0", len(ops))
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("corrupt journal still at %s", path)
	}
	matches, _ := filepath.Glob(path + ".corrupt-*")
	if len(matches) != 1 {
		t.Errorf("corrupt copies = %v, want 1", matches)
	}
}

func TestJSONJournal_ReadsLegacyDocument(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "undo_history.json")
	legacy := `{
  "operations": [
    {
      "operation_id": "op_20240115_103000_123456",
      "operation_type": "move",
      "source_path": "temp_extract/report.pdf",
      "target_path": "extracted_files/matched/report.pdf",
      "timestamp": "2024-01-15T10:30:00.123456Z",
      "file_size": 2048,
      "backup_path": "backup/op_20240115_103000_123456_report.pdf"
    }
  ],
  "last_updated": "2024-01-15T10:30:01Z"
}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}
	ops, err := NewJSONJournal(path, nil).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Type != fm.Move || ops[0].FileSize != 2048 || ops[0].Undone {
		t.Errorf("Load() = %+v", ops)
	}
}
