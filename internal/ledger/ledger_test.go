package ledger_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mazongYY/FileMover/internal/backup"
	"github.com/mazongYY/FileMover/internal/fm"
	fmfs "github.com/mazongYY/FileMover/internal/fs"
	"github.com/mazongYY/FileMover/internal/journal"
	"github.com/mazongYY/FileMover/internal/ledger"
	"github.com/mazongYY/FileMover/internal/testutil"
)

// moveFile records and performs a move the way the executor does.
func moveFile(t *testing.T, l fm.Ledger, source, target string) string {
	t.Helper()
	id, err := l.Record(fm.Move, source, target)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(source, target); err != nil {
		t.Fatal(err)
	}
	return id
}

func copyFile(t *testing.T, l fm.Ledger, mode fm.OperationMode, source, target string) string {
	t.Helper()
	id, err := l.Record(mode, source, target)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	testutil.WriteFile(t, target, testutil.ReadFile(t, source))
	return id
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	valid := ledger.Options{
		Capacity:   10,
		Journal:    journal.NewMemoryJournal(),
		Backups:    backup.NewMemoryStore(),
		Filesystem: fmfs.NewOSFilesystemManager(),
	}

	zero := valid
	zero.Capacity = 0
	if _, err := ledger.New(zero); !errors.Is(err, fm.ErrInvalidInput) {
		t.Errorf("New() with capacity 0 error = %v, want ErrInvalidInput", err)
	}

	noJournal := valid
	noJournal.Journal = nil
	if _, err := ledger.New(noJournal); err == nil {
		t.Error("New() without journal should fail")
	}

	l, err := ledger.New(valid)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.Capacity() != 10 || l.Len() != 0 {
		t.Errorf("Capacity() = %d, Len() = %d", l.Capacity(), l.Len())
	}
}

func TestRecord_Move(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	source := filepath.Join(dir, "scratch", "report.pdf")
	content := []byte("report contents")
	testutil.WriteFile(t, source, content)

	id, err := l.Record(fm.Move, source, filepath.Join(dir, "matched", "report.pdf"))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	op := l.Find(id)
	if op == nil {
		t.Fatal("Find() returned nil for recorded id")
	}
	if op.Type != fm.Move || op.FileSize != int64(len(content)) {
		t.Errorf("op = %+v", op)
	}
	if op.BackupPath != "memory://"+backup.Key(id, source) {
		t.Errorf("BackupPath = %q", op.BackupPath)
	}
	if op.FileHash != testutil.SHA256Hex(content) {
		t.Errorf("FileHash = %q", op.FileHash)
	}

	var stored bytes.Buffer
	if err := l.Backups.Get(backup.Key(id, source), &stored); err != nil {
		t.Fatalf("backup not stored: %v", err)
	}
	if !bytes.Equal(stored.Bytes(), content) {
		t.Error("backup bytes differ from source")
	}

	persisted, _ := l.Journal.Load()
	if len(persisted) != 1 || persisted[0].ID != id {
		t.Errorf("journal = %+v, want the recorded operation", persisted)
	}
}

func TestRecord_CopyAndLinkTakeNoBackup(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	source := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, source, []byte("abc"))

	for _, mode := range []fm.OperationMode{fm.Copy, fm.Link} {
		id, err := l.Record(mode, source, filepath.Join(dir, "out", mode.String()+".txt"))
		if err != nil {
			t.Fatalf("Record(%v) error = %v", mode, err)
		}
		op := l.Find(id)
		if op.HasBackup() || op.FileHash != "" {
			t.Errorf("%v operation has a backup: %+v", mode, op)
		}
		if op.FileSize != 3 {
			t.Errorf("FileSize = %d, want 3", op.FileSize)
		}
	}
	if l.Backups.Len() != 0 {
		t.Errorf("backup store holds %d entries, want 0", l.Backups.Len())
	}
}

func TestRecord_MissingSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)

	id, err := l.Record(fm.Move, filepath.Join(dir, "gone.txt"), filepath.Join(dir, "t.txt"))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	op := l.Find(id)
	if op.FileSize != 0 || op.HasBackup() {
		t.Errorf("op = %+v, want size 0 and no backup", op)
	}
	if l.CanUndo(id) {
		t.Error("CanUndo() = true for an operation without backup")
	}
}

func TestRecord_UniqueIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	j := journal.NewMemoryJournal()
	l, err := ledger.New(ledger.Options{
		Capacity:   100,
		Journal:    j,
		Backups:    backup.NewMemoryStore(),
		Filesystem: fmfs.NewOSFilesystemManager(),
		Clock:      testutil.FixedClock(),
	})
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		id, err := l.Record(fm.Copy, filepath.Join(dir, "a"), filepath.Join(dir, "b"))
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	for _, want := range []string{"op_20240115_103000_000000", "op_20240115_103000_000000_1", "op_20240115_103000_000000_2"} {
		if !seen[want] {
			t.Errorf("missing id %q in %v", want, seen)
		}
	}
}

func TestRecord_Eviction(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 3)

	var ids []string
	for i := 0; i < 4; i++ {
		source := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		testutil.WriteFile(t, source, []byte(fmt.Sprintf("content %d", i)))
		id, err := l.Record(fm.Move, source, filepath.Join(dir, "out", filepath.Base(source)))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	if l.Find(ids[0]) != nil {
		t.Error("oldest operation was not evicted")
	}
	if ok, _ := l.Backups.Exists(backup.Key(ids[0], filepath.Join(dir, "f0.txt"))); ok {
		t.Error("evicted operation's backup still exists")
	}
	if l.Backups.Len() != 3 {
		t.Errorf("backup store holds %d entries, want 3", l.Backups.Len())
	}
	for _, id := range ids[1:] {
		if l.Find(id) == nil {
			t.Errorf("operation %s missing", id)
		}
	}
	persisted, _ := l.Journal.Load()
	if len(persisted) != 3 || persisted[0].ID != ids[1] {
		t.Errorf("journal not trimmed: %d entries", len(persisted))
	}
}

func TestRecord_JournalFailureRollsBack(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	source := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, source, []byte("abc"))

	l.Journal.FailSave = errors.New("disk full")
	if _, err := l.Record(fm.Move, source, filepath.Join(dir, "b.txt")); err == nil {
		t.Fatal("Record() should fail when the journal cannot be saved")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d after failed Record", l.Len())
	}
	if l.Backups.Len() != 0 {
		t.Error("backup of failed Record was not removed")
	}
}

func TestRecord_BackupFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fsmgr := testutil.NewFaultyFilesystemManager()
	fsmgr.FailOn("open", "a.txt")
	l := testutil.NewTestLedgerWithFS(t, 100, fsmgr)
	source := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, source, []byte("abc"))

	id, err := l.Record(fm.Move, source, filepath.Join(dir, "b.txt"))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if l.Find(id).HasBackup() {
		t.Error("operation has a backup although backing up failed")
	}
}

func TestNew_TrimsOversizedJournal(t *testing.T) {
	t.Parallel()
	j := journal.NewMemoryJournal()
	store := backup.NewMemoryStore()
	var ops []*fm.FileOperation
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("op_%d", i)
		loc, err := store.Put(backup.Key(id, "/s/x.txt"), bytes.NewReader([]byte("x")), 1)
		if err != nil {
			t.Fatal(err)
		}
		ops = append(ops, &fm.FileOperation{ID: id, Type: fm.Move, SourcePath: "/s/x.txt", TargetPath: "/t/x.txt", BackupPath: loc})
	}
	if err := j.Save(ops, testutil.FixedClock().Now()); err != nil {
		t.Fatal(err)
	}

	l, err := ledger.New(ledger.Options{Capacity: 2, Journal: j, Backups: store, Filesystem: fmfs.NewOSFilesystemManager()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.Len() != 2 || l.Find("op_3") == nil || l.Find("op_4") == nil {
		t.Errorf("ledger kept %v", l.Recent(0))
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d backups, want 2", store.Len())
	}
}

func TestUndo_MoveRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	source := filepath.Join(dir, "scratch", "report.pdf")
	target := filepath.Join(dir, "matched", "report.pdf")
	content := bytes.Repeat([]byte{0x00, 0x7f, 0xff}, 5000)
	testutil.WriteFile(t, source, content)

	id := moveFile(t, l, source, target)
	// The scratch directory is removed after a run.
	os.RemoveAll(filepath.Join(dir, "scratch"))

	if !l.CanUndo(id) {
		t.Fatal("CanUndo() = false after move")
	}
	if !l.Undo(id) {
		t.Fatal("Undo() = false")
	}

	if !bytes.Equal(testutil.ReadFile(t, source), content) {
		t.Error("restored file differs from original")
	}
	testutil.AssertMissing(t, target)

	if l.CanUndo(id) {
		t.Error("CanUndo() = true after undo")
	}
	op := l.Find(id)
	if !op.Undone || op.UndoneAt == nil {
		t.Errorf("op not marked undone: %+v", op)
	}
	if l.Backups.Len() != 0 {
		t.Error("backup not deleted after undo")
	}
	if l.Undo(id) {
		t.Error("second Undo() = true")
	}

	persisted, _ := l.Journal.Load()
	if !persisted[0].Undone {
		t.Error("undo not persisted")
	}
}

func TestUndo_CopyAndLinkDeleteTarget(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	source := filepath.Join(dir, "notes.txt")
	testutil.WriteFile(t, source, []byte("notes"))

	for _, mode := range []fm.OperationMode{fm.Copy, fm.Link} {
		target := filepath.Join(dir, "out", mode.String(), "notes.txt")
		id := copyFile(t, l, mode, source, target)
		if !l.Undo(id) {
			t.Fatalf("Undo(%v) = false", mode)
		}
		testutil.AssertMissing(t, target)
		if _, err := os.Stat(source); err != nil {
			t.Errorf("source removed by %v undo: %v", mode, err)
		}
	}
}

func TestCanUndo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)

	source := filepath.Join(dir, "a.txt")
	target := filepath.Join(dir, "out", "a.txt")
	testutil.WriteFile(t, source, []byte("a"))
	moved := moveFile(t, l, source, target)

	copySrc := filepath.Join(dir, "b.txt")
	copyDst := filepath.Join(dir, "out", "b.txt")
	testutil.WriteFile(t, copySrc, []byte("b"))
	copied := copyFile(t, l, fm.Copy, copySrc, copyDst)

	if l.CanUndo("op_unknown") {
		t.Error("CanUndo() = true for unknown id")
	}
	if !l.CanUndo(moved) || !l.CanUndo(copied) {
		t.Fatal("CanUndo() = false for fresh operations")
	}

	os.Remove(copyDst)
	if l.CanUndo(copied) {
		t.Error("CanUndo() = true with target gone")
	}
	if l.Undo(copied) {
		t.Error("Undo() = true with target gone")
	}

	l.Backups.Delete(backup.Key(moved, source))
	if l.CanUndo(moved) {
		t.Error("CanUndo() = true with backup gone")
	}
	if l.Undo(moved) {
		t.Error("Undo() = true with backup gone")
	}
	if _, err := os.Stat(target); err != nil {
		t.Error("failed undo removed the target")
	}
}

func TestUndo_ChecksumMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	source := filepath.Join(dir, "a.txt")
	target := filepath.Join(dir, "out", "a.txt")
	testutil.WriteFile(t, source, []byte("original"))
	id := moveFile(t, l, source, target)

	key := backup.Key(id, source)
	l.Backups.Put(key, bytes.NewReader([]byte("tampered")), 8)

	if l.Undo(id) {
		t.Fatal("Undo() = true with a tampered backup")
	}
	testutil.AssertMissing(t, source)
	if _, err := os.Stat(target); err != nil {
		t.Error("target removed by failed undo")
	}
}

func TestUndo_ChecksumMismatchCleanupFailureIsLogged(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fsmgr := testutil.NewFaultyFilesystemManager()
	fsmgr.FailOn("remove", "a.txt")
	logger := &testutil.RecordingLogger{}
	store := backup.NewMemoryStore()
	l, err := ledger.New(ledger.Options{
		Capacity:   100,
		Journal:    journal.NewMemoryJournal(),
		Backups:    store,
		Filesystem: fsmgr,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	source := filepath.Join(dir, "a.txt")
	target := filepath.Join(dir, "out", "b.txt")
	testutil.WriteFile(t, source, []byte("original"))
	id := moveFile(t, l, source, target)

	store.Put(backup.Key(id, source), bytes.NewReader([]byte("tampered")), 8)

	if l.Undo(id) {
		t.Fatal("Undo() = true with a tampered backup")
	}
	entry, ok := logger.Find("ERROR", "removing corrupt restore")
	if !ok {
		t.Fatalf("cleanup failure not logged; got %v", logger.Entries())
	}
	if got := entry.Attr("path"); got != source {
		t.Errorf("logged path = %v, want %s", got, source)
	}
	if entry.Attr("error") == nil {
		t.Error("logged entry has no error")
	}
	// The corrupt copy could not be removed and is still there.
	if got := testutil.ReadFile(t, source); string(got) != "tampered" {
		t.Errorf("source = %q, want the tampered restore", got)
	}
}

func TestUndo_RemoveFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fsmgr := testutil.NewFaultyFilesystemManager()
	fsmgr.FailOn("remove", "out")
	l := testutil.NewTestLedgerWithFS(t, 100, fsmgr)
	source := filepath.Join(dir, "a.txt")
	target := filepath.Join(dir, "out", "a.txt")
	testutil.WriteFile(t, source, []byte("a"))
	id := copyFile(t, l, fm.Copy, source, target)

	if l.Undo(id) {
		t.Fatal("Undo() = true although the target could not be removed")
	}
	if l.Find(id).Undone {
		t.Error("operation marked undone after a failed undo")
	}
}

func TestUndoBatch_PartialSuccess(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)

	var ids []string
	for i := 0; i < 3; i++ {
		source := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		testutil.WriteFile(t, source, []byte{byte(i)})
		ids = append(ids, copyFile(t, l, fm.Copy, source, filepath.Join(dir, "out", filepath.Base(source))))
	}
	os.Remove(filepath.Join(dir, "out", "f1.txt"))

	results := l.UndoBatch(append(ids, "op_missing"))
	want := map[string]bool{ids[0]: true, ids[1]: false, ids[2]: true, "op_missing": false}
	for id, ok := range want {
		if results[id] != ok {
			t.Errorf("results[%s] = %v, want %v", id, results[id], ok)
		}
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)

	empty := l.Statistics()
	if empty.Total != 0 || !empty.Oldest.IsZero() || !empty.Newest.IsZero() {
		t.Errorf("empty Statistics() = %+v", empty)
	}

	sizes := map[string]int{"a.txt": 10, "b.txt": 20, "c.txt": 30}
	modes := map[string]fm.OperationMode{"a.txt": fm.Move, "b.txt": fm.Copy, "c.txt": fm.Copy}
	var first, last string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		source := filepath.Join(dir, name)
		testutil.WriteFile(t, source, bytes.Repeat([]byte("x"), sizes[name]))
		id, err := l.Record(modes[name], source, filepath.Join(dir, "out", name))
		if err != nil {
			t.Fatal(err)
		}
		if first == "" {
			first = id
		}
		last = id
	}

	stats := l.Statistics()
	if stats.Total != 3 || stats.TotalSize != 60 {
		t.Errorf("Total = %d, TotalSize = %d", stats.Total, stats.TotalSize)
	}
	if stats.ByType[fm.Move] != 1 || stats.ByType[fm.Copy] != 2 || stats.ByType[fm.Link] != 0 {
		t.Errorf("ByType = %v", stats.ByType)
	}
	if !stats.Oldest.Equal(l.Find(first).Timestamp) || !stats.Newest.Equal(l.Find(last).Timestamp) {
		t.Errorf("Oldest/Newest = %v/%v", stats.Oldest, stats.Newest)
	}
}

func TestRecent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	var ids []string
	for i := 0; i < 5; i++ {
		id, err := l.Record(fm.Copy, filepath.Join(dir, "s"), filepath.Join(dir, fmt.Sprint(i)))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	recent := l.Recent(2)
	if len(recent) != 2 || recent[0].ID != ids[4] || recent[1].ID != ids[3] {
		t.Errorf("Recent(2) = %v", recent)
	}
	if all := l.Recent(0); len(all) != 5 || all[4].ID != ids[0] {
		t.Errorf("Recent(0) returned %d operations", len(all))
	}

	recent[0].Undone = true
	if l.Find(ids[4]).Undone {
		t.Error("Recent() exposed internal state")
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := testutil.NewTestLedger(t, 100)
	for i := 0; i < 3; i++ {
		source := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		testutil.WriteFile(t, source, []byte("data"))
		if _, err := l.Record(fm.Move, source, filepath.Join(dir, "out", filepath.Base(source))); err != nil {
			t.Fatal(err)
		}
	}

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if l.Len() != 0 || l.Backups.Len() != 0 {
		t.Errorf("Len() = %d, backups = %d after Clear", l.Len(), l.Backups.Len())
	}
	persisted, _ := l.Journal.Load()
	if len(persisted) != 0 {
		t.Error("Clear() not persisted")
	}
}

func TestLedger_PersistsAcrossRestart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "undo_history.json")
	store, err := backup.NewFileSystemStore(filepath.Join(dir, "backup"))
	if err != nil {
		t.Fatal(err)
	}
	open := func() *ledger.UndoLedger {
		l, err := ledger.New(ledger.Options{
			Capacity:   100,
			Journal:    journal.NewJSONJournal(journalPath, nil),
			Backups:    store,
			Filesystem: fmfs.NewOSFilesystemManager(),
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return l
	}

	source := filepath.Join(dir, "a.txt")
	target := filepath.Join(dir, "out", "a.txt")
	testutil.WriteFile(t, source, []byte("persist me"))
	id := moveFile(t, open(), source, target)

	if _, err := os.Stat(filepath.Join(dir, "backup", backup.Key(id, source))); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}

	reopened := open()
	if !reopened.CanUndo(id) {
		t.Fatal("CanUndo() = false after reopening")
	}
	if !reopened.Undo(id) {
		t.Fatal("Undo() = false after reopening")
	}
	if string(testutil.ReadFile(t, source)) != "persist me" {
		t.Error("restored content differs")
	}
}
