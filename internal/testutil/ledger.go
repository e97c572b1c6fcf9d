package testutil

import (
	"testing"
	"time"

	"github.com/mazongYY/FileMover/internal/backup"
	"github.com/mazongYY/FileMover/internal/fm"
	fmfs "github.com/mazongYY/FileMover/internal/fs"
	"github.com/mazongYY/FileMover/internal/journal"
	"github.com/mazongYY/FileMover/internal/ledger"
)

// TestLedger is an UndoLedger over an in-memory journal and backup store,
// with both exposed for assertions.
type TestLedger struct {
	*ledger.UndoLedger
	Journal *journal.MemoryJournal
	Backups *backup.MemoryStore
	Clock   *StubClock
}

// NewTestLedger creates a ledger on the real filesystem whose clock ticks one
// millisecond per read.
func NewTestLedger(t *testing.T, capacity int) *TestLedger {
	t.Helper()
	return NewTestLedgerWithFS(t, capacity, fmfs.NewOSFilesystemManager())
}

// NewTestLedgerWithFS is NewTestLedger over the given filesystem manager.
func NewTestLedgerWithFS(t *testing.T, capacity int, fsmgr fm.FilesystemManager) *TestLedger {
	t.Helper()
	j := journal.NewMemoryJournal()
	store := backup.NewMemoryStore()
	clock := TickingClock(time.Millisecond)
	l, err := ledger.New(ledger.Options{
		Capacity:   capacity,
		Journal:    j,
		Backups:    store,
		Filesystem: fsmgr,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("creating test ledger: %v", err)
	}
	return &TestLedger{UndoLedger: l, Journal: j, Backups: store, Clock: clock}
}
