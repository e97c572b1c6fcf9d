// Package ledger implements the bounded undo log: every file operation is
// journaled before it happens, moves are backed up, and any retained
// operation can later be reversed.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/mazongYY/FileMover/internal/backup"
	"github.com/mazongYY/FileMover/internal/fm"
)

// DefaultRecentLimit is the history length shown when no limit is given.
const DefaultRecentLimit = 20

// UndoLedger is a write-through journal of file operations. All methods are
// safe for concurrent use; record, evict and persist happen under one lock.
type UndoLedger struct {
	mu       sync.Mutex
	ops      []*fm.FileOperation // oldest first
	capacity int

	journal fm.Journal
	backups fm.BackupStore
	fsmgr   fm.FilesystemManager
	logger  fm.Logger
	clock   fm.Clock
	ids     fm.IDGenerator
}

var _ fm.Ledger = (*UndoLedger)(nil)

// Options carries the collaborators of an UndoLedger. Clock defaults to the
// real clock and IDs to time-derived operation ids.
type Options struct {
	Capacity   int
	Journal    fm.Journal
	Backups    fm.BackupStore
	Filesystem fm.FilesystemManager
	Logger     fm.Logger
	Clock      fm.Clock
	IDs        fm.IDGenerator
}

// New loads the journal and returns a ledger over it. A journal holding more
// entries than the capacity is trimmed immediately.
func New(opts Options) (*UndoLedger, error) {
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("%w: ledger capacity must be positive, got %d", fm.ErrInvalidInput, opts.Capacity)
	}
	if opts.Journal == nil || opts.Backups == nil || opts.Filesystem == nil {
		return nil, fmt.Errorf("%w: ledger requires a journal, a backup store and a filesystem", fm.ErrInvalidInput)
	}
	if opts.Logger == nil {
		opts.Logger = fm.NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = fm.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = fm.OperationIDGenerator{Clock: opts.Clock}
	}

	ops, err := opts.Journal.Load()
	if err != nil {
		return nil, fmt.Errorf("loading undo journal: %w", err)
	}

	l := &UndoLedger{
		ops:      ops,
		capacity: opts.Capacity,
		journal:  opts.Journal,
		backups:  opts.Backups,
		fsmgr:    opts.Filesystem,
		logger:   opts.Logger,
		clock:    opts.Clock,
		ids:      opts.IDs,
	}
	l.logger.Info("undo history loaded", "operations", len(ops))

	if len(l.ops) > l.capacity {
		evicted := l.evictLocked()
		if err := l.persistLocked(); err != nil {
			return nil, err
		}
		l.deleteBackups(evicted)
	}
	return l, nil
}

// Capacity returns the maximum number of retained operations.
func (l *UndoLedger) Capacity() int { return l.capacity }

// Len returns the number of retained operations.
func (l *UndoLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

// Record journals an operation that is about to happen and returns its id.
// For moves the source is backed up first. A failed backup is logged and
// leaves the entry without one, so it will never be undoable. A failed
// journal write leaves the ledger unchanged and is returned.
func (l *UndoLedger) Record(mode fm.OperationMode, source, target string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	op := &fm.FileOperation{
		ID:         l.uniqueIDLocked(l.ids.New()),
		Type:       mode,
		SourcePath: source,
		TargetPath: target,
		Timestamp:  l.clock.Now(),
	}

	info, err := l.fsmgr.Stat(source)
	if err == nil && info.Mode().IsRegular() {
		op.FileSize = info.Size()
	}

	if mode == fm.Move && err == nil && info.Mode().IsRegular() {
		location, hash, err := l.backup(op)
		if err != nil {
			l.logger.Error("backup failed, operation will not be undoable", "id", op.ID, "source", source, "error", err)
		} else {
			op.BackupPath = location
			op.FileHash = hash
		}
	}

	previous := l.ops
	l.ops = append(append(make([]*fm.FileOperation, 0, len(previous)+1), previous...), op)
	evicted := l.evictLocked()

	if err := l.persistLocked(); err != nil {
		l.ops = previous
		if op.HasBackup() {
			l.deleteBackup(op)
		}
		return "", err
	}
	l.deleteBackups(evicted)

	l.logger.Info("operation recorded", "id", op.ID, "type", mode.String(),
		"source", filepath.Base(source), "target", filepath.Base(target))
	return op.ID, nil
}

// backup streams the source into the backup store, hashing it on the way.
func (l *UndoLedger) backup(op *fm.FileOperation) (string, string, error) {
	src, err := l.fsmgr.Open(op.SourcePath)
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	h := sha256.New()
	location, err := l.backups.Put(backup.Key(op.ID, op.SourcePath), io.TeeReader(src, h), op.FileSize)
	if err != nil {
		return "", "", err
	}
	l.logger.Debug("backup created", "id", op.ID, "location", location)
	return location, hex.EncodeToString(h.Sum(nil)), nil
}

// uniqueIDLocked appends _1, _2, ... to id until it is not in the journal.
func (l *UndoLedger) uniqueIDLocked(id string) string {
	if l.indexLocked(id) < 0 {
		return id
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", id, i)
		if l.indexLocked(candidate) < 0 {
			return candidate
		}
	}
}

func (l *UndoLedger) indexLocked(id string) int {
	for i, op := range l.ops {
		if op.ID == id {
			return i
		}
	}
	return -1
}

// evictLocked drops the oldest entries beyond capacity and returns them.
// Their backups are deleted by the caller once the journal is persisted.
func (l *UndoLedger) evictLocked() []*fm.FileOperation {
	over := len(l.ops) - l.capacity
	if over <= 0 {
		return nil
	}
	evicted := l.ops[:over]
	l.ops = l.ops[over:]
	for _, op := range evicted {
		l.logger.Info("operation evicted", "id", op.ID)
	}
	return evicted
}

func (l *UndoLedger) persistLocked() error {
	if err := l.journal.Save(l.ops, l.clock.Now()); err != nil {
		return fmt.Errorf("saving undo journal: %w", err)
	}
	return nil
}

func (l *UndoLedger) deleteBackups(ops []*fm.FileOperation) {
	for _, op := range ops {
		if op.HasBackup() {
			l.deleteBackup(op)
		}
	}
}

func (l *UndoLedger) deleteBackup(op *fm.FileOperation) {
	if err := l.backups.Delete(backup.Key(op.ID, op.SourcePath)); err != nil {
		l.logger.Error("deleting backup", "id", op.ID, "error", err)
		return
	}
	l.logger.Debug("backup deleted", "id", op.ID)
}

// CanUndo reports whether id names a retained, not yet undone operation
// whose target still exists and, for moves, whose backup is still stored.
func (l *UndoLedger) CanUndo(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return false
	}
	return l.checkUndoableLocked(l.ops[i]) == nil
}

func (l *UndoLedger) checkUndoableLocked(op *fm.FileOperation) error {
	if op.Undone {
		return &fm.UndoError{OperationID: op.ID, Reason: "already undone"}
	}
	if !l.fsmgr.Exists(op.TargetPath) {
		return &fm.UndoError{OperationID: op.ID, Reason: "target no longer exists"}
	}
	if op.Type != fm.Move {
		return nil
	}
	if !op.HasBackup() {
		return &fm.UndoError{OperationID: op.ID, Reason: "no backup was taken"}
	}
	ok, err := l.backups.Exists(backup.Key(op.ID, op.SourcePath))
	if err != nil {
		return &fm.UndoError{OperationID: op.ID, Reason: "checking backup", Err: err}
	}
	if !ok {
		return &fm.UndoError{OperationID: op.ID, Reason: "backup missing"}
	}
	return nil
}

// Undo reverses one operation. A move is reversed by restoring the backup to
// the source path and deleting the target; copies and links by deleting the
// target. Failures are logged and reported as false.
func (l *UndoLedger) Undo(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexLocked(id)
	if i < 0 {
		l.logger.Warn("undo failed", "error", &fm.UndoError{OperationID: id, Reason: "unknown operation"})
		return false
	}
	op := l.ops[i]
	if err := l.checkUndoableLocked(op); err != nil {
		l.logger.Warn("undo failed", "error", err)
		return false
	}

	if op.Type == fm.Move {
		if err := l.restore(op); err != nil {
			l.logger.Error("undo failed", "error", &fm.UndoError{OperationID: id, Reason: "restoring backup", Err: err})
			return false
		}
	}
	if err := l.fsmgr.Remove(op.TargetPath); err != nil {
		l.logger.Error("undo failed", "error", &fm.UndoError{OperationID: id, Reason: "removing target", Err: err})
		return false
	}

	undone := *op
	now := l.clock.Now()
	undone.Undone = true
	undone.UndoneAt = &now
	l.ops[i] = &undone
	if op.HasBackup() {
		l.deleteBackup(op)
	}
	// The filesystem is already reversed, so a journal failure does not
	// make the undo unsuccessful.
	if err := l.persistLocked(); err != nil {
		l.logger.Error("recording undo", "id", id, "error", err)
	}

	l.logger.Info("operation undone", "id", id, "type", op.Type.String(), "source", op.SourcePath)
	return true
}

// restore writes the backup back to the source path, verifying its hash.
func (l *UndoLedger) restore(op *fm.FileOperation) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(l.backups.Get(backup.Key(op.ID, op.SourcePath), pw))
	}()

	h := sha256.New()
	err := l.fsmgr.WriteFile(op.SourcePath, io.TeeReader(pr, h))
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return err
	}

	if op.FileHash != "" {
		if got := hex.EncodeToString(h.Sum(nil)); got != op.FileHash {
			if rerr := l.fsmgr.Remove(op.SourcePath); rerr != nil {
				l.logger.Error("removing corrupt restore", "id", op.ID, "path", op.SourcePath, "error", rerr)
			}
			return fmt.Errorf("backup checksum mismatch: got %s, want %s", got, op.FileHash)
		}
	}
	return nil
}

// UndoBatch undoes each id independently.
func (l *UndoLedger) UndoBatch(ids []string) map[string]bool {
	results := make(map[string]bool, len(ids))
	for _, id := range ids {
		results[id] = l.Undo(id)
	}
	return results
}

// Statistics summarises every retained operation, undone ones included.
func (l *UndoLedger) Statistics() fm.Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := fm.Statistics{ByType: make(map[fm.OperationMode]int)}
	for _, op := range l.ops {
		stats.Total++
		stats.ByType[op.Type]++
		stats.TotalSize += op.FileSize
		if stats.Oldest.IsZero() || op.Timestamp.Before(stats.Oldest) {
			stats.Oldest = op.Timestamp
		}
		if op.Timestamp.After(stats.Newest) {
			stats.Newest = op.Timestamp
		}
	}
	return stats
}

// Recent returns copies of up to limit operations, newest first.
func (l *UndoLedger) Recent(limit int) []*fm.FileOperation {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.ops)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*fm.FileOperation, 0, n)
	for i := len(l.ops) - 1; i >= 0 && len(out) < n; i-- {
		op := *l.ops[i]
		out = append(out, &op)
	}
	return out
}

// Find returns a copy of the operation with the given id, or nil.
func (l *UndoLedger) Find(id string) *fm.FileOperation {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return nil
	}
	op := *l.ops[i]
	return &op
}

// Clear deletes every backup and empties the journal.
func (l *UndoLedger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.deleteBackups(l.ops)
	cleared := len(l.ops)
	l.ops = nil
	if err := l.persistLocked(); err != nil {
		return err
	}
	l.logger.Info("undo history cleared", "operations", cleared)
	return nil
}
