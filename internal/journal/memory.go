package journal

import (
	"sync"
	"time"

	"github.com/mazongYY/FileMover/internal/fm"
)

// MemoryJournal keeps the journal in memory. Useful for testing; it can be
// told to fail the next Save.
type MemoryJournal struct {
	mu       sync.Mutex
	ops      []fm.FileOperation
	updated  time.Time
	saves    int
	FailSave error
}

var _ fm.Journal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Load returns copies, so callers cannot mutate the stored journal.
func (j *MemoryJournal) Load() ([]*fm.FileOperation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*fm.FileOperation, len(j.ops))
	for i := range j.ops {
		op := j.ops[i]
		out[i] = &op
	}
	return out, nil
}

func (j *MemoryJournal) Save(ops []*fm.FileOperation, updated time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FailSave != nil {
		return j.FailSave
	}
	j.ops = make([]fm.FileOperation, len(ops))
	for i, op := range ops {
		j.ops[i] = *op
	}
	j.updated = updated
	j.saves++
	return nil
}

// Saves returns the number of successful Save calls.
func (j *MemoryJournal) Saves() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.saves
}

// LastUpdated returns the time passed to the last successful Save.
func (j *MemoryJournal) LastUpdated() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.updated
}

func (j *MemoryJournal) Close() error { return nil }
