// Package journal persists the undo ledger's operation list.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mazongYY/FileMover/internal/fm"
)

// document is the on-disk layout of the JSON journal.
type document struct {
	Operations  []*fm.FileOperation `json:"operations"`
	LastUpdated time.Time           `json:"last_updated"`
}

// JSONJournal stores the journal as a single indented JSON document that is
// rewritten atomically on every Save.
type JSONJournal struct {
	path   string
	logger fm.Logger
}

var _ fm.Journal = (*JSONJournal)(nil)

func NewJSONJournal(path string, logger fm.Logger) *JSONJournal {
	if logger == nil {
		logger = fm.NewNopLogger()
	}
	return &JSONJournal{path: path, logger: logger}
}

// Load reads the journal. A missing file yields an empty list. A file that
// cannot be parsed is renamed to <path>.corrupt-<unix> and also yields an
// empty list, so that one bad write never locks the user out of new runs.
func (j *JSONJournal) Load() ([]*fm.FileOperation, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", j.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", j.path, time.Now().Unix())
		if renameErr := os.Rename(j.path, aside); renameErr != nil {
			return nil, fmt.Errorf("journal %s is corrupt and could not be moved aside: %w", j.path, renameErr)
		}
		j.logger.Warn("journal corrupt, starting empty", "path", j.path, "moved_to", aside, "error", err)
		return nil, nil
	}

	ops := doc.Operations[:0]
	for _, op := range doc.Operations {
		if op == nil || op.ID == "" {
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Save writes ops to a temp file next to the journal and renames it into place.
func (j *JSONJournal) Save(ops []*fm.FileOperation, updated time.Time) error {
	if ops == nil {
		ops = []*fm.FileOperation{}
	}
	data, err := json.MarshalIndent(document{Operations: ops, LastUpdated: updated}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding journal: %w", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-journal-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (j *JSONJournal) Close() error { return nil }
