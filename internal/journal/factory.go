package journal

import (
	"fmt"
	"path/filepath"

	"github.com/mazongYY/FileMover/internal/config"
	"github.com/mazongYY/FileMover/internal/database"
	"github.com/mazongYY/FileMover/internal/fm"
)

// SQLiteFileName is the journal database created inside the data dir.
const SQLiteFileName = "journal.db"

// NewJournalFromConfig creates a Journal based on the journal config type.
func NewJournalFromConfig(cfg config.JournalConfig, logger fm.Logger) (fm.Journal, error) {
	switch cfg.Type {
	case "json", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("json journal requires path to be set")
		}
		return NewJSONJournal(cfg.Path, logger), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite journal")
		}
		return database.NewSQLiteJournal(filepath.Join(cfg.DataDir, SQLiteFileName))
	case "memory":
		return NewMemoryJournal(), nil
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}
