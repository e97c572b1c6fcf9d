// Package database stores the undo journal in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mazongYY/FileMover/internal/database/migrations"
	"github.com/mazongYY/FileMover/internal/fm"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const timeLayout = time.RFC3339Nano

// SQLiteJournal implements fm.Journal. Save replaces every row in one
// transaction, so a reader never sees a half-written journal.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

var _ fm.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (creating if needed) the journal database at path
// and migrates it to the latest schema. path may be ":memory:".
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal database: %w", err)
	}
	return &SQLiteJournal{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Load returns every operation ordered by position.
func (j *SQLiteJournal) Load() ([]*fm.FileOperation, error) {
	rows, err := j.db.Query(`
		SELECT id, operation_type, source_path, target_path, timestamp,
		       file_size, file_hash, backup_path, undone, undone_at
		FROM operations
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("loading journal: %w", err)
	}
	defer rows.Close()

	var ops []*fm.FileOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading journal: %w", err)
	}
	return ops, nil
}

func scanOperation(rows *sql.Rows) (*fm.FileOperation, error) {
	var (
		op        fm.FileOperation
		opType    string
		timestamp string
		undoneAt  sql.NullString
	)
	if err := rows.Scan(&op.ID, &opType, &op.SourcePath, &op.TargetPath, &timestamp,
		&op.FileSize, &op.FileHash, &op.BackupPath, &op.Undone, &undoneAt); err != nil {
		return nil, fmt.Errorf("scanning journal row: %w", err)
	}

	mode, err := fm.ParseOperationMode(opType)
	if err != nil {
		return nil, fmt.Errorf("journal row %s: %w", op.ID, err)
	}
	op.Type = mode

	op.Timestamp, err = time.Parse(timeLayout, timestamp)
	if err != nil {
		return nil, fmt.Errorf("journal row %s: bad timestamp: %w", op.ID, err)
	}
	if undoneAt.Valid {
		at, err := time.Parse(timeLayout, undoneAt.String)
		if err != nil {
			return nil, fmt.Errorf("journal row %s: bad undone_at: %w", op.ID, err)
		}
		op.UndoneAt = &at
	}
	return &op, nil
}

// Save replaces the journal contents with ops.
func (j *SQLiteJournal) Save(ops []*fm.FileOperation, updated time.Time) (err error) {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning journal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM operations"); err != nil {
		return fmt.Errorf("clearing journal: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO operations (id, position, operation_type, source_path, target_path,
		                        timestamp, file_size, file_hash, backup_path, undone, undone_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing journal insert: %w", err)
	}
	defer stmt.Close()

	for i, op := range ops {
		var undoneAt sql.NullString
		if op.UndoneAt != nil {
			undoneAt = sql.NullString{String: op.UndoneAt.UTC().Format(timeLayout), Valid: true}
		}
		if _, err = stmt.Exec(op.ID, i, op.Type.String(), op.SourcePath, op.TargetPath,
			op.Timestamp.UTC().Format(timeLayout), op.FileSize, op.FileHash, op.BackupPath,
			op.Undone, undoneAt); err != nil {
			return fmt.Errorf("writing journal entry %s: %w", op.ID, err)
		}
	}

	if _, err = tx.Exec(`
		INSERT INTO journal_meta (key, value) VALUES ('last_updated', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		updated.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("writing journal metadata: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing journal: %w", err)
	}
	return nil
}

// LastUpdated returns the time of the last Save, or the zero time if the
// journal has never been saved.
func (j *SQLiteJournal) LastUpdated() (time.Time, error) {
	var value string
	err := j.db.QueryRow("SELECT value FROM journal_meta WHERE key = 'last_updated'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading journal metadata: %w", err)
	}
	return time.Parse(timeLayout, value)
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
