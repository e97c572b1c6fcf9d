package fm

import (
	"fmt"
	"strings"
	"time"
)

// OperationMode selects how a classified file reaches its destination.
type OperationMode int

const (
	Move OperationMode = iota
	Copy
	Link
)

func (m OperationMode) String() string {
	switch m {
	case Move:
		return "move"
	case Copy:
		return "copy"
	case Link:
		return "link"
	default:
		return fmt.Sprintf("OperationMode(%d)", int(m))
	}
}

// ParseOperationMode accepts "move", "copy" or "link" in any case.
func ParseOperationMode(s string) (OperationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "move":
		return Move, nil
	case "copy":
		return Copy, nil
	case "link", "hardlink":
		return Link, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation mode %q", ErrInvalidInput, s)
	}
}

// MarshalText stores modes by name in the journal.
func (m OperationMode) MarshalText() ([]byte, error) {
	switch m {
	case Move, Copy, Link:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("invalid operation mode %d", int(m))
	}
}

func (m *OperationMode) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FileOperation is one journal entry. It is written before the filesystem
// mutation it describes takes place.
type FileOperation struct {
	ID         string        `json:"operation_id"`
	Type       OperationMode `json:"operation_type"`
	SourcePath string        `json:"source_path"`
	TargetPath string        `json:"target_path"`
	Timestamp  time.Time     `json:"timestamp"`
	FileSize   int64         `json:"file_size"`
	// FileHash is the SHA-256 of the backed up bytes. Only set for moves.
	FileHash   string     `json:"file_hash,omitempty"`
	BackupPath string     `json:"backup_path,omitempty"`
	Undone     bool       `json:"undone"`
	UndoneAt   *time.Time `json:"undone_at,omitempty"`
}

// HasBackup reports whether a backup was taken for this operation.
func (op *FileOperation) HasBackup() bool {
	return op.BackupPath != ""
}

// Statistics summarises the ledger contents.
type Statistics struct {
	Total     int
	ByType    map[OperationMode]int
	TotalSize int64
	// Oldest and Newest are zero when the ledger is empty.
	Oldest time.Time
	Newest time.Time
}
