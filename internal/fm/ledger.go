package fm

import (
	"io"
	"time"
)

// Recorder journals an operation before it happens and returns its id.
// The executor depends on this narrow view so that runs without undo support
// can pass nil.
type Recorder interface {
	Record(mode OperationMode, source, target string) (string, error)
}

// Ledger is the bounded, persistent undo log.
// Undo methods never return errors; failures are logged and reported as false.
type Ledger interface {
	Recorder

	// CanUndo reports whether the operation exists, is not yet undone, its
	// target still exists and (for moves) its backup is still available.
	CanUndo(id string) bool

	// Undo reverses one operation.
	Undo(id string) bool

	// UndoBatch reverses each id independently.
	UndoBatch(ids []string) map[string]bool

	// Statistics summarises every retained operation.
	Statistics() Statistics

	// Recent returns up to limit operations, newest first. A limit of zero
	// or less returns every operation.
	Recent(limit int) []*FileOperation

	// Find returns a copy of the operation with the given id, or nil.
	Find(id string) *FileOperation

	// Clear deletes every backup and empties the journal.
	Clear() error
}

// Journal persists the ordered list of operations. Save rewrites the whole
// document; callers serialise access.
type Journal interface {
	// Load returns the persisted operations, oldest first. A journal that
	// has never been written yields an empty list.
	Load() ([]*FileOperation, error)

	// Save replaces the persisted operations.
	Save(ops []*FileOperation, updated time.Time) error

	Close() error
}

// BackupStore holds the pre-mutation copies taken for reversible operations.
// All operations stream through io.Reader/io.Writer.
type BackupStore interface {
	// Put stores size bytes read from r under key and returns the location
	// recorded in the journal.
	Put(key string, r io.Reader, size int64) (string, error)

	// Get writes the bytes stored under key to w.
	Get(key string, w io.Writer) error

	// Exists reports whether key is stored.
	Exists(key string) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// ValidateSetup verifies that the store is accessible.
	ValidateSetup() error
}

// Encryptor handles encryption of backups and unlocking for decryption.
// Encryption uses the public key only; decryption requires a passphrase to
// unlock the private key.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a DecryptionContext.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
