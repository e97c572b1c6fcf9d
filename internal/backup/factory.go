package backup

import (
	"context"
	"fmt"

	"github.com/mazongYY/FileMover/internal/config"
	"github.com/mazongYY/FileMover/internal/fm"
)

// NewStoreFromConfig creates a BackupStore based on the backup config type,
// layering encryption and compression on top when enabled. Backups are
// compressed before they are encrypted.
func NewStoreFromConfig(ctx context.Context, cfg config.BackupConfig, encryptor fm.Encryptor, passphrase PassphraseFunc) (fm.BackupStore, error) {
	var store fm.BackupStore
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "s3":
		s3Store, err := NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	case "filesystem", "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem backup store requires root to be set")
		}
		fsStore, err := NewFileSystemStore(cfg.Root)
		if err != nil {
			return nil, err
		}
		store = fsStore
	default:
		return nil, fmt.Errorf("unknown backup store type: %s", cfg.Type)
	}

	if cfg.Encrypt {
		if encryptor == nil {
			return nil, fmt.Errorf("backup encryption requires an encryptor")
		}
		store = NewEncryptedStore(store, encryptor, passphrase)
	}
	if cfg.Compress {
		compressed, err := NewCompressedStore(store, DefaultCompressionLevel)
		if err != nil {
			return nil, err
		}
		store = compressed
	}
	return store, nil
}
