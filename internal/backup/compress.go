package backup

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/mazongYY/FileMover/internal/fm"
)

// DefaultCompressionLevel is zstd level 3, the zstd command-line default.
const DefaultCompressionLevel = 3

// CompressedStore zstd-compresses backups before handing them to the
// wrapped store.
type CompressedStore struct {
	inner   fm.BackupStore
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressedStore wraps inner. Level follows the zstd command-line scale.
func NewCompressedStore(inner fm.BackupStore, level int) (*CompressedStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &CompressedStore{inner: inner, encoder: encoder, decoder: decoder}, nil
}

func (s *CompressedStore) Put(key string, r io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read backup: %w", err)
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	compressed := s.encoder.EncodeAll(data, nil)
	return s.inner.Put(key, bytes.NewReader(compressed), int64(len(compressed)))
}

func (s *CompressedStore) Get(key string, w io.Writer) error {
	var buf bytes.Buffer
	if err := s.inner.Get(key, &buf); err != nil {
		return err
	}
	data, err := s.decoder.DecodeAll(buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("decompressing backup %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

func (s *CompressedStore) Exists(key string) (bool, error) { return s.inner.Exists(key) }
func (s *CompressedStore) Delete(key string) error         { return s.inner.Delete(key) }
func (s *CompressedStore) ValidateSetup() error            { return s.inner.ValidateSetup() }

var _ fm.BackupStore = (*CompressedStore)(nil)
