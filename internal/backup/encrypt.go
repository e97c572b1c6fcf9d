package backup

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/mazongYY/FileMover/internal/fm"
)

// PassphraseFunc supplies the passphrase protecting the private key.
type PassphraseFunc func() (string, error)

// EncryptedStore encrypts backups with the public key on Put. The private
// key is unlocked on the first Get and kept for the life of the store.
type EncryptedStore struct {
	inner      fm.BackupStore
	encryptor  fm.Encryptor
	passphrase PassphraseFunc

	mu  sync.Mutex
	dec fm.DecryptionContext
}

func NewEncryptedStore(inner fm.BackupStore, encryptor fm.Encryptor, passphrase PassphraseFunc) *EncryptedStore {
	return &EncryptedStore{inner: inner, encryptor: encryptor, passphrase: passphrase}
}

func (s *EncryptedStore) Put(key string, r io.Reader, size int64) (string, error) {
	counter := &countingReader{r: r}
	var ciphertext bytes.Buffer
	if err := s.encryptor.Encrypt(counter, &ciphertext); err != nil {
		return "", fmt.Errorf("encrypting backup %s: %w", key, err)
	}
	if counter.n != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return s.inner.Put(key, &ciphertext, int64(ciphertext.Len()))
}

func (s *EncryptedStore) Get(key string, w io.Writer) error {
	dec, err := s.unlock()
	if err != nil {
		return err
	}
	var ciphertext bytes.Buffer
	if err := s.inner.Get(key, &ciphertext); err != nil {
		return err
	}
	if err := dec.Decrypt(&ciphertext, w); err != nil {
		return fmt.Errorf("decrypting backup %s: %w", key, err)
	}
	return nil
}

func (s *EncryptedStore) unlock() (fm.DecryptionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec != nil {
		return s.dec, nil
	}
	if s.passphrase == nil {
		return nil, fmt.Errorf("no passphrase source for encrypted backups")
	}
	passphrase, err := s.passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	dec, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking backup key: %w", err)
	}
	s.dec = dec
	return dec, nil
}

func (s *EncryptedStore) Exists(key string) (bool, error) { return s.inner.Exists(key) }
func (s *EncryptedStore) Delete(key string) error         { return s.inner.Delete(key) }

// ValidateSetup also requires the key pair to exist.
func (s *EncryptedStore) ValidateSetup() error {
	if !s.encryptor.IsConfigured() {
		return fmt.Errorf("backup encryption is enabled but no key pair is configured")
	}
	return s.inner.ValidateSetup()
}

var _ fm.BackupStore = (*EncryptedStore)(nil)
