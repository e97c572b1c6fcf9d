package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mazongYY/FileMover/internal/fm"
)

// testMagic marks backups written by TestEncryptor.
var testMagic = []byte("FMENC1\n")

// testMask is XORed over every payload byte so stored backups never equal
// the source file.
const testMask byte = 0x5a

// ErrWrongPassphrase is returned by TestEncryptor.Unlock when the passphrase
// differs from the one given to Setup.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// TestEncryptor is a deterministic, key-free Encryptor for tests and for
// the "test" encryption type. Output is the magic header followed by the
// masked payload. Until Setup is called any passphrase unlocks it.
type TestEncryptor struct {
	passphrase string
	isSetup    bool
}

var _ fm.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup records the passphrase later Unlock calls must present.
func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.isSetup = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(testMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := mask(r, bw); err != nil {
		return err
	}
	return bw.Flush()
}

func (e *TestEncryptor) Unlock(passphrase string) (fm.DecryptionContext, error) {
	if e.isSetup && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return testDecryptor{}, nil
}

// IsConfigured is always true; there are no key files.
func (e *TestEncryptor) IsConfigured() bool {
	return true
}

type testDecryptor struct{}

func (testDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return fmt.Errorf("not a test-encrypted backup")
	}
	bw := bufio.NewWriter(w)
	if err := mask(r, bw); err != nil {
		return err
	}
	return bw.Flush()
}

func mask(r io.Reader, w io.Writer) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			buf[i] ^= testMask
		}
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("writing payload: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
	}
}
