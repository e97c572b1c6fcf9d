package archive

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// ErrChecksum is returned when an entry's content does not match the CRC-32
// recorded in the archive. Under a wrong password it is usually the only
// symptom.
var ErrChecksum = errors.New("archive entry checksum mismatch")

type crcReader struct {
	rc   io.ReadCloser
	name string
	want uint32
	h    hash.Hash32
}

func (r *crcReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.h.Write(p[:n])
	if err == io.EOF && r.h.Sum32() != r.want {
		return n, fmt.Errorf("%w: %s", ErrChecksum, r.name)
	}
	return n, err
}

func (r *crcReader) Close() error {
	return r.rc.Close()
}

func newCRCReader(rc io.ReadCloser, name string, want uint32) io.ReadCloser {
	return &crcReader{rc: rc, name: name, want: want, h: crc32.NewIEEE()}
}

// verifyCRC wraps an entry opener so the returned reader checks want at EOF.
func verifyCRC(open func() (io.ReadCloser, error), name string, want uint32) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		rc, err := open()
		if err != nil {
			return nil, err
		}
		return newCRCReader(rc, name, want), nil
	}
}
