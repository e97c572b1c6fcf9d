package archive

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/yeka/zip"

	"github.com/mazongYY/FileMover/internal/fm"
)

func walkZip(ctx context.Context, archivePath, password string, fn func(m member) error) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(zipMember(f, password))
		if errors.Is(err, errStopWalk) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func zipMember(f *zip.File, password string) member {
	info := f.FileInfo()
	return member{
		ArchiveEntry: fm.ArchiveEntry{
			Name:       f.Name,
			Size:       int64(f.UncompressedSize64),
			Modified:   f.ModTime(),
			HasModTime: f.ModifiedDate != 0,
			IsDir:      info.IsDir(),
		},
		symlink: info.Mode()&os.ModeSymlink != 0,
		open: func() (io.ReadCloser, error) {
			// SetPassword also marks the entry encrypted, so only call it
			// for entries that already are.
			if f.IsEncrypted() {
				if password == "" {
					return nil, zip.ErrPassword
				}
				f.SetPassword(password)
			}
			return f.Open()
		},
	}
}

// zipPasswordProtected checks the encryption flag of every entry, then
// falls back to a test read of the first file. Both ZipCrypto and WinZip AES
// entries carry the flag.
func zipPasswordProtected(archivePath string) bool {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return false
	}
	defer r.Close()

	for _, f := range r.File {
		if f.IsEncrypted() {
			return true
		}
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return errors.Is(err, zip.ErrPassword)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		return errors.Is(err, zip.ErrPassword)
	}
	return false
}
