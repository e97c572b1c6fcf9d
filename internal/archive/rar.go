package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mholt/archives"
	"github.com/nwaples/rardecode/v2"

	"github.com/mazongYY/FileMover/internal/fm"
)

// extractorWalk adapts an archives.Extractor to walkFunc. The archive is
// streamed once; member contents must be consumed inside fn. When checksum
// reports a CRC-32 for an entry, reading that entry fails with ErrChecksum
// on a mismatch.
func extractorWalk(newExtractor func(password string) archives.Extractor, checksum func(f archives.FileInfo) (uint32, bool)) walkFunc {
	return func(ctx context.Context, archivePath, password string, fn func(m member) error) error {
		file, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer file.Close()

		handler := func(ctx context.Context, f archives.FileInfo) error {
			m := extractorMember(f)
			if checksum != nil {
				if sum, ok := checksum(f); ok {
					m.open = verifyCRC(m.open, m.Name, sum)
				}
			}
			return fn(m)
		}
		err = newExtractor(password).Extract(ctx, file, handler)
		if errors.Is(err, errStopWalk) {
			return nil
		}
		return err
	}
}

func extractorMember(f archives.FileInfo) member {
	mtime := f.ModTime()
	name := f.NameInArchive
	// RAR stores directories without the trailing slash ZIP and 7z use.
	if f.IsDir() && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return member{
		ArchiveEntry: fm.ArchiveEntry{
			Name:       name,
			Size:       f.Size(),
			Modified:   mtime,
			HasModTime: !mtime.IsZero(),
			IsDir:      f.IsDir(),
		},
		symlink: f.Mode()&os.ModeSymlink != 0 || f.LinkTarget != "",
		open: func() (io.ReadCloser, error) {
			return f.Open()
		},
	}
}

// rardecode verifies file checksums itself.
var walkRar = extractorWalk(func(password string) archives.Extractor {
	return archives.Rar{Password: password}
}, nil)

// rarPasswordProtected reads the first file without a password. Encrypted
// headers fail the open and encrypted files fail the read.
func rarPasswordProtected(archivePath string) bool {
	err := walkRar(context.Background(), archivePath, "", func(m member) error {
		if m.IsDir || m.symlink {
			return nil
		}
		rc, err := m.open()
		if err != nil {
			return err
		}
		defer rc.Close()
		if _, err := io.Copy(io.Discard, rc); err != nil {
			return err
		}
		return errStopWalk
	})
	return isPasswordError(err)
}

func isPasswordError(err error) bool {
	return errors.Is(err, rardecode.ErrArchiveEncrypted) ||
		errors.Is(err, rardecode.ErrArchivedFileEncrypted) ||
		errors.Is(err, rardecode.ErrBadPassword)
}
