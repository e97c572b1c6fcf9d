package archive

import (
	"errors"
	"io"

	"github.com/bodgit/sevenzip"
	"github.com/mholt/archives"
)

// The 7z decoder does not verify entry checksums; a wrong password can
// decrypt to garbage without a read error.
var walkSevenZip = extractorWalk(func(password string) archives.Extractor {
	return archives.SevenZip{Password: password}
}, sevenZipCRC)

// sevenZipCRC returns the CRC-32 recorded for a file entry. Zero means the
// archive recorded none.
func sevenZipCRC(f archives.FileInfo) (uint32, bool) {
	h, ok := f.Header.(sevenzip.FileHeader)
	if !ok || f.IsDir() || h.CRC32 == 0 {
		return 0, false
	}
	return h.CRC32, true
}

// sevenZipPasswordProtected opens the archive without a password. An
// encrypted header fails the open. Encrypted content either fails the first
// read or, decrypted under the empty password, fails its checksum.
func sevenZipPasswordProtected(archivePath string) bool {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return isEncrypted(err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || f.UncompressedSize == 0 {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return isEncrypted(err)
		}
		if f.CRC32 != 0 {
			rc = newCRCReader(rc, f.Name, f.CRC32)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		return isEncrypted(err) || errors.Is(err, ErrChecksum)
	}
	return false
}

func isEncrypted(err error) bool {
	var re *sevenzip.ReadError
	return errors.As(err, &re) && re.Encrypted
}
