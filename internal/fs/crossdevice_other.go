//go:build !unix

package fs

import (
	"errors"
	"os"
	"strings"
)

// isCrossDevice reports whether a rename failed because source and target
// are on different volumes.
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		err = linkErr.Err
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cross-device") || strings.Contains(msg, "different disk drive")
}
