//go:build unix

package fs

import (
	"os"
	"syscall"
	"testing"
)

func TestIsCrossDevice(t *testing.T) {
	err := &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}
	if !isCrossDevice(err) {
		t.Error("EXDEV should be a cross-device error")
	}
	if isCrossDevice(&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.ENOENT}) {
		t.Error("ENOENT should not be a cross-device error")
	}
}
