package testutil

import (
	"fmt"
	"os"
	"sync"

	"github.com/mazongYY/FileMover/internal/fm"
)

// RecordCall captures one Record invocation.
type RecordCall struct {
	Mode   fm.OperationMode
	Source string
	Target string
	// SourceExisted and TargetExisted describe the filesystem at the moment
	// Record was called.
	SourceExisted bool
	TargetExisted bool
}

// StubRecorder records calls and optionally fails them.
type StubRecorder struct {
	mu    sync.Mutex
	Calls []RecordCall
	Err   error
}

func (r *StubRecorder) Record(mode fm.OperationMode, source, target string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, srcErr := os.Stat(source)
	_, dstErr := os.Stat(target)
	r.Calls = append(r.Calls, RecordCall{
		Mode:          mode,
		Source:        source,
		Target:        target,
		SourceExisted: srcErr == nil,
		TargetExisted: dstErr == nil,
	})
	if r.Err != nil {
		return "", r.Err
	}
	return fmt.Sprintf("op-%d", len(r.Calls)), nil
}

var _ fm.Recorder = (*StubRecorder)(nil)
