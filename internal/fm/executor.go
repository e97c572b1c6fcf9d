package fm

import (
	"fmt"
	"path/filepath"
)

// Executor performs a single move, copy or hard link. It never returns an
// error: a failed file is logged and reported as false so the surrounding
// batch keeps going.
type Executor struct {
	fsmgr  FilesystemManager
	logger Logger
}

func NewExecutor(fsmgr FilesystemManager, logger Logger) *Executor {
	return &Executor{fsmgr: fsmgr, logger: logger}
}

// Perform places source at target using mode. When rec is non-nil the
// operation is journaled before the filesystem is touched; a journaling
// failure skips the file.
func (e *Executor) Perform(source, target string, mode OperationMode, rec Recorder) bool {
	if err := e.fsmgr.MkdirAll(filepath.Dir(target)); err != nil {
		e.logger.Error("creating target directory", "target", target, "error", err)
		return false
	}

	if rec != nil {
		id, err := rec.Record(mode, source, target)
		if err != nil {
			e.logger.Error("journaling operation", "source", source, "target", target, "mode", mode.String(), "error", err)
			return false
		}
		e.logger.Debug("operation journaled", "id", id)
	}

	if err := e.apply(source, target, mode); err != nil {
		e.logger.Error("file operation failed", "source", source, "target", target, "mode", mode.String(), "error", err)
		return false
	}
	return true
}

func (e *Executor) apply(source, target string, mode OperationMode) error {
	switch mode {
	case Move:
		return e.fsmgr.Move(source, target)
	case Copy:
		return e.fsmgr.Copy(source, target)
	case Link:
		err := e.fsmgr.Link(source, target)
		if err == nil {
			return nil
		}
		e.logger.Warn("hard link failed, copying instead", "source", source, "target", target, "error", err)
		return e.fsmgr.Copy(source, target)
	default:
		return fmt.Errorf("unsupported operation mode %v", mode)
	}
}
