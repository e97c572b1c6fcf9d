package app

import (
	"strings"
	"time"
)

// Run describes one CLI invocation. Its ID tags every log line written
// during the invocation.
type Run struct {
	ID      string
	Command string
	Args    string
	Status  string // "success" or "error"
	Started time.Time
}

// NewRun creates a run for command started at now.
func NewRun(command string, args []string, now time.Time) *Run {
	return &Run{
		ID:      now.UTC().Format("20060102T150405Z"),
		Command: command,
		Args:    strings.Join(args, " "),
		Status:  "success",
		Started: now,
	}
}

// Fail marks the run as failed when err is non-nil and returns err.
func (r *Run) Fail(err error) error {
	if err != nil {
		r.Status = "error"
	}
	return err
}

// Succeeded reports whether no step of the run has failed.
func (r *Run) Succeeded() bool {
	return r.Status == "success"
}
