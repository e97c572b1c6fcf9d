package fm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so ledger ids and timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// OperationIDGenerator derives journal ids from the clock:
// op_YYYYmmdd_HHMMSS_micro. Uniqueness across calls within the same
// microsecond is the ledger's job.
type OperationIDGenerator struct {
	Clock Clock
}

func (g OperationIDGenerator) New() string {
	now := g.Clock.Now()
	return fmt.Sprintf("op_%s_%06d", now.Format("20060102_150405"), now.Nanosecond()/1000)
}
