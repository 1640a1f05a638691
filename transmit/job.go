package transmit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/linht/gate-remote/rfm69"
)

// ErrInvalidJob is wrapped by every job validation failure
var ErrInvalidJob = errors.New("invalid transmission job")

// Job is one invocation of the transmitter. It is built per run and consumed
// by the Loop.
type Job struct {
	ID         string
	Payload    []byte
	Unit       int // length of one encoded signal unit, 0 if not known
	Repeats    uint32
	Delay      time.Duration
	Attempts   uint32
	RequireAck bool
	DryRun     bool
}

// Default job parameters for the gate remote
const (
	DefaultRepeats  = 32
	DefaultDelay    = 8 * time.Millisecond
	DefaultAttempts = 1
)

// NewJob creates a job that sends the pattern with the default repeat count,
// delay and attempts
func NewJob(p Pattern, dryRun bool) Job {
	return Job{
		ID:       uuid.NewString(),
		Payload:  p.Bytes(),
		Unit:     p.UnitLen(),
		Repeats:  DefaultRepeats,
		Delay:    DefaultDelay,
		Attempts: DefaultAttempts,
		DryRun:   dryRun,
	}
}

// Validate checks the job against the framing the radio is configured with.
// Payloads are loaded into the FIFO in one go so they must fit it.
func (j Job) Validate(cfg rfm69.Configuration) error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidJob, fmt.Sprintf(format, args...))
	}

	n := len(j.Payload)
	if n == 0 {
		return invalid("empty payload")
	}
	if j.Repeats == 0 {
		return invalid("repeat count must be at least 1")
	}
	if j.Attempts == 0 {
		return invalid("attempts per send must be at least 1")
	}
	if j.Delay < 0 {
		return invalid("negative inter-packet delay %s", j.Delay)
	}
	if j.RequireAck {
		return invalid("acknowledgements are not supported in OOK mode")
	}

	switch cfg.Framing {
	case rfm69.FramingUnlimited:
		if n > rfm69.FifoSize {
			return invalid("payload of %d bytes does not fit the %d byte FIFO", n, rfm69.FifoSize)
		}
	case rfm69.FramingFixed:
		if n != int(cfg.PayloadLength) {
			return invalid("payload of %d bytes does not match fixed length %d", n, cfg.PayloadLength)
		}
		if j.Unit > 0 && n%j.Unit != 0 {
			return invalid("payload of %d bytes is not a multiple of the %d byte signal unit", n, j.Unit)
		}
		if n > rfm69.FifoSize {
			return invalid("payload of %d bytes does not fit the %d byte FIFO", n, rfm69.FifoSize)
		}
	case rfm69.FramingVariable:
		// the length byte goes through the FIFO too
		if n+1 > rfm69.FifoSize || n > int(cfg.PayloadLength) {
			return invalid("payload of %d bytes exceeds the variable length limit", n)
		}
	}
	return nil
}
