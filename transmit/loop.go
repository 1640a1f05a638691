package transmit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linht/gate-remote/rfm69"
)

// Radio is the hardware capability the loop drives
type Radio interface {
	rfm69.RegisterReader
	rfm69.RegisterWriter
	SetMode(mode rfm69.Mode) error
	WaitModeReady(max time.Duration) bool
	Send(payload []byte, attempts uint32, requireAck bool) bool
}

// State of the transmission loop
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateReady
	StateSending
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// SendFailure records an iteration whose send reported failure. It never
// aborts the loop.
type SendFailure struct {
	Iteration uint32
}

func (f SendFailure) Error() string {
	return fmt.Sprintf("send failed in iteration %d", f.Iteration)
}

// Result is the outcome of one job
type Result struct {
	JobID      string
	State      State
	Iterations uint32
	Sends      uint32
	Failures   []SendFailure
	Delayed    time.Duration
	Report     *rfm69.Report
	InspectErr error
}

// SendErr joins the recorded send failures, nil when every send succeeded
func (r Result) SendErr() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// DefaultModeTimeout bounds the wait for ModeReady after a mode change
const DefaultModeTimeout = 100 * time.Millisecond

// Loop configures the radio once and then sends a job's payload repeatedly
type Loop struct {
	radio       Radio
	config      rfm69.Configuration
	state       State
	sleep       func(time.Duration)
	modeTimeout time.Duration
	inspect     []string
	log         *slog.Logger
}

// Option customises a Loop
type Option func(*Loop)

// WithSleep replaces the blocking sleep used between iterations
func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Loop) { l.sleep = sleep }
}

// WithModeTimeout sets the maximum wait for ModeReady
func WithModeTimeout(d time.Duration) Option {
	return func(l *Loop) { l.modeTimeout = d }
}

// WithInspection dumps the given register groups once the radio is configured
func WithInspection(groups []string) Option {
	return func(l *Loop) { l.inspect = groups }
}

// WithLogger sets the logger for progress messages
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// NewLoop creates a loop driving r with the configuration cfg
func NewLoop(r Radio, cfg rfm69.Configuration, opts ...Option) *Loop {
	l := &Loop{
		radio:       r,
		config:      cfg,
		state:       StateIdle,
		sleep:       time.Sleep,
		modeTimeout: DefaultModeTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current loop state
func (l *Loop) State() State {
	return l.state
}

func (l *Loop) abort(res Result, err error) (Result, error) {
	l.state = StateAborted
	res.State = l.state
	l.log.Error("Transmission aborted", "job", res.JobID, "error", err)
	return res, err
}

// configure puts the radio in standby and programs it. Any failure leaves the
// device in an unknown state.
func (l *Loop) configure() error {
	l.state = StateConfiguring

	if err := l.radio.SetMode(rfm69.ModeStandby); err != nil {
		return &rfm69.ConfigError{Register: rfm69.Register{Label: rfm69.LabelOpMode, Addr: rfm69.RegOpMode}, Err: err}
	}
	if !l.radio.WaitModeReady(l.modeTimeout) {
		return &rfm69.ConfigError{Err: fmt.Errorf("%w after %s", rfm69.ErrModeTimeout, l.modeTimeout)}
	}
	return rfm69.Apply(l.config, l.radio)
}

// Run executes the job. Configuration errors abort the job and are returned;
// send failures are recorded on the result only. In dry-run mode every step
// runs, including the delays, except the send itself.
func (l *Loop) Run(job Job) (Result, error) {
	res := Result{JobID: job.ID, State: l.state}

	if err := job.Validate(l.config); err != nil {
		return l.abort(res, err)
	}

	if err := l.configure(); err != nil {
		return l.abort(res, err)
	}
	l.state = StateReady

	if len(l.inspect) > 0 {
		in := rfm69.Inspector{OscillatorHz: l.config.OscillatorHz, Reader: l.radio}
		res.Report, res.InspectErr = in.Inspect(l.inspect)
		if res.InspectErr != nil {
			l.log.Warn("Register inspection failed", "error", res.InspectErr)
		}
	}

	l.log.Info("Sending packets", "job", job.ID, "repeats", job.Repeats,
		"bytes", len(job.Payload), "dry_run", job.DryRun)

	l.state = StateSending
	for k := uint32(1); k <= job.Repeats; k++ {
		res.Iterations = k
		if job.DryRun {
			l.log.Debug("Not really sending, dry run", "iteration", k)
		} else {
			res.Sends++
			if !l.radio.Send(job.Payload, job.Attempts, job.RequireAck) {
				res.Failures = append(res.Failures, SendFailure{Iteration: k})
				l.log.Warn("Send failed", "iteration", k)
			} else {
				l.log.Debug("Packet sent", "iteration", k)
			}
		}
		l.sleep(job.Delay)
		res.Delayed += job.Delay
	}

	l.state = StateIdle
	res.State = l.state
	l.log.Info("Finished", "job", job.ID, "iterations", res.Iterations,
		"sends", res.Sends, "failures", len(res.Failures))
	return res, nil
}
