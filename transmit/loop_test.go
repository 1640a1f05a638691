package transmit

import (
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/linht/gate-remote/rfm69"
)

var errBus = errors.New("bus error")

// fakeRadio records every call made by the loop
type fakeRadio struct {
	regs      [0x80]uint8
	writes    int
	failWrite uint8 // address whose write fails, 0 never
	modes     []rfm69.Mode
	notReady  bool
	sends     int
	failSends map[int]bool // 1-based send numbers that report failure
	payloads  [][]byte
}

func (r *fakeRadio) ReadRegister(addr uint8) (uint8, error) {
	return r.regs[addr&0x7F], nil
}

func (r *fakeRadio) WriteRegister(addr, value uint8) error {
	if r.failWrite != 0 && addr == r.failWrite {
		return errBus
	}
	r.writes++
	r.regs[addr&0x7F] = value
	return nil
}

func (r *fakeRadio) SetMode(mode rfm69.Mode) error {
	r.modes = append(r.modes, mode)
	return nil
}

func (r *fakeRadio) WaitModeReady(time.Duration) bool {
	return !r.notReady
}

func (r *fakeRadio) Send(payload []byte, attempts uint32, requireAck bool) bool {
	r.sends++
	r.payloads = append(r.payloads, payload)
	return !r.failSends[r.sends]
}

type sleeper struct {
	calls int
	total time.Duration
}

func (s *sleeper) sleep(d time.Duration) {
	s.calls++
	s.total += d
}

func TestRunLive(t *testing.T) {
	radio := &fakeRadio{}
	s := &sleeper{}
	loop := NewLoop(radio, rfm69.GarageRemote(), WithSleep(s.sleep))

	job := NewJob(GaragePattern, false)
	res, err := loop.Run(job)
	assert.NilError(t, err)

	assert.Equal(t, res.JobID, job.ID)
	assert.Equal(t, res.State, StateIdle)
	assert.Equal(t, loop.State(), StateIdle)
	assert.Equal(t, res.Iterations, uint32(32))
	assert.Equal(t, res.Sends, uint32(32))
	assert.Equal(t, radio.sends, 32)
	assert.Equal(t, s.calls, 32)
	assert.Equal(t, s.total, 32*DefaultDelay)
	assert.DeepEqual(t, radio.payloads[31], Encode())
	assert.DeepEqual(t, radio.modes, []rfm69.Mode{rfm69.ModeStandby})
	assert.NilError(t, res.SendErr())
}

func TestRunDryRunEquivalence(t *testing.T) {
	live, dry := &sleeper{}, &sleeper{}

	liveRadio := &fakeRadio{}
	liveRes, err := NewLoop(liveRadio, rfm69.GarageRemote(), WithSleep(live.sleep)).
		Run(NewJob(GaragePattern, false))
	assert.NilError(t, err)

	dryRadio := &fakeRadio{}
	dryRes, err := NewLoop(dryRadio, rfm69.GarageRemote(), WithSleep(dry.sleep)).
		Run(NewJob(GaragePattern, true))
	assert.NilError(t, err)

	assert.Equal(t, dryRadio.sends, 0)
	assert.Equal(t, dryRes.Sends, uint32(0))
	assert.Equal(t, dryRes.Iterations, liveRes.Iterations)
	assert.Equal(t, dry.calls, live.calls)
	assert.Equal(t, dry.total, live.total)
	assert.Equal(t, dryRes.Delayed, liveRes.Delayed)

	// the radio is configured in both modes
	assert.Equal(t, dryRadio.writes, liveRadio.writes)
	assert.Equal(t, dryRadio.regs, liveRadio.regs)
}

func TestRunSendFailuresDoNotStopLoop(t *testing.T) {
	radio := &fakeRadio{failSends: map[int]bool{1: true, 7: true, 32: true}}
	loop := NewLoop(radio, rfm69.GarageRemote(), WithSleep(func(time.Duration) {}))

	res, err := loop.Run(NewJob(GaragePattern, false))
	assert.NilError(t, err)
	assert.Equal(t, radio.sends, 32)
	assert.Equal(t, res.Sends, uint32(32))
	assert.DeepEqual(t, res.Failures, []SendFailure{{1}, {7}, {32}})
	assert.ErrorContains(t, res.SendErr(), "send failed in iteration 7")
}

func TestRunWriteFailure(t *testing.T) {
	for _, addr := range []uint8{rfm69.RegFrfMsb, rfm69.RegDataModul, rfm69.RegSyncConfig, rfm69.RegOcp} {
		radio := &fakeRadio{failWrite: addr}
		loop := NewLoop(radio, rfm69.GarageRemote(), WithSleep(func(time.Duration) {}))

		res, err := loop.Run(NewJob(GaragePattern, false))
		var cfgErr *rfm69.ConfigError
		assert.Assert(t, errors.As(err, &cfgErr), "register 0x%02X", addr)
		assert.Equal(t, cfgErr.Register.Addr, addr)
		assert.Equal(t, radio.sends, 0)
		assert.Equal(t, res.State, StateAborted)
		assert.Equal(t, loop.State(), StateAborted)
	}
}

func TestRunModeTimeout(t *testing.T) {
	radio := &fakeRadio{notReady: true}
	loop := NewLoop(radio, rfm69.GarageRemote(), WithModeTimeout(time.Millisecond))

	res, err := loop.Run(NewJob(GaragePattern, false))
	assert.Assert(t, errors.Is(err, rfm69.ErrModeTimeout))
	var cfgErr *rfm69.ConfigError
	assert.Assert(t, errors.As(err, &cfgErr))
	assert.Equal(t, res.State, StateAborted)
	assert.Equal(t, radio.writes, 0)
	assert.Equal(t, radio.sends, 0)
}

func TestRunInspection(t *testing.T) {
	radio := &fakeRadio{}
	loop := NewLoop(radio, rfm69.GarageRemote(),
		WithSleep(func(time.Duration) {}),
		WithInspection(rfm69.DefaultGroups))

	res, err := loop.Run(NewJob(GaragePattern, true))
	assert.NilError(t, err)
	assert.NilError(t, res.InspectErr)
	assert.Assert(t, res.Report != nil)

	a, ok := res.Report.Attribute("RegBitrate", "Bitrate")
	assert.Assert(t, ok)
	assert.Equal(t, a.Value, "1400")
}

func TestRunInvalidJob(t *testing.T) {
	radio := &fakeRadio{}
	loop := NewLoop(radio, rfm69.GarageRemote())

	job := NewJob(GaragePattern, false)
	job.Payload = make([]byte, rfm69.FifoSize+1)
	_, err := loop.Run(job)
	assert.Assert(t, errors.Is(err, ErrInvalidJob))
	assert.Equal(t, radio.writes, 0)
	assert.Check(t, is.Len(radio.modes, 0))
}
