package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linht/gate-remote/radio"
	"github.com/linht/gate-remote/rfm69"
	"github.com/linht/gate-remote/transmit"
)

// Mode selects whether the send loop keys the transmitter
type Mode int

const (
	ModeLive Mode = iota
	ModeDryRun
)

func (m Mode) String() string {
	if m == ModeDryRun {
		return "dry-run"
	}
	return "live"
}

// acquireFunc opens the transceiver for the duration of fn
type acquireFunc func(cfg radio.Config, fn func(transmit.Radio) error) error

// acquireRadio resets the transceiver before handing it out
func acquireRadio(cfg radio.Config, fn func(transmit.Radio) error) error {
	return radio.With(cfg, func(d *radio.Device) error { return fn(d) })
}

// attachRadio hands out the transceiver as it is, for reading registers
func attachRadio(cfg radio.Config, fn func(transmit.Radio) error) error {
	return radio.WithAttached(cfg, func(d *radio.Device) error { return fn(d) })
}

type transmitter struct {
	config  Config
	acquire acquireFunc
	attach  acquireFunc
	sleep   func(time.Duration)
}

func newTransmitter(cfg Config) *transmitter {
	return &transmitter{config: cfg, acquire: acquireRadio, attach: attachRadio}
}

// radioConfiguration is the garage remote profile with the configured
// carrier, bitrate and power
func (t *transmitter) radioConfiguration() rfm69.Configuration {
	c := rfm69.GarageRemote()
	if t.config.Radio.OscillatorHz != 0 {
		c.OscillatorHz = t.config.Radio.OscillatorHz
	}
	c.CarrierHz = t.config.Gate.Carrier
	c.BitrateBps = t.config.Gate.Bitrate
	c.OutputPower = t.config.Gate.OutputPower
	return c
}

func (t *transmitter) job(mode Mode) transmit.Job {
	job := transmit.NewJob(transmit.GaragePattern, mode == ModeDryRun)
	job.Repeats = t.config.Gate.Repeats
	job.Delay = t.config.Gate.Delay
	job.Attempts = t.config.Gate.Attempts
	return job
}

// run configures the radio and sends the gate burst. It reports whether the
// job completed and the diagnostic text meant for stdout. Failures are
// logged at error level.
func (t *transmitter) run(mode Mode, debug bool) (bool, string) {
	var out strings.Builder

	opts := []transmit.Option{}
	if t.config.Radio.ModeTimeout > 0 {
		opts = append(opts, transmit.WithModeTimeout(t.config.Radio.ModeTimeout))
	}
	if t.sleep != nil {
		opts = append(opts, transmit.WithSleep(t.sleep))
	}
	if debug {
		opts = append(opts, transmit.WithInspection(rfm69.DefaultGroups))
	}

	slog.Info("Starting transmission", "mode", mode, "debug", debug)
	err := t.acquire(t.config.Radio, func(r transmit.Radio) error {
		res, err := transmit.NewLoop(r, t.radioConfiguration(), opts...).Run(t.job(mode))
		if res.Report != nil {
			if rerr := res.Report.Render(&out); rerr != nil {
				slog.Warn("Failed to render register report", "error", rerr)
			}
		}
		if res.InspectErr != nil {
			slog.Warn("Register dump incomplete", "error", res.InspectErr)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(&out, "Job %s %s: %d iterations, %d sends, %d failed\n",
			res.JobID, mode, res.Iterations, res.Sends, len(res.Failures))
		if serr := res.SendErr(); serr != nil {
			slog.Warn("Some sends failed", "error", serr)
		}
		return nil
	})
	if err != nil {
		slog.Error("Transmission failed", "error", err)
		return false, out.String()
	}
	return true, out.String()
}

// inspect decodes the live registers without resetting or configuring the
// transceiver
func (t *transmitter) inspect(groups []string) (bool, string) {
	if len(groups) == 0 {
		groups = rfm69.DefaultGroups
	}
	for _, g := range groups {
		if _, err := rfm69.LookupView(g); err != nil {
			slog.Error("Unknown register group", "error", err)
			return false, ""
		}
	}

	var out strings.Builder
	err := t.attach(t.config.Radio, func(r transmit.Radio) error {
		in := rfm69.Inspector{OscillatorHz: t.radioConfiguration().OscillatorHz, Reader: r}
		report, err := in.Inspect(groups)
		if report != nil {
			if rerr := report.Render(&out); rerr != nil {
				return errors.Join(err, rerr)
			}
		}
		return err
	})
	if err != nil {
		slog.Error("Register inspection failed", "error", err)
		return false, out.String()
	}
	return true, out.String()
}
