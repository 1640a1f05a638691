package radio

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linht/gate-remote/rfm69"
)

var (
	// ErrDeviceUnavailable is wrapped by every failure to acquire the radio
	ErrDeviceUnavailable = errors.New("radio device unavailable")

	// ErrSendTimeout is reported when the FIFO does not drain in time
	ErrSendTimeout = errors.New("timed out waiting for packet sent")
)

// Config holds the hardware wiring of the RFM69 module
type Config struct {
	SPIDevice    string        `yaml:"spi_device"`
	SPISpeed     uint32        `yaml:"spi_speed"`
	GPIOChip     string        `yaml:"gpio_chip"`
	ResetPin     int           `yaml:"reset_pin"` // negative when RESET is not wired
	OscillatorHz uint32        `yaml:"oscillator"`
	ModeTimeout  time.Duration `yaml:"mode_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
}

// DefaultConfig matches an RFM69HW on SPI0 CE0 of a Raspberry Pi with RESET on
// GPIO25
func DefaultConfig() Config {
	return Config{
		SPIDevice:    "/dev/spidev0.0",
		SPISpeed:     500000,
		GPIOChip:     "gpiochip0",
		ResetPin:     25,
		OscillatorHz: rfm69.DefaultOscillatorHz,
		ModeTimeout:  100 * time.Millisecond,
		PollInterval: 100 * time.Microsecond,
		SendTimeout:  time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SPISpeed == 0 {
		c.SPISpeed = d.SPISpeed
	}
	if c.OscillatorHz == 0 {
		c.OscillatorHz = d.OscillatorHz
	}
	if c.ModeTimeout <= 0 {
		c.ModeTimeout = d.ModeTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	return c
}

// Resetter pulses the chip's RESET input
type Resetter interface {
	Reset() error
	Close() error
}

var (
	openBus   = OpenBus
	openReset = func(chipPath string, pin int) (Resetter, error) {
		line, err := OpenResetLine(chipPath, pin)
		if err != nil {
			return nil, err
		}
		return line, nil
	}
)

// Device is an exclusively owned RFM69 transceiver
type Device struct {
	bus      *Bus
	reset    Resetter
	cfg      Config
	version  uint8
	attached bool // diagnostic access, register state is left untouched
	sleep    func(time.Duration)
}

// Open acquires the bus and reset line, resets the chip and checks that it
// answers. Close puts the chip back in standby. Failures wrap
// ErrDeviceUnavailable and leave nothing open.
func Open(cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()

	slog.Info("Opening radio",
		"spi_device", cfg.SPIDevice,
		"spi_speed", cfg.SPISpeed,
		"gpio_chip", cfg.GPIOChip,
		"reset_pin", cfg.ResetPin)

	bus, err := openBus(cfg.SPIDevice, cfg.SPISpeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	var reset Resetter
	if cfg.ResetPin >= 0 {
		reset, err = openReset(cfg.GPIOChip, cfg.ResetPin)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		if err := reset.Reset(); err != nil {
			reset.Close()
			bus.Close()
			return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
	}

	d, err := NewDevice(bus, reset, cfg)
	if err != nil {
		if reset != nil {
			reset.Close()
		}
		bus.Close()
		return nil, err
	}
	return d, nil
}

// Attach opens only the bus of a running transceiver. The RESET line is not
// requested and Close leaves the operating mode alone, so the live register
// set can be read as the last transmitter left it.
func Attach(cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()

	slog.Debug("Attaching to radio", "spi_device", cfg.SPIDevice)

	bus, err := openBus(cfg.SPIDevice, cfg.SPISpeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	d, err := NewDevice(bus, nil, cfg)
	if err != nil {
		bus.Close()
		return nil, err
	}
	d.attached = true
	return d, nil
}

// NewDevice attaches to a transceiver on an open bus. reset may be nil.
func NewDevice(bus *Bus, reset Resetter, cfg Config) (*Device, error) {
	d := &Device{
		bus:   bus,
		reset: reset,
		cfg:   cfg.withDefaults(),
		sleep: time.Sleep,
	}

	version, err := bus.ReadRegister(rfm69.RegVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	// A floating MISO reads as all zeros or all ones
	if version == 0x00 || version == 0xFF {
		return nil, fmt.Errorf("%w: no transceiver on %s (version 0x%02X)", ErrDeviceUnavailable, bus, version)
	}
	if version != rfm69.VersionSX1231H && version != rfm69.VersionSX1231 {
		slog.Warn("Unexpected chip version", "version", fmt.Sprintf("0x%02X", version))
	}
	d.version = version

	slog.Info("Radio opened", "bus", bus.String(), "version", fmt.Sprintf("0x%02X", version))
	return d, nil
}

// Version returns the RegVersion value read when the device was opened
func (d *Device) Version() uint8 {
	return d.version
}

// Config returns the effective hardware configuration
func (d *Device) Config() Config {
	return d.cfg
}

// ReadRegister reads a single register
func (d *Device) ReadRegister(addr uint8) (uint8, error) {
	return d.bus.ReadRegister(addr)
}

// BurstRead reads count consecutive registers starting at addr
func (d *Device) BurstRead(addr uint8, count int) ([]uint8, error) {
	return d.bus.BurstRead(addr, count)
}

// WriteRegister writes a single register
func (d *Device) WriteRegister(addr uint8, value uint8) error {
	return d.bus.WriteRegister(addr, value)
}

// SetMode switches the operating mode, keeping the sequencer and listen bits
func (d *Device) SetMode(mode rfm69.Mode) error {
	op, err := d.bus.ReadRegister(rfm69.RegOpMode)
	if err != nil {
		return err
	}
	op = (op &^ 0x1C) | mode.OpModeValue()
	if err := d.bus.WriteRegister(rfm69.RegOpMode, op); err != nil {
		return err
	}
	slog.Debug("Mode set", "mode", mode)
	return nil
}

// poll reads reg until cond holds or max elapses
func (d *Device) poll(reg uint8, max time.Duration, cond func(uint8) bool) (bool, error) {
	deadline := time.Now().Add(max)
	for {
		v, err := d.bus.ReadRegister(reg)
		if err != nil {
			return false, err
		}
		if cond(v) {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		d.sleep(d.cfg.PollInterval)
	}
}

// WaitModeReady polls RegIrqFlags1 until ModeReady is set. It returns false
// on timeout or on a read failure.
func (d *Device) WaitModeReady(max time.Duration) bool {
	ok, err := d.poll(rfm69.RegIrqFlags1, max, func(v uint8) bool {
		return v&rfm69.IrqFlags1ModeReady != 0
	})
	if err != nil {
		slog.Warn("Mode ready poll failed", "error", err)
		return false
	}
	return ok
}

// byteTime is the air time of one byte at the programmed bit rate
func (d *Device) byteTime() time.Duration {
	msb, err := d.bus.ReadRegister(rfm69.RegBitrateMsb)
	if err != nil {
		return 0
	}
	lsb, err := d.bus.ReadRegister(rfm69.RegBitrateLsb)
	if err != nil {
		return 0
	}
	bps := rfm69.BitrateFromRegisters(d.cfg.OscillatorHz, msb, lsb)
	if bps == 0 {
		return 0
	}
	return time.Duration(float64(8*time.Second) / bps)
}

// transmit loads the FIFO and keys the transmitter until the payload is out.
// With unlimited length framing PacketSent never fires, so an empty FIFO
// followed by one byte time for the shift register also counts as sent.
func (d *Device) transmit(payload []byte) error {
	if err := d.SetMode(rfm69.ModeStandby); err != nil {
		return err
	}
	if !d.WaitModeReady(d.cfg.ModeTimeout) {
		return rfm69.ErrModeTimeout
	}
	if err := d.bus.BurstWrite(rfm69.RegFifo, payload); err != nil {
		return err
	}
	if err := d.SetMode(rfm69.ModeTx); err != nil {
		return err
	}

	var flags uint8
	done, err := d.poll(rfm69.RegIrqFlags2, d.cfg.SendTimeout, func(v uint8) bool {
		flags = v
		return v&rfm69.IrqFlags2PacketSent != 0 || v&rfm69.IrqFlags2FifoNotEmpty == 0
	})
	if err == nil && done && flags&rfm69.IrqFlags2PacketSent == 0 {
		d.sleep(d.byteTime())
	}

	// Always leave Tx, even when the wait failed
	if serr := d.SetMode(rfm69.ModeStandby); err == nil {
		err = serr
	}
	if err != nil {
		return err
	}
	if !done {
		return ErrSendTimeout
	}
	return nil
}

// Send transmits payload up to attempts times and reports whether one attempt
// went through. Acknowledgements need a receive path, so requireAck always
// fails.
func (d *Device) Send(payload []byte, attempts uint32, requireAck bool) bool {
	if requireAck {
		slog.Warn("Acknowledged send is not supported")
		return false
	}
	if len(payload) == 0 || len(payload) > rfm69.FifoSize {
		slog.Warn("Payload does not fit the FIFO", "bytes", len(payload))
		return false
	}

	for a := uint32(1); a <= attempts; a++ {
		err := d.transmit(payload)
		if err == nil {
			return true
		}
		slog.Warn("Transmit attempt failed", "attempt", a, "error", err)
	}
	return false
}

// Close returns an opened radio to standby and releases the bus and reset
// line. An attached radio is released without touching its mode.
func (d *Device) Close() error {
	var errs []error

	if d.bus != nil {
		if !d.attached {
			if err := d.SetMode(rfm69.ModeStandby); err != nil {
				errs = append(errs, fmt.Errorf("failed to enter standby: %w", err))
			}
		}
		if err := d.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("SPI close error: %w", err))
		}
		d.bus = nil
	}

	if d.reset != nil {
		if err := d.reset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("GPIO close error: %w", err))
		}
		d.reset = nil
	}

	return errors.Join(errs...)
}

// With opens and resets the radio, runs fn and releases the radio on every
// path. A release failure is only returned when fn succeeded.
func With(cfg Config, fn func(*Device) error) error {
	return use(Open, cfg, fn)
}

// WithAttached is With for read-only diagnostics: no reset, no mode change
func WithAttached(cfg Config, fn func(*Device) error) error {
	return use(Attach, cfg, fn)
}

func use(acquire func(Config) (*Device, error), cfg Config, fn func(*Device) error) (err error) {
	d, err := acquire(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			slog.Error("Failed to release radio", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	return fn(d)
}
