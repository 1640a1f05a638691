package plugins

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/linht/gate-remote/radio"
	"github.com/linht/gate-remote/rfm69"
)

// deviceMu serialises every plugin that touches the transceiver, including
// the transmitter child processes started by the gate plugin
var deviceMu sync.Mutex

// RadioConfig holds the radio plugin configuration
type RadioConfig struct {
	Radio radio.Config
}

// Acquirer attaches to the transceiver for the duration of fn
type Acquirer func(fn func(dev RegisterDevice) error) error

// RegisterDevice is the part of the transceiver the radio plugin reads
type RegisterDevice interface {
	rfm69.RegisterReader
	Version() uint8
}

// RadioPlugin exposes read-only register diagnostics of the RFM69.
// Uses transient connections - acquires and releases the device for each request
type RadioPlugin struct {
	config  RadioConfig
	acquire Acquirer
}

// NewRadioPlugin creates a new radio plugin instance
func NewRadioPlugin(cfg RadioConfig, acquire Acquirer) (*RadioPlugin, error) {
	if acquire == nil {
		acquire = func(fn func(RegisterDevice) error) error {
			return radio.WithAttached(cfg.Radio, func(d *radio.Device) error { return fn(d) })
		}
	}

	slog.Info("Radio plugin initializing",
		"spi_device", cfg.Radio.SPIDevice,
		"spi_speed", cfg.Radio.SPISpeed,
		"gpio_chip", cfg.Radio.GPIOChip,
		"reset_pin", cfg.Radio.ResetPin)

	return &RadioPlugin{config: cfg, acquire: acquire}, nil
}

// Name returns the plugin identifier
func (p *RadioPlugin) Name() string {
	return "radio"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *RadioPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/radio")

	api.Get("/info", p.handleInfo)
	api.Get("/registers", p.handleInspect)
	api.Get("/register/:label", p.handleReadRegister)

	slog.Info("Radio plugin routes registered")
}

// Shutdown performs cleanup
func (p *RadioPlugin) Shutdown() error {
	// No persistent resources to clean up
	return nil
}

// withDevice executes a function with exclusive access to the device
func (p *RadioPlugin) withDevice(fn func(RegisterDevice) error) error {
	deviceMu.Lock()
	defer deviceMu.Unlock()
	return p.acquire(fn)
}

func (p *RadioPlugin) handleInfo(c *fiber.Ctx) error {
	var version uint8
	err := p.withDevice(func(dev RegisterDevice) error {
		version = dev.Version()
		return nil
	})
	if err != nil {
		slog.Error("Failed to open radio", "error", err)
		return SendError(c, err)
	}

	return SendSuccess(c, map[string]interface{}{
		"version":    fmt.Sprintf("0x%02X", version),
		"spi_device": p.config.Radio.SPIDevice,
		"gpio_chip":  p.config.Radio.GPIOChip,
		"reset_pin":  p.config.Radio.ResetPin,
	})
}

// handleInspect decodes the register groups named in ?groups=a,b or the
// default diagnostic set
func (p *RadioPlugin) handleInspect(c *fiber.Ctx) error {
	groups := rfm69.DefaultGroups
	if q := c.Query("groups"); q != "" {
		groups = strings.Split(q, ",")
	}
	for _, g := range groups {
		if _, err := rfm69.LookupView(g); err != nil {
			return SendError(c, err)
		}
	}

	var report *rfm69.Report
	err := p.withDevice(func(dev RegisterDevice) error {
		var err error
		in := rfm69.Inspector{OscillatorHz: p.config.Radio.OscillatorHz, Reader: dev}
		if in.OscillatorHz == 0 {
			in.OscillatorHz = rfm69.DefaultOscillatorHz
		}
		report, err = in.Inspect(groups)
		return err
	})
	if err != nil {
		slog.Error("Register inspection failed", "error", err)
		return SendError(c, err)
	}

	return SendSuccess(c, report)
}

func (p *RadioPlugin) handleReadRegister(c *fiber.Ctx) error {
	def, err := rfm69.Lookup(c.Params("label"))
	if err != nil {
		return SendError(c, err)
	}

	var value uint8
	err = p.withDevice(func(dev RegisterDevice) error {
		var err error
		value, err = dev.ReadRegister(def.Addr)
		return err
	})
	if err != nil {
		return SendError(c, err)
	}

	attrs, err := rfm69.Decode(def.Label, value)
	if err != nil {
		return SendError(c, err)
	}

	return SendSuccess(c, map[string]interface{}{
		"label":      def.Label,
		"address":    fmt.Sprintf("0x%02X", def.Addr),
		"value":      fmt.Sprintf("0x%02X", value),
		"value_dec":  value,
		"attributes": attrs,
	})
}

// Register the plugin
func init() {
	Register("radio", func(config interface{}) (Plugin, error) {
		cfg, ok := config.(RadioConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for radio plugin: expected RadioConfig")
		}
		return NewRadioPlugin(cfg, nil)
	})
}
