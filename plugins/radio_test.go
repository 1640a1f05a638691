package plugins

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/linht/gate-remote/radio"
	"github.com/linht/gate-remote/rfm69"
)

type fakeDevice struct {
	regs [0x80]uint8
}

func (d *fakeDevice) ReadRegister(addr uint8) (uint8, error) {
	return d.regs[addr&0x7F], nil
}

func (d *fakeDevice) WriteRegister(addr, value uint8) error {
	d.regs[addr&0x7F] = value
	return nil
}

func (d *fakeDevice) Version() uint8 {
	return d.regs[rfm69.RegVersion]
}

func newRadioApp(t *testing.T, acquire Acquirer) *fiber.App {
	t.Helper()
	p, err := NewRadioPlugin(RadioConfig{Radio: radio.DefaultConfig()}, acquire)
	assert.NilError(t, err)

	app := fiber.New()
	p.RegisterRoutes(app)
	return app
}

func configured(t *testing.T) Acquirer {
	dev := &fakeDevice{}
	dev.regs[rfm69.RegVersion] = rfm69.VersionSX1231H
	assert.NilError(t, rfm69.Apply(rfm69.GarageRemote(), dev))
	return func(fn func(RegisterDevice) error) error { return fn(dev) }
}

func decode(t *testing.T, body string, data interface{}) APIResponse {
	t.Helper()
	resp := APIResponse{Data: data}
	assert.NilError(t, json.Unmarshal([]byte(body), &resp))
	return resp
}

func TestRadioInfo(t *testing.T) {
	code, body := get(t, newRadioApp(t, configured(t)), "/api/radio/info")
	assert.Equal(t, code, 200)

	var info map[string]interface{}
	resp := decode(t, body, &info)
	assert.Assert(t, resp.Success)
	assert.Equal(t, info["version"], "0x24")
}

func TestRadioInspect(t *testing.T) {
	app := newRadioApp(t, configured(t))

	code, body := get(t, app, "/api/radio/registers?groups=RegBitrate,RegOcp")
	assert.Equal(t, code, 200)

	var report rfm69.Report
	decode(t, body, &report)
	assert.Equal(t, len(report.Entries), 2)

	a, ok := report.Attribute("RegBitrate", "Bitrate")
	assert.Assert(t, ok)
	assert.Equal(t, a.Value, "1400")
	a, ok = report.Attribute(rfm69.LabelOcp, "CurrentLimit")
	assert.Assert(t, ok)
	assert.Equal(t, a.Value, "120")

	code, _ = get(t, app, "/api/radio/registers?groups=RegNope")
	assert.Equal(t, code, 400)
}

func TestRadioReadRegister(t *testing.T) {
	app := newRadioApp(t, configured(t))

	code, body := get(t, app, "/api/radio/register/RegDataModul")
	assert.Equal(t, code, 200)

	var reg struct {
		Value      string            `json:"value"`
		Attributes []rfm69.Attribute `json:"attributes"`
	}
	decode(t, body, &reg)
	assert.Equal(t, reg.Value, "0x08")
	assert.Equal(t, reg.Attributes[2].Name, "ModulationType")
	assert.Equal(t, reg.Attributes[2].Value, "OOK")

	code, _ = get(t, app, "/api/radio/register/RegNope")
	assert.Equal(t, code, 400)
}

func TestRadioUnavailable(t *testing.T) {
	app := newRadioApp(t, func(func(RegisterDevice) error) error {
		return fmt.Errorf("%w: no such file", radio.ErrDeviceUnavailable)
	})

	code, body := get(t, app, "/api/radio/info")
	assert.Equal(t, code, 503)
	resp := decode(t, body, nil)
	assert.Assert(t, !resp.Success)
	assert.Check(t, is.Contains(resp.Error, "radio device unavailable"))
}
