package rfm69

import (
	"errors"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestInspectConcatenation(t *testing.T) {
	regs := &regFile{}
	for i := 0; i < AesKeyLen; i++ {
		regs.regs[RegAesKey1+i] = uint8(i + 1)
	}
	for i := 0; i < SyncValueLen; i++ {
		regs.regs[RegSyncValue1+i] = uint8(0xA0 + i)
	}

	report, err := Inspect([]string{"RegAesKey", "RegSyncValue"}, regs)
	assert.NilError(t, err)

	a, ok := report.Attribute("RegAesKey", "AesKey")
	assert.Assert(t, ok)
	assert.Equal(t, a.Value, "0x0102030405060708090a0b0c0d0e0f10")

	a, ok = report.Attribute("RegSyncValue", "SyncValue")
	assert.Assert(t, ok)
	assert.Equal(t, a.Value, "0xa0a1a2a3a4a5a6a7")
}

func TestInspectEffectiveFormat(t *testing.T) {
	tests := map[string]struct {
		config, length uint8
		want           string
	}{
		"unlimited": {0x00, 0, "Unlimited length"},
		"fixed":     {0x00, 9, "Fixed length"},
		"variable":  {0x80, 0, "Variable length"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			regs := &regFile{}
			regs.regs[RegPacketConfig1] = tc.config
			regs.regs[RegPayloadLength] = tc.length

			report, err := Inspect([]string{LabelPacketConfig1}, regs)
			assert.NilError(t, err)
			a, ok := report.Attribute(LabelPacketConfig1, "EffectiveFormat")
			assert.Assert(t, ok)
			assert.Equal(t, a.Value, tc.want)
		})
	}
}

func TestInspectSingleRegister(t *testing.T) {
	regs := &regFile{}
	regs.regs[RegVersion] = VersionSX1231H

	report, err := Inspect([]string{LabelVersion}, regs)
	assert.NilError(t, err)
	assert.Equal(t, len(report.Entries), 1)

	e := report.Entries[0]
	assert.DeepEqual(t, e.Raw, []uint8{0x24})
	assert.DeepEqual(t, e.Attributes, []Attribute{
		{Name: "FullRevision", Value: "2"},
		{Name: "MetalMaskRevision", Value: "4"},
	})
}

func TestInspectReadError(t *testing.T) {
	regs := &regFile{failRead: map[uint8]bool{RegBitrateLsb: true}}

	report, err := Inspect([]string{LabelDataModul, "RegBitrate", LabelOcp}, regs)
	var readErr *ReadError
	assert.Assert(t, errors.As(err, &readErr))
	assert.Equal(t, readErr.Register.Label, LabelBitrateLsb)
	assert.Assert(t, errors.Is(err, errBus))

	// entries before the failing one are kept
	assert.Equal(t, len(report.Entries), 1)
	assert.Equal(t, report.Entries[0].Label, LabelDataModul)
}

func TestInspectUnknownGroup(t *testing.T) {
	_, err := Inspect([]string{"RegNope"}, &regFile{})
	var regErr *UnknownRegisterError
	assert.Assert(t, errors.As(err, &regErr))
}

func TestInspectReadsOnce(t *testing.T) {
	regs := &regFile{}
	_, err := Inspect([]string{LabelPaLevel, LabelTestPa1, LabelTestPa1}, regs)
	assert.NilError(t, err)
	assert.Equal(t, regs.reads, 2)
	assert.Equal(t, len(regs.writes), 0)
}

func TestRender(t *testing.T) {
	regs := &regFile{}
	assert.NilError(t, Apply(GarageRemote(), regs))

	report, err := Inspect([]string{LabelDataModul, "RegBitrate", "RegAesKey"}, regs)
	assert.NilError(t, err)

	var b strings.Builder
	assert.NilError(t, report.Render(&b))
	out := b.String()

	assert.Check(t, is.Contains(out, "----[ CONFIG REGISTERS ]"))
	assert.Check(t, is.Contains(out, "RegDataModul (0x02)         : 0b00001000"))
	assert.Check(t, is.Contains(out, "RegBitrate (0x03,0x04)      : 0b01011001_01001001"))
	assert.Check(t, is.Contains(out, "  - ModulationType            OOK\n"))
	assert.Check(t, is.Contains(out, "  - Bitrate                   1400 bps\n"))
	assert.Check(t, is.Contains(out, "RegAesKey (0x3e-0x4d)"))
	assert.Check(t, !strings.Contains(out, "\x1b["), "no escape codes when not a terminal")
}

func TestInspectBurst(t *testing.T) {
	regs := &burstFile{regFile: &regFile{}}
	for i := 0; i < AesKeyLen; i++ {
		regs.regs[RegAesKey1+i] = uint8(0xF0 - i)
	}
	regs.regs[RegBitrateMsb] = 0x59
	regs.regs[RegBitrateLsb] = 0x49

	report, err := Inspect([]string{"RegAesKey", "RegBitrate", LabelOcp, "RegAesKey"}, regs)
	assert.NilError(t, err)
	assert.Equal(t, len(report.Entries), 4)

	// one burst per multi-register view, the repeated group is cached
	assert.Equal(t, regs.bursts, 2)
	assert.Equal(t, regs.reads, 1)

	a, ok := report.Attribute("RegAesKey", "AesKey")
	assert.Assert(t, ok)
	assert.Equal(t, a.Value, "0xf0efeeedecebeae9e8e7e6e5e4e3e2e1")
	a, ok = report.Attribute("RegBitrate", "Bitrate")
	assert.Assert(t, ok)
	assert.Equal(t, a.Value, "1400")

	regs = &burstFile{regFile: &regFile{}, failBurst: true}
	_, err = Inspect([]string{"RegSyncValue"}, regs)
	var readErr *ReadError
	assert.Assert(t, errors.As(err, &readErr))
	assert.Equal(t, readErr.Register.Label, SyncValueLabel(1))
}

func TestBurstSpan(t *testing.T) {
	first, ok := burstSpan(sequence(SyncValueLabel, SyncValueLen))
	assert.Assert(t, ok)
	assert.Equal(t, first, uint8(RegSyncValue1))

	_, ok = burstSpan([]string{LabelPreambleMsb, LabelPreambleLsb})
	assert.Assert(t, ok)

	_, ok = burstSpan([]string{LabelFrfMsb, LabelOcp})
	assert.Assert(t, !ok)
	_, ok = burstSpan([]string{LabelOcp})
	assert.Assert(t, !ok)
}
