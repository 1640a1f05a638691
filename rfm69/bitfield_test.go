package rfm69

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestFieldMask(t *testing.T) {
	tests := map[string]struct {
		high, low uint8
		mask      uint8
	}{
		"single bit": {7, 7, 0x80},
		"low nibble": {3, 0, 0x0F},
		"mode":       {4, 2, 0x1C},
		"whole byte": {7, 0, 0xFF},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := Field{Name: name, High: tc.high, Low: tc.low}
			assert.Equal(t, f.Mask(), tc.mask)
			assert.Equal(t, f.Extract(0xFF), tc.mask>>tc.low)
			assert.Equal(t, f.Insert(0x00, 0xFF), tc.mask)
		})
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	for _, d := range Registers.Definitions() {
		assert.Equal(t, d.Mask(), uint8(0xFF), d.Label)
		for raw := 0; raw <= 0xFF; raw++ {
			attrs, err := Registers.Decode(d.Label, uint8(raw))
			assert.NilError(t, err)
			assert.Equal(t, len(attrs), len(d.Fields))

			back, err := Registers.Encode(d.Label, attrs)
			assert.NilError(t, err, "%s raw 0x%02X", d.Label, raw)
			assert.Equal(t, back, uint8(raw), "%s raw 0x%02X", d.Label, raw)
		}
	}
}

func TestDecodeDistinguishesEveryBit(t *testing.T) {
	for _, d := range Registers.Definitions() {
		base, err := Decode(d.Label, 0x00)
		assert.NilError(t, err)
		for bit := 0; bit < 8; bit++ {
			attrs, err := Decode(d.Label, uint8(1)<<bit)
			assert.NilError(t, err)
			changed := false
			for i := range attrs {
				changed = changed || attrs[i] != base[i]
			}
			assert.Assert(t, changed, "%s bit %d", d.Label, bit)
		}
	}

	attrs, err := Decode(LabelOpMode, 0x20)
	assert.NilError(t, err)
	assert.DeepEqual(t, attrs[2], Attribute{Name: "ListenAbort", Value: "Set"})
}

func TestDecode(t *testing.T) {
	tests := []struct {
		label string
		raw   uint8
		field string
		want  string
	}{
		{LabelDataModul, 0x08, "DataMode", "Packet mode"},
		{LabelDataModul, 0x08, "ModulationType", "OOK"},
		{LabelDataModul, 0x08, "ModulationShaping", "No Shaping"},
		{LabelDataModul, 0x20, "DataMode", "unrecognized(1)"},
		{LabelOpMode, 0x04, "Mode", "Standby"},
		{LabelOpMode, 0x0C, "Mode", "Transmit"},
		{LabelOpMode, 0x1C, "Mode", "unrecognized(7)"},
		{LabelSyncConfig, 0x00, "SyncSize", "1"},
		{LabelSyncConfig, 0x38, "SyncSize", "8"},
		{LabelFifoThresh, 0x80, "TxStartCondition", "FifoNotEmpty (at least one byte in the FIFO)"},
		{LabelOcp, 0x0F, "OcpOn", "Disabled"},
		{LabelOcp, 0x0F, "OcpTrim", "15"},
		{LabelTestPa1, 0x5D, "Pa20dBm1", "+20dBm mode"},
		{LabelTestPa2, 0x70, "Pa20dBm2", "Normal and Rx mode"},
	}
	for _, tc := range tests {
		attrs, err := Decode(tc.label, tc.raw)
		assert.NilError(t, err)

		var got string
		for _, a := range attrs {
			if a.Name == tc.field {
				got = a.Value
			}
		}
		assert.Equal(t, got, tc.want, "%s 0x%02X %s", tc.label, tc.raw, tc.field)
	}
}

func TestFieldValue(t *testing.T) {
	v, err := FieldValue(LabelDataModul, "ModulationType", 0x08)
	assert.NilError(t, err)
	assert.Equal(t, v, uint8(1))

	v, err = FieldValue(LabelIrqFlags1, "ModeReady", 0x80)
	assert.NilError(t, err)
	assert.Equal(t, v, uint8(1))

	_, err = FieldValue(LabelDataModul, "Nope", 0x08)
	var fieldErr *UnknownFieldError
	assert.Assert(t, errors.As(err, &fieldErr))
	assert.Equal(t, fieldErr.Field, "Nope")
}

func TestUnknownRegister(t *testing.T) {
	_, err := Decode("RegNope", 0)
	var regErr *UnknownRegisterError
	assert.Assert(t, errors.As(err, &regErr))
	assert.Equal(t, regErr.Label, "RegNope")

	_, err = Pack("RegNope", nil)
	assert.Assert(t, errors.As(err, &regErr))
}

func TestPackRange(t *testing.T) {
	v, err := Pack(LabelOpMode, map[string]uint8{"Mode": 3})
	assert.NilError(t, err)
	assert.Equal(t, v, ModeTx.OpModeValue())

	_, err = Pack(LabelOpMode, map[string]uint8{"Mode": 8})
	assert.ErrorContains(t, err, "does not fit field Mode")
}

func TestNewModelRejects(t *testing.T) {
	tests := map[string][]Definition{
		"duplicate label": {
			{Register{"A", 0x01}, byteField("x")},
			{Register{"A", 0x02}, byteField("x")},
		},
		"duplicate address": {
			{Register{"A", 0x01}, byteField("x")},
			{Register{"B", 0x01}, byteField("x")},
		},
		"partial coverage": {
			{Register{"A", 0x01}, []Field{
				{Name: "x", High: 7, Low: 4},
				{Name: "y", High: 2, Low: 0},
			}},
		},
		"no fields": {
			{Register{"A", 0x01}, nil},
		},
		"reversed range": {
			{Register{"A", 0x01}, []Field{{Name: "x", High: 2, Low: 3}}},
		},
		"out of range": {
			{Register{"A", 0x01}, []Field{{Name: "x", High: 8, Low: 0}}},
		},
		"overlap": {
			{Register{"A", 0x01}, []Field{
				{Name: "x", High: 4, Low: 2},
				{Name: "y", High: 2, Low: 0},
			}},
		},
		"duplicate field": {
			{Register{"A", 0x01}, []Field{
				{Name: "x", High: 7, Low: 1},
				{Name: "x", High: 0, Low: 0},
			}},
		},
	}
	for name, defs := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewModel(defs...)
			assert.Assert(t, err != nil)
		})
	}

	_, err := NewModel(Definition{Register{"A", 0x01}, []Field{{Name: "x", High: 7, Low: 3}}})
	assert.ErrorContains(t, err, "bits 0x07 not covered")

	_, err = NewModel(Definition{Register{"A", 0x01}, []Field{
		{Name: "x", High: 7, Low: 3},
		{Name: "Unused", High: 2, Low: 0},
	}})
	assert.NilError(t, err)
}

func TestModelAddresses(t *testing.T) {
	d, ok := Registers.ByAddr(RegSyncValue1 + 7)
	assert.Assert(t, ok)
	assert.Equal(t, d.Label, "RegSyncValue8")

	d, ok = Registers.ByAddr(RegAesKey1 + 15)
	assert.Assert(t, ok)
	assert.Equal(t, d.Label, "RegAesKey16")

	assert.Check(t, is.Equal(mustLookup(LabelTestPa2).Addr, uint8(RegTestPa2)))
}
