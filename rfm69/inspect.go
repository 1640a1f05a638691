package rfm69

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// View is a diagnostic view over one or more consecutive registers. Registers
// lists the displayed registers most significant first; Context lists extra
// registers that Derive needs but that are not part of the view itself.
type View struct {
	Label     string
	Registers []string
	Context   []string
	Fields    bool // decode the bitfields of each register
	Bits      bool // show the raw register bits
	Derive    func(osc uint32, raw, ctx []uint8) []Attribute
}

// Entry is one decoded view of a diagnostic report
type Entry struct {
	Label      string      `json:"label"`
	Addrs      []uint8     `json:"addrs"`
	Raw        []uint8     `json:"raw"`
	ShowBits   bool        `json:"-"`
	Attributes []Attribute `json:"attributes"`
}

// Report is the decoded register state, in the order it was requested
type Report struct {
	Entries []Entry `json:"entries"`
}

// Attribute returns the first attribute with the given name in the entry
// labelled entry
func (r *Report) Attribute(entry, name string) (Attribute, bool) {
	for _, e := range r.Entries {
		if e.Label != entry {
			continue
		}
		for _, a := range e.Attributes {
			if a.Name == name {
				return a, true
			}
		}
	}
	return Attribute{}, false
}

func sequence(label func(int) string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = label(i + 1)
	}
	return out
}

func concatHex(raw []uint8) string {
	v := new(big.Int).SetBytes(raw)
	return fmt.Sprintf("0x%0*x", len(raw)*2, v)
}

// OcpCurrentLimit returns the PA current limit in mA programmed by an OCP trim value
func OcpCurrentLimit(trim uint8) int {
	return 45 + 5*int(trim&0x0F)
}

// PaOutputPower returns the output power in dBm selected by RegPaLevel and RegTestPa1
func PaOutputPower(paLevel, testPa1 uint8) int {
	power := int(paLevel & 0x1F)
	pa1, pa2 := paLevel&0x40 != 0, paLevel&0x20 != 0
	switch {
	case pa1 && pa2 && testPa1 == TestPa1Boost:
		return -11 + power
	case pa1 && pa2:
		return -14 + power
	default:
		return -18 + power
	}
}

var views = map[string]View{
	"RegFrf": {
		Label:     "RegFrf",
		Registers: []string{LabelFrfMsb, LabelFrfMid, LabelFrfLsb},
		Bits:      true,
		Derive: func(osc uint32, raw, _ []uint8) []Attribute {
			hz := FrequencyFromRegisters(osc, raw[0], raw[1], raw[2])
			return []Attribute{{Name: "Frequency", Value: strconv.FormatInt(int64(math.Round(hz)), 10), Unit: "Hz"}}
		},
	},
	"RegBitrate": {
		Label:     "RegBitrate",
		Registers: []string{LabelBitrateMsb, LabelBitrateLsb},
		Bits:      true,
		Derive: func(osc uint32, raw, _ []uint8) []Attribute {
			bps := BitrateFromRegisters(osc, raw[0], raw[1])
			return []Attribute{{Name: "Bitrate", Value: strconv.FormatInt(int64(math.Round(bps)), 10), Unit: "bps"}}
		},
	},
	LabelPacketConfig1: {
		Label:     LabelPacketConfig1,
		Registers: []string{LabelPacketConfig1},
		Context:   []string{LabelPayloadLength},
		Fields:    true,
		Bits:      true,
		Derive: func(_ uint32, raw, ctx []uint8) []Attribute {
			format := "Fixed length"
			switch {
			case raw[0]&0x80 != 0:
				format = "Variable length"
			case ctx[0] == 0:
				format = "Unlimited length"
			}
			return []Attribute{{Name: "EffectiveFormat", Value: format}}
		},
	},
	"RegAesKey": {
		Label:     "RegAesKey",
		Registers: sequence(AesKeyLabel, AesKeyLen),
		Derive: func(_ uint32, raw, _ []uint8) []Attribute {
			return []Attribute{{Name: "AesKey", Value: concatHex(raw)}}
		},
	},
	"RegPreamble": {
		Label:     "RegPreamble",
		Registers: []string{LabelPreambleMsb, LabelPreambleLsb},
		Bits:      true,
		Derive: func(_ uint32, raw, _ []uint8) []Attribute {
			n := int(raw[0])<<8 | int(raw[1])
			return []Attribute{{Name: "Preamble Length", Value: strconv.Itoa(n), Unit: "bytes"}}
		},
	},
	"RegSyncValue": {
		Label:     "RegSyncValue",
		Registers: sequence(SyncValueLabel, SyncValueLen),
		Derive: func(_ uint32, raw, _ []uint8) []Attribute {
			return []Attribute{{Name: "SyncValue", Value: concatHex(raw)}}
		},
	},
	LabelPaLevel: {
		Label:     LabelPaLevel,
		Registers: []string{LabelPaLevel},
		Context:   []string{LabelTestPa1},
		Fields:    true,
		Bits:      true,
		Derive: func(_ uint32, raw, ctx []uint8) []Attribute {
			dbm := PaOutputPower(raw[0], ctx[0])
			return []Attribute{{Name: "Pout", Value: strconv.Itoa(dbm), Unit: "dBm"}}
		},
	},
	LabelOcp: {
		Label:     LabelOcp,
		Registers: []string{LabelOcp},
		Fields:    true,
		Bits:      true,
		Derive: func(_ uint32, raw, _ []uint8) []Attribute {
			return []Attribute{{Name: "CurrentLimit", Value: strconv.Itoa(OcpCurrentLimit(raw[0])), Unit: "mA"}}
		},
	},
}

// DefaultGroups is the register set dumped by the debug output, in order
var DefaultGroups = []string{
	LabelOpMode,
	"RegFrf",
	LabelDataModul,
	"RegBitrate",
	LabelPacketConfig1,
	LabelPacketConfig2,
	"RegAesKey",
	"RegPreamble",
	LabelSyncConfig,
	"RegSyncValue",
	LabelPayloadLength,
	LabelFifoThresh,
	LabelPaLevel,
	LabelOcp,
	LabelTestPa1,
	LabelTestPa2,
}

// LookupView returns the view for a group label. Plain register labels get a
// single register view that decodes every field.
func LookupView(label string) (View, error) {
	if v, ok := views[label]; ok {
		return v, nil
	}
	if _, err := Registers.Lookup(label); err != nil {
		return View{}, err
	}
	return View{Label: label, Registers: []string{label}, Fields: true, Bits: true}, nil
}

// BurstReader reads consecutive registers in one bus transaction
type BurstReader interface {
	BurstRead(addr uint8, count int) ([]uint8, error)
}

// burstSpan returns the address of the first register when labels name
// registers at consecutive addresses
func burstSpan(labels []string) (uint8, bool) {
	if len(labels) < 2 {
		return 0, false
	}
	first := mustLookup(labels[0]).Addr
	for i, label := range labels {
		d, ok := Registers.ByAddr(first + uint8(i))
		if !ok || d.Label != label {
			return 0, false
		}
	}
	return first, true
}

// Inspector reads and decodes live register state. Multi-register views are
// fetched with a single burst when the Reader is also a BurstReader.
type Inspector struct {
	OscillatorHz uint32
	Reader       RegisterReader
}

// Inspect reads the registers behind each group and decodes them. The only
// side effects are the register reads. On a read failure the entries decoded
// so far are returned together with a *ReadError.
func Inspect(groups []string, r RegisterReader) (*Report, error) {
	return (&Inspector{OscillatorHz: DefaultOscillatorHz, Reader: r}).Inspect(groups)
}

// Inspect reads and decodes the given groups
func (in *Inspector) Inspect(groups []string) (*Report, error) {
	report := &Report{}
	cache := make(map[uint8]uint8)

	read := func(label string) (uint8, error) {
		d, err := Registers.Lookup(label)
		if err != nil {
			return 0, err
		}
		if v, ok := cache[d.Addr]; ok {
			return v, nil
		}
		v, err := in.Reader.ReadRegister(d.Addr)
		if err != nil {
			return 0, &ReadError{Register: d.Register, Err: err}
		}
		cache[d.Addr] = v
		return v, nil
	}

	for _, g := range groups {
		view, err := LookupView(g)
		if err != nil {
			return report, err
		}

		if br, ok := in.Reader.(BurstReader); ok {
			if first, ok := burstSpan(view.Registers); ok {
				if _, cached := cache[first]; !cached {
					n := len(view.Registers)
					vals, err := br.BurstRead(first, n)
					if err == nil && len(vals) != n {
						err = fmt.Errorf("short burst: %d of %d registers", len(vals), n)
					}
					if err != nil {
						return report, &ReadError{Register: mustLookup(view.Registers[0]), Err: err}
					}
					for i, v := range vals {
						cache[first+uint8(i)] = v
					}
				}
			}
		}

		entry := Entry{Label: view.Label, ShowBits: view.Bits}
		for _, label := range view.Registers {
			v, err := read(label)
			if err != nil {
				return report, err
			}
			entry.Addrs = append(entry.Addrs, mustLookup(label).Addr)
			entry.Raw = append(entry.Raw, v)
			if view.Fields {
				attrs, err := Registers.Decode(label, v)
				if err != nil {
					return report, err
				}
				entry.Attributes = append(entry.Attributes, attrs...)
			}
		}

		if view.Derive != nil {
			ctx := make([]uint8, 0, len(view.Context))
			for _, label := range view.Context {
				v, err := read(label)
				if err != nil {
					return report, err
				}
				ctx = append(ctx, v)
			}
			entry.Attributes = append(entry.Attributes, view.Derive(in.OscillatorHz, entry.Raw, ctx)...)
		}

		report.Entries = append(report.Entries, entry)
	}

	return report, nil
}
