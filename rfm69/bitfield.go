package rfm69

import (
	"fmt"
	"strconv"
)

// Register is one 8-bit addressable register of the transceiver
type Register struct {
	Label string
	Addr  uint8
}

func (r Register) String() string {
	return fmt.Sprintf("%s (0x%02X)", r.Label, r.Addr)
}

// Field is a named bit range within a register. High and Low are inclusive bit
// positions. Enumerated fields carry a decode table in Labels; fields without
// one are numeric and decode to their value plus Offset.
type Field struct {
	Name   string
	High   uint8
	Low    uint8
	Labels map[uint8]string
	Offset int
	Unit   string
}

// Width returns the number of bits covered by the field
func (f Field) Width() uint8 {
	return f.High - f.Low + 1
}

// Mask returns the register bits owned by the field
func (f Field) Mask() uint8 {
	return uint8(((uint16(1) << f.Width()) - 1) << f.Low)
}

// Extract returns the field's raw bits from a register value, right aligned
func (f Field) Extract(raw uint8) uint8 {
	return (raw & f.Mask()) >> f.Low
}

// Insert returns raw with the field's bits replaced by bits
func (f Field) Insert(raw, bits uint8) uint8 {
	return (raw &^ f.Mask()) | ((bits << f.Low) & f.Mask())
}

// Label renders raw field bits as their semantic label. Reserved combinations
// of enumerated fields come back as Unrecognized(bits).
func (f Field) Label(bits uint8) string {
	if f.Labels == nil {
		return strconv.Itoa(int(bits) + f.Offset)
	}
	if label, ok := f.Labels[bits]; ok {
		return label
	}
	return Unrecognized(bits)
}

// Parse is the inverse of Label
func (f Field) Parse(label string) (uint8, error) {
	var bits uint8
	if _, err := fmt.Sscanf(label, "unrecognized(%d)", &bits); err == nil {
		if bits > f.Extract(0xFF) {
			return 0, fmt.Errorf("field %s: value %d does not fit in %d bits", f.Name, bits, f.Width())
		}
		return bits, nil
	}

	if f.Labels == nil {
		n, err := strconv.Atoi(label)
		if err != nil {
			return 0, fmt.Errorf("field %s: invalid numeric value %q: %w", f.Name, label, err)
		}
		n -= f.Offset
		if n < 0 || n > int(f.Extract(0xFF)) {
			return 0, fmt.Errorf("field %s: value %q out of range", f.Name, label)
		}
		return uint8(n), nil
	}

	for bits, l := range f.Labels {
		if l == label {
			return bits, nil
		}
	}
	return 0, fmt.Errorf("field %s: unknown label %q", f.Name, label)
}

// Unrecognized is the label used for raw bits that have no entry in a decode table
func Unrecognized(bits uint8) string {
	return fmt.Sprintf("unrecognized(%d)", bits)
}

// Definition describes one register and the bitfields packed into it
type Definition struct {
	Register
	Fields []Field
}

// Mask returns the union of all defined field bits, 0xFF for a validated model
func (d *Definition) Mask() uint8 {
	var m uint8
	for _, f := range d.Fields {
		m |= f.Mask()
	}
	return m
}

// Field looks up a field by name
func (d *Definition) Field(name string) (Field, error) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, &UnknownFieldError{Register: d.Label, Field: name}
}

// Attribute is one decoded field value
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Model is an immutable set of register definitions
type Model struct {
	defs    []*Definition
	byLabel map[string]*Definition
	byAddr  map[uint8]*Definition
}

// NewModel validates the definitions and builds a model from them. Addresses
// and labels must be unique, bit ranges must lie within [0,7] with High >= Low,
// and the fields of one register must cover all eight bits without overlap.
func NewModel(defs ...Definition) (*Model, error) {
	m := &Model{
		byLabel: make(map[string]*Definition, len(defs)),
		byAddr:  make(map[uint8]*Definition, len(defs)),
	}

	for i := range defs {
		d := &defs[i]
		if _, dup := m.byLabel[d.Label]; dup {
			return nil, fmt.Errorf("duplicate register label %s", d.Label)
		}
		if other, dup := m.byAddr[d.Addr]; dup {
			return nil, fmt.Errorf("register %s reuses address 0x%02X of %s", d.Label, d.Addr, other.Label)
		}

		var used uint8
		names := make(map[string]bool, len(d.Fields))
		for _, f := range d.Fields {
			if f.High > 7 || f.Low > f.High {
				return nil, fmt.Errorf("register %s: field %s has invalid bit range (%d,%d)", d.Label, f.Name, f.High, f.Low)
			}
			if used&f.Mask() != 0 {
				return nil, fmt.Errorf("register %s: field %s overlaps another field", d.Label, f.Name)
			}
			if names[f.Name] {
				return nil, fmt.Errorf("register %s: duplicate field %s", d.Label, f.Name)
			}
			used |= f.Mask()
			names[f.Name] = true
		}
		if used != 0xFF {
			return nil, fmt.Errorf("register %s: bits 0x%02X not covered by any field", d.Label, ^used)
		}

		m.defs = append(m.defs, d)
		m.byLabel[d.Label] = d
		m.byAddr[d.Addr] = d
	}

	return m, nil
}

// Definitions returns the definitions in declaration order
func (m *Model) Definitions() []*Definition {
	out := make([]*Definition, len(m.defs))
	copy(out, m.defs)
	return out
}

// Lookup finds a register definition by label
func (m *Model) Lookup(label string) (*Definition, error) {
	d, ok := m.byLabel[label]
	if !ok {
		return nil, &UnknownRegisterError{Label: label}
	}
	return d, nil
}

// ByAddr finds a register definition by address
func (m *Model) ByAddr(addr uint8) (*Definition, bool) {
	d, ok := m.byAddr[addr]
	return d, ok
}

// Decode renders every field of the register as its semantic label
func (m *Model) Decode(label string, raw uint8) ([]Attribute, error) {
	d, err := m.Lookup(label)
	if err != nil {
		return nil, err
	}

	attrs := make([]Attribute, 0, len(d.Fields))
	for _, f := range d.Fields {
		attrs = append(attrs, Attribute{
			Name:  f.Name,
			Value: f.Label(f.Extract(raw)),
			Unit:  f.Unit,
		})
	}
	return attrs, nil
}

// FieldValue returns the raw bits of one field
func (m *Model) FieldValue(label, field string, raw uint8) (uint8, error) {
	d, err := m.Lookup(label)
	if err != nil {
		return 0, err
	}
	f, err := d.Field(field)
	if err != nil {
		return 0, err
	}
	return f.Extract(raw), nil
}

// Pack assembles a register value from raw field bits. Fields not present in
// bits are left zero.
func (m *Model) Pack(label string, bits map[string]uint8) (uint8, error) {
	d, err := m.Lookup(label)
	if err != nil {
		return 0, err
	}

	var raw uint8
	for name, v := range bits {
		f, err := d.Field(name)
		if err != nil {
			return 0, err
		}
		if v > f.Extract(0xFF) {
			return 0, fmt.Errorf("register %s: value %d does not fit field %s", label, v, name)
		}
		raw = f.Insert(raw, v)
	}
	return raw, nil
}

// Encode is the inverse of Decode: it parses attribute labels back into their
// field bits and packs them.
func (m *Model) Encode(label string, attrs []Attribute) (uint8, error) {
	d, err := m.Lookup(label)
	if err != nil {
		return 0, err
	}

	bits := make(map[string]uint8, len(attrs))
	for _, a := range attrs {
		f, err := d.Field(a.Name)
		if err != nil {
			return 0, err
		}
		v, err := f.Parse(a.Value)
		if err != nil {
			return 0, fmt.Errorf("register %s: %w", label, err)
		}
		bits[a.Name] = v
	}
	return m.Pack(label, bits)
}

// UnknownRegisterError is returned for a register label that is not modelled
type UnknownRegisterError struct {
	Label string
}

func (e *UnknownRegisterError) Error() string {
	return fmt.Sprintf("unknown register %q", e.Label)
}

// UnknownFieldError is returned for a field name that a register does not define
type UnknownFieldError struct {
	Register string
	Field    string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("register %s has no field %q", e.Register, e.Field)
}
