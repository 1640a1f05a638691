package rfm69

import (
	"fmt"
	"log/slog"
)

// RegisterWriter writes a single register
type RegisterWriter interface {
	WriteRegister(addr uint8, value uint8) error
}

// RegisterReader reads a single register
type RegisterReader interface {
	ReadRegister(addr uint8) (uint8, error)
}

// DataMode selects packet or continuous operation (RegDataModul bits 6:5)
type DataMode uint8

const (
	DataModePacket              DataMode = 0
	DataModeContinuousBitSync   DataMode = 2
	DataModeContinuousNoBitSync DataMode = 3
)

// Modulation selects the modulation scheme (RegDataModul bits 4:3)
type Modulation uint8

const (
	ModulationFSK Modulation = iota
	ModulationOOK
	ModulationReserved1
	ModulationReserved2
)

// Shaping selects the modulation shaping filter (RegDataModul bits 1:0)
type Shaping uint8

const (
	ShapingNone Shaping = iota
	Shaping1 // FSK Gaussian BT=1.0, OOK cutoff BR
	Shaping2 // FSK Gaussian BT=0.5, OOK cutoff 2*BR
	Shaping3 // FSK Gaussian BT=0.3
)

// Framing is the packet framing mode. Unlimited framing is expressed on the
// chip as fixed format with a payload length of zero.
type Framing uint8

const (
	FramingUnlimited Framing = iota
	FramingFixed
	FramingVariable
)

func (f Framing) String() string {
	switch f {
	case FramingUnlimited:
		return "unlimited"
	case FramingFixed:
		return "fixed"
	case FramingVariable:
		return "variable"
	}
	return "unknown"
}

// DCFree selects the DC-free encoding (RegPacketConfig1 bits 6:5)
type DCFree uint8

const (
	DCFreeNone DCFree = iota
	DCFreeManchester
	DCFreeWhitening
)

// AddressFiltering selects address based packet filtering (RegPacketConfig1 bits 2:1)
type AddressFiltering uint8

const (
	AddressFilteringOff AddressFiltering = iota
	AddressFilteringNode
	AddressFilteringNodeOrBroadcast
)

// TxStart is the condition that starts a transmission (RegFifoThresh bit 7)
type TxStart uint8

const (
	TxStartFifoLevel TxStart = iota
	TxStartFifoNotEmpty
)

// PAStage selects which power amplifiers drive the antenna
type PAStage uint8

const (
	PA0 PAStage = iota
	PA1
	PA1PA2
	PA1PA2Boost // PA1+PA2 with the +20dBm test register settings
)

// Configuration is the complete set of operating parameters programmed into
// the transceiver
type Configuration struct {
	OscillatorHz uint32
	CarrierHz    uint32
	BitrateBps   uint32

	DataMode   DataMode
	Modulation Modulation
	Shaping    Shaping

	Framing          Framing
	PayloadLength    uint8
	DCFree           DCFree
	CRC              bool
	CRCAutoClearOff  bool
	AddressFiltering AddressFiltering

	PreambleLength uint16
	SyncOn         bool
	SyncSize       uint8 // bytes, 1..8
	SyncTolerance  uint8 // bits, 0..7
	SyncValue      []byte

	TxStart       TxStart
	FifoThreshold uint8

	PA          PAStage
	OutputPower uint8 // 0..31
	OCP         bool
	OCPTrim     uint8 // 0..15, limit is 45+5*trim mA
}

// DefaultOscillatorHz is the crystal fitted to RFM69 modules
const DefaultOscillatorHz = 32000000

// GarageRemote returns the configuration that reproduces the captured gate
// remote: OOK at 433.945MHz and 1400bps with no preamble, sync word or CRC so
// that only the payload bits reach the air, and the boosted PA at full power.
func GarageRemote() Configuration {
	return Configuration{
		OscillatorHz:     DefaultOscillatorHz,
		CarrierHz:        433945000,
		BitrateBps:       1400,
		DataMode:         DataModePacket,
		Modulation:       ModulationOOK,
		Shaping:          ShapingNone,
		Framing:          FramingUnlimited,
		DCFree:           DCFreeNone,
		CRC:              false,
		CRCAutoClearOff:  false,
		AddressFiltering: AddressFilteringOff,
		PreambleLength:   0,
		SyncOn:           false,
		SyncSize:         1,
		SyncValue:        []byte{0x00, 0x00},
		TxStart:          TxStartFifoNotEmpty,
		FifoThreshold:    0,
		PA:               PA1PA2Boost,
		OutputPower:      31,
		OCP:              false,
		OCPTrim:          0x0F,
	}
}

// Validate checks that every value fits its register field
func (c Configuration) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}

	if c.OscillatorHz == 0 {
		return invalid("oscillator frequency must be set")
	}
	if c.BitrateBps == 0 {
		return invalid("bit rate must be set")
	}
	if v := bitrateDivider(c.OscillatorHz, c.BitrateBps); v == 0 || v > 0xFFFF {
		return invalid("bit rate %dbps not reachable from a %dHz oscillator", c.BitrateBps, c.OscillatorHz)
	}
	if frequencyWord(c.OscillatorHz, c.CarrierHz) > 0xFFFFFF {
		return invalid("carrier frequency %dHz out of range", c.CarrierHz)
	}
	if c.Modulation > ModulationReserved2 {
		return invalid("unknown modulation %d", c.Modulation)
	}
	if c.DataMode == 1 || c.DataMode > DataModeContinuousNoBitSync {
		return invalid("unknown data mode %d", c.DataMode)
	}
	if c.Shaping > Shaping3 {
		return invalid("unknown shaping %d", c.Shaping)
	}
	if c.Framing > FramingVariable {
		return invalid("unknown framing %d", c.Framing)
	}
	if c.Framing == FramingFixed && c.PayloadLength == 0 {
		return invalid("fixed framing needs a payload length, use unlimited framing instead")
	}
	if c.DCFree > DCFreeWhitening {
		return invalid("unknown DC-free encoding %d", c.DCFree)
	}
	if c.AddressFiltering > AddressFilteringNodeOrBroadcast {
		return invalid("unknown address filtering %d", c.AddressFiltering)
	}
	if c.SyncSize < 1 || c.SyncSize > SyncValueLen {
		return invalid("sync size %d must be 1..%d", c.SyncSize, SyncValueLen)
	}
	if c.SyncTolerance > 7 {
		return invalid("sync tolerance %d must be 0..7", c.SyncTolerance)
	}
	if len(c.SyncValue) > SyncValueLen {
		return invalid("sync value has %d bytes, at most %d allowed", len(c.SyncValue), SyncValueLen)
	}
	if c.SyncOn && len(c.SyncValue) < int(c.SyncSize) {
		return invalid("sync value has %d bytes but sync size is %d", len(c.SyncValue), c.SyncSize)
	}
	if c.TxStart > TxStartFifoNotEmpty {
		return invalid("unknown tx start condition %d", c.TxStart)
	}
	if c.FifoThreshold > 0x7F {
		return invalid("fifo threshold %d must be 0..127", c.FifoThreshold)
	}
	if c.PA > PA1PA2Boost {
		return invalid("unknown PA stage %d", c.PA)
	}
	if c.OutputPower > 31 {
		return invalid("output power %d must be 0..31", c.OutputPower)
	}
	if c.OCPTrim > 15 {
		return invalid("OCP trim %d must be 0..15", c.OCPTrim)
	}
	return nil
}

func bitrateDivider(oscHz, bps uint32) uint64 {
	return (uint64(oscHz) + uint64(bps)/2) / uint64(bps)
}

func frequencyWord(oscHz, hz uint32) uint64 {
	return ((uint64(hz) << 19) + uint64(oscHz)/2) / uint64(oscHz)
}

// BitrateRegisters returns the RegBitrateMsb/RegBitrateLsb pair for the bit
// rate, round(osc/bps) split into two bytes
func BitrateRegisters(oscHz, bps uint32) (msb, lsb uint8) {
	v := bitrateDivider(oscHz, bps)
	return uint8(v >> 8), uint8(v)
}

// BitrateFromRegisters computes the effective bit rate programmed by a
// RegBitrateMsb/RegBitrateLsb pair
func BitrateFromRegisters(oscHz uint32, msb, lsb uint8) float64 {
	v := uint16(msb)<<8 | uint16(lsb)
	if v == 0 {
		return 0
	}
	return float64(oscHz) / float64(v)
}

// FrequencyRegisters returns the RegFrf bytes for a carrier frequency. One
// step is osc/2^19, 61.03515625Hz for a 32MHz crystal.
func FrequencyRegisters(oscHz, hz uint32) (msb, mid, lsb uint8) {
	frf := frequencyWord(oscHz, hz)
	return uint8(frf >> 16), uint8(frf >> 8), uint8(frf)
}

// FrequencyFromRegisters computes the carrier frequency programmed in RegFrf
func FrequencyFromRegisters(oscHz uint32, msb, mid, lsb uint8) float64 {
	frf := uint32(msb)<<16 | uint32(mid)<<8 | uint32(lsb)
	return float64(oscHz) * float64(frf) / float64(1<<19)
}

// Step is one register write of the configuration sequence
type Step struct {
	Stage    string
	Register Register
	Value    uint8
}

// Steps computes the register writes for c in the order they must be applied
func Steps(c Configuration) ([]Step, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var steps []Step
	var err error
	add := func(stage, label string, bits map[string]uint8) {
		if err != nil {
			return
		}
		var v uint8
		v, err = Pack(label, bits)
		steps = append(steps, Step{Stage: stage, Register: mustLookup(label), Value: v})
	}
	b := func(v bool) uint8 {
		if v {
			return 1
		}
		return 0
	}

	stage := fmt.Sprintf("Setting frequency to %dHz", c.CarrierHz)
	msb, mid, lsb := FrequencyRegisters(c.OscillatorHz, c.CarrierHz)
	add(stage, LabelFrfMsb, map[string]uint8{"FrfMsb": msb})
	add(stage, LabelFrfMid, map[string]uint8{"FrfMid": mid})
	add(stage, LabelFrfLsb, map[string]uint8{"FrfLsb": lsb})

	add("Setting data mode, modulation and shaping", LabelDataModul, map[string]uint8{
		"DataMode":          uint8(c.DataMode),
		"ModulationType":    uint8(c.Modulation),
		"ModulationShaping": uint8(c.Shaping),
	})

	format := uint8(0)
	if c.Framing == FramingVariable {
		format = 1
	}
	stage = fmt.Sprintf("Setting %s length packet format, CRC %s", c.Framing, onOff[b(c.CRC)])
	add(stage, LabelPacketConfig1, map[string]uint8{
		"PacketFormat":     format,
		"DcFree":           uint8(c.DCFree),
		"CrcOn":            b(c.CRC),
		"CrcAutoClearOff":  b(c.CRCAutoClearOff),
		"AddressFiltering": uint8(c.AddressFiltering),
	})

	// Fixed format with a zero length selects unlimited length packets, the
	// FIFO start condition alone then decides what goes on the air.
	length := c.PayloadLength
	if c.Framing == FramingUnlimited {
		length = 0
	}
	add("Setting payload length", LabelPayloadLength, map[string]uint8{"PayloadLength": length})

	add("Setting FIFO threshold", LabelFifoThresh, map[string]uint8{
		"TxStartCondition": uint8(c.TxStart),
		"FifoThreshold":    c.FifoThreshold,
	})

	stage = "Setting preamble and sync word"
	add(stage, LabelPreambleMsb, map[string]uint8{"PreambleSizeMsb": uint8(c.PreambleLength >> 8)})
	add(stage, LabelPreambleLsb, map[string]uint8{"PreambleSizeLsb": uint8(c.PreambleLength)})
	add(stage, LabelSyncConfig, map[string]uint8{
		"SyncOn":            b(c.SyncOn),
		"FifoFillCondition": 0,
		"SyncSize":          c.SyncSize - 1,
		"SyncTol":           c.SyncTolerance,
	})
	for i, v := range c.SyncValue {
		add(stage, SyncValueLabel(i+1), map[string]uint8{fmt.Sprintf("SyncValue%d", i+1): v})
	}

	stage = fmt.Sprintf("Setting bitrate to %dbps", c.BitrateBps)
	msb, lsb = BitrateRegisters(c.OscillatorHz, c.BitrateBps)
	add(stage, LabelBitrateMsb, map[string]uint8{"BitRateMsb": msb})
	add(stage, LabelBitrateLsb, map[string]uint8{"BitRateLsb": lsb})

	stage = fmt.Sprintf("Setting power amplifier, OCP %s", onOff[b(c.OCP)])
	pa := map[string]uint8{"OutputPower": c.OutputPower}
	switch c.PA {
	case PA0:
		pa["Pa0On"] = 1
	case PA1:
		pa["Pa1On"] = 1
	default:
		pa["Pa1On"] = 1
		pa["Pa2On"] = 1
	}
	add(stage, LabelPaLevel, pa)
	testPa1, testPa2 := uint8(TestPa1Normal), uint8(TestPa2Normal)
	if c.PA == PA1PA2Boost {
		testPa1, testPa2 = TestPa1Boost, TestPa2Boost
	}
	add(stage, LabelTestPa1, map[string]uint8{"Pa20dBm1": testPa1})
	add(stage, LabelTestPa2, map[string]uint8{"Pa20dBm2": testPa2})
	add(stage, LabelOcp, map[string]uint8{"OcpOn": b(c.OCP), "OcpTrim": c.OCPTrim})

	if err != nil {
		return nil, err
	}
	return steps, nil
}

// Apply programs the configuration into the radio. The first failed write
// aborts the sequence; nothing is rolled back.
func Apply(c Configuration, w RegisterWriter) error {
	steps, err := Steps(c)
	if err != nil {
		return &ConfigError{Err: err}
	}

	stage := ""
	for _, s := range steps {
		if s.Stage != stage {
			stage = s.Stage
			slog.Info(stage)
		}
		if err := w.WriteRegister(s.Register.Addr, s.Value); err != nil {
			return &ConfigError{Register: s.Register, Err: err}
		}
		slog.Debug("Register written", "register", s.Register.Label,
			"address", fmt.Sprintf("0x%02X", s.Register.Addr), "value", fmt.Sprintf("0x%02X", s.Value))
	}

	slog.Info("Radio configured", "writes", len(steps))
	return nil
}
