package rfm69

import "fmt"

// Register labels as used in the datasheet
const (
	LabelOpMode        = "RegOpMode"
	LabelDataModul     = "RegDataModul"
	LabelBitrateMsb    = "RegBitrateMsb"
	LabelBitrateLsb    = "RegBitrateLsb"
	LabelFrfMsb        = "RegFrfMsb"
	LabelFrfMid        = "RegFrfMid"
	LabelFrfLsb        = "RegFrfLsb"
	LabelVersion       = "RegVersion"
	LabelPaLevel       = "RegPaLevel"
	LabelOcp           = "RegOcp"
	LabelIrqFlags1     = "RegIrqFlags1"
	LabelIrqFlags2     = "RegIrqFlags2"
	LabelPreambleMsb   = "RegPreambleMsb"
	LabelPreambleLsb   = "RegPreambleLsb"
	LabelSyncConfig    = "RegSyncConfig"
	LabelPacketConfig1 = "RegPacketConfig1"
	LabelPayloadLength = "RegPayloadLength"
	LabelFifoThresh    = "RegFifoThresh"
	LabelPacketConfig2 = "RegPacketConfig2"
	LabelTestPa1       = "RegTestPa1"
	LabelTestPa2       = "RegTestPa2"
)

// SyncValueLabel returns the label of sync word register n (1..8)
func SyncValueLabel(n int) string { return fmt.Sprintf("RegSyncValue%d", n) }

// AesKeyLabel returns the label of cypher key register n (1..16)
func AesKeyLabel(n int) string { return fmt.Sprintf("RegAesKey%d", n) }

var onOff = map[uint8]string{0: "Off", 1: "On"}
var enabled = map[uint8]string{0: "Disabled", 1: "Enabled"}
var flag = map[uint8]string{0: "Clear", 1: "Set"}

func byteField(name string) []Field {
	return []Field{{Name: name, High: 7, Low: 0}}
}

func definitions() []Definition {
	defs := []Definition{
		{Register{LabelOpMode, RegOpMode}, []Field{
			{Name: "SequencerOff", High: 7, Low: 7, Labels: map[uint8]string{
				0: "Automatic sequencer", 1: "Mode forced by user"}},
			{Name: "ListenOn", High: 6, Low: 6, Labels: onOff},
			{Name: "ListenAbort", High: 5, Low: 5, Labels: flag},
			{Name: "Mode", High: 4, Low: 2, Labels: map[uint8]string{
				0: "Sleep", 1: "Standby", 2: "Frequency Synthesizer", 3: "Transmit", 4: "Receive"}},
			{Name: "Unused", High: 1, Low: 0},
		}},
		{Register{LabelDataModul, RegDataModul}, []Field{
			{Name: "Unused7", High: 7, Low: 7},
			{Name: "DataMode", High: 6, Low: 5, Labels: map[uint8]string{
				0: "Packet mode",
				2: "Continuous mode with bit synchronizer",
				3: "Continuous mode without bit synchronizer"}},
			{Name: "ModulationType", High: 4, Low: 3, Labels: map[uint8]string{
				0: "FSK", 1: "OOK", 2: "reserved1", 3: "reserved2"}},
			{Name: "Unused2", High: 2, Low: 2},
			{Name: "ModulationShaping", High: 1, Low: 0, Labels: map[uint8]string{
				0: "No Shaping",
				1: "FSK:GaussianBT=1.0, OOK:FCutoff=BR",
				2: "FSK:GaussianBT=0.5, OOK:FCutoff=2*BR",
				3: "FSK:GaussianBT=0.3, OOK:reserved"}},
		}},
		{Register{LabelBitrateMsb, RegBitrateMsb}, byteField("BitRateMsb")},
		{Register{LabelBitrateLsb, RegBitrateLsb}, byteField("BitRateLsb")},
		{Register{LabelFrfMsb, RegFrfMsb}, byteField("FrfMsb")},
		{Register{LabelFrfMid, RegFrfMid}, byteField("FrfMid")},
		{Register{LabelFrfLsb, RegFrfLsb}, byteField("FrfLsb")},
		{Register{LabelVersion, RegVersion}, []Field{
			{Name: "FullRevision", High: 7, Low: 4},
			{Name: "MetalMaskRevision", High: 3, Low: 0},
		}},
		{Register{LabelPaLevel, RegPaLevel}, []Field{
			{Name: "Pa0On", High: 7, Low: 7, Labels: enabled},
			{Name: "Pa1On", High: 6, Low: 6, Labels: enabled},
			{Name: "Pa2On", High: 5, Low: 5, Labels: enabled},
			{Name: "OutputPower", High: 4, Low: 0},
		}},
		{Register{LabelOcp, RegOcp}, []Field{
			{Name: "Unused", High: 7, Low: 5},
			{Name: "OcpOn", High: 4, Low: 4, Labels: enabled},
			{Name: "OcpTrim", High: 3, Low: 0},
		}},
		{Register{LabelIrqFlags1, RegIrqFlags1}, []Field{
			{Name: "ModeReady", High: 7, Low: 7, Labels: flag},
			{Name: "RxReady", High: 6, Low: 6, Labels: flag},
			{Name: "TxReady", High: 5, Low: 5, Labels: flag},
			{Name: "PllLock", High: 4, Low: 4, Labels: flag},
			{Name: "Rssi", High: 3, Low: 3, Labels: flag},
			{Name: "Timeout", High: 2, Low: 2, Labels: flag},
			{Name: "AutoMode", High: 1, Low: 1, Labels: flag},
			{Name: "SyncAddressMatch", High: 0, Low: 0, Labels: flag},
		}},
		{Register{LabelIrqFlags2, RegIrqFlags2}, []Field{
			{Name: "FifoFull", High: 7, Low: 7, Labels: flag},
			{Name: "FifoNotEmpty", High: 6, Low: 6, Labels: flag},
			{Name: "FifoLevel", High: 5, Low: 5, Labels: flag},
			{Name: "FifoOverrun", High: 4, Low: 4, Labels: flag},
			{Name: "PacketSent", High: 3, Low: 3, Labels: flag},
			{Name: "PayloadReady", High: 2, Low: 2, Labels: flag},
			{Name: "CrcOk", High: 1, Low: 1, Labels: flag},
			{Name: "Unused", High: 0, Low: 0},
		}},
		{Register{LabelPreambleMsb, RegPreambleMsb}, byteField("PreambleSizeMsb")},
		{Register{LabelPreambleLsb, RegPreambleLsb}, byteField("PreambleSizeLsb")},
		{Register{LabelSyncConfig, RegSyncConfig}, []Field{
			{Name: "SyncOn", High: 7, Low: 7, Labels: onOff},
			{Name: "FifoFillCondition", High: 6, Low: 6, Labels: map[uint8]string{
				0: "If SyncAddress interrupt occurs",
				1: "As long as FifoFillCondition is set"}},
			{Name: "SyncSize", High: 5, Low: 3, Offset: 1, Unit: "bytes"},
			{Name: "SyncTol", High: 2, Low: 0, Unit: "bits"},
		}},
		{Register{LabelPacketConfig1, RegPacketConfig1}, []Field{
			{Name: "PacketFormat", High: 7, Low: 7, Labels: map[uint8]string{
				0: "Fixed length", 1: "Variable length"}},
			{Name: "DcFree", High: 6, Low: 5, Labels: map[uint8]string{
				0: "None (Off)", 1: "Manchester", 2: "Whitening"}},
			{Name: "CrcOn", High: 4, Low: 4, Labels: onOff},
			{Name: "CrcAutoClearOff", High: 3, Low: 3, Labels: map[uint8]string{
				0: "Clear FIFO on CRC fail restart new packet reception",
				1: "Do not clear FIFO on CRC fail"}},
			{Name: "AddressFiltering", High: 2, Low: 1, Labels: map[uint8]string{
				0: "None (Off)",
				1: "Address field must match NodeAddress",
				2: "Address field must match NodeAddress or BroadcastAddress"}},
			{Name: "Unused", High: 0, Low: 0},
		}},
		{Register{LabelPayloadLength, RegPayloadLength}, []Field{
			{Name: "PayloadLength", High: 7, Low: 0, Unit: "bytes"},
		}},
		{Register{LabelFifoThresh, RegFifoThresh}, []Field{
			{Name: "TxStartCondition", High: 7, Low: 7, Labels: map[uint8]string{
				0: "FifoLevel (number of bytes in FIFO is FifoThreshold + 1)",
				1: "FifoNotEmpty (at least one byte in the FIFO)"}},
			{Name: "FifoThreshold", High: 6, Low: 0, Unit: "bytes"},
		}},
		{Register{LabelPacketConfig2, RegPacketConfig2}, []Field{
			{Name: "InterPacketRxDelay", High: 7, Low: 4},
			{Name: "Unused", High: 3, Low: 3},
			{Name: "RestartRx", High: 2, Low: 2, Labels: flag},
			{Name: "AutoRxRestartOn", High: 1, Low: 1, Labels: onOff},
			{Name: "AesOn", High: 0, Low: 0, Labels: onOff},
		}},
		{Register{LabelTestPa1, RegTestPa1}, []Field{
			{Name: "Pa20dBm1", High: 7, Low: 0, Labels: map[uint8]string{
				TestPa1Normal: "Normal and Rx mode", TestPa1Boost: "+20dBm mode"}},
		}},
		{Register{LabelTestPa2, RegTestPa2}, []Field{
			{Name: "Pa20dBm2", High: 7, Low: 0, Labels: map[uint8]string{
				TestPa2Normal: "Normal and Rx mode", TestPa2Boost: "+20dBm mode"}},
		}},
	}

	for i := 1; i <= SyncValueLen; i++ {
		defs = append(defs, Definition{
			Register{SyncValueLabel(i), RegSyncValue1 + uint8(i-1)},
			byteField(fmt.Sprintf("SyncValue%d", i)),
		})
	}
	for i := 1; i <= AesKeyLen; i++ {
		defs = append(defs, Definition{
			Register{AesKeyLabel(i), RegAesKey1 + uint8(i-1)},
			byteField(fmt.Sprintf("AesKey%d", i)),
		})
	}
	return defs
}

// Registers is the process-wide register model
var Registers = mustModel(definitions()...)

func mustModel(defs ...Definition) *Model {
	m, err := NewModel(defs...)
	if err != nil {
		panic("rfm69: invalid register model: " + err.Error())
	}
	return m
}

// Lookup finds a register of the default model by label
func Lookup(label string) (*Definition, error) { return Registers.Lookup(label) }

// Decode decodes raw with the default model
func Decode(label string, raw uint8) ([]Attribute, error) { return Registers.Decode(label, raw) }

// FieldValue extracts one field with the default model
func FieldValue(label, field string, raw uint8) (uint8, error) {
	return Registers.FieldValue(label, field, raw)
}

// Encode packs decoded attributes with the default model
func Encode(label string, attrs []Attribute) (uint8, error) { return Registers.Encode(label, attrs) }

// Pack packs raw field bits with the default model
func Pack(label string, bits map[string]uint8) (uint8, error) { return Registers.Pack(label, bits) }

func mustLookup(label string) Register {
	d, err := Registers.Lookup(label)
	if err != nil {
		panic(err)
	}
	return d.Register
}
