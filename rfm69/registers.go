package rfm69

// RFM69 (SX1231) register addresses
const (
	RegFifo          = 0x00 // FIFO read/write access
	RegOpMode        = 0x01 // Operating modes of the transceiver
	RegDataModul     = 0x02 // Data operation mode and modulation settings
	RegBitrateMsb    = 0x03 // Bit rate setting, MSB
	RegBitrateLsb    = 0x04 // Bit rate setting, LSB
	RegFrfMsb        = 0x07 // RF carrier frequency, MSB
	RegFrfMid        = 0x08 // RF carrier frequency, middle byte
	RegFrfLsb        = 0x09 // RF carrier frequency, LSB
	RegVersion       = 0x10 // Chip version
	RegPaLevel       = 0x11 // PA selection and output power control
	RegOcp           = 0x13 // Over current protection control
	RegIrqFlags1     = 0x27 // Status register: PLL lock state, timeout, RSSI
	RegIrqFlags2     = 0x28 // Status register: FIFO handling flags
	RegPreambleMsb   = 0x2C // Preamble length, MSB
	RegPreambleLsb   = 0x2D // Preamble length, LSB
	RegSyncConfig    = 0x2E // Sync word recognition control
	RegSyncValue1    = 0x2F // Sync word bytes, 1 through 8
	RegPacketConfig1 = 0x37 // Packet mode settings
	RegPayloadLength = 0x38 // Payload length setting
	RegFifoThresh    = 0x3C // FIFO threshold, TX start condition
	RegPacketConfig2 = 0x3D // Packet mode settings
	RegAesKey1       = 0x3E // Cypher key bytes, 1 through 16
	RegTestPa1       = 0x5A // High power PA settings
	RegTestPa2       = 0x5C // High power PA settings
)

// Sizes of the multi-register blocks
const (
	SyncValueLen = 8
	AesKeyLen    = 16

	// FifoSize is the depth of the transmit/receive FIFO in bytes.
	FifoSize = 66
)

// Mode is the transceiver operating mode held in RegOpMode bits 4:2.
type Mode uint8

const (
	ModeSleep   Mode = 0x00
	ModeStandby Mode = 0x01
	ModeFS      Mode = 0x02
	ModeTx      Mode = 0x03
	ModeRx      Mode = 0x04
)

// String returns the datasheet name of the mode
func (m Mode) String() string {
	switch m {
	case ModeSleep:
		return "Sleep"
	case ModeStandby:
		return "Standby"
	case ModeFS:
		return "FS"
	case ModeTx:
		return "Tx"
	case ModeRx:
		return "Rx"
	}
	return "Unknown"
}

// OpModeValue returns the RegOpMode byte selecting m with the sequencer enabled
// and listen mode off.
func (m Mode) OpModeValue() uint8 {
	return uint8(m&0x07) << 2
}

// RegIrqFlags1 bits
const (
	IrqFlags1ModeReady = 1 << 7
	IrqFlags1RxReady   = 1 << 6
	IrqFlags1TxReady   = 1 << 5
	IrqFlags1PllLock   = 1 << 4
)

// RegIrqFlags2 bits
const (
	IrqFlags2FifoNotEmpty = 1 << 6
	IrqFlags2FifoOverrun  = 1 << 4
	IrqFlags2PacketSent   = 1 << 3
)

// High power PA settings written to RegTestPa1/RegTestPa2
const (
	TestPa1Normal = 0x55
	TestPa1Boost  = 0x5D
	TestPa2Normal = 0x70
	TestPa2Boost  = 0x7C
)

// Known RegVersion values
const (
	VersionSX1231  = 0x23
	VersionSX1231H = 0x24
)
