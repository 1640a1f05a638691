package radio

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Bus is the SPI link to the RFM69. Each transaction starts with an address
// byte whose MSB selects write (1) or read (0); the chip auto-increments the
// address for burst access except on RegFifo.
type Bus struct {
	conn   conn.Conn
	port   spi.PortCloser
	device string
	speed  physic.Frequency
}

// OpenBus opens and initializes an SPI device using periph.io
func OpenBus(device string, speed uint32) (*Bus, error) {
	// Initialize periph.io host
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI device %s: %w", device, err)
	}

	// RFM69 requires SPI Mode 0 (CPOL=0, CPHA=0)
	c, err := port.Connect(physic.Frequency(speed)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect to SPI device: %w", err)
	}

	return &Bus{
		conn:   c,
		port:   port,
		device: device,
		speed:  physic.Frequency(speed) * physic.Hertz,
	}, nil
}

// NewBus wraps an already connected full duplex connection
func NewBus(c conn.Conn) *Bus {
	return &Bus{conn: c, device: c.String()}
}

// Close closes the SPI port if the bus owns one
func (b *Bus) Close() error {
	b.conn = nil
	if b.port != nil {
		port := b.port
		b.port = nil
		return port.Close()
	}
	return nil
}

func (b *Bus) transfer(tx []byte, rx []byte) error {
	if b.conn == nil {
		return fmt.Errorf("SPI device not open")
	}
	if err := b.conn.Tx(tx, rx); err != nil {
		return fmt.Errorf("SPI transfer failed: %w", err)
	}
	return nil
}

// WriteRegister writes a value to a register
func (b *Bus) WriteRegister(addr uint8, value uint8) error {
	tx := []byte{addr | 0x80, value}
	rx := make([]byte, len(tx))

	if err := b.transfer(tx, rx); err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}

// ReadRegister reads a value from a register
func (b *Bus) ReadRegister(addr uint8) (uint8, error) {
	tx := []byte{addr & 0x7F, 0x00}
	rx := make([]byte, len(tx))

	if err := b.transfer(tx, rx); err != nil {
		return 0, fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}

	// The first byte is clocked out while the address goes in
	return rx[1], nil
}

// BurstWrite writes values starting at startAddr in one transaction
func (b *Bus) BurstWrite(startAddr uint8, values []uint8) error {
	if len(values) == 0 {
		return fmt.Errorf("no values to write")
	}

	tx := make([]byte, len(values)+1)
	tx[0] = startAddr | 0x80
	copy(tx[1:], values)
	rx := make([]byte, len(tx))

	if err := b.transfer(tx, rx); err != nil {
		return fmt.Errorf("failed to burst write starting at 0x%02X: %w", startAddr, err)
	}
	return nil
}

// BurstRead reads count values starting at startAddr in one transaction
func (b *Bus) BurstRead(startAddr uint8, count int) ([]uint8, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid count: %d", count)
	}

	tx := make([]byte, count+1)
	tx[0] = startAddr & 0x7F
	rx := make([]byte, len(tx))

	if err := b.transfer(tx, rx); err != nil {
		return nil, fmt.Errorf("failed to burst read starting at 0x%02X: %w", startAddr, err)
	}
	return rx[1:], nil
}

func (b *Bus) String() string {
	if b.conn == nil {
		return fmt.Sprintf("%s (closed)", b.device)
	}
	if b.speed == 0 {
		return b.device
	}
	return fmt.Sprintf("%s @ %s", b.device, b.speed)
}
