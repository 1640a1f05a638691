package rfm69

import "errors"

var errBus = errors.New("bus error")

// regFile emulates the register file of the chip for tests
type regFile struct {
	regs     [0x80]uint8
	writes   []uint8
	failAt   int // fail the n-th write, counting from 1
	failRead map[uint8]bool
	reads    int
}

func (r *regFile) WriteRegister(addr, value uint8) error {
	if r.failAt > 0 && len(r.writes)+1 == r.failAt {
		return errBus
	}
	r.regs[addr&0x7F] = value
	r.writes = append(r.writes, addr)
	return nil
}

func (r *regFile) ReadRegister(addr uint8) (uint8, error) {
	if r.failRead[addr] {
		return 0, errBus
	}
	r.reads++
	return r.regs[addr&0x7F], nil
}

// burstFile adds burst access to regFile
type burstFile struct {
	*regFile
	bursts    int
	failBurst bool
}

func (b *burstFile) BurstRead(addr uint8, count int) ([]uint8, error) {
	if b.failBurst {
		return nil, errBus
	}
	b.bursts++
	out := make([]uint8, count)
	copy(out, b.regs[addr:int(addr)+count])
	return out, nil
}
