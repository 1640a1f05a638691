package radio

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// ResetLine drives the RESET pin of the RFM69
type ResetLine struct {
	chip     *gpiocdev.Chip
	line     *gpiocdev.Line
	chipPath string
	pin      int
}

// OpenResetLine requests the reset pin as an output, initially low
func OpenResetLine(chipPath string, pin int) (*ResetLine, error) {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}

	line, err := chip.RequestLine(
		pin,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("rfm69-reset"),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request reset pin %d: %w", pin, err)
	}

	return &ResetLine{
		chip:     chip,
		line:     line,
		chipPath: chipPath,
		pin:      pin,
	}, nil
}

// Reset performs a hardware reset. The pin is held HIGH for at least 100us,
// released, and the chip needs 5ms before it answers on SPI again.
func (r *ResetLine) Reset() error {
	if r.line == nil {
		return fmt.Errorf("reset line not initialized")
	}

	if err := r.line.SetValue(1); err != nil {
		return fmt.Errorf("failed to set reset pin HIGH: %w", err)
	}
	time.Sleep(100 * time.Microsecond)

	if err := r.line.SetValue(0); err != nil {
		return fmt.Errorf("failed to set reset pin LOW: %w", err)
	}
	time.Sleep(5 * time.Millisecond)

	return nil
}

// Close releases the line and the chip
func (r *ResetLine) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close reset line: %w", err))
		}
		r.line = nil
	}

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		r.chip = nil
	}

	return errors.Join(errs...)
}

func (r *ResetLine) String() string {
	if r.chip == nil {
		return fmt.Sprintf("%s (closed)", r.chipPath)
	}
	return fmt.Sprintf("%s (%s), reset pin %d", r.chipPath, r.chip.Label, r.pin)
}
