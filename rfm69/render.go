package rfm69

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 80

func (e Entry) title() string {
	switch len(e.Addrs) {
	case 0:
		return e.Label
	case 1:
		return fmt.Sprintf("%s (0x%02x)", e.Label, e.Addrs[0])
	case 2:
		return fmt.Sprintf("%s (0x%02x,0x%02x)", e.Label, e.Addrs[0], e.Addrs[1])
	}
	return fmt.Sprintf("%s (0x%02x-0x%02x)", e.Label, e.Addrs[0], e.Addrs[len(e.Addrs)-1])
}

func (e Entry) bits() string {
	parts := make([]string, len(e.Raw))
	for i, v := range e.Raw {
		parts[i] = fmt.Sprintf("%08b", v)
	}
	return "0b" + strings.Join(parts, "_")
}

// Render writes the report as the diagnostic text dump. Colours are only used
// when w is a terminal.
func (r *Report) Render(w io.Writer) error {
	re := lipgloss.NewRenderer(w)
	rule := re.NewStyle().Foreground(lipgloss.Color("#626262"))
	title := re.NewStyle().Foreground(lipgloss.Color("#00FFA1")).Bold(true)
	attr := re.NewStyle().Foreground(lipgloss.Color("#00CCFF"))

	head := "----[ CONFIG REGISTERS ]"
	var b strings.Builder
	b.WriteString(rule.Render(head+strings.Repeat("-", ruleWidth-len(head))) + "\n")

	for _, e := range r.Entries {
		line := fmt.Sprintf("%-27s", e.title())
		if e.ShowBits {
			line += " : " + e.bits()
		}
		b.WriteString(title.Render(line) + "\n")

		for _, a := range e.Attributes {
			value := a.Value
			if a.Unit != "" {
				value += " " + a.Unit
			}
			b.WriteString(fmt.Sprintf("  - %s   %s\n", attr.Render(fmt.Sprintf("%-23s", a.Name)), value))
		}
	}

	b.WriteString(rule.Render(strings.Repeat("-", ruleWidth)) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) String() string {
	var b strings.Builder
	_ = r.Render(&b)
	return b.String()
}
