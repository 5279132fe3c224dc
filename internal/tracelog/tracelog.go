// Package tracelog defines the line format instrumented programs use to report
// variable writes on stdout, and extracts those lines from captured output.
//
// One traced write is printed as
//
//	👉 memory: { <identifier>: <value> } at 0x<HEXADDR>
//
// with the value rendered by the program itself.
package tracelog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
)

const (
	// Prefix starts every trace line.
	Prefix = "👉 memory: "

	// BaseAddress is the synthetic address of the first traced variable.
	BaseAddress uint32 = 0x1000

	// AddressStride is the distance between consecutive synthetic addresses.
	AddressStride uint32 = 4
)

var linePattern = regexp.MustCompile(`^👉 memory: \{ ([A-Za-z_][A-Za-z0-9_]*): (.*) \} at (0x[0-9A-Fa-f]+)$`)

// ValidName reports whether name can be carried in a trace line. Only ASCII
// C identifiers qualify.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Address renders a synthetic address the way instrumented programs print it.
func Address(addr uint32) string {
	return fmt.Sprintf("0x%X", addr)
}

// Line renders a complete trace line without the trailing newline.
func Line(name, value string, addr uint32) string {
	return fmt.Sprintf("%s{ %s: %s } at %s", Prefix, name, value, Address(addr))
}

// Parse splits raw program stdout into the text to show the user and the
// ordered trace entries. Trace lines are removed; every other line is kept
// verbatim and in order, including the final newline structure.
//
// A trace line may follow output that did not end in a newline, such as a
// prompt printed before scanf. The text ahead of the prefix stays in the
// display output and runs straight on into whatever is printed next.
func Parse(output string) (string, []domain.TraceEntry) {
	entries := make([]domain.TraceEntry, 0)
	if !strings.Contains(output, Prefix) {
		return output, entries
	}

	lines := strings.Split(output, "\n")
	last := len(lines) - 1

	var b strings.Builder
	b.Grow(len(output))
	for i, line := range lines {
		if idx := strings.LastIndex(line, Prefix); idx >= 0 {
			if entry, ok := parseLine(line[idx:]); ok {
				entries = append(entries, entry)
				b.WriteString(line[:idx])
				continue
			}
		}
		b.WriteString(line)
		if i < last {
			b.WriteByte('\n')
		}
	}
	return b.String(), entries
}

func parseLine(line string) (domain.TraceEntry, bool) {
	if !strings.HasPrefix(line, Prefix) {
		return domain.TraceEntry{}, false
	}
	m := linePattern.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
	if m == nil {
		return domain.TraceEntry{}, false
	}
	return domain.TraceEntry{Variable: m[1], Value: m[2], Address: m[3]}, true
}
