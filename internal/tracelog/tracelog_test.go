package tracelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
)

func TestParse_NoTraceLines(t *testing.T) {
	display, entries := Parse("Hello, World!\n")

	assert.Equal(t, "Hello, World!\n", display)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestParse_OnlyTraceLines(t *testing.T) {
	out := "👉 memory: { x: 5 } at 0x1000\n👉 memory: { x: 6 } at 0x1000\n"

	display, entries := Parse(out)

	assert.Equal(t, "", display)
	assert.Equal(t, []domain.TraceEntry{
		{Variable: "x", Value: "5", Address: "0x1000"},
		{Variable: "x", Value: "6", Address: "0x1000"},
	}, entries)
}

func TestParse_InterleavedKeepsOrder(t *testing.T) {
	out := "first\n👉 memory: { a: 1 } at 0x1000\nsecond\n👉 memory: { b: 2.5 } at 0x1004\nthird"

	display, entries := Parse(out)

	assert.Equal(t, "first\nsecond\nthird", display)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Variable)
	assert.Equal(t, "2.5", entries[1].Value)
	assert.Equal(t, "0x1004", entries[1].Address)
}

func TestParse_PreservesBlankLines(t *testing.T) {
	out := "a\n\n👉 memory: { n: 3 } at 0x1000\n\nb\n"

	display, _ := Parse(out)

	assert.Equal(t, "a\n\n\nb\n", display)
}

func TestParse_MalformedLinesAreKept(t *testing.T) {
	tests := []string{
		"👉 memory: { x: 5 } at 1000",
		"👉 memory: { 9x: 5 } at 0x1000",
		"👉 memory: x = 5",
		"note: 👉 memory: { x: 5 } at 0x1000 and more",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			display, entries := Parse(line + "\n")
			assert.Equal(t, line+"\n", display)
			assert.Empty(t, entries)
		})
	}
}

func TestParse_TraceAfterUnterminatedPrompt(t *testing.T) {
	out := "Enter n: 👉 memory: { n: 7 } at 0x1000\nn=7\n"

	display, entries := Parse(out)

	assert.Equal(t, "Enter n: n=7\n", display)
	assert.Equal(t, []domain.TraceEntry{{Variable: "n", Value: "7", Address: "0x1000"}}, entries)
}

func TestParse_SeveralPromptsOnOneLine(t *testing.T) {
	out := "v👉 memory: { x: 2 } at 0x1000\nw👉 memory: { y: 3 } at 0x1004\ndone\n"

	display, entries := Parse(out)

	assert.Equal(t, "vwdone\n", display)
	require.Len(t, entries, 2)
	assert.Equal(t, "x", entries[0].Variable)
	assert.Equal(t, "y", entries[1].Variable)
	assert.NotContains(t, display, Prefix)
}

func TestParse_PrefixTextInsidePromptUsesLastOccurrence(t *testing.T) {
	out := "👉 memory: says 👉 memory: { k: 1 } at 0x1000\n"

	display, entries := Parse(out)

	assert.Equal(t, "👉 memory: says ", display)
	require.Len(t, entries, 1)
	assert.Equal(t, "k", entries[0].Variable)
}

func TestParse_NegativeAndFloatValues(t *testing.T) {
	_, entries := Parse("👉 memory: { d: -1.5e+10 } at 0x10AC\n")

	require.Len(t, entries, 1)
	assert.Equal(t, "-1.5e+10", entries[0].Value)
	assert.Equal(t, "0x10AC", entries[0].Address)
}

func TestParse_CarriageReturn(t *testing.T) {
	display, entries := Parse("👉 memory: { x: 1 } at 0x1000\r\nok\r\n")

	assert.Equal(t, "ok\r\n", display)
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].Value)
}

func TestLineRoundTrip(t *testing.T) {
	line := Line("count", "42", BaseAddress+2*AddressStride)
	assert.Equal(t, "👉 memory: { count: 42 } at 0x1008", line)

	_, entries := Parse(line + "\n")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TraceEntry{Variable: "count", Value: "42", Address: "0x1008"}, entries[0])
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"x", true},
		{"_count2", true},
		{"", false},
		{"9lives", false},
		{"caf\u00e9", false},
		{"a-b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidName(tt.name), tt.name)
	}
}
