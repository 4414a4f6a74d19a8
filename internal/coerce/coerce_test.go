package coerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"N/A", 0},
		{" N/A ", 0},
		{"abc", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"1,000", 0},
		{"6", 6},
		{" 12.5 ", 12.5},
		{"-3", -3},
		{"1e3", 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseNumber(tt.in), "ParseNumber(%q)", tt.in)
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"N/A", 0},
		{"%", 0},
		{"95%", 95},
		{"95", 95},
		{" 72.5 % ", 72.5},
		{"ninety", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePercent(tt.in), "ParsePercent(%q)", tt.in)
	}
}

func TestNumberOutcome(t *testing.T) {
	r := Number("")
	assert.True(t, r.Defaulted())
	assert.Equal(t, ReasonEmpty, r.Reason)

	r = Number("N/A")
	assert.True(t, r.Defaulted())
	assert.Equal(t, ReasonNotAvailable, r.Reason)

	r = Number("x1")
	assert.True(t, r.Defaulted())
	assert.Equal(t, ReasonMalformed, r.Reason)

	r = Number("4")
	assert.False(t, r.Defaulted())
	assert.Equal(t, 4.0, r.Value)
}

func TestParseDateEuropean(t *testing.T) {
	got, ok := ParseDate("05.03.24")
	require.True(t, ok)
	assert.Equal(t, "2024-03-05", FormatDate(got))

	got, ok = ParseDate("5.3.2024")
	require.True(t, ok)
	assert.Equal(t, "2024-03-05", FormatDate(got))

	got, ok = ParseDate("31.12.99")
	require.True(t, ok)
	assert.Equal(t, 2099, got.Year(), "two-digit years always land in the 2000s")
}

func TestParseDateRejects(t *testing.T) {
	for _, in := range []string{"", "N/A", "not applicable", "31.02.2024", "05.03.024", "TBD"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, "ParseDate(%q)", in)
	}
}

func TestParseDatePassThrough(t *testing.T) {
	tests := map[string]string{
		"2024-03-05":                "2024-03-05",
		"2024-03-05T10:30:00Z":      "2024-03-05",
		"2024-03-05T01:00:00+04:00": "2024-03-05",
		"2024-03-05T23:30:00-05:00": "2024-03-05",
		"2024/03/05":                "2024-03-05",
		"3/5/2024":                  "2024-03-05",
		"March 5, 2024":             "2024-03-05",
		"05-Mar-2024":               "2024-03-05",
	}
	for in, want := range tests {
		got, ok := ParseDate(in)
		require.True(t, ok, "ParseDate(%q)", in)
		assert.Equal(t, want, FormatDate(got), "ParseDate(%q)", in)
		assert.Equal(t, time.UTC, got.Location())
	}
}
