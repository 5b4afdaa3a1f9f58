package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contractlens/contractlens/internal/stats"
)

func sampleRollup() *stats.Rollup {
	return &stats.Rollup{
		Days: []stats.DayRow{
			{Day: "2025-06-14", Total: 3, OK: 2, Limited: 1},
			{Day: "2025-06-15", Total: 5, OK: 4, Error: 1},
		},
		Countries: []stats.CountryRow{
			{Country: "LT", Count: 6, Uploads: 4},
			{Country: "ZZ", Count: 2, Uploads: 0},
		},
		Totals: stats.Totals{Total: 8, OK: 6, Limited: 1, Error: 1},
	}
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{
		"":         FormatTable,
		"table":    FormatTable,
		"JSON":     FormatJSON,
		"markdown": FormatMarkdown,
	} {
		got, err := ParseFormat(input)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseFormat("yaml")
	require.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	out, err := (&TableFormatter{}).FormatRollup(sampleRollup())
	require.NoError(t, err)
	require.Contains(t, out, "2025-06-14")
	require.Contains(t, out, "LT")
	require.Contains(t, out, "8 requests over 2 days")
}

func TestMarkdownFormatter(t *testing.T) {
	out, err := (&MarkdownFormatter{}).FormatRollup(sampleRollup())
	require.NoError(t, err)
	require.Contains(t, out, "| 2025-06-15 | 5 | 4 | 0 | 1 |")
	require.Contains(t, out, "**Totals:** 8 total, 6 ok, 1 limited, 1 error")
}

func TestJSONFormatter(t *testing.T) {
	out, err := (&JSONFormatter{Indent: true}).FormatRollup(sampleRollup())
	require.NoError(t, err)

	var decoded stats.Rollup
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, int64(8), decoded.Totals.Total)
	require.Len(t, decoded.Days, 2)
}

func TestFormattersHandleNil(t *testing.T) {
	for _, f := range []Formatter{&TableFormatter{}, &MarkdownFormatter{}, &JSONFormatter{}} {
		out, err := f.FormatRollup(nil)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}
