package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/contractlens/contractlens/internal/stats"
)

// TableFormatter renders a rollup as ASCII tables.
type TableFormatter struct{}

// FormatRollup renders per-day counters plus the country ranking.
func (f *TableFormatter) FormatRollup(rollup *stats.Rollup) (string, error) {
	if rollup == nil {
		return "", nil
	}

	days := table.NewWriter()
	days.SetStyle(table.StyleRounded)
	days.AppendHeader(table.Row{"Day", "Total", "OK", "Limited", "Error"})
	for _, d := range rollup.Days {
		days.AppendRow(table.Row{d.Day, d.Total, d.OK, d.Limited, d.Error})
	}
	days.AppendFooter(table.Row{
		"",
		rollup.Totals.Total,
		rollup.Totals.OK,
		rollup.Totals.Limited,
		rollup.Totals.Error,
	})

	out := days.Render()

	if len(rollup.Countries) > 0 {
		countries := table.NewWriter()
		countries.SetStyle(table.StyleRounded)
		countries.AppendHeader(table.Row{"Country", "Requests", "Uploads"})
		for _, c := range rollup.Countries {
			countries.AppendRow(table.Row{c.Country, c.Count, c.Uploads})
		}
		out += "\n\n" + countries.Render()
	}

	out += "\n" + fmt.Sprintf("%d requests over %d days", rollup.Totals.Total, len(rollup.Days))
	return strings.TrimRight(out, "\n"), nil
}
