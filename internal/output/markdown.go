package output

import (
	"fmt"
	"strings"

	"github.com/contractlens/contractlens/internal/stats"
)

// MarkdownFormatter renders a rollup as markdown tables.
type MarkdownFormatter struct{}

// FormatRollup renders the rollup as Markdown.
func (f *MarkdownFormatter) FormatRollup(rollup *stats.Rollup) (string, error) {
	if rollup == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Analysis activity\n\n")
	sb.WriteString("| Day | Total | OK | Limited | Error |\n")
	sb.WriteString("|-----|-------|----|---------|-------|\n")

	for _, d := range rollup.Days {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
			d.Day, d.Total, d.OK, d.Limited, d.Error))
	}

	sb.WriteString(fmt.Sprintf("\n**Totals:** %d total, %d ok, %d limited, %d error\n",
		rollup.Totals.Total, rollup.Totals.OK, rollup.Totals.Limited, rollup.Totals.Error))

	if len(rollup.Countries) > 0 {
		sb.WriteString("\n## Countries\n\n")
		sb.WriteString("| Country | Requests | Uploads |\n")
		sb.WriteString("|---------|----------|--------|\n")
		for _, c := range rollup.Countries {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", c.Country, c.Count, c.Uploads))
		}
	}

	return sb.String(), nil
}
