package output

import (
	"encoding/json"

	"github.com/contractlens/contractlens/internal/stats"
)

// JSONFormatter renders a rollup as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatRollup renders the rollup as JSON.
func (f *JSONFormatter) FormatRollup(rollup *stats.Rollup) (string, error) {
	if rollup == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(rollup, "", "  ")
	} else {
		data, err = json.Marshal(rollup)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
