package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// tabular is the flat rendering of a result, used by the table and csv formats.
type tabular struct {
	header []string
	rows   [][]string
}

// render writes v as JSON, or its tabular form as a pterm table or CSV.
func render(w io.Writer, format string, v any, tab func() tabular) error {
	switch format {
	case formatTable:
		t := tab()
		out, err := pterm.DefaultTable.
			WithHasHeader().
			WithData(append([][]string{t.header}, t.rows...)).
			Srender()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
		_, err = fmt.Fprintln(w, out)
		return err
	case formatCSV:
		t := tab()
		cw := csv.NewWriter(w)
		if err := cw.Write(t.header); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		if err := cw.WriteAll(t.rows); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		return nil
	default:
		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(jsonData))
		return err
	}
}

// itoa keeps table builders short.
func itoa(n int) string { return fmt.Sprint(n) }
