package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Table renders data as a formatted table
type Table struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

// NewTable creates a new table with the given headers
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		writer:  os.Stdout,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Render writes the table to stdout
func (t *Table) Render() {
	w := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.headers, "\t"))

	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))

	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// printOutput prints data in the requested format; table callers use Table
// directly and fall back to JSON here
func printOutput(data interface{}) error {
	switch getOutputFormat() {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatScore renders a severity or confidence score with a tier marker
func formatScore(score float64) string {
	switch {
	case score >= 0.8:
		return fmt.Sprintf("[!] %.2f", score)
	case score >= 0.5:
		return fmt.Sprintf("[H] %.2f", score)
	case score >= 0.2:
		return fmt.Sprintf("[M] %.2f", score)
	default:
		return fmt.Sprintf("[L] %.2f", score)
	}
}

// formatPriority returns a priority string with visual indicator
func formatPriority(priority string) string {
	switch strings.ToLower(priority) {
	case "critical":
		return "[!] critical"
	case "high":
		return "[H] high"
	case "medium":
		return "[M] medium"
	case "low":
		return "[L] low"
	default:
		return priority
	}
}

// formatResolution marks resolved versus open events
func formatResolution(resolved bool, resolutionType string) string {
	if !resolved {
		return "[*] open"
	}
	return "[+] " + resolutionType
}
