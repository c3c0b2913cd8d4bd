package ui

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sydlexius/qrsift/internal/scanner"
)

// RenderSummary writes the final counters of a scan as an aligned table.
func RenderSummary(w io.Writer, stats scanner.Stats, elapsed time.Duration) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Result", "Count"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := [][]string{
		{"Images scanned", strconv.Itoa(stats.Total)},
		{"QR codes found", strconv.Itoa(stats.WithQR)},
		{"Files moved", strconv.Itoa(stats.Moved)},
		{"No QR code", strconv.Itoa(stats.NoQR)},
		{"Errors", strconv.Itoa(stats.Errors)},
	}
	if stats.Skipped > 0 {
		rows = append(rows, []string{"Skipped", strconv.Itoa(stats.Skipped)})
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	fmt.Fprintf(w, "\nCompleted in %s\n", elapsed.Round(time.Millisecond))
}
