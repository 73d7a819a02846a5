package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/roach88/sqlsynth/internal/ir"
)

// writeTable renders rows under header as an aligned text table.
func writeTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
}

// writeRelation renders a relation's columns and rows.
func writeRelation(w io.Writer, r ir.Relation) {
	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c.Name
	}
	rows := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = ir.String(v)
		}
	}
	writeTable(w, header, rows)
}

// count formats n with thousands separators.
func count(n int64) string {
	return humanize.Comma(n)
}

// elapsed formats a duration for summaries: milliseconds below a second,
// otherwise seconds with SI precision.
func elapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return humanize.SIWithDigits(d.Seconds(), 2, "s")
}
