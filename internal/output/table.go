package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/rodaine/table"
)

// RenderTable renders rows under a bold header. Nothing is written for an
// empty row set.
func RenderTable(w io.Writer, columns []Column, rows []map[string]string) {
	if len(rows) == 0 {
		return
	}

	headers := make([]any, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}

	headerStyle := lipgloss.NewStyle().Bold(true)
	tbl := table.New(headers...).
		WithWriter(w).
		WithHeaderFormatter(func(format string, vals ...any) string {
			// style the text only; the row format carries the newline
			line := fmt.Sprintf(format, vals...)
			if trimmed, ok := strings.CutSuffix(line, "\n"); ok {
				return headerStyle.Render(trimmed) + "\n"
			}
			return headerStyle.Render(line)
		})

	for _, row := range rows {
		rowData := make([]any, len(columns))
		for i, col := range columns {
			value := row[col.Key]
			if col.Width > 0 {
				value = TruncateString(value, col.Width)
			}
			rowData[i] = value
		}
		tbl.AddRow(rowData...)
	}
	tbl.Print()
}

// TruncateString truncates a string to maxLen and adds "..." if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// MaskSecret hides all but the first and last two characters of s.
// Values of eight characters or fewer are hidden entirely.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + strings.Repeat("*", 8) + s[len(s)-2:]
}
