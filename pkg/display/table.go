package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ColumnInfo represents information about a table column for formatting
type ColumnInfo struct {
	Name      string
	MaxWidth  int
	MinWidth  int
	IsNumeric bool
}

// TableFormatter lays out rows in columns sized to fit a fixed total width
type TableFormatter struct {
	columns     []ColumnInfo
	totalWidth  int
	borderWidth int // Space for borders and padding
}

// NewTableFormatter creates a formatter for the given columns. width is the space
// available, usually the terminal width.
func NewTableFormatter(columnNames []string, width int) *TableFormatter {
	columns := make([]ColumnInfo, len(columnNames))
	for i, name := range columnNames {
		columns[i] = ColumnInfo{
			Name:     name,
			MaxWidth: len(name), // Start with header width
			MinWidth: 5,         // Minimum readable width
		}
	}
	if width <= 0 {
		width = DefaultWidth
	}

	return &TableFormatter{
		columns:     columns,
		totalWidth:  width,
		borderWidth: len(columnNames)*3 + 1, // "| " before each column + "|" at end
	}
}

// AnalyzeData records the widest value of each column and which columns hold numbers
func (tf *TableFormatter) AnalyzeData(rows [][]any) {
	for _, row := range rows {
		for i, value := range row {
			if i >= len(tf.columns) {
				continue
			}

			valueLen := len(formatValue(value))
			if valueLen > tf.columns[i].MaxWidth {
				tf.columns[i].MaxWidth = valueLen
			}

			if !tf.columns[i].IsNumeric && isNumericValue(value) {
				tf.columns[i].IsNumeric = true
			}
		}
	}
}

// CalculateColumnWidths gives every column its minimum, then hands out the remaining
// width one character at a time to columns whose content is wider.
func (tf *TableFormatter) CalculateColumnWidths() []int {
	availableWidth := tf.totalWidth - tf.borderWidth
	totalColumns := len(tf.columns)

	if totalColumns == 0 {
		return []int{}
	}

	widths := make([]int, totalColumns)

	remainingWidth := availableWidth
	for i := range tf.columns {
		minWidth := max(tf.columns[i].MinWidth, len(tf.columns[i].Name))
		widths[i] = minWidth
		remainingWidth -= minWidth
	}

	// Not enough room: truncate all columns equally
	if remainingWidth < 0 {
		evenWidth := availableWidth / totalColumns
		for i := range widths {
			widths[i] = max(3, evenWidth)
		}
		return widths
	}

	for remainingWidth > 0 {
		distributed := false
		for i := range tf.columns {
			if remainingWidth <= 0 {
				break
			}
			if widths[i] < tf.columns[i].MaxWidth {
				widths[i]++
				remainingWidth--
				distributed = true
			}
		}
		if !distributed {
			break
		}
	}

	return widths
}

// FormatHeader creates the table header and its separator line
func (tf *TableFormatter) FormatHeader(widths []int) string {
	var header strings.Builder

	header.WriteString("| ")
	lineWidth := 1
	for i, col := range tf.columns {
		if i >= len(widths) {
			continue
		}
		header.WriteString(tf.align(i, truncateString(col.Name, widths[i]), widths[i]))
		header.WriteString(" | ")
		lineWidth += widths[i] + 3
	}

	return strings.TrimRight(header.String(), " ") + "\n" + strings.Repeat("-", lineWidth) + "\n"
}

// FormatRow formats a single data row
func (tf *TableFormatter) FormatRow(row []any, widths []int) string {
	var result strings.Builder
	result.WriteString("| ")

	for i, value := range row {
		if i >= len(widths) || i >= len(tf.columns) {
			continue
		}
		result.WriteString(tf.align(i, truncateString(formatValue(value), widths[i]), widths[i]))
		result.WriteString(" | ")
	}

	return strings.TrimRight(result.String(), " ") + "\n"
}

// Numbers are right aligned, everything else left aligned
func (tf *TableFormatter) align(col int, s string, width int) string {
	if tf.columns[col].IsNumeric {
		return alignRight(s, width)
	}
	return alignLeft(s, width)
}

// RenderTable writes a titled table. An empty row set prints a placeholder line.
func RenderTable(w io.Writer, title string, columnNames []string, rows [][]any, width int) error {
	var out strings.Builder
	if title != "" {
		out.WriteString(title + "\n")
	}

	if len(rows) == 0 {
		out.WriteString("  (none)\n\n")
		_, err := io.WriteString(w, out.String())
		return err
	}

	formatter := NewTableFormatter(columnNames, width)
	formatter.AnalyzeData(rows)
	widths := formatter.CalculateColumnWidths()

	out.WriteString(formatter.FormatHeader(widths))
	for _, row := range rows {
		out.WriteString(formatter.FormatRow(row, widths))
	}
	out.WriteString("\n")

	_, err := io.WriteString(w, out.String())
	return err
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return v.StringFixed(2)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Local().Format("2006-01-02 15:04")
	default:
		return fmt.Sprintf("%v", value)
	}
}

func isNumericValue(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32, float64:
		return true
	case decimal.Decimal:
		return true
	default:
		return false
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func alignLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func alignRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
