package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliciaSchep/posdash/pkg/dashboard"
)

func TestTableFormatter(t *testing.T) {
	formatter := NewTableFormatter([]string{"id", "name", "total"}, 80)

	sampleData := [][]any{
		{1, "Alice", decimal.RequireFromString("13")},
		{2, "Bob", decimal.RequireFromString("7.5")},
		{3, "Charlie", decimal.RequireFromString("120.25")},
	}
	formatter.AnalyzeData(sampleData)

	widths := formatter.CalculateColumnWidths()
	require.Len(t, widths, 3)
	for i, width := range widths {
		assert.GreaterOrEqual(t, width, formatter.columns[i].MinWidth, "column %d", i)
	}
	assert.True(t, formatter.columns[0].IsNumeric)
	assert.False(t, formatter.columns[1].IsNumeric)
	assert.True(t, formatter.columns[2].IsNumeric, "decimals are numeric")

	header := formatter.FormatHeader(widths)
	for _, name := range []string{"id", "name", "total"} {
		assert.Contains(t, header, name)
	}

	row := formatter.FormatRow(sampleData[0], widths)
	assert.Contains(t, row, "Alice")
	assert.Contains(t, row, " 13.00 |", "money renders with two places, right aligned")
}

func TestTableFormatter_NarrowWidthTruncates(t *testing.T) {
	formatter := NewTableFormatter([]string{"customer", "note"}, 20)
	formatter.AnalyzeData([][]any{{"A very long customer name", "another long value here"}})

	widths := formatter.CalculateColumnWidths()
	row := formatter.FormatRow([]any{"A very long customer name", "another long value here"}, widths)
	assert.Contains(t, row, "...")
	assert.LessOrEqual(t, len(strings.TrimRight(row, "\n")), 20)
}

func TestTerminalWidth(t *testing.T) {
	assert.Equal(t, DefaultWidth, TerminalWidth(&bytes.Buffer{}))
	assert.Greater(t, TerminalWidth(nil), 0)
}

func TestRenderTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, "Recent sales", []string{"id"}, nil, 80))
	assert.Equal(t, "Recent sales\n  (none)\n\n", buf.String())
}

func TestRenderSummary(t *testing.T) {
	snap := dashboard.EmptySnapshot()
	snap.TotalSales = decimal.RequireFromString("20.5")
	snap.TotalProfit = decimal.RequireFromString("26.05")
	snap.RecentSales = []dashboard.SaleRecord{{ID: 7, TotalAmount: decimal.RequireFromString("7.5"), Status: "completed"}}
	snap.LowStockProducts = []dashboard.ProductRecord{{ID: 1, Name: "Beans 1kg", Stock: 0}}
	snap.LowStockTier = dashboard.TierOutOfStock

	var buf bytes.Buffer
	err := RenderSummary(&buf, &dashboard.Summary{Success: true, Data: snap}, 100)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Totals")
	assert.Contains(t, out, "20.50")
	assert.Contains(t, out, "26.05")
	assert.Contains(t, out, "Walk-in")
	assert.Contains(t, out, "Low stock (out of stock)")
	assert.Contains(t, out, "Beans 1kg")
	assert.Contains(t, out, "Top customers\n  (none)")
}

func TestRenderSummary_Unavailable(t *testing.T) {
	var buf bytes.Buffer
	err := RenderSummary(&buf, &dashboard.Summary{Message: "database not connected", Data: dashboard.EmptySnapshot()}, 80)
	require.NoError(t, err)
	assert.Equal(t, "Dashboard unavailable: database not connected\n", buf.String())

	assert.Error(t, RenderSummary(&buf, nil, 80))
}
