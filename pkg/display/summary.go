package display

import (
	"fmt"
	"io"

	"github.com/AliciaSchep/posdash/pkg/dashboard"
)

var tierLabels = map[dashboard.LowStockTier]string{
	dashboard.TierNone:       "nothing below 10 in stock",
	dashboard.TierOutOfStock: "out of stock",
	dashboard.TierCritical:   "fewer than 5 left",
	dashboard.TierLow:        "fewer than 10 left",
}

// RenderSummary writes the dashboard as a series of tables sized to width
func RenderSummary(w io.Writer, summary *dashboard.Summary, width int) error {
	if summary == nil {
		return fmt.Errorf("no summary to render")
	}
	if !summary.Success {
		_, err := fmt.Fprintf(w, "Dashboard unavailable: %s\n", summary.Message)
		return err
	}
	if summary.Message != "" {
		if _, err := fmt.Fprintf(w, "Note: %s\n\n", summary.Message); err != nil {
			return err
		}
	}

	s := summary.Data
	sections := []struct {
		title   string
		columns []string
		rows    [][]any
	}{
		{
			title:   "Totals",
			columns: []string{"metric", "amount"},
			rows: [][]any{
				{"Sales", s.TotalSales},
				{"Purchases", s.TotalPurchases},
				{"Cost of goods sold", s.TotalCOGS},
				{"Manual income", s.ManualIncome},
				{"Manual expenses", s.ManualExpenses},
				{"Gross profit", s.GrossProfit},
				{"Net manual profit", s.NetManualProfit},
				{"Total profit", s.TotalProfit},
			},
		},
		{
			title:   "Recent sales",
			columns: []string{"id", "customer", "total", "status", "date"},
			rows:    saleRows(s.RecentSales),
		},
		{
			title:   "Recent purchases",
			columns: []string{"id", "supplier", "total", "status", "date"},
			rows:    purchaseRows(s.RecentPurchases),
		},
		{
			title:   "Top customers",
			columns: []string{"customer", "sales", "spent"},
			rows:    customerRows(s.TopCustomers),
		},
		{
			title:   fmt.Sprintf("Low stock (%s)", tierLabels[s.LowStockTier]),
			columns: []string{"product", "stock", "price"},
			rows:    productRows(s.LowStockProducts),
		},
	}

	for _, section := range sections {
		if err := RenderTable(w, section.title, section.columns, section.rows, width); err != nil {
			return err
		}
	}
	return nil
}

func saleRows(sales []dashboard.SaleRecord) [][]any {
	rows := make([][]any, len(sales))
	for i, sale := range sales {
		customer := sale.CustomerName
		if customer == "" {
			customer = "Walk-in"
		}
		rows[i] = []any{sale.ID, customer, sale.TotalAmount, sale.Status, sale.CreatedAt}
	}
	return rows
}

func purchaseRows(purchases []dashboard.PurchaseRecord) [][]any {
	rows := make([][]any, len(purchases))
	for i, p := range purchases {
		rows[i] = []any{p.ID, p.SupplierName, p.TotalAmount, p.Status, p.CreatedAt}
	}
	return rows
}

func customerRows(customers []dashboard.CustomerRecord) [][]any {
	rows := make([][]any, len(customers))
	for i, c := range customers {
		rows[i] = []any{c.Name, c.SaleCount, c.TotalSpent}
	}
	return rows
}

func productRows(products []dashboard.ProductRecord) [][]any {
	rows := make([][]any, len(products))
	for i, p := range products {
		rows[i] = []any{p.Name, p.Stock, p.RetailPrice}
	}
	return rows
}
