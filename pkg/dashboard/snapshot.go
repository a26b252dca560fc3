package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the dashboard summary for one user. It is built once per request and not
// modified afterwards.
type Snapshot struct {
	TotalSales      decimal.Decimal `json:"totalSales"`
	TotalPurchases  decimal.Decimal `json:"totalPurchases"`
	TotalCOGS       decimal.Decimal `json:"totalCOGS"`
	ManualIncome    decimal.Decimal `json:"manualIncome"`
	ManualExpenses  decimal.Decimal `json:"manualExpenses"`
	GrossProfit     decimal.Decimal `json:"grossProfit"`
	NetManualProfit decimal.Decimal `json:"netManualProfit"`
	TotalProfit     decimal.Decimal `json:"totalProfit"`

	RecentSales      []SaleRecord     `json:"recentSales"`
	RecentPurchases  []PurchaseRecord `json:"recentPurchases"`
	TopCustomers     []CustomerRecord `json:"topCustomers"`
	LowStockProducts []ProductRecord  `json:"lowStockProducts"`
	LowStockTier     LowStockTier     `json:"lowStockTier"`
}

type SaleRecord struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customerName"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type PurchaseRecord struct {
	ID           int64           `json:"id"`
	SupplierName string          `json:"supplierName"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type CustomerRecord struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
	SaleCount  int64           `json:"saleCount"`
}

type ProductRecord struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Stock       int64           `json:"stock"`
	RetailPrice decimal.Decimal `json:"retailPrice"`
}

// LowStockTier names the cascade step that produced LowStockProducts
type LowStockTier string

const (
	TierNone       LowStockTier = "none"
	TierOutOfStock LowStockTier = "out_of_stock"
	TierCritical   LowStockTier = "critical"
	TierLow        LowStockTier = "low"
)

// EmptySnapshot returns a snapshot with zero totals and empty, non-nil lists
func EmptySnapshot() Snapshot {
	return Snapshot{
		RecentSales:      []SaleRecord{},
		RecentPurchases:  []PurchaseRecord{},
		TopCustomers:     []CustomerRecord{},
		LowStockProducts: []ProductRecord{},
		LowStockTier:     TierNone,
	}
}

// derive fills the profit fields from the fetched totals
func (s *Snapshot) derive() {
	s.GrossProfit = s.TotalSales.Sub(s.TotalCOGS)
	s.NetManualProfit = s.ManualIncome.Sub(s.ManualExpenses)
	s.TotalProfit = s.GrossProfit.Add(s.NetManualProfit)
}

// Summary wraps a Snapshot with the request outcome. Success is false only when the
// database was known to be unreachable or a result could not be decoded; Data is then
// an EmptySnapshot.
type Summary struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message,omitempty"`
	RequestID string   `json:"requestId"`
	MockMode  bool     `json:"mockMode"`
	Data      Snapshot `json:"data"`
}
