package dashboard

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AliciaSchep/posdash/pkg/db"
)

// Statement names, also used as metric labels
const (
	QueryTotalSales      = "total_sales"
	QueryTotalPurchases  = "total_purchases"
	QueryManualIncome    = "manual_income"
	QueryManualExpenses  = "manual_expenses"
	QueryTotalCOGS       = "total_cogs"
	QueryRecentSales     = "recent_sales"
	QueryRecentPurchases = "recent_purchases"
	QueryTopCustomers    = "top_customers"
	QueryLowStockPrefix  = "low_stock."
)

const (
	listLimit       = 5
	cancelledStatus = "cancelled"
)

var dialect = goqu.Dialect("postgres")

var (
	salesTable     = goqu.T("sales").As("s")
	customersTable = goqu.T("customers").As("c")
	itemsTable     = goqu.T("sale_items").As("si")
	productsTable  = goqu.T("products").As("p")

	s_id         = goqu.I("s.id")
	s_userID     = goqu.I("s.user_id")
	s_customerID = goqu.I("s.customer_id")
	s_total      = goqu.I("s.total_amount")
	s_status     = goqu.I("s.status")
	s_created    = goqu.I("s.created_at")

	c_id   = goqu.I("c.id")
	c_name = goqu.I("c.name")
)

// money renders a numeric expression as text with a zero default, so that it decodes
// into a decimal without passing through float64
func money(e exp.Expression) exp.CastExpression {
	return goqu.Cast(goqu.COALESCE(e, goqu.L("0")), "TEXT")
}

func prepare(name string, ds *goqu.SelectDataset) (db.QueryRequest, error) {
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return db.QueryRequest{}, fmt.Errorf("failed to build %s statement: %w", name, err)
	}
	return db.NewQuery(name, sql, args...), nil
}

func totalSalesQuery(userID int64) (db.QueryRequest, error) {
	ds := dialect.From("sales").
		Select(money(goqu.SUM("total_amount")).As("total")).
		Where(
			goqu.C("user_id").Eq(userID),
			goqu.C("status").Neq(cancelledStatus))
	return prepare(QueryTotalSales, ds)
}

func totalPurchasesQuery(userID int64) (db.QueryRequest, error) {
	ds := dialect.From("purchases").
		Select(money(goqu.SUM("total_amount")).As("total")).
		Where(
			goqu.C("user_id").Eq(userID),
			goqu.C("status").Neq(cancelledStatus))
	return prepare(QueryTotalPurchases, ds)
}

func manualTransactionsQuery(name, kind string) func(int64) (db.QueryRequest, error) {
	return func(userID int64) (db.QueryRequest, error) {
		ds := dialect.From("financial_transactions").
			Select(money(goqu.SUM("amount")).As("total")).
			Where(
				goqu.C("user_id").Eq(userID),
				goqu.C("type").Eq(kind))
		return prepare(name, ds)
	}
}

var (
	manualIncomeQuery   = manualTransactionsQuery(QueryManualIncome, "income")
	manualExpensesQuery = manualTransactionsQuery(QueryManualExpenses, "expense")
)

// COGS is quantity times wholesale price over the line items of non-cancelled sales
func totalCOGSQuery(userID int64) (db.QueryRequest, error) {
	ds := dialect.From(itemsTable).
		Join(salesTable, goqu.On(goqu.I("si.sale_id").Eq(s_id))).
		Join(productsTable, goqu.On(goqu.I("si.product_id").Eq(goqu.I("p.id")))).
		Select(money(goqu.SUM(goqu.L("si.quantity * p.wholesale_price"))).As("total")).
		Where(
			s_userID.Eq(userID),
			s_status.Neq(cancelledStatus))
	return prepare(QueryTotalCOGS, ds)
}

func recentSalesQuery(userID int64) (db.QueryRequest, error) {
	ds := dialect.From(salesTable).
		LeftJoin(customersTable, goqu.On(s_customerID.Eq(c_id))).
		Select(
			s_id,
			goqu.COALESCE(c_name, "").As("customer_name"),
			money(s_total).As("total_amount"),
			s_status,
			s_created).
		Where(s_userID.Eq(userID)).
		Order(s_created.Desc(), s_id.Desc()).
		Limit(listLimit)
	return prepare(QueryRecentSales, ds)
}

func recentPurchasesQuery(userID int64) (db.QueryRequest, error) {
	ds := dialect.From("purchases").
		Select(
			goqu.C("id"),
			goqu.COALESCE(goqu.C("supplier_name"), "").As("supplier_name"),
			money(goqu.C("total_amount")).As("total_amount"),
			goqu.C("status"),
			goqu.C("created_at")).
		Where(goqu.C("user_id").Eq(userID)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(listLimit)
	return prepare(QueryRecentPurchases, ds)
}

func topCustomersQuery(userID int64) (db.QueryRequest, error) {
	spent := goqu.SUM(s_total)
	ds := dialect.From(salesTable).
		Join(customersTable, goqu.On(s_customerID.Eq(c_id))).
		Select(
			c_id,
			c_name,
			money(spent).As("total_spent"),
			goqu.COUNT(s_id).As("sale_count")).
		Where(
			s_userID.Eq(userID),
			s_status.Neq(cancelledStatus)).
		GroupBy(c_id, c_name).
		Order(spent.Desc(), c_name.Asc()).
		Limit(listLimit)
	return prepare(QueryTopCustomers, ds)
}

// lowStockTiers is the cascade order. Only the first tier that returns rows is used.
var lowStockTiers = []struct {
	tier  LowStockTier
	where func() exp.Expression
}{
	{TierOutOfStock, func() exp.Expression { return goqu.C("stock").Eq(0) }},
	{TierCritical, func() exp.Expression { return goqu.And(goqu.C("stock").Gt(0), goqu.C("stock").Lt(5)) }},
	{TierLow, func() exp.Expression { return goqu.C("stock").Lt(10) }},
}

func lowStockQuery(tier LowStockTier, where exp.Expression, userID int64) (db.QueryRequest, error) {
	ds := dialect.From("products").
		Select(
			goqu.C("id"),
			goqu.C("name"),
			goqu.C("stock"),
			money(goqu.C("retail_price")).As("retail_price")).
		Where(goqu.C("user_id").Eq(userID), where).
		Order(goqu.C("stock").Asc(), goqu.C("name").Asc()).
		Limit(listLimit)
	return prepare(QueryLowStockPrefix+string(tier), ds)
}
