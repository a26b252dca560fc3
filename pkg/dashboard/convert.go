package dashboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/AliciaSchep/posdash/pkg/db"
)

// Money columns are cast to text in SQL so that they decode without float rounding, but
// the driver's native numeric and integer types are accepted too.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return x, nil
	case string:
		if x == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(x)
	case []byte:
		return decimal.NewFromString(string(x))
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case pgtype.Numeric:
		if !x.Valid {
			return decimal.Zero, nil
		}
		if x.NaN || x.InfinityModifier != pgtype.Finite {
			return decimal.Zero, fmt.Errorf("numeric value is not finite")
		}
		return decimal.NewFromBigInt(x.Int, x.Exp), nil
	default:
		return decimal.Zero, fmt.Errorf("cannot convert %T to decimal", v)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x, nil
	case string:
		return time.Parse(time.RFC3339Nano, x)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
}

// scalarDecimal reads column from the single row an aggregate query returns. No rows
// means no data and reads as zero.
func scalarDecimal(rows []db.Row, column string) (decimal.Decimal, error) {
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	v, err := toDecimal(rows[0][column])
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %s: %w", column, err)
	}
	return v, nil
}

func decodeSales(rows []db.Row) ([]SaleRecord, error) {
	out := make([]SaleRecord, 0, len(rows))
	for _, row := range rows {
		var (
			rec SaleRecord
			err error
		)
		if rec.ID, err = toInt64(row["id"]); err != nil {
			return nil, fmt.Errorf("column id: %w", err)
		}
		if rec.TotalAmount, err = toDecimal(row["total_amount"]); err != nil {
			return nil, fmt.Errorf("column total_amount: %w", err)
		}
		if rec.CreatedAt, err = toTime(row["created_at"]); err != nil {
			return nil, fmt.Errorf("column created_at: %w", err)
		}
		rec.CustomerName = toString(row["customer_name"])
		rec.Status = toString(row["status"])
		out = append(out, rec)
	}
	return out, nil
}

func decodePurchases(rows []db.Row) ([]PurchaseRecord, error) {
	out := make([]PurchaseRecord, 0, len(rows))
	for _, row := range rows {
		var (
			rec PurchaseRecord
			err error
		)
		if rec.ID, err = toInt64(row["id"]); err != nil {
			return nil, fmt.Errorf("column id: %w", err)
		}
		if rec.TotalAmount, err = toDecimal(row["total_amount"]); err != nil {
			return nil, fmt.Errorf("column total_amount: %w", err)
		}
		if rec.CreatedAt, err = toTime(row["created_at"]); err != nil {
			return nil, fmt.Errorf("column created_at: %w", err)
		}
		rec.SupplierName = toString(row["supplier_name"])
		rec.Status = toString(row["status"])
		out = append(out, rec)
	}
	return out, nil
}

func decodeCustomers(rows []db.Row) ([]CustomerRecord, error) {
	out := make([]CustomerRecord, 0, len(rows))
	for _, row := range rows {
		var (
			rec CustomerRecord
			err error
		)
		if rec.ID, err = toInt64(row["id"]); err != nil {
			return nil, fmt.Errorf("column id: %w", err)
		}
		if rec.TotalSpent, err = toDecimal(row["total_spent"]); err != nil {
			return nil, fmt.Errorf("column total_spent: %w", err)
		}
		if rec.SaleCount, err = toInt64(row["sale_count"]); err != nil {
			return nil, fmt.Errorf("column sale_count: %w", err)
		}
		rec.Name = toString(row["name"])
		out = append(out, rec)
	}
	return out, nil
}

func decodeProducts(rows []db.Row) ([]ProductRecord, error) {
	out := make([]ProductRecord, 0, len(rows))
	for _, row := range rows {
		var (
			rec ProductRecord
			err error
		)
		if rec.ID, err = toInt64(row["id"]); err != nil {
			return nil, fmt.Errorf("column id: %w", err)
		}
		if rec.Stock, err = toInt64(row["stock"]); err != nil {
			return nil, fmt.Errorf("column stock: %w", err)
		}
		if rec.RetailPrice, err = toDecimal(row["retail_price"]); err != nil {
			return nil, fmt.Errorf("column retail_price: %w", err)
		}
		rec.Name = toString(row["name"])
		out = append(out, rec)
	}
	return out, nil
}
