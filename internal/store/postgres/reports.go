package postgres

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
)

// Bill lines live in JSONB; these fragments total one bill's lines.
const (
	servicesSQL     = `(SELECT COALESCE(SUM((e->>'packagePrice')::numeric), 0) FROM jsonb_array_elements(items) e)`
	expendituresSQL = `(SELECT COALESCE(SUM((e->>'price')::numeric), 0) FROM jsonb_array_elements(expenditures) e)`
	soldUnitsSQL    = `(SELECT COALESCE(SUM((e->>'quantitySold')::int), 0) FROM jsonb_array_elements(product_sales) e)`
)

func dayExpr(column string) string {
	return `to_char(` + column + ` AT TIME ZONE $2, 'YYYY-MM-DD')`
}

// tzName maps a location to a zone name Postgres understands.
func tzName(loc *time.Location) string {
	if loc == nil || loc == time.Local {
		return "UTC"
	}
	return loc.String()
}

func (s *Store) SalesSummary(ctx context.Context, ownerID string, r domain.DateRange, loc *time.Location) (store.SalesSummary, error) {
	summary := store.SalesSummary{
		Revenue:      decimal.Zero,
		Services:     decimal.Zero,
		Products:     decimal.Zero,
		Expenditures: decimal.Zero,
		UPI:          decimal.Zero,
		Card:         decimal.Zero,
		Cash:         decimal.Zero,
		Daily:        []domain.SalesDay{},
		TopServices:  []domain.ServiceCount{},
	}

	args := []any{ownerID, tzName(loc)}
	clause, args := rangeClause("created_at", r, args)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dayExpr("created_at")+` AS day,
		       COUNT(*),
		       COALESCE(SUM(`+servicesSQL+`), 0),
		       COALESCE(SUM(product_sale), 0),
		       COALESCE(SUM(`+expendituresSQL+`), 0),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(upi_amount), 0),
		       COALESCE(SUM(card_amount), 0),
		       COALESCE(SUM(cash_amount), 0)
		FROM bills
		WHERE user_id = $1`+clause+`
		GROUP BY day
		ORDER BY day
	`, args...)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var day domain.SalesDay
		var upi, card, cash decimal.Decimal
		if err := rows.Scan(&day.Date, &day.Bills, &day.Services, &day.Products, &day.Expenditures, &day.Revenue, &upi, &card, &cash); err != nil {
			return summary, err
		}
		summary.Bills += day.Bills
		summary.Revenue = summary.Revenue.Add(day.Revenue)
		summary.Services = summary.Services.Add(day.Services)
		summary.Products = summary.Products.Add(day.Products)
		summary.Expenditures = summary.Expenditures.Add(day.Expenditures)
		summary.UPI = summary.UPI.Add(upi)
		summary.Card = summary.Card.Add(card)
		summary.Cash = summary.Cash.Add(cash)
		summary.Daily = append(summary.Daily, day)
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	topArgs := []any{ownerID}
	topClause, topArgs := rangeClause("b.created_at", r, topArgs)
	topArgs = append(topArgs, store.TopServicesLimit)
	topRows, err := s.db.QueryContext(ctx, `
		SELECT e->>'packageName' AS package_name,
		       COUNT(*),
		       COALESCE(SUM((e->>'packagePrice')::numeric), 0)
		FROM bills b, jsonb_array_elements(b.items) e
		WHERE b.user_id = $1`+topClause+`
		GROUP BY package_name
		ORDER BY COUNT(*) DESC, package_name ASC
		LIMIT $`+strconv.Itoa(len(topArgs))+`
	`, topArgs...)
	if err != nil {
		return summary, err
	}
	defer topRows.Close()

	for topRows.Next() {
		var svc domain.ServiceCount
		if err := topRows.Scan(&svc.PackageName, &svc.Count, &svc.Revenue); err != nil {
			return summary, err
		}
		summary.TopServices = append(summary.TopServices, svc)
	}
	if err := topRows.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Store) ExpenseSummary(ctx context.Context, ownerID string, r domain.DateRange, loc *time.Location) (store.ExpenseSummary, error) {
	summary := store.ExpenseSummary{
		Purchases:     domain.VolumeValue{Value: decimal.Zero},
		ProductSales:  domain.VolumeValue{Value: decimal.Zero},
		Expenditures:  domain.VolumeValue{Value: decimal.Zero},
		DailyExpenses: domain.VolumeValue{Value: decimal.Zero},
	}
	days := make(map[string]*domain.ExpenseDay)
	dayFor := func(key string) *domain.ExpenseDay {
		day, ok := days[key]
		if !ok {
			day = &domain.ExpenseDay{
				Date:              key,
				PurchaseValue:     decimal.Zero,
				ProductSaleValue:  decimal.Zero,
				ExpenditureValue:  decimal.Zero,
				DailyExpenseValue: decimal.Zero,
			}
			days[key] = day
		}
		return day
	}

	base := []any{ownerID, tzName(loc)}

	clause, args := rangeClause("date_entered", r, base)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dayExpr("date_entered")+` AS day,
		       COALESCE(SUM(stock_in), 0)::bigint,
		       COALESCE(SUM(stock_in * price_per_unit), 0)
		FROM inventory_items
		WHERE user_id = $1`+clause+`
		GROUP BY day
	`, args...)
	if err != nil {
		return summary, err
	}
	for rows.Next() {
		var key string
		var volume int
		var value decimal.Decimal
		if err := rows.Scan(&key, &volume, &value); err != nil {
			_ = rows.Close()
			return summary, err
		}
		day := dayFor(key)
		day.PurchaseVolume += volume
		day.PurchaseValue = day.PurchaseValue.Add(value)
		summary.Purchases.Volume += volume
		summary.Purchases.Value = summary.Purchases.Value.Add(value)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return summary, err
	}
	_ = rows.Close()

	clause, args = rangeClause("created_at", r, base)
	rows, err = s.db.QueryContext(ctx, `
		SELECT `+dayExpr("created_at")+` AS day,
		       COALESCE(SUM(`+soldUnitsSQL+`), 0)::bigint,
		       COALESCE(SUM(product_sale), 0),
		       COALESCE(SUM(jsonb_array_length(expenditures)), 0)::bigint,
		       COALESCE(SUM(`+expendituresSQL+`), 0)
		FROM bills
		WHERE user_id = $1`+clause+`
		  AND (jsonb_array_length(product_sales) > 0 OR jsonb_array_length(expenditures) > 0)
		GROUP BY day
	`, args...)
	if err != nil {
		return summary, err
	}
	for rows.Next() {
		var key string
		var saleVolume, expenditureVolume int
		var saleValue, expenditureValue decimal.Decimal
		if err := rows.Scan(&key, &saleVolume, &saleValue, &expenditureVolume, &expenditureValue); err != nil {
			_ = rows.Close()
			return summary, err
		}
		day := dayFor(key)
		day.ProductSaleVolume += saleVolume
		day.ProductSaleValue = day.ProductSaleValue.Add(saleValue)
		day.ExpenditureVolume += expenditureVolume
		day.ExpenditureValue = day.ExpenditureValue.Add(expenditureValue)
		summary.ProductSales.Volume += saleVolume
		summary.ProductSales.Value = summary.ProductSales.Value.Add(saleValue)
		summary.Expenditures.Volume += expenditureVolume
		summary.Expenditures.Value = summary.Expenditures.Value.Add(expenditureValue)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return summary, err
	}
	_ = rows.Close()

	clause, args = rangeClause("date", r, base)
	rows, err = s.db.QueryContext(ctx, `
		SELECT `+dayExpr("date")+` AS day,
		       COUNT(*),
		       COALESCE(SUM(price), 0)
		FROM daily_expenses
		WHERE user_id = $1`+clause+`
		GROUP BY day
	`, args...)
	if err != nil {
		return summary, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		var value decimal.Decimal
		if err := rows.Scan(&key, &count, &value); err != nil {
			return summary, err
		}
		day := dayFor(key)
		day.DailyExpenseValue = day.DailyExpenseValue.Add(value)
		summary.DailyExpenses.Volume += count
		summary.DailyExpenses.Value = summary.DailyExpenses.Value.Add(value)
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	summary.Daily = make([]domain.ExpenseDay, 0, len(days))
	for _, day := range days {
		summary.Daily = append(summary.Daily, *day)
	}
	sort.Slice(summary.Daily, func(i, j int) bool {
		return summary.Daily[i].Date < summary.Daily[j].Date
	})
	return summary, nil
}
