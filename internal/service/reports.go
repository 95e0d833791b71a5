package service

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

func (s *Service) SalesReport(ctx context.Context, period, startDate, endDate string) (domain.SalesReport, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	r, err := domain.ResolvePeriod(period, startDate, endDate, s.now(), s.loc)
	if err != nil {
		return domain.SalesReport{}, err
	}
	summary, err := s.repo.SalesSummary(ctx, ownerID, r, s.loc)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return domain.SalesReport{
		Range:        r,
		Bills:        summary.Bills,
		Revenue:      summary.Revenue,
		Services:     summary.Services,
		Products:     summary.Products,
		Expenditures: summary.Expenditures,
		UPI:          summary.UPI,
		Card:         summary.Card,
		Cash:         summary.Cash,
		Daily:        summary.Daily,
		TopServices:  summary.TopServices,
	}, nil
}

func (s *Service) ExpenseReport(ctx context.Context, period, startDate, endDate string) (domain.ExpenseReport, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.ExpenseReport{}, err
	}
	r, err := domain.ResolvePeriod(period, startDate, endDate, s.now(), s.loc)
	if err != nil {
		return domain.ExpenseReport{}, err
	}
	summary, err := s.repo.ExpenseSummary(ctx, ownerID, r, s.loc)
	if err != nil {
		return domain.ExpenseReport{}, err
	}
	return domain.ExpenseReport{
		Range:         r,
		Purchases:     summary.Purchases,
		ProductSales:  summary.ProductSales,
		Expenditures:  summary.Expenditures,
		DailyExpenses: summary.DailyExpenses,
		Daily:         summary.Daily,
	}, nil
}

// DashboardAnalytics rolls up today, the rolling last seven days and the
// current calendar month, plus catalog and stock counters.
func (s *Service) DashboardAnalytics(ctx context.Context) (domain.DashboardAnalytics, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.DashboardAnalytics{}, err
	}
	now := s.now().In(s.loc)
	windows := []domain.DateRange{
		{Period: domain.PeriodToday, From: domain.StartOfDay(now), To: now},
		{Period: domain.PeriodLastWeek, From: now.AddDate(0, 0, -7), To: now},
		{Period: "month", From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc), To: now},
	}

	out := domain.DashboardAnalytics{GeneratedAt: now}
	results := make([]domain.DashboardWindow, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range windows {
		i, r := i, r
		g.Go(func() error {
			window, err := s.dashboardWindow(gctx, ownerID, r)
			if err != nil {
				return err
			}
			results[i] = window
			return nil
		})
	}
	g.Go(func() error {
		items, err := s.repo.ListInventory(gctx, ownerID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Quantity <= LowStockThreshold {
				out.LowStockItems++
			}
		}
		return nil
	})
	g.Go(func() error {
		packages, err := s.repo.ListPackages(gctx, ownerID)
		if err != nil {
			return err
		}
		out.Packages = len(packages)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardAnalytics{}, err
	}

	out.Today, out.Week, out.Month = results[0], results[1], results[2]
	return out, nil
}

func (s *Service) dashboardWindow(ctx context.Context, ownerID string, r domain.DateRange) (domain.DashboardWindow, error) {
	summary, err := s.repo.SalesSummary(ctx, ownerID, r, s.loc)
	if err != nil {
		return domain.DashboardWindow{}, err
	}
	bills, err := s.repo.ListBills(ctx, ownerID, r)
	if err != nil {
		return domain.DashboardWindow{}, err
	}
	expenses, err := s.repo.ListDailyExpenses(ctx, ownerID, r)
	if err != nil {
		return domain.DashboardWindow{}, err
	}

	prices := make([]decimal.Decimal, 0, len(expenses))
	for _, e := range expenses {
		prices = append(prices, e.Price)
	}
	totals := make(stats.Float64Data, 0, len(bills))
	for _, b := range bills {
		totals = append(totals, b.TotalAmount.InexactFloat64())
	}

	return domain.DashboardWindow{
		Range:         r,
		Bills:         summary.Bills,
		Revenue:       summary.Revenue,
		Services:      summary.Services,
		Products:      summary.Products,
		Expenditures:  summary.Expenditures,
		UPI:           summary.UPI,
		Card:          summary.Card,
		Cash:          summary.Cash,
		DailyExpenses: sumDecimals(prices),
		AverageBill:   describe(totals, stats.Mean),
		MedianBill:    describe(totals, stats.Median),
	}, nil
}

// describe applies a summary statistic and rounds to paise; an empty sample is zero.
func describe(data stats.Float64Data, fn func(stats.Float64Data) (float64, error)) decimal.Decimal {
	if len(data) == 0 {
		return decimal.Zero
	}
	v, err := fn(data)
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}
