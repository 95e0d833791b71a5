package service

import (
	"context"
	"strings"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

func (s *Service) ListDailyExpenses(ctx context.Context, period, startDate, endDate string) ([]domain.DailyExpense, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	r, err := domain.ResolvePeriod(period, startDate, endDate, s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDailyExpenses(ctx, ownerID, r)
}

// CreateDailyExpense records an operating expense on its business date, which
// defaults to today when not given.
func (s *Service) CreateDailyExpense(ctx context.Context, req domain.DailyExpenseRequest) (domain.DailyExpense, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.DailyExpense{}, err
	}
	req.ItemName = strings.TrimSpace(req.ItemName)
	if err := domain.Validate(req); err != nil {
		return domain.DailyExpense{}, err
	}

	now := s.now()
	date := now
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err = domain.ParseDate(raw, s.loc)
		if err != nil {
			return domain.DailyExpense{}, domain.Invalid("date", "date is not a valid date")
		}
	}

	created, err := s.repo.CreateDailyExpense(ctx, domain.DailyExpense{
		UserID:    ownerID,
		ItemName:  req.ItemName,
		Price:     req.Price,
		Date:      date.UTC(),
		CreatedAt: now.UTC(),
	})
	if err != nil {
		return domain.DailyExpense{}, err
	}
	return *created, nil
}

func (s *Service) DeleteDailyExpense(ctx context.Context, id string) error {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteDailyExpense(ctx, ownerID, id)
}
