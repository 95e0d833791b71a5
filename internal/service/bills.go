package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

// CreateBill prices the selected services from the owner's catalog, then
// hands the bill and its product sales to the store, which debits stock and
// persists the bill as one unit. Side effects run only after that commit.
func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (domain.Bill, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	if len(req.Services) == 0 {
		return domain.Bill{}, domain.Invalid("services", "At least one service must be selected")
	}
	if strings.TrimSpace(req.AttendantBy) == "" {
		return domain.Bill{}, domain.Invalid("attendantBy", "attendantBy is required")
	}
	req.Services = normaliseSelections(req.Services)
	if err := domain.Validate(req); err != nil {
		return domain.Bill{}, err
	}

	items := make([]domain.BillItem, 0, len(req.Services))
	for i, selection := range req.Services {
		pkg, err := s.repo.GetPackage(ctx, ownerID, selection.PackageID)
		if err != nil {
			return domain.Bill{}, err
		}
		line, err := pkg.Pricing().Resolve(selection.Gender, selection.ServiceLevel)
		if err != nil {
			if errors.Is(err, domain.ErrNoPrice) {
				field := fmt.Sprintf("services[%d]", i)
				return domain.Bill{}, domain.Invalid(field, fmt.Sprintf("%s: %s has no price for this selection", field, pkg.Name))
			}
			return domain.Bill{}, err
		}
		items = append(items, domain.BillItem{
			PackageID:    pkg.ID,
			PackageName:  pkg.Name,
			PackagePrice: line.Price,
			PackageType:  line.Type,
			Gender:       line.Gender,
			ServiceLevel: line.ServiceLevel,
		})
	}

	expenditures, err := expendituresFromRequest(req.Expenditures)
	if err != nil {
		return domain.Bill{}, err
	}

	bill := domain.Bill{
		UserID:         ownerID,
		Items:          items,
		ClientName:     clientName(req.ClientName),
		CustomerMobile: strings.TrimSpace(req.CustomerMobile),
		AttendantBy:    strings.TrimSpace(req.AttendantBy),
		PaymentMethod:  domain.ResolvePaymentMethod(req.PaymentMethod, req.UPIAmount, req.CardAmount, req.CashAmount),
		Expenditures:   expenditures,
		CreatedAt:      s.now().UTC(),
	}

	created, err := s.repo.CreateBill(ctx, bill, req.ProductSales)
	if err != nil {
		return domain.Bill{}, err
	}
	created.Editable = domain.IsEditable(created.CreatedAt, s.now())

	s.logger.Info("bill created",
		zap.String("bill_id", created.ID),
		zap.String("owner_id", ownerID),
		zap.String("total", created.TotalAmount.String()),
		zap.String("payment_method", string(created.PaymentMethod)),
		zap.Int("product_sales", len(created.ProductSales)),
	)
	s.publisher.BillCreated(*created)
	return *created, nil
}

func (s *Service) ListBills(ctx context.Context, period, startDate, endDate string) ([]domain.Bill, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	r, err := domain.ResolvePeriod(period, startDate, endDate, now, s.loc)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.ListBills(ctx, ownerID, r)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Editable = domain.IsEditable(bills[i].CreatedAt, now)
	}
	return bills, nil
}

func (s *Service) GetBill(ctx context.Context, id string) (domain.Bill, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	bill, err := s.repo.GetBill(ctx, ownerID, id)
	if err != nil {
		return domain.Bill{}, err
	}
	bill.Editable = domain.IsEditable(bill.CreatedAt, s.now())
	return *bill, nil
}

// UpdateBill replaces the bill's lines and recomputes its totals. Submitted
// product lines are taken as they are: stock is not checked or debited again.
func (s *Service) UpdateBill(ctx context.Context, id string, req domain.BillUpdateRequest) (domain.Bill, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	if len(req.Items) == 0 {
		return domain.Bill{}, domain.Invalid("items", "At least one service must be selected")
	}
	if strings.TrimSpace(req.AttendantBy) == "" {
		return domain.Bill{}, domain.Invalid("attendantBy", "attendantBy is required")
	}
	if err := domain.Validate(req); err != nil {
		return domain.Bill{}, err
	}
	for i, item := range req.Items {
		if item.PackagePrice.IsNegative() {
			return domain.Bill{}, domain.Invalid(fmt.Sprintf("items[%d].packagePrice", i), "packagePrice must not be negative")
		}
	}
	for i, sale := range req.ProductSales {
		if sale.QuantitySold < 1 || sale.QuantitySold > domain.MaxSaleQuantity {
			field := fmt.Sprintf("productSales[%d].quantitySold", i)
			return domain.Bill{}, domain.Invalid(field, fmt.Sprintf("%s must be between 1 and %d", field, domain.MaxSaleQuantity))
		}
		if sale.PricePerUnit.IsNegative() {
			field := fmt.Sprintf("productSales[%d].pricePerUnit", i)
			return domain.Bill{}, domain.Invalid(field, field+" must not be negative")
		}
	}

	expenditures, err := expendituresFromRequest(req.Expenditures)
	if err != nil {
		return domain.Bill{}, err
	}

	bill := domain.Bill{
		ID:             id,
		UserID:         ownerID,
		Items:          req.Items,
		ClientName:     clientName(req.ClientName),
		CustomerMobile: strings.TrimSpace(req.CustomerMobile),
		AttendantBy:    strings.TrimSpace(req.AttendantBy),
		PaymentMethod:  domain.ResolvePaymentMethod(req.PaymentMethod, req.UPIAmount, req.CardAmount, req.CashAmount),
		ProductSales:   req.ProductSales,
		Expenditures:   expenditures,
	}

	now := s.now()
	updated, err := s.repo.UpdateBill(ctx, bill, now)
	if err != nil {
		return domain.Bill{}, err
	}
	updated.Editable = domain.IsEditable(updated.CreatedAt, now)
	return *updated, nil
}

func (s *Service) DeleteBill(ctx context.Context, id string) error {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBill(ctx, ownerID, id, s.now()); err != nil {
		return err
	}
	s.logger.Info("bill deleted", zap.String("bill_id", id), zap.String("owner_id", ownerID))
	return nil
}

func expendituresFromRequest(reqs []domain.ExpenditureRequest) ([]domain.Expenditure, error) {
	out := make([]domain.Expenditure, 0, len(reqs))
	for i, req := range reqs {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return nil, domain.Invalid(fmt.Sprintf("expenditures[%d].name", i), "expenditure name is required")
		}
		if req.Price != nil && req.Price.IsNegative() {
			return nil, domain.Invalid(fmt.Sprintf("expenditures[%d].price", i), "expenditure price must not be negative")
		}
		out = append(out, domain.Expenditure{Name: name, Price: req.Price})
	}
	return out, nil
}

func normaliseSelections(selections []domain.ServiceSelection) []domain.ServiceSelection {
	out := make([]domain.ServiceSelection, len(selections))
	for i, sel := range selections {
		out[i] = domain.ServiceSelection{
			PackageID:    strings.TrimSpace(sel.PackageID),
			Gender:       strings.ToLower(strings.TrimSpace(sel.Gender)),
			ServiceLevel: strings.ToLower(strings.TrimSpace(sel.ServiceLevel)),
		}
	}
	return out
}

func clientName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return domain.WalkInCustomer
	}
	return name
}
