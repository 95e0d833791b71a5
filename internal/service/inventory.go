package service

import (
	"context"
	"strings"
	"time"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

// LowStockThreshold marks inventory items the dashboard flags for reorder.
const LowStockThreshold = 5

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInventory(ctx, ownerID)
}

func (s *Service) GetInventoryItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	item, err := s.repo.GetInventoryItem(ctx, ownerID, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *item, nil
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryRequest) (domain.InventoryItem, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	item, err := s.inventoryFromRequest(req)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	now := s.now().UTC()
	item.UserID = ownerID
	item.DateEntered = now
	item.CreatedAt = now
	item.UpdatedAt = now

	created, err := s.repo.CreateInventoryItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *created, nil
}

func (s *Service) UpdateInventoryItem(ctx context.Context, id string, req domain.InventoryRequest) (domain.InventoryItem, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	item, err := s.inventoryFromRequest(req)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	item.ID = id
	item.UserID = ownerID
	item.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateInventoryItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteInventoryItem(ctx context.Context, id string) error {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteInventoryItem(ctx, ownerID, id)
}

func (s *Service) inventoryFromRequest(req domain.InventoryRequest) (domain.InventoryItem, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.BrandName = strings.TrimSpace(req.BrandName)
	req.Category = strings.TrimSpace(req.Category)
	if err := domain.Validate(req); err != nil {
		return domain.InventoryItem{}, err
	}

	status := domain.PaymentStatus(req.PaymentStatus)
	if status == "" {
		status = domain.PaymentStatusUnpaid
	}

	var expiry *time.Time
	if raw := strings.TrimSpace(req.ExpiryDate); raw != "" {
		parsed, err := domain.ParseDate(raw, s.loc)
		if err != nil {
			return domain.InventoryItem{}, domain.Invalid("expiryDate", "expiryDate is not a valid date")
		}
		expiry = &parsed
	}

	item := domain.InventoryItem{
		Name:          req.Name,
		BrandName:     req.BrandName,
		Category:      req.Category,
		Quantity:      req.Quantity,
		StockIn:       req.StockIn,
		PricePerUnit:  req.PricePerUnit,
		PaymentStatus: status,
		ExpiryDate:    expiry,
	}
	item.Total = item.Valuation()
	return item, nil
}
