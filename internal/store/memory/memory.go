package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/xid"
)

// Store keeps every record in process memory. It is used for development
// when DATABASE_URL is unset and as the backing store of service tests.
type Store struct {
	mu             sync.RWMutex
	usersByID      map[string]domain.User
	userIDsByEmail map[string]string
	packages       map[string]domain.Package
	bills          map[string]domain.Bill
	inventory      map[string]domain.InventoryItem
	expenses       map[string]domain.DailyExpense
}

func New() *Store {
	return &Store{
		usersByID:      make(map[string]domain.User),
		userIDsByEmail: make(map[string]string),
		packages:       make(map[string]domain.Package),
		bills:          make(map[string]domain.Bill),
		inventory:      make(map[string]domain.InventoryItem),
		expenses:       make(map[string]domain.DailyExpense),
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" || user.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.userIDsByEmail[email]; exists {
		return nil, store.ErrConflict
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	user.Email = email
	s.usersByID[user.ID] = user
	s.userIDsByEmail[email] = user.ID

	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDsByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.usersByID[user.ID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	existing.PasswordHash = user.PasswordHash
	existing.Verified = user.Verified
	existing.UpdatedAt = user.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = time.Now().UTC()
	}
	s.usersByID[existing.ID] = existing
	return &existing, nil
}

func (s *Store) ListPackages(_ context.Context, ownerID string) ([]domain.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Package, 0, len(s.packages))
	for _, pkg := range s.packages {
		if pkg.UserID == ownerID {
			result = append(result, clonePackage(pkg))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) GetPackage(_ context.Context, ownerID, id string) (*domain.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pkg, ok := s.packages[id]
	if !ok || pkg.UserID != ownerID {
		return nil, store.ErrPackageNotFound
	}
	out := clonePackage(pkg)
	return &out, nil
}

func (s *Store) CreatePackage(_ context.Context, pkg domain.Package) (*domain.Package, error) {
	if pkg.UserID == "" || pkg.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pkg.ID == "" {
		pkg.ID = xid.New("pkg")
	}
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = time.Now().UTC()
	}
	if pkg.UpdatedAt.IsZero() {
		pkg.UpdatedAt = pkg.CreatedAt
	}
	s.packages[pkg.ID] = clonePackage(pkg)
	out := clonePackage(pkg)
	return &out, nil
}

func (s *Store) UpdatePackage(_ context.Context, pkg domain.Package) (*domain.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.packages[pkg.ID]
	if !ok || existing.UserID != pkg.UserID {
		return nil, store.ErrPackageNotFound
	}
	pkg.CreatedAt = existing.CreatedAt
	if pkg.UpdatedAt.IsZero() {
		pkg.UpdatedAt = time.Now().UTC()
	}
	s.packages[pkg.ID] = clonePackage(pkg)
	out := clonePackage(pkg)
	return &out, nil
}

func (s *Store) DeletePackage(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, ok := s.packages[id]
	if !ok || pkg.UserID != ownerID {
		return store.ErrPackageNotFound
	}
	delete(s.packages, id)
	return nil
}

func (s *Store) CreateBill(_ context.Context, bill domain.Bill, sales []domain.ProductSaleRequest) (*domain.Bill, error) {
	if bill.UserID == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	debits, err := domain.MergeDebits(sales)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every line before touching stock so a failing line leaves all
	// items unchanged.
	for _, debit := range debits {
		item, ok := s.inventory[debit.InventoryID]
		if !ok || item.UserID != bill.UserID {
			return nil, store.ErrProductNotFound
		}
		if item.Quantity < debit.Quantity {
			return nil, &store.InsufficientStockError{Product: item.Name, Available: item.Quantity, Requested: debit.Quantity}
		}
	}

	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	bill.UpdatedAt = bill.CreatedAt

	for _, debit := range debits {
		item := s.inventory[debit.InventoryID]
		item.Quantity -= debit.Quantity
		item.Total = item.Valuation()
		item.UpdatedAt = bill.CreatedAt
		s.inventory[item.ID] = item
	}

	bill.ProductSales = make([]domain.ProductSale, 0, len(sales))
	for _, sale := range sales {
		item := s.inventory[sale.InventoryID]
		bill.ProductSales = append(bill.ProductSales, domain.ProductSale{
			InventoryID:  item.ID,
			ProductName:  item.Name,
			BrandName:    item.BrandName,
			QuantitySold: sale.QuantitySold,
			PricePerUnit: item.PricePerUnit,
		})
	}
	bill.Finalize()

	if bill.ID == "" {
		bill.ID = xid.New("bill")
	}
	s.bills[bill.ID] = cloneBill(bill)
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) GetBill(_ context.Context, ownerID, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.bills[id]
	if !ok || bill.UserID != ownerID {
		return nil, store.ErrBillNotFound
	}
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) ListBills(_ context.Context, ownerID string, r domain.DateRange) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Bill, 0, 32)
	for _, bill := range s.bills {
		if bill.UserID != ownerID || !r.Contains(bill.CreatedAt) {
			continue
		}
		result = append(result, cloneBill(bill))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateBill(_ context.Context, bill domain.Bill, now time.Time) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bills[bill.ID]
	if !ok || existing.UserID != bill.UserID {
		return nil, store.ErrBillNotFound
	}
	if !domain.IsEditable(existing.CreatedAt, now) {
		return nil, store.ErrEditWindowExpired
	}

	bill.CreatedAt = existing.CreatedAt
	bill.UpdatedAt = now
	bill.Finalize()
	s.bills[bill.ID] = cloneBill(bill)
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) DeleteBill(_ context.Context, ownerID, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.bills[id]
	if !ok || bill.UserID != ownerID {
		return store.ErrBillNotFound
	}
	if !domain.IsEditable(bill.CreatedAt, now) {
		return store.ErrEditWindowExpired
	}
	delete(s.bills, id)
	return nil
}

func (s *Store) ListInventory(_ context.Context, ownerID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryItem, 0, len(s.inventory))
	for _, item := range s.inventory {
		if item.UserID == ownerID {
			result = append(result, cloneInventoryItem(item))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DateEntered.After(result[j].DateEntered)
	})
	return result, nil
}

func (s *Store) GetInventoryItem(_ context.Context, ownerID, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventory[id]
	if !ok || item.UserID != ownerID {
		return nil, store.ErrInventoryNotFound
	}
	out := cloneInventoryItem(item)
	return &out, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.UserID == "" || item.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.DateEntered.IsZero() {
		item.DateEntered = item.CreatedAt
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	item.Total = item.Valuation()
	s.inventory[item.ID] = cloneInventoryItem(item)
	out := cloneInventoryItem(item)
	return &out, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.inventory[item.ID]
	if !ok || existing.UserID != item.UserID {
		return nil, store.ErrInventoryNotFound
	}
	item.CreatedAt = existing.CreatedAt
	item.DateEntered = existing.DateEntered
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	item.Total = item.Valuation()
	s.inventory[item.ID] = cloneInventoryItem(item)
	out := cloneInventoryItem(item)
	return &out, nil
}

func (s *Store) DeleteInventoryItem(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventory[id]
	if !ok || item.UserID != ownerID {
		return store.ErrInventoryNotFound
	}
	delete(s.inventory, id)
	return nil
}

func (s *Store) ListDailyExpenses(_ context.Context, ownerID string, r domain.DateRange) ([]domain.DailyExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DailyExpense, 0, 32)
	for _, expense := range s.expenses {
		if expense.UserID == ownerID && r.Contains(expense.Date) {
			result = append(result, expense)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (s *Store) CreateDailyExpense(_ context.Context, expense domain.DailyExpense) (*domain.DailyExpense, error) {
	if expense.UserID == "" || expense.ItemName == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.Date.IsZero() {
		expense.Date = expense.CreatedAt
	}
	s.expenses[expense.ID] = expense
	return &expense, nil
}

func (s *Store) DeleteDailyExpense(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expenses[id]
	if !ok || expense.UserID != ownerID {
		return store.ErrExpenseNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) SalesSummary(_ context.Context, ownerID string, r domain.DateRange, loc *time.Location) (store.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := store.SalesSummary{
		Revenue:      decimal.Zero,
		Services:     decimal.Zero,
		Products:     decimal.Zero,
		Expenditures: decimal.Zero,
		UPI:          decimal.Zero,
		Card:         decimal.Zero,
		Cash:         decimal.Zero,
	}
	days := make(map[string]*domain.SalesDay)
	services := make(map[string]*domain.ServiceCount)

	for _, bill := range s.bills {
		if bill.UserID != ownerID || !r.Contains(bill.CreatedAt) {
			continue
		}
		servicesTotal := bill.ServicesTotal()
		productsTotal := bill.ProductSalesTotal()
		expendituresTotal := bill.ExpendituresTotal()

		summary.Bills++
		summary.Revenue = summary.Revenue.Add(bill.TotalAmount)
		summary.Services = summary.Services.Add(servicesTotal)
		summary.Products = summary.Products.Add(productsTotal)
		summary.Expenditures = summary.Expenditures.Add(expendituresTotal)
		summary.UPI = summary.UPI.Add(bill.UPIAmount)
		summary.Card = summary.Card.Add(bill.CardAmount)
		summary.Cash = summary.Cash.Add(bill.CashAmount)

		key := domain.DayKey(bill.CreatedAt, loc)
		day, ok := days[key]
		if !ok {
			day = &domain.SalesDay{Date: key, Services: decimal.Zero, Products: decimal.Zero, Expenditures: decimal.Zero, Revenue: decimal.Zero}
			days[key] = day
		}
		day.Bills++
		day.Services = day.Services.Add(servicesTotal)
		day.Products = day.Products.Add(productsTotal)
		day.Expenditures = day.Expenditures.Add(expendituresTotal)
		day.Revenue = day.Revenue.Add(bill.TotalAmount)

		for _, item := range bill.Items {
			svc, ok := services[item.PackageName]
			if !ok {
				svc = &domain.ServiceCount{PackageName: item.PackageName, Revenue: decimal.Zero}
				services[item.PackageName] = svc
			}
			svc.Count++
			svc.Revenue = svc.Revenue.Add(item.PackagePrice)
		}
	}

	summary.Daily = make([]domain.SalesDay, 0, len(days))
	for _, day := range days {
		summary.Daily = append(summary.Daily, *day)
	}
	sort.Slice(summary.Daily, func(i, j int) bool {
		return summary.Daily[i].Date < summary.Daily[j].Date
	})

	summary.TopServices = make([]domain.ServiceCount, 0, len(services))
	for _, svc := range services {
		summary.TopServices = append(summary.TopServices, *svc)
	}
	sort.Slice(summary.TopServices, func(i, j int) bool {
		a, b := summary.TopServices[i], summary.TopServices[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.PackageName < b.PackageName
	})
	if len(summary.TopServices) > store.TopServicesLimit {
		summary.TopServices = summary.TopServices[:store.TopServicesLimit]
	}

	return summary, nil
}

func (s *Store) ExpenseSummary(_ context.Context, ownerID string, r domain.DateRange, loc *time.Location) (store.ExpenseSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := store.ExpenseSummary{
		Purchases:     domain.VolumeValue{Value: decimal.Zero},
		ProductSales:  domain.VolumeValue{Value: decimal.Zero},
		Expenditures:  domain.VolumeValue{Value: decimal.Zero},
		DailyExpenses: domain.VolumeValue{Value: decimal.Zero},
	}
	days := make(map[string]*domain.ExpenseDay)
	dayFor := func(t time.Time) *domain.ExpenseDay {
		key := domain.DayKey(t, loc)
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

	for _, item := range s.inventory {
		if item.UserID != ownerID || !r.Contains(item.DateEntered) {
			continue
		}
		value := item.PricePerUnit.Mul(decimal.NewFromInt(int64(item.StockIn)))
		summary.Purchases.Volume += item.StockIn
		summary.Purchases.Value = summary.Purchases.Value.Add(value)
		day := dayFor(item.DateEntered)
		day.PurchaseVolume += item.StockIn
		day.PurchaseValue = day.PurchaseValue.Add(value)
	}

	for _, bill := range s.bills {
		if bill.UserID != ownerID || !r.Contains(bill.CreatedAt) {
			continue
		}
		if len(bill.ProductSales) == 0 && len(bill.Expenditures) == 0 {
			continue
		}
		day := dayFor(bill.CreatedAt)
		for _, sale := range bill.ProductSales {
			summary.ProductSales.Volume += sale.QuantitySold
			summary.ProductSales.Value = summary.ProductSales.Value.Add(sale.TotalPrice)
			day.ProductSaleVolume += sale.QuantitySold
			day.ProductSaleValue = day.ProductSaleValue.Add(sale.TotalPrice)
		}
		for _, exp := range bill.Expenditures {
			summary.Expenditures.Volume++
			summary.Expenditures.Value = summary.Expenditures.Value.Add(exp.Amount())
			day.ExpenditureVolume++
			day.ExpenditureValue = day.ExpenditureValue.Add(exp.Amount())
		}
	}

	for _, expense := range s.expenses {
		if expense.UserID != ownerID || !r.Contains(expense.Date) {
			continue
		}
		summary.DailyExpenses.Volume++
		summary.DailyExpenses.Value = summary.DailyExpenses.Value.Add(expense.Price)
		day := dayFor(expense.Date)
		day.DailyExpenseValue = day.DailyExpenseValue.Add(expense.Price)
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

func clonePackage(src domain.Package) domain.Package {
	dst := src
	dst.MenPricing = cloneTier(src.MenPricing)
	dst.WomenPricing = cloneTier(src.WomenPricing)
	return dst
}

func cloneTier(src *domain.TierPricing) *domain.TierPricing {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}

func cloneBill(src domain.Bill) domain.Bill {
	dst := src
	dst.Items = slices.Clone(src.Items)
	dst.ProductSales = slices.Clone(src.ProductSales)
	dst.Expenditures = slices.Clone(src.Expenditures)
	dst.Editable = false
	return dst
}

func cloneInventoryItem(src domain.InventoryItem) domain.InventoryItem {
	dst := src
	if src.ExpiryDate != nil {
		expiry := *src.ExpiryDate
		dst.ExpiryDate = &expiry
	}
	return dst
}
