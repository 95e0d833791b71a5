package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrConflict          = errors.New("already exists")
	ErrEditWindowExpired = errors.New("bill can no longer be edited or deleted")

	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrPackageNotFound   = fmt.Errorf("package %w", ErrNotFound)
	ErrBillNotFound      = fmt.Errorf("bill %w", ErrNotFound)
	ErrProductNotFound   = fmt.Errorf("product %w", ErrNotFound)
	ErrInventoryNotFound = fmt.Errorf("inventory item %w", ErrNotFound)
	ErrExpenseNotFound   = fmt.Errorf("expense %w", ErrNotFound)
)

// TopServicesLimit caps the services listed in a sales summary.
const TopServicesLimit = 5

// InsufficientStockError names the product and both quantities of a rejected debit.
type InsufficientStockError struct {
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d, Requested: %d", e.Product, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// SalesSummary is the bill aggregate behind sales reports and the dashboard.
type SalesSummary struct {
	Bills        int
	Revenue      decimal.Decimal
	Services     decimal.Decimal
	Products     decimal.Decimal
	Expenditures decimal.Decimal
	UPI          decimal.Decimal
	Card         decimal.Decimal
	Cash         decimal.Decimal
	Daily        []domain.SalesDay
	TopServices  []domain.ServiceCount
}

// ExpenseSummary is the purchase/sale/expenditure aggregate behind expense reports.
type ExpenseSummary struct {
	Purchases     domain.VolumeValue
	ProductSales  domain.VolumeValue
	Expenditures  domain.VolumeValue
	DailyExpenses domain.VolumeValue
	Daily         []domain.ExpenseDay
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
}

// Repository is the owner-scoped record store. Every method that reads or
// writes tenant data takes the owner id explicitly; records of another owner
// behave exactly like missing ones.
type Repository interface {
	UserStore

	ListPackages(ctx context.Context, ownerID string) ([]domain.Package, error)
	GetPackage(ctx context.Context, ownerID, id string) (*domain.Package, error)
	CreatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error)
	UpdatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error)
	DeletePackage(ctx context.Context, ownerID, id string) error

	// CreateBill debits every product sale and inserts the bill as one unit.
	// Product snapshots and all derived amounts are filled in by the store.
	CreateBill(ctx context.Context, bill domain.Bill, sales []domain.ProductSaleRequest) (*domain.Bill, error)
	GetBill(ctx context.Context, ownerID, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, ownerID string, r domain.DateRange) ([]domain.Bill, error)
	// UpdateBill and DeleteBill check the edit window against now inside the
	// same transaction as the mutation.
	UpdateBill(ctx context.Context, bill domain.Bill, now time.Time) (*domain.Bill, error)
	DeleteBill(ctx context.Context, ownerID, id string, now time.Time) error

	ListInventory(ctx context.Context, ownerID string) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, ownerID, id string) (*domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, ownerID, id string) error

	ListDailyExpenses(ctx context.Context, ownerID string, r domain.DateRange) ([]domain.DailyExpense, error)
	CreateDailyExpense(ctx context.Context, expense domain.DailyExpense) (*domain.DailyExpense, error)
	DeleteDailyExpense(ctx context.Context, ownerID, id string) error

	SalesSummary(ctx context.Context, ownerID string, r domain.DateRange, loc *time.Location) (SalesSummary, error)
	ExpenseSummary(ctx context.Context, ownerID string, r domain.DateRange, loc *time.Location) (ExpenseSummary, error)
}
