package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/xid"
)

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, password_hash, verified, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || user.PasswordHash == "" {
		return nil, store.ErrInvalidInput
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.Verified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET password_hash = $2, verified = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+userColumns, user.ID, user.PasswordHash, user.Verified, user.UpdatedAt)
	return scanUser(row)
}

const packageColumns = `id, user_id, name, description, price, type, men_pricing, women_pricing, created_at, updated_at`

func scanPackage(row rowScanner) (*domain.Package, error) {
	var (
		p        domain.Package
		price    decimal.NullDecimal
		menRaw   []byte
		womenRaw []byte
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &price, &p.Type, &menRaw, &womenRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPackageNotFound
		}
		return nil, err
	}
	if price.Valid {
		v := price.Decimal
		p.Price = &v
	}
	var err error
	if p.MenPricing, err = decodeTier(menRaw); err != nil {
		return nil, err
	}
	if p.WomenPricing, err = decodeTier(womenRaw); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPackages(ctx context.Context, ownerID string) ([]domain.Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]domain.Package, 0, 32)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return packages, nil
}

func (s *Store) GetPackage(ctx context.Context, ownerID, id string) (*domain.Package, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1 AND user_id = $2`, id, ownerID)
	return scanPackage(row)
}

func (s *Store) CreatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error) {
	if pkg.UserID == "" || pkg.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if pkg.ID == "" {
		pkg.ID = xid.New("pkg")
	}
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = time.Now().UTC()
	}
	if pkg.UpdatedAt.IsZero() {
		pkg.UpdatedAt = pkg.CreatedAt
	}

	men, women, err := encodeTiers(pkg)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO packages (id, user_id, name, description, price, type, men_pricing, women_pricing, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, pkg.ID, pkg.UserID, pkg.Name, pkg.Description, nullDecimal(pkg.Price), pkg.Type, men, women, pkg.CreatedAt, pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *Store) UpdatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error) {
	if pkg.UpdatedAt.IsZero() {
		pkg.UpdatedAt = time.Now().UTC()
	}
	men, women, err := encodeTiers(pkg)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE packages
		SET name = $3, description = $4, price = $5, type = $6, men_pricing = $7, women_pricing = $8, updated_at = $9
		WHERE id = $1 AND user_id = $2
		RETURNING `+packageColumns,
		pkg.ID, pkg.UserID, pkg.Name, pkg.Description, nullDecimal(pkg.Price), pkg.Type, men, women, pkg.UpdatedAt)
	return scanPackage(row)
}

func (s *Store) DeletePackage(ctx context.Context, ownerID, id string) error {
	return s.deleteOwned(ctx, `DELETE FROM packages WHERE id = $1 AND user_id = $2`, id, ownerID, store.ErrPackageNotFound)
}

const inventoryColumns = `id, user_id, name, brand_name, category, quantity, stock_in, price_per_unit, total, payment_status, expiry_date, date_entered, created_at, updated_at`

func scanInventoryItem(row rowScanner) (*domain.InventoryItem, error) {
	var (
		item   domain.InventoryItem
		status string
		expiry sql.NullTime
	)
	err := row.Scan(&item.ID, &item.UserID, &item.Name, &item.BrandName, &item.Category, &item.Quantity, &item.StockIn,
		&item.PricePerUnit, &item.Total, &status, &expiry, &item.DateEntered, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrInventoryNotFound
		}
		return nil, err
	}
	item.PaymentStatus = domain.PaymentStatus(status)
	if expiry.Valid {
		e := expiry.Time
		item.ExpiryDate = &e
	}
	return &item, nil
}

func (s *Store) ListInventory(ctx context.Context, ownerID string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory_items
		WHERE user_id = $1
		ORDER BY date_entered DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, ownerID, id string) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id = $1 AND user_id = $2`, id, ownerID)
	return scanInventoryItem(row)
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.UserID == "" || item.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, user_id, name, brand_name, category, quantity, stock_in, price_per_unit, total, payment_status, expiry_date, date_entered, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, item.ID, item.UserID, item.Name, item.BrandName, item.Category, item.Quantity, item.StockIn,
		item.PricePerUnit, item.Total, string(item.PaymentStatus), nullTime(item.ExpiryDate), item.DateEntered, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	item.Total = item.Valuation()

	row := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET name = $3, brand_name = $4, category = $5, quantity = $6, stock_in = $7, price_per_unit = $8,
		    total = $9, payment_status = $10, expiry_date = $11, updated_at = $12
		WHERE id = $1 AND user_id = $2
		RETURNING `+inventoryColumns,
		item.ID, item.UserID, item.Name, item.BrandName, item.Category, item.Quantity, item.StockIn,
		item.PricePerUnit, item.Total, string(item.PaymentStatus), nullTime(item.ExpiryDate), item.UpdatedAt)
	return scanInventoryItem(row)
}

func (s *Store) DeleteInventoryItem(ctx context.Context, ownerID, id string) error {
	return s.deleteOwned(ctx, `DELETE FROM inventory_items WHERE id = $1 AND user_id = $2`, id, ownerID, store.ErrInventoryNotFound)
}

func (s *Store) ListDailyExpenses(ctx context.Context, ownerID string, r domain.DateRange) ([]domain.DailyExpense, error) {
	args := []any{ownerID}
	clause, args := rangeClause("date", r, args)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, item_name, price, date, created_at
		FROM daily_expenses
		WHERE user_id = $1`+clause+`
		ORDER BY date DESC, created_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.DailyExpense, 0, 32)
	for rows.Next() {
		var e domain.DailyExpense
		if err := rows.Scan(&e.ID, &e.UserID, &e.ItemName, &e.Price, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) CreateDailyExpense(ctx context.Context, expense domain.DailyExpense) (*domain.DailyExpense, error) {
	if expense.UserID == "" || expense.ItemName == "" {
		return nil, store.ErrInvalidInput
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.Date.IsZero() {
		expense.Date = expense.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_expenses (id, user_id, item_name, price, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, expense.ID, expense.UserID, expense.ItemName, expense.Price, expense.Date, expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) DeleteDailyExpense(ctx context.Context, ownerID, id string) error {
	return s.deleteOwned(ctx, `DELETE FROM daily_expenses WHERE id = $1 AND user_id = $2`, id, ownerID, store.ErrExpenseNotFound)
}

func (s *Store) deleteOwned(ctx context.Context, query string, id string, ownerID string, notFound error) error {
	result, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// rangeClause appends a BETWEEN filter on column when r is bounded.
func rangeClause(column string, r domain.DateRange, args []any) (string, []any) {
	if r.Unbounded() {
		return "", args
	}
	args = append(args, r.From, r.To)
	return fmt.Sprintf(" AND %s BETWEEN $%d AND $%d", column, len(args)-1, len(args)), args
}

func encodeTiers(pkg domain.Package) (any, any, error) {
	men, err := encodeTier(pkg.MenPricing)
	if err != nil {
		return nil, nil, err
	}
	women, err := encodeTier(pkg.WomenPricing)
	if err != nil {
		return nil, nil, err
	}
	return men, women, nil
}

func encodeTier(tier *domain.TierPricing) (any, error) {
	if tier == nil {
		return nil, nil
	}
	raw, err := json.Marshal(tier)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func decodeTier(raw []byte) (*domain.TierPricing, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var tier domain.TierPricing
	if err := json.Unmarshal(raw, &tier); err != nil {
		return nil, err
	}
	return &tier, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
