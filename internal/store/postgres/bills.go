package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/xid"
)

const billColumns = `id, user_id, items, total_amount, client_name, customer_mobile, payment_method,
	upi_amount, card_amount, cash_amount, attendant_by, product_sale, product_sales, expenditures, created_at, updated_at`

func scanBill(row rowScanner) (*domain.Bill, error) {
	var (
		b        domain.Bill
		method   string
		itemsRaw []byte
		salesRaw []byte
		expRaw   []byte
	)
	err := row.Scan(&b.ID, &b.UserID, &itemsRaw, &b.TotalAmount, &b.ClientName, &b.CustomerMobile, &method,
		&b.UPIAmount, &b.CardAmount, &b.CashAmount, &b.AttendantBy, &b.ProductSale, &salesRaw, &expRaw,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBillNotFound
		}
		return nil, err
	}
	b.PaymentMethod = domain.PaymentMethod(method)
	if err := unmarshalLines(itemsRaw, &b.Items); err != nil {
		return nil, err
	}
	if err := unmarshalLines(salesRaw, &b.ProductSales); err != nil {
		return nil, err
	}
	if err := unmarshalLines(expRaw, &b.Expenditures); err != nil {
		return nil, err
	}
	if b.Items == nil {
		b.Items = []domain.BillItem{}
	}
	if b.ProductSales == nil {
		b.ProductSales = []domain.ProductSale{}
	}
	if b.Expenditures == nil {
		b.Expenditures = []domain.Expenditure{}
	}
	return &b, nil
}

type lockedStock struct {
	name         string
	brandName    string
	quantity     int
	pricePerUnit decimal.Decimal
}

// CreateBill locks every referenced inventory row, checks all debits and only
// then applies them, so a rejected line leaves every item untouched.
func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, sales []domain.ProductSaleRequest) (*domain.Bill, error) {
	if bill.UserID == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if bill.ID == "" {
		bill.ID = xid.New("bill")
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	bill.UpdatedAt = bill.CreatedAt

	debits, err := domain.MergeDebits(sales)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	stock := make(map[string]lockedStock, len(debits))
	if len(debits) > 0 {
		ids := make([]string, 0, len(debits))
		for _, debit := range debits {
			ids = append(ids, debit.InventoryID)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, name, brand_name, quantity, price_per_unit
			FROM inventory_items
			WHERE user_id = $1 AND id = ANY($2)
			ORDER BY id
			FOR UPDATE
		`, bill.UserID, ids)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			var item lockedStock
			if err := rows.Scan(&id, &item.name, &item.brandName, &item.quantity, &item.pricePerUnit); err != nil {
				_ = rows.Close()
				return nil, err
			}
			stock[id] = item
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()

		for _, debit := range debits {
			item, ok := stock[debit.InventoryID]
			if !ok {
				return nil, store.ErrProductNotFound
			}
			if item.quantity < debit.Quantity {
				return nil, &store.InsufficientStockError{Product: item.name, Available: item.quantity, Requested: debit.Quantity}
			}
		}

		for _, debit := range debits {
			_, err := tx.ExecContext(ctx, `
				UPDATE inventory_items
				SET quantity = quantity - $3, total = (quantity - $3) * price_per_unit, updated_at = $4
				WHERE id = $1 AND user_id = $2
			`, debit.InventoryID, bill.UserID, debit.Quantity, bill.CreatedAt)
			if err != nil {
				return nil, err
			}
		}
	}

	bill.ProductSales = make([]domain.ProductSale, 0, len(sales))
	for _, sale := range sales {
		item := stock[sale.InventoryID]
		bill.ProductSales = append(bill.ProductSales, domain.ProductSale{
			InventoryID:  sale.InventoryID,
			ProductName:  item.name,
			BrandName:    item.brandName,
			QuantitySold: sale.QuantitySold,
			PricePerUnit: item.pricePerUnit,
		})
	}
	bill.Finalize()

	if err := insertBill(ctx, tx, bill); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Debug("bill created",
		zap.String("bill_id", bill.ID),
		zap.String("owner_id", bill.UserID),
		zap.Int("stock_debits", len(debits)),
	)
	return &bill, nil
}

func insertBill(ctx context.Context, tx *sql.Tx, bill domain.Bill) error {
	items, sales, expenditures, err := marshalBillLines(bill)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bills (id, user_id, items, total_amount, client_name, customer_mobile, payment_method,
			upi_amount, card_amount, cash_amount, attendant_by, product_sale, product_sales, expenditures, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, bill.ID, bill.UserID, items, bill.TotalAmount, bill.ClientName, bill.CustomerMobile, string(bill.PaymentMethod),
		bill.UPIAmount, bill.CardAmount, bill.CashAmount, bill.AttendantBy, bill.ProductSale, sales, expenditures,
		bill.CreatedAt, bill.UpdatedAt)
	return err
}

func (s *Store) GetBill(ctx context.Context, ownerID, id string) (*domain.Bill, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1 AND user_id = $2`, id, ownerID)
	return scanBill(row)
}

func (s *Store) ListBills(ctx context.Context, ownerID string, r domain.DateRange) ([]domain.Bill, error) {
	args := []any{ownerID}
	clause, args := rangeClause("created_at", r, args)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE user_id = $1`+clause+`
		ORDER BY created_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 64)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bills, nil
}

// lockBill takes a row lock on the bill and rejects it once the edit window
// measured from its creation has passed.
func lockBill(ctx context.Context, tx *sql.Tx, ownerID, id string, now time.Time) (time.Time, error) {
	var createdAt time.Time
	err := tx.QueryRowContext(ctx, `
		SELECT created_at
		FROM bills
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, ownerID).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, store.ErrBillNotFound
		}
		return time.Time{}, err
	}
	if !domain.IsEditable(createdAt, now) {
		return time.Time{}, store.ErrEditWindowExpired
	}
	return createdAt, nil
}

func (s *Store) UpdateBill(ctx context.Context, bill domain.Bill, now time.Time) (*domain.Bill, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	createdAt, err := lockBill(ctx, tx, bill.UserID, bill.ID, now)
	if err != nil {
		return nil, err
	}

	bill.CreatedAt = createdAt
	bill.UpdatedAt = now
	bill.Finalize()

	items, sales, expenditures, err := marshalBillLines(bill)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE bills
		SET items = $3, total_amount = $4, client_name = $5, customer_mobile = $6, payment_method = $7,
		    upi_amount = $8, card_amount = $9, cash_amount = $10, attendant_by = $11, product_sale = $12,
		    product_sales = $13, expenditures = $14, updated_at = $15
		WHERE id = $1 AND user_id = $2
	`, bill.ID, bill.UserID, items, bill.TotalAmount, bill.ClientName, bill.CustomerMobile, string(bill.PaymentMethod),
		bill.UPIAmount, bill.CardAmount, bill.CashAmount, bill.AttendantBy, bill.ProductSale, sales, expenditures, bill.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (s *Store) DeleteBill(ctx context.Context, ownerID, id string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockBill(ctx, tx, ownerID, id, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE id = $1 AND user_id = $2`, id, ownerID); err != nil {
		return err
	}
	return tx.Commit()
}

func marshalBillLines(bill domain.Bill) ([]byte, []byte, []byte, error) {
	items, err := json.Marshal(bill.Items)
	if err != nil {
		return nil, nil, nil, err
	}
	sales, err := json.Marshal(bill.ProductSales)
	if err != nil {
		return nil, nil, nil, err
	}
	expenditures, err := json.Marshal(bill.Expenditures)
	if err != nil {
		return nil, nil, nil, err
	}
	return items, sales, expenditures, nil
}

func unmarshalLines(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
