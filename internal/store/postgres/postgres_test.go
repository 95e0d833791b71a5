package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
)

// arrayConverter lets []string reach the mock the way pgx accepts it for ANY($n).
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return ids, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, nil), mock
}

func stockRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "brand_name", "quantity", "price_per_unit"})
}

func testBill() domain.Bill {
	return domain.Bill{
		UserID:      "usr-1",
		ClientName:  "Asha",
		AttendantBy: "Ravi",
		Items:       []domain.BillItem{{PackageID: "pkg-1", PackageName: "Haircut", PackagePrice: decimal.NewFromInt(200), PackageType: "Basic"}},
	}
}

func TestCreateBillRejectsInsufficientStockWithoutDebit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, brand_name, quantity, price_per_unit").
		WithArgs("usr-1", sqlmock.AnyArg()).
		WillReturnRows(stockRows().
			AddRow("inv-a", "Conditioner", "Dove", 10, "80.00").
			AddRow("inv-b", "Shampoo", "Loreal", 2, "120.00"))
	mock.ExpectRollback()

	_, err := s.CreateBill(context.Background(), testBill(), []domain.ProductSaleRequest{
		{InventoryID: "inv-a", QuantitySold: 1},
		{InventoryID: "inv-b", QuantitySold: 3},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInsufficientStock))
	assert.Equal(t, "insufficient stock for Shampoo. Available: 2, Requested: 3", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBillRejectsForeignProduct(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, brand_name, quantity, price_per_unit").
		WithArgs("usr-1", sqlmock.AnyArg()).
		WillReturnRows(stockRows())
	mock.ExpectRollback()

	_, err := s.CreateBill(context.Background(), testBill(), []domain.ProductSaleRequest{{InventoryID: "inv-other", QuantitySold: 1}})
	assert.True(t, errors.Is(err, store.ErrProductNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBillRejectsOverflowingDebitBeforeTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	half := math.MaxInt64/2 + 1
	_, err := s.CreateBill(context.Background(), testBill(), []domain.ProductSaleRequest{
		{InventoryID: "inv-a", QuantitySold: half},
		{InventoryID: "inv-a", QuantitySold: half},
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBillDebitsAndCommits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, brand_name, quantity, price_per_unit").
		WithArgs("usr-1", sqlmock.AnyArg()).
		WillReturnRows(stockRows().AddRow("inv-b", "Shampoo", "Loreal", 5, "120.00"))
	mock.ExpectExec("UPDATE inventory_items").
		WithArgs("inv-b", "usr-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bills").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bill := testBill()
	bill.PaymentMethod = domain.PaymentUPI
	created, err := s.CreateBill(context.Background(), bill, []domain.ProductSaleRequest{
		{InventoryID: "inv-b", QuantitySold: 1},
		{InventoryID: "inv-b", QuantitySold: 2},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, created.ID)
	require.Len(t, created.ProductSales, 2)
	assert.Equal(t, "Shampoo", created.ProductSales[0].ProductName)
	assert.True(t, created.ProductSale.Equal(decimal.NewFromInt(360)))
	assert.True(t, created.TotalAmount.Equal(decimal.NewFromInt(560)))
	assert.True(t, created.UPIAmount.Equal(created.TotalAmount))
	assert.True(t, created.CashAmount.IsZero())
}

func TestUpdateBillAfterWindowIsRejected(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT created_at").
		WithArgs("bill-1", "usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now.Add(-domain.EditWindow - time.Millisecond)))
	mock.ExpectRollback()

	bill := testBill()
	bill.ID = "bill-1"
	_, err := s.UpdateBill(context.Background(), bill, now)
	assert.True(t, errors.Is(err, store.ErrEditWindowExpired))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBillAtWindowEdge(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT created_at").
		WithArgs("bill-1", "usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now.Add(-domain.EditWindow)))
	mock.ExpectExec("DELETE FROM bills").WithArgs("bill-1", "usr-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteBill(context.Background(), "usr-1", "bill-1", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBillMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT created_at").
		WithArgs("bill-x", "usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
	mock.ExpectRollback()

	err := s.DeleteBill(context.Background(), "usr-1", "bill-x", time.Now())
	assert.True(t, errors.Is(err, store.ErrBillNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPackageDecodesSegmentedPricing(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, user_id, name").
		WithArgs("pkg-1", "usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "description", "price", "type", "men_pricing", "women_pricing", "created_at", "updated_at"}).
			AddRow("pkg-1", "usr-1", "Hair Spa", "", nil, "", []byte(`{"basic":200}`), []byte(`{"basic":300,"advance":450}`), created, created))

	pkg, err := s.GetPackage(context.Background(), "usr-1", "pkg-1")
	require.NoError(t, err)
	assert.Nil(t, pkg.Price)
	require.NotNil(t, pkg.WomenPricing)
	assert.True(t, pkg.WomenPricing.Advance.Equal(decimal.NewFromInt(450)))
	assert.Nil(t, pkg.MenPricing.Advance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInventoryItemOfAnotherOwner(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM inventory_items").
		WithArgs("inv-1", "usr-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteInventoryItem(context.Background(), "usr-2", "inv-1")
	assert.True(t, errors.Is(err, store.ErrInventoryNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRangeClause(t *testing.T) {
	clause, args := rangeClause("created_at", domain.DateRange{}, []any{"usr-1"})
	assert.Empty(t, clause)
	assert.Len(t, args, 1)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clause, args = rangeClause("created_at", domain.DateRange{From: from, To: from.Add(time.Hour)}, []any{"usr-1", "UTC"})
	assert.Equal(t, " AND created_at BETWEEN $3 AND $4", clause)
	assert.Len(t, args, 4)
}
