package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestIsEditableBoundary(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, IsEditable(created, created))
	assert.True(t, IsEditable(created, created.Add(14*time.Minute)))
	assert.True(t, IsEditable(created, created.Add(900000*time.Millisecond)))
	assert.False(t, IsEditable(created, created.Add(900001*time.Millisecond)))
	assert.False(t, IsEditable(created, created.Add(16*time.Minute)))
}

func TestFinalizeAllocatesWholeTotalToOneBucket(t *testing.T) {
	tests := []struct {
		method PaymentMethod
		bucket func(Bill) decimal.Decimal
	}{
		{PaymentUPI, func(b Bill) decimal.Decimal { return b.UPIAmount }},
		{PaymentCard, func(b Bill) decimal.Decimal { return b.CardAmount }},
		{PaymentCash, func(b Bill) decimal.Decimal { return b.CashAmount }},
	}

	for _, tc := range tests {
		t.Run(string(tc.method), func(t *testing.T) {
			bill := Bill{
				PaymentMethod: tc.method,
				Items:         []BillItem{{PackageName: "Haircut", PackagePrice: decimal.NewFromInt(200)}},
				ProductSales:  []ProductSale{{ProductName: "Shampoo", QuantitySold: 3, PricePerUnit: decimal.NewFromInt(100)}},
				Expenditures:  []Expenditure{{Name: "Oil", Price: dec(50)}},
			}
			bill.Finalize()

			require.True(t, bill.TotalAmount.Equal(decimal.NewFromInt(550)), "total %s", bill.TotalAmount)
			assert.True(t, tc.bucket(bill).Equal(bill.TotalAmount))
			sum := bill.UPIAmount.Add(bill.CardAmount).Add(bill.CashAmount)
			assert.True(t, sum.Equal(bill.TotalAmount))
			assert.True(t, bill.ProductSales[0].TotalPrice.Equal(decimal.NewFromInt(300)))
			assert.True(t, bill.ProductSale.Equal(decimal.NewFromInt(300)))
		})
	}
}

func TestFinalizeComplimentaryExpenditureCountsZero(t *testing.T) {
	bill := Bill{
		Items:        []BillItem{{PackageName: "Facial", PackagePrice: decimal.NewFromInt(500)}},
		Expenditures: []Expenditure{{Name: "Head massage"}},
	}
	bill.Finalize()

	assert.True(t, bill.TotalAmount.Equal(decimal.NewFromInt(500)))
	require.Len(t, bill.Expenditures, 1)
	assert.Equal(t, "Head massage", bill.Expenditures[0].Name)
	assert.Equal(t, PaymentCash, bill.PaymentMethod)
}

func TestResolvePaymentMethod(t *testing.T) {
	assert.Equal(t, PaymentCard, ResolvePaymentMethod("card", nil, nil, nil))
	assert.Equal(t, PaymentUPI, ResolvePaymentMethod("", dec(10), nil, nil))
	assert.Equal(t, PaymentCard, ResolvePaymentMethod("", dec(0), dec(5), nil))
	assert.Equal(t, PaymentCash, ResolvePaymentMethod("", nil, nil, nil))
	assert.Equal(t, PaymentCash, ResolvePaymentMethod("cheque", dec(0), dec(0), dec(0)))
}

func TestMergeDebitsFoldsDuplicateItems(t *testing.T) {
	debits, err := MergeDebits([]ProductSaleRequest{
		{InventoryID: "inv-b", QuantitySold: 1},
		{InventoryID: "inv-a", QuantitySold: 2},
		{InventoryID: "inv-b", QuantitySold: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, []StockDebit{{InventoryID: "inv-a", Quantity: 2}, {InventoryID: "inv-b", Quantity: 4}}, debits)
}

func TestMergeDebitsRejectsOversizedTotals(t *testing.T) {
	half := math.MaxInt64/2 + 1
	_, err := MergeDebits([]ProductSaleRequest{
		{InventoryID: "inv-a", QuantitySold: half},
		{InventoryID: "inv-a", QuantitySold: half},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "productSales[0].quantitySold", verr.Field)

	_, err = MergeDebits([]ProductSaleRequest{
		{InventoryID: "inv-a", QuantitySold: MaxSaleQuantity},
		{InventoryID: "inv-b", QuantitySold: 1},
		{InventoryID: "inv-a", QuantitySold: 1},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "productSales[2].quantitySold", verr.Field)

	_, err = MergeDebits([]ProductSaleRequest{{InventoryID: "inv-a", QuantitySold: -3}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	debits, err := MergeDebits([]ProductSaleRequest{
		{InventoryID: "inv-a", QuantitySold: MaxSaleQuantity - 1},
		{InventoryID: "inv-a", QuantitySold: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []StockDebit{{InventoryID: "inv-a", Quantity: MaxSaleQuantity}}, debits)
}

func TestPackagePricingVariants(t *testing.T) {
	flat := Package{Name: "Haircut", Price: dec(150)}
	line, err := flat.Pricing().Resolve(GenderWomen, LevelAdvance)
	require.NoError(t, err)
	assert.Equal(t, PackageTypeBasic, line.Type)
	assert.True(t, line.Price.Equal(decimal.NewFromInt(150)))

	segmented := Package{
		Name:         "Hair Spa",
		Price:        dec(999),
		MenPricing:   &TierPricing{Basic: dec(200)},
		WomenPricing: &TierPricing{Basic: dec(300), Advance: dec(450)},
	}
	_, isSegmented := segmented.Pricing().(SegmentedPricing)
	assert.True(t, isSegmented)

	line, err = segmented.Pricing().Resolve("women", "advance")
	require.NoError(t, err)
	assert.True(t, line.Price.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, PackageTypeAdvance, line.Type)

	line, err = segmented.Pricing().Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, GenderMen, line.Gender)
	assert.True(t, line.Price.Equal(decimal.NewFromInt(200)))

	_, err = segmented.Pricing().Resolve("men", "advance")
	assert.True(t, errors.Is(err, ErrNoPrice))

	assert.False(t, Package{Name: "Empty"}.Billable())
	assert.Len(t, segmented.Pricing().Options(), 3)
}

func TestResolvePeriodWindows(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, loc)

	yesterday, err := ResolvePeriod(PeriodYesterday, "", "", now, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, loc), yesterday.From)
	assert.Equal(t, time.Date(2025, 3, 9, 23, 59, 59, int(999*time.Millisecond), loc), yesterday.To)

	week, err := ResolvePeriod(PeriodLastWeek, "", "", now, loc)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), week.From)
	assert.Equal(t, now, week.To)

	custom, err := ResolvePeriod("", "2025-03-01", "2025-03-05", now, loc)
	require.NoError(t, err)
	assert.Equal(t, PeriodCustom, custom.Period)
	assert.True(t, custom.From.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, loc)), "from %s", custom.From)
	assert.True(t, custom.To.Equal(EndOfDay(time.Date(2025, 3, 5, 0, 0, 0, 0, loc))), "to %s", custom.To)

	all, err := ResolvePeriod("", "", "", now, loc)
	require.NoError(t, err)
	assert.True(t, all.Unbounded())
	assert.True(t, all.Contains(time.Unix(0, 0)))

	_, err = ResolvePeriod("fortnight", "", "", now, loc)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = ResolvePeriod(PeriodCustom, "2025-03-05", "2025-03-01", now, loc)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestValidateNamesJSONField(t *testing.T) {
	err := Validate(InventoryRequest{Name: "Shampoo", BrandName: "Loreal", Category: "Hair", Quantity: 0, StockIn: 5, PricePerUnit: decimal.NewFromInt(10)})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "quantity", verr.Field)
	assert.Equal(t, "quantity must be greater than 0", verr.Message)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	err = Validate(InventoryRequest{Name: "Shampoo", BrandName: "Loreal", Category: "Hair", Quantity: 1, StockIn: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricePerUnit")
}

func TestBillJSONUsesPlainNumbers(t *testing.T) {
	bill := Bill{Items: []BillItem{{PackagePrice: decimal.NewFromInt(200)}}}
	bill.Finalize()

	raw, err := json.Marshal(bill)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalAmount":200`)
	assert.Contains(t, string(raw), `"cashAmount":200`)
}
