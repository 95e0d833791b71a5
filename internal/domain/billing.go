package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EditWindow is how long after creation a bill may still be changed or removed.
const EditWindow = 15 * time.Minute

const WalkInCustomer = "Walk-in Customer"

// MaxSaleQuantity caps the units of one item a single bill may sell, summed
// over every line that names the item.
const MaxSaleQuantity = 1_000_000

// IsEditable reports whether a bill created at createdAt can be mutated at now.
// The window is anchored to creation; edits never extend it.
func IsEditable(createdAt, now time.Time) bool {
	return now.Sub(createdAt) <= EditWindow
}

// ResolvePaymentMethod returns the explicit method when given, otherwise the
// first bucket with a positive amount, otherwise cash.
func ResolvePaymentMethod(method string, upi, card, cash *decimal.Decimal) PaymentMethod {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(method))) {
	case PaymentUPI:
		return PaymentUPI
	case PaymentCard:
		return PaymentCard
	case PaymentCash:
		return PaymentCash
	}
	switch {
	case upi != nil && upi.IsPositive():
		return PaymentUPI
	case card != nil && card.IsPositive():
		return PaymentCard
	case cash != nil && cash.IsPositive():
		return PaymentCash
	}
	return PaymentCash
}

func (e Expenditure) Amount() decimal.Decimal {
	if e.Price == nil {
		return decimal.Zero
	}
	return *e.Price
}

func (b Bill) ServicesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.Items {
		total = total.Add(item.PackagePrice)
	}
	return total
}

func (b Bill) ProductSalesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, sale := range b.ProductSales {
		total = total.Add(sale.TotalPrice)
	}
	return total
}

func (b Bill) ExpendituresTotal() decimal.Decimal {
	total := decimal.Zero
	for _, exp := range b.Expenditures {
		total = total.Add(exp.Amount())
	}
	return total
}

// Finalize recomputes every derived amount of the bill: line totals of
// product sales, the grand total and the single payment bucket holding it.
func (b *Bill) Finalize() {
	for i := range b.ProductSales {
		sale := &b.ProductSales[i]
		sale.TotalPrice = sale.PricePerUnit.Mul(decimal.NewFromInt(int64(sale.QuantitySold)))
	}

	products := b.ProductSalesTotal()
	b.ProductSale = products
	b.TotalAmount = b.ServicesTotal().Add(products).Add(b.ExpendituresTotal())

	if b.PaymentMethod == "" {
		b.PaymentMethod = PaymentCash
	}
	b.UPIAmount = decimal.Zero
	b.CardAmount = decimal.Zero
	b.CashAmount = decimal.Zero
	switch b.PaymentMethod {
	case PaymentUPI:
		b.UPIAmount = b.TotalAmount
	case PaymentCard:
		b.CardAmount = b.TotalAmount
	default:
		b.CashAmount = b.TotalAmount
	}

	if b.Items == nil {
		b.Items = []BillItem{}
	}
	if b.ProductSales == nil {
		b.ProductSales = []ProductSale{}
	}
	if b.Expenditures == nil {
		b.Expenditures = []Expenditure{}
	}
}

// MergeDebits folds sale requests for the same inventory item into a single
// debit and orders them by id so concurrent bills lock rows in the same order.
// Each line and each merged total must stay within 1..MaxSaleQuantity.
func MergeDebits(sales []ProductSaleRequest) ([]StockDebit, error) {
	byID := make(map[string]int, len(sales))
	for i, sale := range sales {
		field := fmt.Sprintf("productSales[%d].quantitySold", i)
		if sale.QuantitySold <= 0 {
			return nil, Invalid(field, field+" must be greater than 0")
		}
		if sale.QuantitySold > MaxSaleQuantity-byID[sale.InventoryID] {
			return nil, Invalid(field, fmt.Sprintf("%s: at most %d units of one product can be sold per bill", field, MaxSaleQuantity))
		}
		byID[sale.InventoryID] += sale.QuantitySold
	}
	debits := make([]StockDebit, 0, len(byID))
	for id, qty := range byID {
		debits = append(debits, StockDebit{InventoryID: id, Quantity: qty})
	}
	sort.Slice(debits, func(i, j int) bool {
		return debits[i].InventoryID < debits[j].InventoryID
	})
	return debits, nil
}

// Valuation is the current stock value of an inventory item.
func (i InventoryItem) Valuation() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
