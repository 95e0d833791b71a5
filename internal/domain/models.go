package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Actor struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type TierPricing struct {
	Basic   *decimal.Decimal `json:"basic,omitempty"`
	Advance *decimal.Decimal `json:"advance,omitempty"`
}

type Package struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Type         string           `json:"type,omitempty"`
	MenPricing   *TierPricing     `json:"menPricing,omitempty"`
	WomenPricing *TierPricing     `json:"womenPricing,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type PackageRequest struct {
	Name         string           `json:"name" validate:"required"`
	Description  string           `json:"description"`
	Price        *decimal.Decimal `json:"price"`
	Type         string           `json:"type" validate:"omitempty,oneof=Basic Premium"`
	MenPricing   *TierPricing     `json:"menPricing"`
	WomenPricing *TierPricing     `json:"womenPricing"`
}

type PaymentMethod string

const (
	PaymentUPI  PaymentMethod = "UPI"
	PaymentCard PaymentMethod = "CARD"
	PaymentCash PaymentMethod = "CASH"
)

// BillItem is a snapshot of the package line at billing time.
type BillItem struct {
	PackageID    string          `json:"packageId"`
	PackageName  string          `json:"packageName"`
	PackagePrice decimal.Decimal `json:"packagePrice"`
	PackageType  string          `json:"packageType"`
	Gender       string          `json:"gender,omitempty"`
	ServiceLevel string          `json:"serviceLevel,omitempty"`
}

// ProductSale is a snapshot of an inventory-backed sale line.
type ProductSale struct {
	InventoryID  string          `json:"inventoryId"`
	ProductName  string          `json:"productName"`
	BrandName    string          `json:"brandName"`
	QuantitySold int             `json:"quantitySold"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// Expenditure is an ad-hoc bill line; a nil price marks it complimentary.
type Expenditure struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

type Bill struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Items          []BillItem      `json:"items"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	ClientName     string          `json:"clientName"`
	CustomerMobile string          `json:"customerMobile,omitempty"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	UPIAmount      decimal.Decimal `json:"upiAmount"`
	CardAmount     decimal.Decimal `json:"cardAmount"`
	CashAmount     decimal.Decimal `json:"cashAmount"`
	AttendantBy    string          `json:"attendantBy"`
	ProductSale    decimal.Decimal `json:"productSale"`
	ProductSales   []ProductSale   `json:"productSales"`
	Expenditures   []Expenditure   `json:"expenditures"`
	Editable       bool            `json:"editable"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type ServiceSelection struct {
	PackageID    string `json:"packageId" validate:"required"`
	Gender       string `json:"gender" validate:"omitempty,oneof=men women"`
	ServiceLevel string `json:"serviceLevel" validate:"omitempty,oneof=basic advance"`
}

type ProductSaleRequest struct {
	InventoryID  string `json:"inventoryId" validate:"required"`
	QuantitySold int    `json:"quantitySold" validate:"gt=0,max=1000000"`
}

type ExpenditureRequest struct {
	Name  string           `json:"name" validate:"required"`
	Price *decimal.Decimal `json:"price"`
}

// BillCreateRequest carries either an explicit paymentMethod or the legacy
// per-bucket amounts from which the method is inferred.
type BillCreateRequest struct {
	Services       []ServiceSelection   `json:"services" validate:"dive"`
	ClientName     string               `json:"clientName"`
	CustomerMobile string               `json:"customerMobile"`
	AttendantBy    string               `json:"attendantBy"`
	ProductSales   []ProductSaleRequest `json:"productSales" validate:"dive"`
	Expenditures   []ExpenditureRequest `json:"expenditures" validate:"dive"`
	PaymentMethod  string               `json:"paymentMethod" validate:"omitempty,oneof=UPI CARD CASH upi card cash"`
	UPIAmount      *decimal.Decimal     `json:"upiAmount"`
	CardAmount     *decimal.Decimal     `json:"cardAmount"`
	CashAmount     *decimal.Decimal     `json:"cashAmount"`
}

// BillUpdateRequest replaces the editable parts of a bill. Lines are taken as
// submitted; stock is neither re-checked nor re-debited.
type BillUpdateRequest struct {
	Items          []BillItem           `json:"items"`
	ClientName     string               `json:"clientName"`
	CustomerMobile string               `json:"customerMobile"`
	AttendantBy    string               `json:"attendantBy"`
	ProductSales   []ProductSale        `json:"productSales"`
	Expenditures   []ExpenditureRequest `json:"expenditures" validate:"dive"`
	PaymentMethod  string               `json:"paymentMethod" validate:"omitempty,oneof=UPI CARD CASH upi card cash"`
	UPIAmount      *decimal.Decimal     `json:"upiAmount"`
	CardAmount     *decimal.Decimal     `json:"cardAmount"`
	CashAmount     *decimal.Decimal     `json:"cashAmount"`
}

// StockDebit is one conditional decrement applied while a bill is created.
type StockDebit struct {
	InventoryID string
	Quantity    int
}

type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "Paid"
	PaymentStatusUnpaid PaymentStatus = "Unpaid"
)

type InventoryItem struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Name          string          `json:"name"`
	BrandName     string          `json:"brandName"`
	Category      string          `json:"category"`
	Quantity      int             `json:"quantity"`
	StockIn       int             `json:"stockIn"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	ExpiryDate    *time.Time      `json:"expiryDate,omitempty"`
	DateEntered   time.Time       `json:"dateEntered"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type InventoryRequest struct {
	Name          string          `json:"name" validate:"required"`
	BrandName     string          `json:"brandName" validate:"required"`
	Category      string          `json:"category" validate:"required"`
	Quantity      int             `json:"quantity" validate:"gt=0"`
	StockIn       int             `json:"stockIn" validate:"gt=0"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit" validate:"gt=0"`
	PaymentStatus string          `json:"paymentStatus" validate:"omitempty,oneof=Paid Unpaid"`
	ExpiryDate    string          `json:"expiryDate"`
}

type DailyExpense struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	ItemName  string          `json:"itemName"`
	Price     decimal.Decimal `json:"price"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"createdAt"`
}

type DailyExpenseRequest struct {
	ItemName string          `json:"itemName" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`
	Date     string          `json:"date"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	OTP             string `json:"otp" validate:"omitempty,len=6,numeric"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	User      User   `json:"user"`
}

type DateRange struct {
	Period string    `json:"period"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// Unbounded reports whether the range matches every record.
func (r DateRange) Unbounded() bool {
	return r.From.IsZero() && r.To.IsZero()
}

func (r DateRange) Contains(t time.Time) bool {
	if r.Unbounded() {
		return true
	}
	return !t.Before(r.From) && !t.After(r.To)
}

type SalesDay struct {
	Date         string          `json:"date" csv:"date"`
	Bills        int             `json:"bills" csv:"bills"`
	Services     decimal.Decimal `json:"services" csv:"services"`
	Products     decimal.Decimal `json:"products" csv:"products"`
	Expenditures decimal.Decimal `json:"expenditures" csv:"expenditures"`
	Revenue      decimal.Decimal `json:"revenue" csv:"revenue"`
}

type ServiceCount struct {
	PackageName string          `json:"packageName"`
	Count       int             `json:"count"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type SalesReport struct {
	Range        DateRange       `json:"range"`
	Bills        int             `json:"bills"`
	Revenue      decimal.Decimal `json:"revenue"`
	Services     decimal.Decimal `json:"services"`
	Products     decimal.Decimal `json:"products"`
	Expenditures decimal.Decimal `json:"expenditures"`
	UPI          decimal.Decimal `json:"upi"`
	Card         decimal.Decimal `json:"card"`
	Cash         decimal.Decimal `json:"cash"`
	Daily        []SalesDay      `json:"daily"`
	TopServices  []ServiceCount  `json:"topServices"`
}

type VolumeValue struct {
	Volume int             `json:"volume"`
	Value  decimal.Decimal `json:"value"`
}

type ExpenseDay struct {
	Date              string          `json:"date" csv:"date"`
	PurchaseVolume    int             `json:"purchaseVolume" csv:"purchase_volume"`
	PurchaseValue     decimal.Decimal `json:"purchaseValue" csv:"purchase_value"`
	ProductSaleVolume int             `json:"productSaleVolume" csv:"product_sale_volume"`
	ProductSaleValue  decimal.Decimal `json:"productSaleValue" csv:"product_sale_value"`
	ExpenditureVolume int             `json:"expenditureVolume" csv:"expenditure_volume"`
	ExpenditureValue  decimal.Decimal `json:"expenditureValue" csv:"expenditure_value"`
	DailyExpenseValue decimal.Decimal `json:"dailyExpenseValue" csv:"daily_expense_value"`
}

type ExpenseReport struct {
	Range         DateRange    `json:"range"`
	Purchases     VolumeValue  `json:"purchases"`
	ProductSales  VolumeValue  `json:"productSales"`
	Expenditures  VolumeValue  `json:"expenditures"`
	DailyExpenses VolumeValue  `json:"dailyExpenses"`
	Daily         []ExpenseDay `json:"daily"`
}

type DashboardWindow struct {
	Range         DateRange       `json:"range"`
	Bills         int             `json:"bills"`
	Revenue       decimal.Decimal `json:"revenue"`
	Services      decimal.Decimal `json:"services"`
	Products      decimal.Decimal `json:"products"`
	Expenditures  decimal.Decimal `json:"expenditures"`
	UPI           decimal.Decimal `json:"upi"`
	Card          decimal.Decimal `json:"card"`
	Cash          decimal.Decimal `json:"cash"`
	DailyExpenses decimal.Decimal `json:"dailyExpenses"`
	AverageBill   decimal.Decimal `json:"averageBill"`
	MedianBill    decimal.Decimal `json:"medianBill"`
}

type DashboardAnalytics struct {
	GeneratedAt   time.Time       `json:"generatedAt"`
	Today         DashboardWindow `json:"today"`
	Week          DashboardWindow `json:"week"`
	Month         DashboardWindow `json:"month"`
	LowStockItems int             `json:"lowStockItems"`
	Packages      int             `json:"packages"`
}
