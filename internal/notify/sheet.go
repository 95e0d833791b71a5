package notify

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

const billSheet = "Sheet1"

var (
	sheetColumns = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"}
	sheetHeader  = []string{"Date", "Bill ID", "Client", "Mobile", "Services", "Services Total", "Products Total", "Expenditures Total", "Total", "Payment Method", "Attended By"}
)

// SpreadsheetLog appends one summary row per bill to a local workbook.
type SpreadsheetLog struct {
	mu   sync.Mutex
	path string
}

func NewSpreadsheetLog(path string) *SpreadsheetLog {
	return &SpreadsheetLog{path: path}
}

func (s *SpreadsheetLog) Name() string {
	return "spreadsheet"
}

func (s *SpreadsheetLog) BillCreated(ctx context.Context, bill domain.Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.open()
	if err != nil {
		return err
	}

	next := len(book.GetRows(billSheet)) + 1
	if next == 1 {
		writeRow(book, 1, stringsToCells(sheetHeader))
		next = 2
	}
	writeRow(book, next, billRow(bill))

	if err := book.SaveAs(s.path); err != nil {
		return fmt.Errorf("save bill sheet: %w", err)
	}
	return nil
}

func (s *SpreadsheetLog) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return excelize.NewFile(), nil
	}
	book, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open bill sheet: %w", err)
	}
	return book, nil
}

func writeRow(book *excelize.File, row int, cells []any) {
	for i, value := range cells {
		book.SetCellValue(billSheet, fmt.Sprintf("%s%d", sheetColumns[i], row), value)
	}
}

func billRow(bill domain.Bill) []any {
	names := make([]string, 0, len(bill.Items))
	for _, item := range bill.Items {
		names = append(names, item.PackageName)
	}
	return []any{
		bill.CreatedAt.Format("2006-01-02 15:04:05"),
		bill.ID,
		bill.ClientName,
		bill.CustomerMobile,
		strings.Join(names, ", "),
		bill.ServicesTotal().StringFixed(2),
		bill.ProductSalesTotal().StringFixed(2),
		bill.ExpendituresTotal().StringFixed(2),
		bill.TotalAmount.StringFixed(2),
		string(bill.PaymentMethod),
		bill.AttendantBy,
	}
}

func stringsToCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
