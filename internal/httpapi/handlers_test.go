package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/cache"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/notify"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/service"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store/memory"
)

const testOTP = "482916"

type captureMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	api    *API
	auth   *AuthManager
	mailer *captureMailer
	clock  *fixedClock
}

// newTestEnv builds a full API with an in-memory store, a real AuthManager and
// a real Service so handler tests exercise the complete request path.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.New()
	clock := &fixedClock{now: time.Now().UTC()}
	svc := service.New(repo, nil, nil, time.UTC).WithClock(clock.Now)
	mailer := &captureMailer{}
	auth := NewAuthManager(repo, cache.NewMemoryOTPStore(nil), mailer, AuthOptions{
		Secret:     "test-secret-key-test-secret-key-0",
		TokenTTL:   7 * 24 * time.Hour,
		OTPTTL:     10 * time.Minute,
		BcryptCost: bcrypt.MinCost,
	})
	auth.newCode = func() (string, error) { return testOTP, nil }

	return &testEnv{
		api:    New(svc, auth, Options{AllowedOrigin: "*"}),
		auth:   auth,
		mailer: mailer,
		clock:  clock,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rec, req)
	return rec
}

// register signs up and verifies an account, returning its bearer token.
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": email, "password": "secret123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": email, "otp": testOTP})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.AuthResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatalf("expected token after verification")
	}
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

type billEnvelope struct {
	Bill domain.Bill `json:"bill"`
}

func createPackage(t *testing.T, e *testEnv, token string, body map[string]any) domain.Package {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/packages", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create package expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Package domain.Package `json:"package"`
	}
	decodeBody(t, rec, &resp)
	return resp.Package
}

func createItem(t *testing.T, e *testEnv, token string, name string, qty int, price float64) domain.InventoryItem {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/inventory", token, map[string]any{
		"name": name, "brandName": "Loreal", "category": "Hair", "quantity": qty, "stockIn": qty, "pricePerUnit": price,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Item domain.InventoryItem `json:"item"`
	}
	decodeBody(t, rec, &resp)
	return resp.Item
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestBillLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")

	pkg := createPackage(t, env, token, map[string]any{"name": "Haircut", "menPricing": map[string]any{"basic": 200}})
	shampoo := createItem(t, env, token, "Shampoo", 5, 100)

	rec := env.do(t, http.MethodPost, "/api/bills", token, map[string]any{
		"services":      []map[string]any{{"packageId": pkg.ID}},
		"attendantBy":   "Asha",
		"paymentMethod": "upi",
		"productSales":  []map[string]any{{"inventoryId": shampoo.ID, "quantitySold": 3}},
		"expenditures":  []map[string]any{{"name": "Complimentary tea"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bill expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created billEnvelope
	decodeBody(t, rec, &created)
	if got := created.Bill.TotalAmount.String(); got != "500" {
		t.Fatalf("expected total 500, got %s", got)
	}
	if got := created.Bill.UPIAmount.String(); got != "500" {
		t.Fatalf("expected upi 500, got %s", got)
	}
	if created.Bill.ClientName != domain.WalkInCustomer {
		t.Fatalf("expected walk-in client name, got %q", created.Bill.ClientName)
	}
	if len(created.Bill.Expenditures) != 1 || created.Bill.Expenditures[0].Price != nil {
		t.Fatalf("expected complimentary expenditure to be kept, got %+v", created.Bill.Expenditures)
	}

	rec = env.do(t, http.MethodGet, "/api/inventory/"+shampoo.ID, token, nil)
	var stock struct {
		Item domain.InventoryItem `json:"item"`
	}
	decodeBody(t, rec, &stock)
	if stock.Item.Quantity != 2 {
		t.Fatalf("expected stock 2 after sale, got %d", stock.Item.Quantity)
	}

	rec = env.do(t, http.MethodPost, "/api/bills", token, map[string]any{
		"services":     []map[string]any{{"packageId": pkg.ID}},
		"attendantBy":  "Asha",
		"productSales": []map[string]any{{"inventoryId": shampoo.ID, "quantitySold": 5}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "insufficient stock for Shampoo. Available: 2, Requested: 5" {
		t.Fatalf("unexpected stock error %q", msg)
	}

	rec = env.do(t, http.MethodPut, "/api/bills/"+created.Bill.ID, token, map[string]any{
		"items":         created.Bill.Items,
		"attendantBy":   "Ravi",
		"paymentMethod": "CARD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update bill expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var updated billEnvelope
	decodeBody(t, rec, &updated)
	if got := updated.Bill.CardAmount.String(); got != "200" {
		t.Fatalf("expected card 200 after dropping product lines, got %s", got)
	}

	rec = env.do(t, http.MethodGet, "/api/bills?period=today", token, nil)
	var list struct {
		Bills []domain.Bill `json:"bills"`
	}
	decodeBody(t, rec, &list)
	if len(list.Bills) != 1 || !list.Bills[0].Editable {
		t.Fatalf("expected one editable bill, got %+v", list.Bills)
	}

	rec = env.do(t, http.MethodDelete, "/api/bills/"+created.Bill.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete bill expected 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/bills/"+created.Bill.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestBillCanBeSentBackAsRead(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")
	pkg := createPackage(t, env, token, map[string]any{"name": "Haircut", "price": 150})
	shampoo := createItem(t, env, token, "Shampoo", 5, 100)

	rec := env.do(t, http.MethodPost, "/api/bills", token, map[string]any{
		"services":     []map[string]any{{"packageId": pkg.ID}},
		"attendantBy":  "Asha",
		"productSales": []map[string]any{{"inventoryId": shampoo.ID, "quantitySold": 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bill expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created billEnvelope
	decodeBody(t, rec, &created)

	rec = env.do(t, http.MethodGet, "/api/bills/"+created.Bill.ID, token, nil)
	var raw map[string]map[string]any
	decodeBody(t, rec, &raw)
	edited := raw["bill"]
	edited["clientName"] = "Meera"

	rec = env.do(t, http.MethodPut, "/api/bills/"+created.Bill.ID, token, edited)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a read bill to be accepted on update, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var updated billEnvelope
	decodeBody(t, rec, &updated)
	if updated.Bill.ClientName != "Meera" || updated.Bill.TotalAmount.String() != "250" {
		t.Fatalf("unexpected updated bill %+v", updated.Bill)
	}

	// Bill creation stays strict about its own payload.
	rec = env.do(t, http.MethodPost, "/api/bills", token, map[string]any{
		"services":    []map[string]any{{"packageId": pkg.ID}},
		"attendantBy": "Asha",
		"totalAmount": 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown create field, got %d", rec.Code)
	}
}

func TestOversizedSaleQuantityIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")
	pkg := createPackage(t, env, token, map[string]any{"name": "Haircut", "price": 150})
	shampoo := createItem(t, env, token, "Shampoo", 5, 100)

	half := math.MaxInt64/2 + 1
	rec := env.do(t, http.MethodPost, "/api/bills", token, map[string]any{
		"services":    []map[string]any{{"packageId": pkg.ID}},
		"attendantBy": "Asha",
		"productSales": []map[string]any{
			{"inventoryId": shampoo.ID, "quantitySold": half},
			{"inventoryId": shampoo.ID, "quantitySold": half},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/inventory/"+shampoo.ID, token, nil)
	var stock struct {
		Item domain.InventoryItem `json:"item"`
	}
	decodeBody(t, rec, &stock)
	if stock.Item.Quantity != 5 {
		t.Fatalf("expected stock to stay 5, got %d", stock.Item.Quantity)
	}
}

func TestBillEditWindowReturns403(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")
	pkg := createPackage(t, env, token, map[string]any{"name": "Beard trim", "price": 100})

	rec := env.do(t, http.MethodPost, "/api/bills", token, map[string]any{
		"services":    []map[string]any{{"packageId": pkg.ID}},
		"attendantBy": "Asha",
	})
	var created billEnvelope
	decodeBody(t, rec, &created)

	env.clock.Advance(16 * time.Minute)

	rec = env.do(t, http.MethodDelete, "/api/bills/"+created.Bill.ID, token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after edit window, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); !strings.Contains(msg, "can no longer be edited or deleted") {
		t.Fatalf("unexpected policy message %q", msg)
	}

	rec = env.do(t, http.MethodGet, "/api/bills/"+created.Bill.ID, token, nil)
	var fetched billEnvelope
	decodeBody(t, rec, &fetched)
	if fetched.Bill.Editable {
		t.Fatalf("expected bill to be reported as not editable")
	}
}

func TestForeignRecordsLookMissing(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	pkg := createPackage(t, env, alice, map[string]any{"name": "Facial", "price": 700})

	own := env.do(t, http.MethodGet, "/api/packages/"+pkg.ID, bob, nil)
	missing := env.do(t, http.MethodGet, "/api/packages/pkg-does-not-exist", bob, nil)
	if own.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign and missing package, got %d and %d", own.Code, missing.Code)
	}
	if a, b := errorMessage(t, own), errorMessage(t, missing); a != b {
		t.Fatalf("foreign and missing records must share a message, got %q and %q", a, b)
	}

	rec := env.do(t, http.MethodGet, "/api/packages", bob, nil)
	var list struct {
		Packages []domain.Package `json:"packages"`
	}
	decodeBody(t, rec, &list)
	if len(list.Packages) != 0 {
		t.Fatalf("expected bob to see no packages, got %d", len(list.Packages))
	}
}

func TestBillValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")

	rec := env.do(t, http.MethodPost, "/api/bills", token, map[string]any{"attendantBy": "Asha"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "At least one service must be selected" {
		t.Fatalf("unexpected message %q", msg)
	}

	rec = env.do(t, http.MethodPost, "/api/bills", token, map[string]any{"services": []any{}, "attendantBy": "Asha", "discount": 10})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/packages", token, map[string]any{"name": "Free"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for package without price, got %d", rec.Code)
	}
}

func TestInventoryLowStockFilter(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")
	createItem(t, env, token, "Gel", 3, 50)
	createItem(t, env, token, "Wax", 40, 80)

	rec := env.do(t, http.MethodGet, "/api/inventory?lowStock=true", token, nil)
	var resp struct {
		Items []domain.InventoryItem `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Name != "Gel" {
		t.Fatalf("expected only Gel in low stock list, got %+v", resp.Items)
	}
}

func TestDailyExpenseEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")

	rec := env.do(t, http.MethodPost, "/api/daily-expenses", token, map[string]any{"itemName": "Tea", "price": 40})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Expense domain.DailyExpense `json:"expense"`
	}
	decodeBody(t, rec, &created)

	rec = env.do(t, http.MethodGet, "/api/daily-expenses?period=today", token, nil)
	var list struct {
		Expenses []domain.DailyExpense `json:"expenses"`
	}
	decodeBody(t, rec, &list)
	if len(list.Expenses) != 1 {
		t.Fatalf("expected 1 expense today, got %d", len(list.Expenses))
	}

	rec = env.do(t, http.MethodDelete, "/api/daily-expenses/"+created.Expense.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/daily-expenses?period=fortnight", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown period, got %d", rec.Code)
	}
}

func TestReportsAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "owner@example.com")
	pkg := createPackage(t, env, token, map[string]any{"name": "Haircut", "menPricing": map[string]any{"basic": 200}})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/bills", token, map[string]any{
			"services":    []map[string]any{{"packageId": pkg.ID}},
			"attendantBy": "Asha",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create bill expected 201, got %d", rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/reports/sales?period=today", token, nil)
	var sales domain.SalesReport
	decodeBody(t, rec, &sales)
	if sales.Bills != 2 || sales.Revenue.String() != "400" {
		t.Fatalf("unexpected sales report %+v", sales)
	}

	rec = env.do(t, http.MethodGet, "/api/reports/sales?period=today&format=csv", token, nil)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "date,bills,services") {
		t.Fatalf("unexpected csv body %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/reports/expenses?period=lastWeek", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for expense report, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/dashboard/analytics", token, nil)
	var dash domain.DashboardAnalytics
	decodeBody(t, rec, &dash)
	if dash.Today.Bills != 2 || dash.Packages != 1 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
	if dash.Today.AverageBill.String() != "200" {
		t.Fatalf("expected average bill 200, got %s", dash.Today.AverageBill)
	}
}
