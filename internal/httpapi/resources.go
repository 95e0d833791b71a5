package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cast"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/service"
)

// resourceID extracts the single path segment after prefix.
func resourceID(r *http.Request, prefix string) (string, error) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" || strings.Contains(tail, "/") {
		return "", domain.Invalid("id", "a single resource id is required")
	}
	return tail, nil
}

// parsePositiveLimit reads an optional positive limit; anything else means no limit.
func parsePositiveLimit(raw string, max int) int {
	limit, err := cast.ToIntE(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return 0
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) handlePackages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		packages, err := a.service.ListPackages(r.Context())
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"packages": packages})
	case http.MethodPost:
		var req domain.PackageRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		pkg, err := a.service.CreatePackage(r.Context(), req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"package": pkg})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handlePackageActions(w http.ResponseWriter, r *http.Request) {
	id, err := resourceID(r, "/api/packages/")
	if err != nil {
		a.fail(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		pkg, err := a.service.GetPackage(r.Context(), id)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"package": pkg})
	case http.MethodPut:
		var req domain.PackageRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		pkg, err := a.service.UpdatePackage(r.Context(), id, req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"package": pkg})
	case http.MethodDelete:
		if err := a.service.DeletePackage(r.Context(), id); err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Package deleted"})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleBills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		bills, err := a.service.ListBills(r.Context(), q.Get("period"), q.Get("startDate"), q.Get("endDate"))
		if err != nil {
			a.fail(w, err)
			return
		}
		if limit := parsePositiveLimit(q.Get("limit"), 500); limit > 0 && len(bills) > limit {
			bills = bills[:limit]
		}
		writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
	case http.MethodPost:
		var req domain.BillCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		bill, err := a.service.CreateBill(r.Context(), req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"bill": bill})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleBillActions(w http.ResponseWriter, r *http.Request) {
	id, err := resourceID(r, "/api/bills/")
	if err != nil {
		a.fail(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		bill, err := a.service.GetBill(r.Context(), id)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
	case http.MethodPut:
		var req domain.BillUpdateRequest
		if err := decodeJSONLenient(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		bill, err := a.service.UpdateBill(r.Context(), id, req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
	case http.MethodDelete:
		if err := a.service.DeleteBill(r.Context(), id); err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Bill deleted"})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.service.ListInventory(r.Context())
		if err != nil {
			a.fail(w, err)
			return
		}
		if cast.ToBool(r.URL.Query().Get("lowStock")) {
			low := make([]domain.InventoryItem, 0, len(items))
			for _, item := range items {
				if item.Quantity <= service.LowStockThreshold {
					low = append(low, item)
				}
			}
			items = low
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req domain.InventoryRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.CreateInventoryItem(r.Context(), req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleInventoryActions(w http.ResponseWriter, r *http.Request) {
	id, err := resourceID(r, "/api/inventory/")
	if err != nil {
		a.fail(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := a.service.GetInventoryItem(r.Context(), id)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodPut:
		var req domain.InventoryRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.UpdateInventoryItem(r.Context(), id, req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodDelete:
		if err := a.service.DeleteInventoryItem(r.Context(), id); err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Inventory item deleted"})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleDailyExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		expenses, err := a.service.ListDailyExpenses(r.Context(), q.Get("period"), q.Get("startDate"), q.Get("endDate"))
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	case http.MethodPost:
		var req domain.DailyExpenseRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		expense, err := a.service.CreateDailyExpense(r.Context(), req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleDailyExpenseActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		a.writeMethodNotAllowed(w)
		return
	}
	id, err := resourceID(r, "/api/daily-expenses/")
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.service.DeleteDailyExpense(r.Context(), id); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Expense deleted"})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	analytics, err := a.service.DashboardAnalytics(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	report, err := a.service.SalesReport(r.Context(), q.Get("period"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if wantsCSV(r) {
		a.writeCSV(w, "sales-"+report.Range.Period+".csv", &report.Daily)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleExpenseReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	report, err := a.service.ExpenseReport(r.Context(), q.Get("period"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if wantsCSV(r) {
		a.writeCSV(w, "expenses-"+report.Range.Period+".csv", &report.Daily)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "csv")
}

// writeCSV renders the per-day rows of a report; rows must be a pointer to a
// slice of csv-tagged structs.
func (a *API) writeCSV(w http.ResponseWriter, filename string, rows any) {
	body, err := gocsv.MarshalBytes(rows)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, errors.Join(errors.New("render csv"), err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
