package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/metrics"
	"medshop/backend/internal/service"
	"medshop/backend/internal/store"
)

type API struct {
	service        *service.Service
	auth           *AuthManager
	log            *zap.Logger
	allowedOrigins []string
	loginLimiter   *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, logger *zap.Logger, allowedOrigins []string) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:        svc,
		auth:           auth,
		log:            logger.Named("http"),
		allowedOrigins: allowedOrigins,
		loginLimiter:   newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/settings", a.requireAuth(a.handleSettings, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/dashboard", a.requireAuth(a.handleDashboard, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/medicines", a.requireAuth(a.handleMedicines, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/medicines/suggest", a.requireAuth(a.handleSuggest, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/medicines/{id}", a.requireAuth(a.handleMedicine, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/medicines/{id}/summary", a.requireAuth(a.handleMedicineSummary, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/medicines/{id}/batches", a.requireAuth(a.handleMedicineBatches, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/medicines/{id}/sell", a.requireAuth(a.handleSell, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/categories", a.requireAuth(a.handleCategories, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/stock", a.requireAuth(a.handleAddStock, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/batches/{id}", a.requireAuth(a.handleBatch, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/bills/totals", a.requireAuth(a.handleBillTotals, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/cart/quote", a.requireAuth(a.handleCartQuote, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/{id}", a.requireAuth(a.handleSale, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/{id}/invoice.pdf", a.requireAuth(a.handleInvoice, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/customers/{id}", a.requireAuth(a.handleCustomer, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/customers/{id}/sales", a.requireAuth(a.handleCustomerSales, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/expenses", a.requireAuth(a.handleExpenses, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/expenses/stats", a.requireAuth(a.handleExpenseStats, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/expenses/{id}", a.requireAuth(a.handleExpense, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/users/staff", a.requireAuth(a.handleStaff, domain.RoleAdmin))

	route := func(r *http.Request) string {
		if _, pattern := mux.Handler(r); pattern != "" {
			return pattern
		}
		return "unmatched"
	}
	return metrics.Middleware(route, a.withMiddleware(mux))
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// requireAdmin guards the admin-only methods of routes shared with staff.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || actor.Role != domain.RoleAdmin {
		a.writeError(w, http.StatusForbidden, errors.New("admin role required"))
		return false
	}
	return true
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": a.service.Settings()})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	stats, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboard": stats})
}

func (a *API) handleMedicines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	page, err := a.service.ListInventory(r.Context(), domain.InventoryQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Stock:    q.Get("stock"),
		Expiry:   q.Get("expiry"),
		Page:     parsePositiveLimit(q.Get("page"), 1, 0),
		PageSize: parsePositiveLimit(q.Get("page_size"), 50, 200),
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	suggestions, err := a.service.SuggestMedicines(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	categories, err := a.service.Categories(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleAddStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.AddStockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.AddStock(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleMedicine(w http.ResponseWriter, r *http.Request) {
	medicineID := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		detail, err := a.service.GetMedicineDetail(r.Context(), medicineID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	case http.MethodPatch:
		var req domain.MedicineUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		medicine, err := a.service.UpdateMedicine(r.Context(), medicineID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"medicine": medicine})
	case http.MethodDelete:
		if !a.requireAdmin(w, r) {
			return
		}
		if err := a.service.DeleteMedicine(r.Context(), medicineID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleMedicineSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.GetStockSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (a *API) handleMedicineBatches(w http.ResponseWriter, r *http.Request) {
	medicineID := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		batches, err := a.service.ListBatches(r.Context(), medicineID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
	case http.MethodPost:
		var req domain.BatchCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		batch, err := a.service.AddBatch(r.Context(), medicineID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"batch": batch})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleSell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.SellRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.Sell(r.Context(), r.PathValue("id"), req.Quantity)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	switch r.Method {
	case http.MethodPatch:
		var req domain.BatchUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		batch, err := a.service.UpdateBatch(r.Context(), batchID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"batch": batch})
	case http.MethodDelete:
		if !a.requireAdmin(w, r) {
			return
		}
		if err := a.service.DeleteBatch(r.Context(), batchID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleBillTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.BillTotalsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	totals, err := a.service.ComputeBillTotals(req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
}

func (a *API) handleCartQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.CartQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	quote, err := a.service.QuoteCart(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		sales, err := a.service.ListSales(r.Context(), q.Get("from"), q.Get("to"), parsePositiveLimit(q.Get("limit"), 100, 500))
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.Checkout(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	sale, err := a.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	saleID := r.PathValue("id")
	var buf bytes.Buffer
	if err := a.service.RenderInvoice(r.Context(), saleID, &buf); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\"invoice-"+saleID+".pdf\"")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		page, err := a.service.ListCustomers(r.Context(), domain.CustomerQuery{
			Search:   q.Get("search"),
			Sort:     q.Get("sort"),
			Page:     parsePositiveLimit(q.Get("page"), 1, 0),
			PageSize: parsePositiveLimit(q.Get("page_size"), 50, 200),
		})
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.CreateCustomer(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), customerID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodPatch:
		var req domain.CustomerUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.UpdateCustomer(r.Context(), customerID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodDelete:
		if !a.requireAdmin(w, r) {
			return
		}
		if err := a.service.DeleteCustomer(r.Context(), customerID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	sales, err := a.service.CustomerSales(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		expenses, err := a.service.ListExpenses(r.Context(), r.URL.Query().Get("search"))
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses, "categories": domain.ExpenseCategories})
	case http.MethodPost:
		var req domain.ExpenseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		expense, err := a.service.CreateExpense(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleExpense(w http.ResponseWriter, r *http.Request) {
	expenseID := r.PathValue("id")
	switch r.Method {
	case http.MethodPatch:
		var req domain.ExpenseUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		expense, err := a.service.UpdateExpense(r.Context(), expenseID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expense": expense})
	case http.MethodDelete:
		if err := a.service.DeleteExpense(r.Context(), expenseID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleExpenseStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	stats, err := a.service.ExpenseStats(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	logs, err := a.service.ListAuditLogs(r.Context(), q.Get("date"), parsePositiveLimit(q.Get("limit"), 200, 1000))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) handleStaff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"staff": a.auth.ListStaff(r.Context())})
	case http.MethodPost:
		var req domain.StaffCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := a.auth.CreateStaff(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"staff": user})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: a.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		startedAt := time.Now()
		recorder := &metrics.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		corsHandler.ServeHTTP(recorder, r)
		a.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.Status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps store and service errors onto HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var short *store.InsufficientStockError
	switch {
	case errors.As(err, &short):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       err.Error(),
			"medicine_id": short.MedicineID,
			"requested":   short.Requested,
			"available":   short.Available,
			"shortfall":   short.Shortfall(),
		})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"retryable": true,
		})
	case errors.Is(err, store.ErrValidation):
		a.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrPersistence):
		a.writeError(w, http.StatusServiceUnavailable, err)
	default:
		a.writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause only goes to the log.
	msg := err.Error()
	if status >= 500 {
		a.log.Error("request failed", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
		if status == http.StatusServiceUnavailable {
			msg = "service temporarily unavailable"
		}
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
