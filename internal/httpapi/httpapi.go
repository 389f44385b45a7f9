package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/service"
	"stroymarket/pos/internal/store"
	"stroymarket/pos/internal/wire"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	logger        *zap.Logger
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		logger:        logger.Named("http"),
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
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

var (
	anyEmployee  = []string{domain.RoleSuperAdmin, domain.RoleBranchAdmin, domain.RoleSeller, domain.RoleWarehouseKeeper}
	salesRoles   = []string{domain.RoleSuperAdmin, domain.RoleBranchAdmin, domain.RoleSeller}
	productRoles = []string{domain.RoleSuperAdmin, domain.RoleBranchAdmin, domain.RoleWarehouseKeeper}
)

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(a.withMiddleware)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login/", a.handleLogin)

		r.Get("/products/", a.requireAuth(a.handleListProducts, anyEmployee...))
		r.Get("/products/stats/", a.requireAuth(a.handleProductStats, anyEmployee...))
		r.Patch("/products/{id}/", a.requireAuth(a.handlePatchProduct, productRoles...))

		r.Post("/sales/", a.requireAuth(a.handleCreateSale, salesRoles...))

		r.Get("/customers/", a.requireAuth(a.handleListCustomers, salesRoles...))
		r.Get("/customers/{id}/", a.requireAuth(a.handleGetCustomer, salesRoles...))
		r.Get("/customers/{id}/transactions/", a.requireAuth(a.handleCustomerTransactions, salesRoles...))
		r.Post("/debt-transactions/", a.requireAuth(a.handleCreateDebtTransaction, salesRoles...))

		r.Get("/branches/", a.requireAuth(a.handleListBranches, anyEmployee...))
		r.Post("/branches/", a.requireAuth(a.handleCreateBranch, domain.RoleSuperAdmin))
		r.Delete("/branches/{id}/", a.requireAuth(a.handleDeleteBranch, domain.RoleSuperAdmin))

		r.Get("/audit-logs/", a.requireAuth(a.handleAuditLogs, domain.RoleSuperAdmin))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})

	return otelhttp.NewHandler(r, "stroypos-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz"
		}),
	)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, service.ErrForbidden)
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

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidPIN) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	results := make([]wire.Product, 0, len(products))
	for _, p := range products {
		results = append(results, wire.ProductFromDomain(p))
	}
	writeJSON(w, http.StatusOK, paginate(r, results))
}

func (a *API) handleProductStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.ProductStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ProductStatsFromDomain(stats))
}

func (a *API) handlePatchProduct(w http.ResponseWriter, r *http.Request) {
	var patch wire.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), patch.ToDomain())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ProductFromDomain(updated))
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req wire.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	receipt, duplicate, err := a.service.CreateSale(r.Context(), req.ToDomain(key))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, wire.ReceiptFromDomain(receipt))
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.CustomerFilter{Search: strings.TrimSpace(query.Get("search"))}
	if raw := strings.TrimSpace(query.Get("debt__gt")); raw != "" {
		threshold, err := wire.ParseMoney(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid debt__gt: %w", err))
			return
		}
		cents := threshold.Cents()
		filter.DebtGreaterThan = &cents
	}

	customers, err := a.service.ListCustomers(r.Context(), filter)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	results := make([]wire.Customer, 0, len(customers))
	for _, c := range customers {
		results = append(results, wire.CustomerFromDomain(c))
	}
	writeJSON(w, http.StatusOK, paginate(r, results))
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, wire.CustomerFromDomain(customer))
}

func (a *API) handleCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.CustomerTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	results := make([]wire.DebtTransaction, 0, len(history))
	for _, tx := range history {
		results = append(results, wire.DebtTransactionFromDomain(tx))
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) handleCreateDebtTransaction(w http.ResponseWriter, r *http.Request) {
	var req wire.DebtTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := a.service.CreateDebtTransaction(r.Context(), domain.DebtTransaction{
		CustomerID:  string(req.Customer),
		Type:        domain.DebtTransactionType(req.TransactionType),
		AmountCents: req.Amount.Cents(),
		Note:        req.Note,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.DebtTransactionFromDomain(created))
}

func (a *API) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := a.service.ListBranches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	results := make([]wire.Branch, 0, len(branches))
	for _, b := range branches {
		results = append(results, wire.BranchFromDomain(b))
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	var req wire.BranchCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := a.service.CreateBranch(r.Context(), domain.Branch{
		Name:    req.Name,
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.BranchFromDomain(created))
}

func (a *API) handleDeleteBranch(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteBranch(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// statusFor maps backend sentinels to response codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrInvalidTransaction), errors.Is(err, store.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrCustomerBlocked), errors.Is(err, store.ErrDebtLimitExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// paginate slices results by the page and page_size query parameters. The
// next link is relative to the request path.
func paginate[T any](r *http.Request, results []T) wire.Page[T] {
	size := parsePositiveLimit(r.URL.Query().Get("page_size"), defaultPageSize, maxPageSize)
	page := parsePositiveLimit(r.URL.Query().Get("page"), 1, 0)

	start := min((page-1)*size, len(results))
	end := min(start+size, len(results))

	out := wire.Page[T]{Count: len(results), Results: results[start:end]}
	link := func(p int) *string {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(p))
		q.Set("page_size", strconv.Itoa(size))
		s := r.URL.Path + "?" + q.Encode()
		return &s
	}
	if end < len(results) {
		out.Next = link(page + 1)
	}
	if page > 1 {
		out.Previous = link(page - 1)
	}
	return out
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
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

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry internal details; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		zap.L().Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, wire.ErrorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
