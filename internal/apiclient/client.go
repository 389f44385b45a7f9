// Package apiclient talks to the store backend over its JSON HTTP API.
//
// The bearer token is opaque here: it is stored after login and attached to
// every request. Responses are mapped onto the domain error taxonomy so
// callers can branch with errors.Is.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/wire"
)

const (
	maxPages      = 200
	maxErrorBytes = 4 << 10
)

// Error is a failed backend call. It unwraps to one of the domain backend
// errors and, for transport failures, to the underlying cause.
type Error struct {
	StatusCode int
	Message    string
	kind       error
	cause      error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%v: %s", e.kind, e.Message)
	}
	return fmt.Sprintf("%v (HTTP %d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusConflict:
		return domain.ErrStockConflict
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrUnauthorized
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status >= 500:
		return domain.ErrBackendUnavailable
	default:
		return domain.ErrRejected
	}
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "POS " + r.Method + " " + r.URL.Path
				}),
			),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("apiclient")
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Login(ctx context.Context, pin string) (domain.LoginResponse, error) {
	var resp domain.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/", domain.LoginRequest{PIN: pin}, &resp, nil); err != nil {
		return domain.LoginResponse{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// ListProducts returns every product, following pagination links.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := listAll[wire.Product](ctx, c, "/api/products/")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

func (c *Client) ProductStats(ctx context.Context) (domain.ProductStats, error) {
	var stats wire.ProductStats
	if err := c.do(ctx, http.MethodGet, "/api/products/stats/", nil, &stats, nil); err != nil {
		return domain.ProductStats{}, err
	}
	return stats.ToDomain(), nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	var out wire.Product
	path := "/api/products/" + url.PathEscape(id) + "/"
	if err := c.do(ctx, http.MethodPatch, path, wire.ProductPatchFromDomain(req), &out, nil); err != nil {
		return domain.Product{}, err
	}
	return out.ToDomain(), nil
}

// CreateSale posts the sale once. The idempotency key lets the backend
// return the original receipt if the same cart is submitted again.
func (c *Client) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Receipt, error) {
	headers := http.Header{}
	if req.IdempotencyKey != "" {
		headers.Set("Idempotency-Key", req.IdempotencyKey)
	}
	var out wire.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/sales/", wire.SaleRequestFromDomain(req), &out, headers); err != nil {
		return domain.Receipt{}, err
	}
	return out.ToDomain(), nil
}

func (c *Client) ListDebtors(ctx context.Context) ([]domain.Customer, error) {
	return c.ListCustomers(ctx, url.Values{"debt__gt": {"0"}})
}

func (c *Client) ListCustomers(ctx context.Context, query url.Values) ([]domain.Customer, error) {
	path := "/api/customers/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	rows, err := listAll[wire.Customer](ctx, c, path)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Customer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	var out wire.Customer
	if err := c.do(ctx, http.MethodGet, "/api/customers/"+url.PathEscape(id)+"/", nil, &out, nil); err != nil {
		return domain.Customer{}, err
	}
	return out.ToDomain(), nil
}

func (c *Client) CustomerTransactions(ctx context.Context, customerID string) ([]domain.DebtTransaction, error) {
	rows, err := listAll[wire.DebtTransaction](ctx, c, "/api/customers/"+url.PathEscape(customerID)+"/transactions/")
	if err != nil {
		return nil, err
	}
	out := make([]domain.DebtTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

func (c *Client) CreateDebtTransaction(ctx context.Context, tx domain.DebtTransaction) (domain.DebtTransaction, error) {
	body := wire.DebtTransactionRequest{
		Customer:        wire.ID(tx.CustomerID),
		TransactionType: string(tx.Type),
		Amount:          wire.Cents(tx.AmountCents),
		Note:            tx.Note,
	}
	var out wire.DebtTransaction
	if err := c.do(ctx, http.MethodPost, "/api/debt-transactions/", body, &out, nil); err != nil {
		return domain.DebtTransaction{}, err
	}
	return out.ToDomain(), nil
}

func (c *Client) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := listAll[wire.Branch](ctx, c, "/api/branches/")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Branch, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

func (c *Client) CreateBranch(ctx context.Context, b domain.Branch) (domain.Branch, error) {
	var out wire.Branch
	body := wire.BranchCreate{Name: b.Name, Address: b.Address, Phone: b.Phone}
	if err := c.do(ctx, http.MethodPost, "/api/branches/", body, &out, nil); err != nil {
		return domain.Branch{}, err
	}
	return out.ToDomain(), nil
}

func (c *Client) DeleteBranch(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/branches/"+url.PathEscape(id)+"/", nil, nil, nil)
}

// listAll accepts either a bare JSON array or a paginated envelope and
// follows "next" links until exhausted.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	next := path
	seen := map[string]bool{}
	for pages := 0; next != ""; pages++ {
		if pages >= maxPages || seen[next] {
			return nil, &Error{Message: "pagination did not terminate at " + next, kind: domain.ErrRejected}
		}
		seen[next] = true

		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, next, nil, &raw, nil); err != nil {
			return nil, err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var rows []T
			if err := json.Unmarshal(trimmed, &rows); err != nil {
				return nil, &Error{Message: "decode list: " + err.Error(), kind: domain.ErrRejected, cause: err}
			}
			return append(out, rows...), nil
		}

		var page wire.Page[T]
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, &Error{Message: "decode page: " + err.Error(), kind: domain.ErrRejected, cause: err}
		}
		out = append(out, page.Results...)
		next = ""
		if page.Next != nil {
			next = strings.TrimSpace(*page.Next)
		}
	}
	return out, nil
}

// resolve joins path onto the base URL. Absolute URLs, which arrive as
// pagination links, are followed only on the base URL's own origin since
// the bearer token goes with them.
func (c *Client) resolve(path string) (string, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return c.baseURL + path, nil
	}
	target, err := url.Parse(path)
	if err != nil {
		return "", &Error{Message: "bad link " + path, kind: domain.ErrRejected, cause: err}
	}
	base, err := url.Parse(c.baseURL)
	if err != nil || !strings.EqualFold(target.Scheme, base.Scheme) || !strings.EqualFold(target.Host, base.Host) {
		return "", &Error{Message: "refusing link to another origin: " + path, kind: domain.ErrRejected}
	}
	return path, nil
}

func (c *Client) do(ctx context.Context, method string, path string, in any, out any, headers http.Header) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target, err := c.resolve(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &Error{Message: err.Error(), kind: domain.ErrBackendUnavailable, cause: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp),
			kind:       kindForStatus(resp.StatusCode),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), kind: domain.ErrRejected, cause: err}
	}
	return nil
}

func readErrorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	var body wire.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

// StatusCode extracts the HTTP status from err, or 0 if it carries none.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
