// Package apiclient talks to the remote invoicing API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"kwitansi/internal/auth"
	"kwitansi/internal/core"
	"kwitansi/internal/ports"
)

const maxErrorBody = 4 << 10

// APIError is a non-success response the client has no sentinel for.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	retries int
	backoff time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how many times an idempotent request is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the delay before the first retry. It doubles each time.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	c := &Client{
		baseURL: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   timeout,
		},
		retries: 2,
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	User        core.User `json:"user"`
}

// Login implements ports.Authenticator
func (c *Client) Login(ctx context.Context, username, password string) (ports.Session, error) {
	var out loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{username, password}, &out)
	if errors.Is(err, ports.ErrUnauthorized) {
		return ports.Session{}, ports.ErrInvalidCredentials
	}
	if err != nil {
		return ports.Session{}, err
	}
	if out.AccessToken == "" {
		return ports.Session{}, errors.New("login response without access token")
	}
	return ports.Session{Token: out.AccessToken, User: out.User}, nil
}

// Profile implements ports.Authenticator
func (c *Client) Profile(ctx context.Context) (core.User, error) {
	var u core.User
	err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil, &u)
	return u, err
}

// ListCustomers implements ports.CustomerStore
func (c *Client) ListCustomers(ctx context.Context, p ports.ListParams) (core.Page[core.Customer], error) {
	var page core.Page[core.Customer]
	err := c.do(ctx, http.MethodGet, "/customers", listQuery(p), nil, &page)
	return normalizePage(page), err
}

// GetCustomer implements ports.CustomerStore
func (c *Client) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	var out core.Customer
	err := c.do(ctx, http.MethodGet, "/customers/"+strconv.FormatInt(id, 10), nil, nil, &out)
	return out, err
}

// FindCustomerByEmail implements ports.CustomerStore. An empty body counts
// as a miss, the same as 404.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (core.Customer, error) {
	var out *core.Customer
	err := c.do(ctx, http.MethodGet, "/customers/search", url.Values{"email": {email}}, nil, &out)
	if err != nil {
		return core.Customer{}, err
	}
	if out == nil || out.ID == 0 {
		return core.Customer{}, ports.ErrNotFound
	}
	return *out, nil
}

// CreateCustomer implements ports.CustomerStore
func (c *Client) CreateCustomer(ctx context.Context, in core.Customer) (core.Customer, error) {
	var out core.Customer
	err := c.do(ctx, http.MethodPost, "/customers", nil, in, &out)
	return out, err
}

// ListReceipts implements ports.ReceiptStore
func (c *Client) ListReceipts(ctx context.Context, p ports.ListParams) (core.Page[core.Receipt], error) {
	var page core.Page[core.Receipt]
	err := c.do(ctx, http.MethodGet, "/receipts", listQuery(p), nil, &page)
	return normalizePage(page), err
}

// GetReceipt implements ports.ReceiptStore
func (c *Client) GetReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	var out core.Receipt
	err := c.do(ctx, http.MethodGet, receiptPath(id), capabilityQuery(ctx), nil, &out)
	return out, err
}

// CreateReceipt implements ports.ReceiptStore
func (c *Client) CreateReceipt(ctx context.Context, d core.ReceiptDraft) (core.Receipt, error) {
	d.Prepare()
	var out core.Receipt
	err := c.do(ctx, http.MethodPost, "/receipts", nil, d, &out)
	return out, err
}

// UpdateReceipt implements ports.ReceiptStore. The whole draft is sent.
func (c *Client) UpdateReceipt(ctx context.Context, id int64, d core.ReceiptDraft) (core.Receipt, error) {
	d.Prepare()
	var out core.Receipt
	err := c.do(ctx, http.MethodPatch, receiptPath(id), capabilityQuery(ctx), d, &out)
	return out, err
}

// MarkReceiptPaid implements ports.ReceiptStore
func (c *Client) MarkReceiptPaid(ctx context.Context, id int64) (core.Receipt, error) {
	var out core.Receipt
	body := map[string]bool{"isPaid": true}
	err := c.do(ctx, http.MethodPatch, receiptPath(id), capabilityQuery(ctx), body, &out)
	return out, err
}

// DailyPayments implements ports.DashboardReader
func (c *Client) DailyPayments(ctx context.Context, q ports.DailyPaymentsQuery) ([]core.DailyPayment, error) {
	v := url.Values{
		"year":  {strconv.Itoa(q.Year)},
		"month": {strconv.Itoa(int(q.Month))},
	}
	if q.Week > 0 {
		v.Set("weekNumber", strconv.Itoa(q.Week))
	}
	var out []core.DailyPayment
	err := c.do(ctx, http.MethodGet, "/receipts/daily-payments", v, nil, &out)
	return out, err
}

// MonthlyTransactions implements ports.DashboardReader
func (c *Client) MonthlyTransactions(ctx context.Context, year int, month time.Month) (int, error) {
	v := url.Values{
		"year":  {strconv.Itoa(year)},
		"month": {strconv.Itoa(int(month))},
	}
	var n int
	err := c.do(ctx, http.MethodGet, "/receipts/monthly-transactions", v, nil, &n)
	return n, err
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.retries
	}

	var lastErr error
	wait := c.backoff
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		retry, err := c.once(ctx, method, path, query, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		slog.WarnContext(ctx, "Retrying API request",
			"method", method, "path", path, "attempt", attempt, "error", err)
	}
	return lastErr
}

// once performs a single round trip and reports whether a failure is worth
// retrying.
func (c *Client) once(ctx context.Context, method, path string, query url.Values, payload []byte, out any) (bool, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := auth.FromContext(ctx).Bearer; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return retryable(resp.StatusCode), statusError(resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return false, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ports.ErrUnauthorized
	case http.StatusNotFound:
		return ports.ErrNotFound
	case http.StatusConflict:
		return ports.ErrConflict
	}
	return &APIError{Status: status, Message: errorMessage(body)}
}

// errorMessage extracts "message" from an error body. It may be a string
// or a list of validation messages.
func errorMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(payload.Message, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(payload.Message, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(payload.Message)
}

func listQuery(p ports.ListParams) url.Values {
	v := url.Values{
		"page":  {strconv.Itoa(p.Page)},
		"limit": {strconv.Itoa(p.Limit)},
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	return v
}

func capabilityQuery(ctx context.Context) url.Values {
	if token := auth.FromContext(ctx).Capability; token != "" {
		return url.Values{"token": {token}}
	}
	return nil
}

func receiptPath(id int64) string {
	return "/receipts/" + strconv.FormatInt(id, 10)
}

func normalizePage[T any](p core.Page[T]) core.Page[T] {
	if p.Data == nil {
		p.Data = []T{}
	}
	if p.LastPage < 1 {
		p.LastPage = 1
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}
