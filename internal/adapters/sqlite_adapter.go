package adapters

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kwitansi/internal/auth"
	"kwitansi/internal/core"
	"kwitansi/internal/ports"
	"kwitansi/internal/services"
	"kwitansi/internal/storage"
)

// SQLiteAdapter adapts SQLiteRepository and ReceiptService to the backend
// ports, so the HTTP handlers work the same as against the remote API.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.ReceiptService
	issuer  *auth.Issuer
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.ReceiptService, issuer *auth.Issuer) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
		issuer:  issuer,
	}
}

// EnsureUser creates the admin account on first start.
func (a *SQLiteAdapter) EnsureUser(ctx context.Context, username, fullName, password string) error {
	if _, _, err := a.storage.UserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := a.storage.CreateUser(ctx, username, fullName, hash); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Created user", "username", username)
	return nil
}

// Login implements ports.Authenticator
func (a *SQLiteAdapter) Login(ctx context.Context, username, password string) (ports.Session, error) {
	u, hash, err := a.storage.UserByUsername(ctx, username)
	if errors.Is(err, ports.ErrNotFound) {
		return ports.Session{}, ports.ErrInvalidCredentials
	}
	if err != nil {
		return ports.Session{}, err
	}
	if !auth.CheckPassword(hash, password) {
		return ports.Session{}, ports.ErrInvalidCredentials
	}
	token, err := a.issuer.Issue(u)
	if err != nil {
		return ports.Session{}, err
	}
	return ports.Session{Token: token, User: u}, nil
}

// Profile implements ports.Authenticator
func (a *SQLiteAdapter) Profile(ctx context.Context) (core.User, error) {
	return a.requireUser(ctx)
}

// ListCustomers implements ports.CustomerStore
func (a *SQLiteAdapter) ListCustomers(ctx context.Context, p ports.ListParams) (core.Page[core.Customer], error) {
	if _, err := a.requireUser(ctx); err != nil {
		return core.Page[core.Customer]{}, err
	}
	return a.storage.ListCustomers(ctx, p)
}

// GetCustomer implements ports.CustomerStore
func (a *SQLiteAdapter) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	if _, err := a.requireUser(ctx); err != nil {
		return core.Customer{}, err
	}
	return a.storage.GetCustomer(ctx, id)
}

// FindCustomerByEmail implements ports.CustomerStore
func (a *SQLiteAdapter) FindCustomerByEmail(ctx context.Context, email string) (core.Customer, error) {
	if _, err := a.requireUser(ctx); err != nil {
		return core.Customer{}, err
	}
	return a.storage.FindCustomerByEmail(ctx, email)
}

// CreateCustomer implements ports.CustomerStore
func (a *SQLiteAdapter) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if _, err := a.requireUser(ctx); err != nil {
		return core.Customer{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	return a.storage.CreateCustomer(ctx, c)
}

// ListReceipts implements ports.ReceiptStore
func (a *SQLiteAdapter) ListReceipts(ctx context.Context, p ports.ListParams) (core.Page[core.Receipt], error) {
	if _, err := a.requireUser(ctx); err != nil {
		return core.Page[core.Receipt]{}, err
	}
	return a.storage.ListReceipts(ctx, p)
}

// GetReceipt implements ports.ReceiptStore
func (a *SQLiteAdapter) GetReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	return a.authorizedReceipt(ctx, id)
}

// CreateReceipt implements ports.ReceiptStore
func (a *SQLiteAdapter) CreateReceipt(ctx context.Context, d core.ReceiptDraft) (core.Receipt, error) {
	u, err := a.requireUser(ctx)
	if err != nil {
		return core.Receipt{}, err
	}
	id, err := a.service.CreateReceipt(ctx, d, &u)
	if err != nil {
		return core.Receipt{}, err
	}
	return a.storage.GetReceipt(ctx, id)
}

// UpdateReceipt implements ports.ReceiptStore
func (a *SQLiteAdapter) UpdateReceipt(ctx context.Context, id int64, d core.ReceiptDraft) (core.Receipt, error) {
	if _, err := a.authorizedReceipt(ctx, id); err != nil {
		return core.Receipt{}, err
	}
	if err := a.service.UpdateReceipt(ctx, id, d); err != nil {
		return core.Receipt{}, err
	}
	return a.storage.GetReceipt(ctx, id)
}

// MarkReceiptPaid implements ports.ReceiptStore
func (a *SQLiteAdapter) MarkReceiptPaid(ctx context.Context, id int64) (core.Receipt, error) {
	if _, err := a.authorizedReceipt(ctx, id); err != nil {
		return core.Receipt{}, err
	}
	if err := a.service.MarkPaid(ctx, id); err != nil {
		return core.Receipt{}, err
	}
	return a.storage.GetReceipt(ctx, id)
}

// DailyPayments implements ports.DashboardReader
func (a *SQLiteAdapter) DailyPayments(ctx context.Context, q ports.DailyPaymentsQuery) ([]core.DailyPayment, error) {
	if _, err := a.requireUser(ctx); err != nil {
		return nil, err
	}
	// validates month and week before touching the database
	if _, err := q.Series(nil); err != nil {
		return nil, err
	}
	from, to := q.Range()
	totals, err := a.storage.DailyPaidTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return q.Series(totals)
}

// MonthlyTransactions implements ports.DashboardReader
func (a *SQLiteAdapter) MonthlyTransactions(ctx context.Context, year int, month time.Month) (int, error) {
	if _, err := a.requireUser(ctx); err != nil {
		return 0, err
	}
	return a.storage.CountReceipts(ctx, year, month)
}

// Ping reports whether the database answers.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}

func (a *SQLiteAdapter) requireUser(ctx context.Context) (core.User, error) {
	u, err := a.issuer.User(ctx)
	if err != nil {
		return core.User{}, ports.ErrUnauthorized
	}
	return u, nil
}

func (a *SQLiteAdapter) authorizedReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	r, err := a.storage.GetReceipt(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		// hide existence from callers without a session
		if _, uerr := a.requireUser(ctx); uerr != nil {
			return core.Receipt{}, uerr
		}
		return core.Receipt{}, err
	}
	if err != nil {
		return core.Receipt{}, err
	}
	if _, err := a.issuer.Authorize(ctx, r.Token); err != nil {
		return core.Receipt{}, ports.ErrUnauthorized
	}
	return r, nil
}
