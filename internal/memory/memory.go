// Package memory is an in-process backend used for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kwitansi/internal/auth"
	"kwitansi/internal/core"
	"kwitansi/internal/ports"
)

type user struct {
	core.User
	hash string
}

type Store struct {
	mu        sync.Mutex
	issuer    *auth.Issuer
	now       func() time.Time
	users     map[string]user
	customers []core.Customer
	receipts  []core.Receipt
	nextCust  int64
	nextRcpt  int64
}

func New(issuer *auth.Issuer) *Store {
	return &Store{
		issuer:   issuer,
		now:      time.Now,
		users:    map[string]user{},
		nextCust: 1,
		nextRcpt: 1,
	}
}

// AddUser registers a staff account.
func (s *Store) AddUser(username, fullName, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return ports.ErrConflict
	}
	s.users[username] = user{User: core.User{ID: int64(len(s.users) + 1), Username: username, FullName: fullName}, hash: hash}
	return nil
}

// Login checks the password and issues a session token.
func (s *Store) Login(_ context.Context, username, password string) (ports.Session, error) {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok || !auth.CheckPassword(u.hash, password) {
		return ports.Session{}, ports.ErrInvalidCredentials
	}
	token, err := s.issuer.Issue(u.User)
	if err != nil {
		return ports.Session{}, err
	}
	return ports.Session{Token: token, User: u.User}, nil
}

// Profile returns the user behind the bearer token.
func (s *Store) Profile(ctx context.Context) (core.User, error) {
	return s.requireUser(ctx)
}

func (s *Store) ListCustomers(ctx context.Context, p ports.ListParams) (core.Page[core.Customer], error) {
	if _, err := s.requireUser(ctx); err != nil {
		return core.Page[core.Customer]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(p.Search))
	var matched []core.Customer
	for i := len(s.customers) - 1; i >= 0; i-- {
		c := s.customers[i]
		if q == "" || contains(c.Name, q) || contains(c.Email, q) {
			matched = append(matched, c)
		}
	}
	return paginate(matched, p), nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	if _, err := s.requireUser(ctx); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Customer{}, ports.ErrNotFound
}

func (s *Store) FindCustomerByEmail(ctx context.Context, email string) (core.Customer, error) {
	if _, err := s.requireUser(ctx); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.customerByEmail(email); ok {
		return *c, nil
	}
	return core.Customer{}, ports.ErrNotFound
}

func (s *Store) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if _, err := s.requireUser(ctx); err != nil {
		return core.Customer{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customerByEmail(c.Email); ok {
		return core.Customer{}, ports.ErrConflict
	}
	return s.insertCustomer(c), nil
}

func (s *Store) ListReceipts(ctx context.Context, p ports.ListParams) (core.Page[core.Receipt], error) {
	if _, err := s.requireUser(ctx); err != nil {
		return core.Page[core.Receipt]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(p.Search))
	var matched []core.Receipt
	for i := len(s.receipts) - 1; i >= 0; i-- {
		r := s.receipts[i]
		if q == "" || contains(r.ReceiptNumber, q) || contains(r.Customer.Name, q) || contains(r.Customer.Email, q) {
			matched = append(matched, cloneReceipt(r))
		}
	}
	return paginate(matched, p), nil
}

func (s *Store) GetReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.authorizedReceipt(ctx, id)
	if err != nil {
		return core.Receipt{}, err
	}
	return cloneReceipt(*r), nil
}

func (s *Store) CreateReceipt(ctx context.Context, d core.ReceiptDraft) (core.Receipt, error) {
	u, err := s.requireUser(ctx)
	if err != nil {
		return core.Receipt{}, err
	}
	d.Prepare()
	if err := d.Validate(); err != nil {
		return core.Receipt{}, err
	}
	date, _ := core.ParseDate(d.Date)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	issued := make([]string, 0, len(s.receipts))
	for _, r := range s.receipts {
		issued = append(issued, r.ReceiptNumber)
	}
	r := core.Receipt{
		ID:            s.nextRcpt,
		ReceiptNumber: core.ReceiptNumber(date.Time, core.NextReceiptSeq(date.Time, issued)),
		Token:         uuid.NewString(),
		Customer:      s.upsertCustomer(d.Customer()),
		CreatedBy:     &u,
		CreatedAt:     now,
	}
	s.nextRcpt++
	applyDraft(&r, d, date, now)
	s.receipts = append(s.receipts, r)
	return cloneReceipt(r), nil
}

func (s *Store) UpdateReceipt(ctx context.Context, id int64, d core.ReceiptDraft) (core.Receipt, error) {
	d.Prepare()
	if err := d.Validate(); err != nil {
		return core.Receipt{}, err
	}
	date, _ := core.ParseDate(d.Date)

	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.authorizedReceipt(ctx, id)
	if err != nil {
		return core.Receipt{}, err
	}
	r.Customer = s.upsertCustomer(d.Customer())
	applyDraft(r, d, date, s.now())
	return cloneReceipt(*r), nil
}

func (s *Store) MarkReceiptPaid(ctx context.Context, id int64) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.authorizedReceipt(ctx, id)
	if err != nil {
		return core.Receipt{}, err
	}
	r.IsPaid = true
	r.PaidAmount = r.TotalAmount
	r.UpdatedAt = s.now()
	return cloneReceipt(*r), nil
}

// DailyPayments sums paid amounts per receipt date.
func (s *Store) DailyPayments(ctx context.Context, q ports.DailyPaymentsQuery) ([]core.DailyPayment, error) {
	if _, err := s.requireUser(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	byDate := map[string]core.Money{}
	for _, r := range s.receipts {
		byDate[r.Date.String()] += r.PaidAmount
	}
	s.mu.Unlock()
	return q.Series(byDate)
}

// MonthlyTransactions counts receipts dated in the month.
func (s *Store) MonthlyTransactions(ctx context.Context, year int, month time.Month) (int, error) {
	if _, err := s.requireUser(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.receipts {
		if r.Date.Year() == year && r.Date.Month() == month {
			n++
		}
	}
	return n, nil
}

func (s *Store) requireUser(ctx context.Context) (core.User, error) {
	u, err := s.issuer.User(ctx)
	if err != nil {
		return core.User{}, ports.ErrUnauthorized
	}
	return u, nil
}

// authorizedReceipt must be called with s.mu held.
func (s *Store) authorizedReceipt(ctx context.Context, id int64) (*core.Receipt, error) {
	for i := range s.receipts {
		if s.receipts[i].ID != id {
			continue
		}
		if _, err := s.issuer.Authorize(ctx, s.receipts[i].Token); err != nil {
			return nil, ports.ErrUnauthorized
		}
		return &s.receipts[i], nil
	}
	if _, err := s.issuer.User(ctx); err != nil {
		return nil, ports.ErrUnauthorized
	}
	return nil, ports.ErrNotFound
}

func (s *Store) customerByEmail(email string) (*core.Customer, bool) {
	email = strings.TrimSpace(email)
	for i := range s.customers {
		if strings.EqualFold(s.customers[i].Email, email) {
			return &s.customers[i], true
		}
	}
	return nil, false
}

func (s *Store) insertCustomer(c core.Customer) core.Customer {
	c.ID = s.nextCust
	s.nextCust++
	s.customers = append(s.customers, c)
	return c
}

// upsertCustomer finds the customer by email and refreshes its contact
// details, or creates it.
func (s *Store) upsertCustomer(c core.Customer) core.Customer {
	if existing, ok := s.customerByEmail(c.Email); ok {
		existing.Name = c.Name
		existing.Phone = c.Phone
		existing.Address = c.Address
		return *existing
	}
	return s.insertCustomer(c)
}

func applyDraft(r *core.Receipt, d core.ReceiptDraft, date core.Date, now time.Time) {
	r.OrderDetails = d.OrderDetails
	r.Date = date
	r.Items = append([]core.ReceiptItem(nil), d.Items...)
	r.TotalAmount = d.TotalAmount
	r.IsPaid = d.IsPaid
	r.PaidAmount = d.PaidAmount()
	r.UpdatedAt = now
}

func cloneReceipt(r core.Receipt) core.Receipt {
	r.Items = append([]core.ReceiptItem(nil), r.Items...)
	if r.CreatedBy != nil {
		u := *r.CreatedBy
		r.CreatedBy = &u
	}
	return r
}

func paginate[T any](rows []T, p ports.ListParams) core.Page[T] {
	state := core.PageState{Page: p.Page, PageSize: p.Limit}
	if state.PageSize < 1 {
		state.PageSize = core.DefaultPageSize
	}
	state = state.Clamp(core.LastPage(len(rows), state.PageSize))
	start := min(state.Offset(), len(rows))
	end := min(start+state.PageSize, len(rows))
	return core.NewPage(rows[start:end], len(rows), state.Page, state.PageSize)
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

// Seed loads a demo data set.
func (s *Store) Seed(ctx context.Context, username, password string) error {
	if err := s.AddUser(username, "Administrator", password); err != nil && !errors.Is(err, ports.ErrConflict) {
		return fmt.Errorf("seed user: %w", err)
	}
	sess, err := s.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("seed login: %w", err)
	}
	ctx = auth.WithCredentials(ctx, auth.Credentials{Bearer: sess.Token})

	today := s.now()
	demo := []struct {
		customer core.Customer
		order    string
		daysAgo  int
		paid     bool
		items    []core.ReceiptItem
	}{
		{core.Customer{Name: "Budi Santoso", Email: "budi@example.com", Phone: "081234567890", Address: "Jl. Merdeka 10, Bandung"}, "Kaos sablon acara kantor", 2, true,
			[]core.ReceiptItem{{Name: "Kaos cotton combed", UnitPrice: 75000, Quantity: 24}, {Name: "Sablon 2 warna", UnitPrice: 15000, Quantity: 24}}},
		{core.Customer{Name: "Siti Rahma", Email: "siti@example.com", Phone: "081298765432", Address: "Jl. Diponegoro 5, Semarang"}, "Cetak undangan pernikahan", 1, false,
			[]core.ReceiptItem{{Name: "Undangan hardcover", UnitPrice: 8500, Quantity: 300}}},
		{core.Customer{Name: "CV Maju Jaya", Email: "admin@majujaya.co.id", Phone: "0215550123", Address: "Jl. Gatot Subroto 21, Jakarta"}, "Seragam karyawan", 0, false,
			[]core.ReceiptItem{{Name: "Kemeja PDH", UnitPrice: 185000, Quantity: 12}, {Name: "Bordir logo", UnitPrice: 20000, Quantity: 12}}},
	}
	for _, d := range demo {
		draft := core.ReceiptDraft{
			CustomerEmail:   d.customer.Email,
			CustomerName:    d.customer.Name,
			CustomerPhone:   d.customer.Phone,
			CustomerAddress: d.customer.Address,
			OrderDetails:    d.order,
			Date:            today.AddDate(0, 0, -d.daysAgo).Format(core.DateLayout),
			IsPaid:          d.paid,
			Items:           d.items,
		}
		if _, err := s.CreateReceipt(ctx, draft); err != nil {
			return fmt.Errorf("seed receipt: %w", err)
		}
	}
	return nil
}
