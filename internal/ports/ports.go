// Package ports declares what the console needs from a data backend.
package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kwitansi/internal/core"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrConflict           = errors.New("already exists")
)

// ListParams selects one page of a collection.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

// DailyPaymentsQuery selects the daily payments series. Week 0 means the
// whole month.
type DailyPaymentsQuery struct {
	Year  int
	Month time.Month
	Week  int
}

// Session is what a successful login returns.
type Session struct {
	Token string
	User  core.User
}

// Ports for outbound adapters.
type (
	CustomerStore interface {
		ListCustomers(ctx context.Context, p ListParams) (core.Page[core.Customer], error)
		GetCustomer(ctx context.Context, id int64) (core.Customer, error)
		// FindCustomerByEmail returns ErrNotFound when nobody matches.
		FindCustomerByEmail(ctx context.Context, email string) (core.Customer, error)
		CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error)
	}

	ReceiptStore interface {
		ListReceipts(ctx context.Context, p ListParams) (core.Page[core.Receipt], error)
		// GetReceipt loads a receipt. A capability token in the context
		// grants access without a session.
		GetReceipt(ctx context.Context, id int64) (core.Receipt, error)
		CreateReceipt(ctx context.Context, d core.ReceiptDraft) (core.Receipt, error)
		UpdateReceipt(ctx context.Context, id int64, d core.ReceiptDraft) (core.Receipt, error)
		MarkReceiptPaid(ctx context.Context, id int64) (core.Receipt, error)
	}

	DashboardReader interface {
		DailyPayments(ctx context.Context, q DailyPaymentsQuery) ([]core.DailyPayment, error)
		MonthlyTransactions(ctx context.Context, year int, month time.Month) (int, error)
	}

	Authenticator interface {
		Login(ctx context.Context, username, password string) (Session, error)
		Profile(ctx context.Context) (core.User, error)
	}
)

// Series resolves the selected week and lays out one entry per day with
// the totals found in byDate, keyed by yyyy-MM-dd.
func (q DailyPaymentsQuery) Series(byDate map[string]core.Money) ([]core.DailyPayment, error) {
	if q.Month < time.January || q.Month > time.December {
		return nil, fmt.Errorf("invalid month %d", q.Month)
	}
	var week *core.Week
	if q.Week > 0 {
		w, ok := core.WeekByNumber(q.Year, q.Month, q.Week)
		if !ok {
			return nil, fmt.Errorf("week %d is not part of %d-%02d", q.Week, q.Year, q.Month)
		}
		week = &w
	}
	series := core.EmptyDailySeries(q.Year, q.Month, week)
	for i := range series {
		series[i].Total = byDate[series[i].Date]
	}
	return series, nil
}

// Range returns the first and last day covered by the query.
func (q DailyPaymentsQuery) Range() (from, to time.Time) {
	if w, ok := core.WeekByNumber(q.Year, q.Month, q.Week); ok {
		return w.Start, w.End
	}
	from = time.Date(q.Year, q.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, -1)
}
