package core

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and form layout for calendar dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date. It decodes both "2024-03-05" and RFC 3339
	// timestamps, and always encodes as "2024-03-05".
	Date struct {
		time.Time
	}

	Customer struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}

	// User is the staff member that created a receipt.
	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		FullName string `json:"fullName"`
	}

	ReceiptItem struct {
		Name      string `json:"name"`
		UnitPrice Money  `json:"unitPrice"`
		Quantity  int64  `json:"quantity"`
		Total     Money  `json:"total"`

		// PriceError holds the rejection of the last typed price.
		PriceError string `json:"-"`
	}

	Receipt struct {
		ID            int64         `json:"id"`
		ReceiptNumber string        `json:"receiptNumber"`
		Token         string        `json:"token"`
		Customer      Customer      `json:"customer"`
		OrderDetails  string        `json:"orderDetails"`
		Date          Date          `json:"date"`
		Items         []ReceiptItem `json:"items"`
		TotalAmount   Money         `json:"totalAmount"`
		PaidAmount    Money         `json:"paidAmount"`
		IsPaid        bool          `json:"isPaid"`
		CreatedBy     *User         `json:"createdBy"`
		CreatedAt     time.Time     `json:"createdAt"`
		UpdatedAt     time.Time     `json:"updatedAt"`
	}

	// DailyPayment is one bar of the daily payments chart.
	DailyPayment struct {
		Day   string `json:"day"`
		Total Money  `json:"total"`
		Date  string `json:"date"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAmountTooLarge  = errors.New("amount too large")
	ErrInvalidEmail    = errors.New("email must be at least 5 characters")
	ErrEmptyName       = errors.New("empty customer name")
	ErrEmptyPhone      = errors.New("empty customer phone")
	ErrEmptyAddress    = errors.New("empty customer address")
	ErrEmptyOrder      = errors.New("empty order details")
	ErrNoItems         = errors.New("receipt needs at least one item")
	ErrEmptyItemName   = errors.New("empty item name")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// MinEmailLookup is the shortest email that triggers a customer lookup.
const MinEmailLookup = 5

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a yyyy-MM-dd or RFC 3339 value.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// String renders the date as yyyy-MM-dd, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (c Customer) Validate() error {
	if len(strings.TrimSpace(c.Email)) < MinEmailLookup || !strings.Contains(c.Email, "@") {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.Phone) == "" {
		return ErrEmptyPhone
	}
	if strings.TrimSpace(c.Address) == "" {
		return ErrEmptyAddress
	}
	return nil
}

// LineTotal is the total of a single item row. Products that do not fit
// in Money fail with ErrAmountTooLarge.
func LineTotal(unitPrice Money, quantity int64) (Money, error) {
	if unitPrice < 0 || quantity < 0 {
		return 0, ErrInvalidAmount
	}
	hi, lo := bits.Mul64(uint64(unitPrice), uint64(quantity))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrAmountTooLarge
	}
	return Money(lo), nil
}

// Recompute sets Total from UnitPrice and Quantity. A row that cannot be
// totalled keeps a zero Total and is rejected by ReceiptDraft.Validate.
func (it *ReceiptItem) Recompute() {
	total, err := LineTotal(it.UnitPrice, it.Quantity)
	if err != nil {
		total = 0
	}
	it.Total = total
}

// SumItems adds up item totals.
func SumItems(items []ReceiptItem) Money {
	sum, _ := sumItems(items)
	return sum
}

func sumItems(items []ReceiptItem) (Money, error) {
	var sum Money
	for _, it := range items {
		if it.Total > 0 && sum > math.MaxInt64-it.Total {
			return sum, ErrAmountTooLarge
		}
		sum += it.Total
	}
	return sum, nil
}

// Remaining is what the customer still owes.
func (r Receipt) Remaining() Money {
	return r.TotalAmount - r.PaidAmount
}

// StatusLabel is the payment badge text.
func (r Receipt) StatusLabel() string {
	return StatusLabel(r.IsPaid)
}

func StatusLabel(paid bool) string {
	if paid {
		return "LUNAS"
	}
	return "BELUM LUNAS"
}

// Editable reports whether the receipt can still be changed from the list.
func (r Receipt) Editable() bool {
	return !r.IsPaid
}

// ReceiptNumber formats the number of the seq-th receipt of a day,
// for example KW-20240305-0001.
func ReceiptNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", ReceiptNumberPrefix(day), seq)
}

// ReceiptNumberPrefix is the part of a receipt number shared by one day.
func ReceiptNumberPrefix(day time.Time) string {
	return "KW-" + day.Format("20060102") + "-"
}

// NextReceiptSeq returns the sequence following the highest one among the
// numbers issued for day. Numbers of other days are ignored.
func NextReceiptSeq(day time.Time, numbers []string) int {
	prefix := ReceiptNumberPrefix(day)
	last := 0
	for _, n := range numbers {
		rest, ok := strings.CutPrefix(n, prefix)
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(rest); err == nil && v > last {
			last = v
		}
	}
	return last + 1
}
