// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for common
// form parsing, dashboard parameters, and receipt form decoding.

package http

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"kwitansi/internal/core"
)

// DailyParams selects the daily payments chart.
type DailyParams struct {
	Year  int
	Month time.Month
	Week  int
	Weeks []core.Week
}

// ParseDailyParams reads year, month and week. An unset or unknown week
// selects the first week of the month; a month without weeks gives 0.
func ParseDailyParams(query url.Values, now time.Time) DailyParams {
	year, month := parseYearMonth(query, now)
	p := DailyParams{
		Year:  year,
		Month: month,
		Weeks: core.WeeksInMonth(year, month),
	}
	if len(p.Weeks) == 0 {
		return p
	}
	p.Week = p.Weeks[0].Num
	if v := strings.TrimSpace(query.Get("week")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if _, ok := core.WeekByNumber(year, month, n); ok {
				p.Week = n
			}
		}
	}
	return p
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams extracts year and month from query parameters, using current date as defaults.
func ParseMonthParams(query url.Values, now time.Time) MonthParams {
	year, month := parseYearMonth(query, now)
	return MonthParams{Year: year, Month: month}
}

// ParseCustomerForm reads the new customer form.
func ParseCustomerForm(form url.Values) core.Customer {
	return core.Customer{
		Name:    sanitizeInput(form.Get("name")),
		Email:   sanitizeInput(form.Get("email")),
		Phone:   sanitizeInput(form.Get("phone")),
		Address: sanitizeInput(form.Get("address")),
	}
}

// ParseReceiptDraft reads the receipt form. Item rows arrive as
// items.<n>.name, items.<n>.unitPrice and items.<n>.quantity and keep the
// order of n. Numeric inputs are sanitized and every row total is
// recomputed. A rejected price is kept on its row and reported by
// ReceiptDraft.Validate.
func ParseReceiptDraft(form url.Values) core.ReceiptDraft {
	d := core.ReceiptDraft{
		CustomerEmail:   sanitizeInput(form.Get("customerEmail")),
		CustomerName:    sanitizeInput(form.Get("customerName")),
		CustomerPhone:   sanitizeInput(form.Get("customerPhone")),
		CustomerAddress: sanitizeInput(form.Get("customerAddress")),
		OrderDetails:    sanitizeInput(form.Get("orderDetails")),
		Date:            sanitizeInput(form.Get("date")),
		IsPaid:          parseCheckbox(form.Get("isPaid")),
	}
	for _, n := range itemIndexes(form) {
		prefix := "items." + strconv.Itoa(n) + "."
		d.AddItem()
		i := len(d.Items) - 1
		_ = d.ApplyItemChange(i, core.FieldItemName, sanitizeInput(form.Get(prefix+core.FieldItemName)))
		if v, ok := form[prefix+core.FieldUnitPrice]; ok && len(v) > 0 {
			_ = d.ApplyItemChange(i, core.FieldUnitPrice, v[0])
		}
		if v, ok := form[prefix+core.FieldQuantity]; ok && len(v) > 0 {
			_ = d.ApplyItemChange(i, core.FieldQuantity, v[0])
		}
	}
	d.TotalAmount = d.Total()
	return d
}

// itemIndexes returns the distinct row numbers present in the form, sorted.
func itemIndexes(form url.Values) []int {
	seen := map[int]bool{}
	for key := range form {
		rest, ok := strings.CutPrefix(key, "items.")
		if !ok {
			continue
		}
		num, _, ok := strings.Cut(rest, ".")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil || n < 0 {
			continue
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func parseCheckbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// ItemAction is an edit requested by the item rows partial.
type ItemAction struct {
	Kind  string // "add", "remove" or "" to only recompute
	Index int
}

// ParseItemAction reads the action and index sent with an items request.
func ParseItemAction(form url.Values) ItemAction {
	a := ItemAction{Kind: strings.TrimSpace(form.Get("action")), Index: -1}
	if v := form.Get("index"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			a.Index = n
		}
	}
	return a
}

// Apply performs the action on d.
func (a ItemAction) Apply(d *core.ReceiptDraft) {
	switch a.Kind {
	case "add":
		d.AddItem()
	case "remove":
		d.RemoveItem(a.Index)
	}
	d.Prepare()
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponse {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Format permintaan tidak valid")
	}
	return nil
}
