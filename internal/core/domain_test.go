package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-05", "2024-03-05", true},
		{"2024-03-05T00:00:00.000Z", "2024-03-05", true},
		{"2024-03-05T23:10:00+07:00", "2024-03-05", true},
		{"", "", false},
		{"05/03/2024", "", false},
	}
	for i, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("case %d expected error", i)
			}
			continue
		}
		if d.String() != tc.want {
			t.Fatalf("case %d: got %q want %q", i, d.String(), tc.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var r struct {
		Date Date `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-03-05T00:00:00.000Z"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"date":"2024-03-05"}` {
		t.Fatalf("got %s", out)
	}
}

func TestLineTotalAndSum(t *testing.T) {
	items := []ReceiptItem{
		{Name: "Kaos", UnitPrice: 75000, Quantity: 3},
		{Name: "Sablon", UnitPrice: 12500, Quantity: 0},
		{Name: "Ongkir", UnitPrice: 0, Quantity: 9},
		{Name: "Topi", UnitPrice: 1, Quantity: 1},
	}
	var want Money
	for i := range items {
		items[i].Recompute()
		if items[i].Total != items[i].UnitPrice*Money(items[i].Quantity) {
			t.Fatalf("item %d total %d", i, items[i].Total)
		}
		want += items[i].Total
	}
	if got := SumItems(items); got != want || got != 225001 {
		t.Fatalf("SumItems = %d, want %d", got, want)
	}
}

func TestNextReceiptSeq(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if got := NextReceiptSeq(day, nil); got != 1 {
		t.Fatalf("first of day = %d", got)
	}
	issued := []string{"KW-20240305-0001", "KW-20240305-0007", "KW-20240306-0042", "KW-20240305-xx"}
	if got := NextReceiptSeq(day, issued); got != 8 {
		t.Fatalf("NextReceiptSeq = %d, want 8", got)
	}
	if got := ReceiptNumber(day, 8); got != "KW-20240305-0008" {
		t.Fatalf("ReceiptNumber = %q", got)
	}
}

func TestLineTotalOverflow(t *testing.T) {
	if _, err := LineTotal(922337203685477580, 100); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
	if got, err := LineTotal(math.MaxInt64, 1); err != nil || got != math.MaxInt64 {
		t.Fatalf("LineTotal(max, 1) = %d, %v", got, err)
	}
	if _, err := LineTotal(-5, 2); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative price: %v", err)
	}

	it := ReceiptItem{Name: "Mesin", UnitPrice: 922337203685477580, Quantity: 100}
	it.Recompute()
	if it.Total != 0 {
		t.Fatalf("overflowing row must not wrap, got %d", it.Total)
	}

	big := []ReceiptItem{{Total: math.MaxInt64}, {Total: 1}}
	if _, err := sumItems(big); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("sum overflow: %v", err)
	}
}

func TestCustomerValidate(t *testing.T) {
	good := Customer{Name: "Budi", Email: "budi@x.id", Phone: "0812", Address: "Jl. Merdeka 1"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Customer{
		{Name: "Budi", Email: "b@x", Phone: "0812", Address: "a"},
		{Name: "", Email: "budi@x.id", Phone: "0812", Address: "a"},
		{Name: "Budi", Email: "budi@x.id", Phone: " ", Address: "a"},
		{Name: "Budi", Email: "budi@x.id", Phone: "0812", Address: ""},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestReceiptRemaining(t *testing.T) {
	r := Receipt{TotalAmount: 500000, PaidAmount: 200000}
	if r.Remaining() != 300000 {
		t.Fatalf("got %d", r.Remaining())
	}
	if r.StatusLabel() != "BELUM LUNAS" || !r.Editable() {
		t.Fatalf("unpaid receipt should be editable and BELUM LUNAS")
	}
	r.IsPaid = true
	if r.StatusLabel() != "LUNAS" || r.Editable() {
		t.Fatalf("paid receipt should be locked and LUNAS")
	}
}

func TestDailyChart(t *testing.T) {
	bars := DailyChart([]DailyPayment{
		{Day: "Senin", Total: 500000, Date: "2024-03-04"},
		{Day: "Selasa", Total: 1000000, Date: "2024-03-05"},
		{Day: "Rabu", Total: 0, Date: "2024-03-06"},
	})
	if len(bars) != 3 {
		t.Fatalf("got %d bars", len(bars))
	}
	if bars[0].Label != "Senin (04/03)" || bars[0].Percent != 50 || bars[0].Value != "500.000" {
		t.Fatalf("unexpected first bar %+v", bars[0])
	}
	if bars[1].Percent != 100 || bars[2].Percent != 0 {
		t.Fatalf("unexpected percents %+v", bars)
	}
}

func TestEmptyDailySeries(t *testing.T) {
	week, ok := WeekByNumber(2024, time.March, 1)
	if !ok {
		t.Fatal("week 1 missing")
	}
	days := EmptyDailySeries(2024, time.March, &week)
	if len(days) != 7 || days[0].Date != "2024-02-26" || days[0].Day != "Senin" || days[6].Day != "Minggu" {
		t.Fatalf("unexpected week series %+v", days)
	}
	if got := len(EmptyDailySeries(2024, time.February, nil)); got != 29 {
		t.Fatalf("leap February has %d days", got)
	}
}
