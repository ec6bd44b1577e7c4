package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFormatRupiah(t *testing.T) {
	cases := []struct {
		in   Money
		want string
	}{
		{1500000, "Rp 1.500.000"},
		{0, "Rp 0"},
		{999, "Rp 999"},
		{1000, "Rp 1.000"},
		{12345678, "Rp 12.345.678"},
	}
	for _, tc := range cases {
		if got := FormatRupiah(tc.in); got != tc.want {
			t.Errorf("FormatRupiah(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := FormatRupiahPlain(250000); got != "250.000" {
		t.Errorf("FormatRupiahPlain = %q", got)
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want Money
	}{
		{`150000`, 150000},
		{`"150000.00"`, 150000},
		{`"1500000"`, 1500000},
		{`" 7000 "`, 7000},
		{`"42kg"`, 42},
		{`"abc"`, 0},
		{`""`, 0},
		{`"-2500"`, -2500},
		{`150000.75`, 150000},
		{`1.5e5`, 150000},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Errorf("Unmarshal(%s): %v", tc.in, err)
			continue
		}
		if m != tc.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tc.in, m, tc.want)
		}
	}

	var rc Receipt
	body := `{"totalAmount":"150000.00","paidAmount":0,"items":[{"name":"Kaos","unitPrice":"75000","quantity":2,"total":"150000"}]}`
	if err := json.Unmarshal([]byte(body), &rc); err != nil {
		t.Fatalf("receipt with string amounts: %v", err)
	}
	if rc.TotalAmount != 150000 || rc.Items[0].UnitPrice != 75000 || rc.Items[0].Total != 150000 {
		t.Fatalf("decoded %+v", rc)
	}

	for _, bad := range []string{`"99999999999999999999"`, `1e30`, `true`} {
		var m Money
		if err := json.Unmarshal([]byte(bad), &m); err == nil {
			t.Errorf("Unmarshal(%s) should fail, got %d", bad, m)
		}
	}
}

func TestSanitizeDigits(t *testing.T) {
	cases := map[string]string{
		"":          "0",
		"0":         "0",
		"000":       "0",
		"007":       "7",
		"1.500.000": "1500000",
		"Rp 25,000": "25000",
		"-12":       "12",
		"abc":       "0",
	}
	for in, want := range cases {
		if got := SanitizeDigits(in); got != want {
			t.Errorf("SanitizeDigits(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("Rp 0150.000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 150000 {
		t.Fatalf("got %d", v)
	}
	if _, err := ParseAmount("99999999999999999999999"); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}
