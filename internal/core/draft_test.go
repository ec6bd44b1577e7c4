package core

import (
	"errors"
	"testing"
	"time"
)

func validDraft() ReceiptDraft {
	d := NewDraft(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC))
	d.CustomerEmail = "budi@example.com"
	d.CustomerName = "Budi"
	d.CustomerPhone = "08123456789"
	d.CustomerAddress = "Jl. Sudirman 1"
	d.OrderDetails = "Seragam kantor"
	d.Items[0].Name = "Kemeja"
	return d
}

func TestNewDraft(t *testing.T) {
	d := NewDraft(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC))
	if d.Date != "2024-03-05" {
		t.Fatalf("date %q", d.Date)
	}
	if len(d.Items) != 1 || d.Items[0].Quantity != 1 || d.Items[0].Total != 0 {
		t.Fatalf("unexpected first item %+v", d.Items)
	}
}

func TestApplyItemChange(t *testing.T) {
	d := validDraft()
	if err := d.ApplyItemChange(0, FieldUnitPrice, "0150.000"); err != nil {
		t.Fatal(err)
	}
	if d.Items[0].UnitPrice != 150000 || d.Items[0].Total != 150000 {
		t.Fatalf("after price: %+v", d.Items[0])
	}
	if err := d.ApplyItemChange(0, FieldQuantity, "03"); err != nil {
		t.Fatal(err)
	}
	if d.Items[0].Quantity != 3 || d.Items[0].Total != 450000 {
		t.Fatalf("after quantity: %+v", d.Items[0])
	}
	if err := d.ApplyItemChange(0, FieldQuantity, ""); err != nil {
		t.Fatal(err)
	}
	if d.Items[0].Quantity != 0 || d.Items[0].Total != 0 {
		t.Fatalf("empty quantity should become 0: %+v", d.Items[0])
	}
	d.Items[0].Total = 99
	if err := d.ApplyItemChange(0, FieldItemName, "Celana"); err != nil {
		t.Fatal(err)
	}
	if d.Items[0].Total != 99 {
		t.Fatalf("name change must not recompute total")
	}
	if err := d.ApplyItemChange(3, FieldItemName, "x"); err == nil {
		t.Fatal("expected out of range error")
	}
	if err := d.ApplyItemChange(0, "discount", "1"); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestDraftItemsAndTotals(t *testing.T) {
	d := validDraft()
	_ = d.ApplyItemChange(0, FieldUnitPrice, "100000")
	d.AddItem()
	_ = d.ApplyItemChange(1, FieldItemName, "Topi")
	_ = d.ApplyItemChange(1, FieldUnitPrice, "25000")
	_ = d.ApplyItemChange(1, FieldQuantity, "2")
	if d.Total() != 150000 {
		t.Fatalf("total %d", d.Total())
	}
	if d.PaidAmount() != 0 || d.Remaining() != 150000 {
		t.Fatalf("unpaid amounts wrong")
	}
	d.IsPaid = true
	if d.PaidAmount() != 150000 || d.Remaining() != 0 {
		t.Fatalf("paid amounts wrong")
	}
	d.RemoveItem(0)
	d.RemoveItem(5)
	if len(d.Items) != 1 || d.Items[0].Name != "Topi" {
		t.Fatalf("remove failed: %+v", d.Items)
	}
	d.Items[0].Total = 1
	d.Prepare()
	if d.TotalAmount != 50000 || d.Items[0].Total != 50000 {
		t.Fatalf("prepare did not recompute: %+v", d)
	}
}

func TestDraftValidate(t *testing.T) {
	if err := validDraft().Validate(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}
	d := validDraft()
	d.CustomerEmail = "a@b"
	d.Date = "kemarin"
	d.Items[0].Name = ""
	err := d.Validate()
	var verr ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	for _, field := range []string{"customerEmail", "date", "items.0.name"} {
		if FieldError(err, field) == "" {
			t.Errorf("missing error for %s", field)
		}
	}
	d = validDraft()
	d.Items = nil
	if FieldError(d.Validate(), "items") == "" {
		t.Fatalf("expected items error")
	}
}

func TestDraftValidate_Overflow(t *testing.T) {
	d := validDraft()
	if err := d.ApplyItemChange(0, FieldUnitPrice, "922337203685477580"); err != nil {
		t.Fatal(err)
	}
	if err := d.ApplyItemChange(0, FieldQuantity, "100"); err != nil {
		t.Fatal(err)
	}
	d.Prepare()
	if d.Items[0].Total < 0 {
		t.Fatalf("row total wrapped to %d", d.Items[0].Total)
	}
	if msg := FieldError(d.Validate(), "items.0.unitPrice"); msg == "" {
		t.Fatal("expected an item price error for an overflowing row")
	}

	d = validDraft()
	err := d.ApplyItemChange(0, FieldUnitPrice, "99999999999999999999")
	if !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
	d.Prepare()
	if msg := FieldError(d.Validate(), "items.0.unitPrice"); msg != "Harga terlalu besar" {
		t.Fatalf("rejected price must fail validation, got %q", msg)
	}
	if err := d.ApplyItemChange(0, FieldUnitPrice, "15.000"); err != nil {
		t.Fatal(err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("a valid price clears the error: %v", err)
	}
}

func TestValidationErrorsSorted(t *testing.T) {
	v := ValidationErrors{"date": "d", "customerName": "n", "items.0.name": "i"}
	want := "validation failed: customerName: n, date: d, items.0.name: i"
	for i := 0; i < 10; i++ {
		if got := v.Error(); got != want {
			t.Fatalf("Error() = %q, want %q", got, want)
		}
	}
}

func TestDraftFromReceipt(t *testing.T) {
	r := Receipt{
		Customer:     Customer{Name: "Sari", Email: "sari@example.com", Phone: "0811", Address: "Bandung"},
		OrderDetails: "Undangan",
		Date:         NewDate(2024, 3, 5),
		IsPaid:       true,
		Items:        []ReceiptItem{{Name: "Kartu", UnitPrice: 5000, Quantity: 100, Total: 500000}},
	}
	d := DraftFromReceipt(r)
	if d.CustomerEmail != "sari@example.com" || d.Date != "2024-03-05" || !d.IsPaid || len(d.Items) != 1 {
		t.Fatalf("unexpected draft %+v", d)
	}
	d.Items[0].Name = "changed"
	if r.Items[0].Name != "Kartu" {
		t.Fatalf("draft must not alias receipt items")
	}
	if got := DraftFromReceipt(Receipt{}); len(got.Items) != 1 {
		t.Fatalf("receipt without items should keep one blank row")
	}
}
