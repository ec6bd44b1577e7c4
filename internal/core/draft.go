package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Item fields that can be edited on a draft row.
const (
	FieldItemName  = "name"
	FieldUnitPrice = "unitPrice"
	FieldQuantity  = "quantity"
)

// ReceiptDraft is the state of the receipt form in create or edit mode.
type ReceiptDraft struct {
	CustomerEmail   string        `json:"customerEmail"`
	CustomerName    string        `json:"customerName"`
	CustomerPhone   string        `json:"customerPhone"`
	CustomerAddress string        `json:"customerAddress"`
	OrderDetails    string        `json:"orderDetails"`
	Date            string        `json:"date"`
	IsPaid          bool          `json:"isPaid"`
	Items           []ReceiptItem `json:"items"`
	TotalAmount     Money         `json:"totalAmount"`
}

// ValidationErrors maps form field names to messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(v))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewItem is the row appended by "Tambah Item".
func NewItem() ReceiptItem {
	return ReceiptItem{Quantity: 1}
}

// NewDraft returns an empty draft dated today with one blank item.
func NewDraft(today time.Time) ReceiptDraft {
	return ReceiptDraft{
		Date:  today.Format(DateLayout),
		Items: []ReceiptItem{NewItem()},
	}
}

// DraftFromReceipt prefills the form for edit mode.
func DraftFromReceipt(r Receipt) ReceiptDraft {
	d := ReceiptDraft{
		CustomerEmail:   r.Customer.Email,
		CustomerName:    r.Customer.Name,
		CustomerPhone:   r.Customer.Phone,
		CustomerAddress: r.Customer.Address,
		OrderDetails:    r.OrderDetails,
		Date:            r.Date.String(),
		IsPaid:          r.IsPaid,
		Items:           []ReceiptItem{NewItem()},
	}
	if len(r.Items) > 0 {
		d.Items = append([]ReceiptItem(nil), r.Items...)
	}
	return d
}

// AddItem appends a blank row.
func (d *ReceiptDraft) AddItem() {
	d.Items = append(d.Items, NewItem())
}

// RemoveItem drops row i. Out of range indexes are ignored.
func (d *ReceiptDraft) RemoveItem(i int) {
	if i < 0 || i >= len(d.Items) {
		return
	}
	d.Items = append(d.Items[:i], d.Items[i+1:]...)
}

// ApplyItemChange sets one field of row i from raw input. Numeric fields
// are sanitized and recompute the row total; the name leaves it untouched.
// A rejected price zeroes the row and stays on it as PriceError until a
// valid price replaces it.
func (d *ReceiptDraft) ApplyItemChange(i int, field, value string) error {
	if i < 0 || i >= len(d.Items) {
		return fmt.Errorf("item %d out of range", i)
	}
	it := &d.Items[i]
	switch field {
	case FieldItemName:
		it.Name = value
	case FieldUnitPrice:
		price, err := ParseAmount(value)
		if err != nil {
			it.UnitPrice = 0
			it.PriceError = "Harga terlalu besar"
			it.Recompute()
			return err
		}
		it.UnitPrice = price
		it.PriceError = ""
		it.Recompute()
	case FieldQuantity:
		it.Quantity = ParseQuantity(value)
		it.Recompute()
	default:
		return fmt.Errorf("unknown item field %q", field)
	}
	return nil
}

// Total is the sum of the item totals.
func (d ReceiptDraft) Total() Money {
	return SumItems(d.Items)
}

// PaidAmount is the whole total once marked paid, otherwise nothing.
func (d ReceiptDraft) PaidAmount() Money {
	if d.IsPaid {
		return d.Total()
	}
	return 0
}

// Remaining is the amount still to be paid.
func (d ReceiptDraft) Remaining() Money {
	return d.Total() - d.PaidAmount()
}

// Customer returns the customer fields of the draft.
func (d ReceiptDraft) Customer() Customer {
	return Customer{
		Name:    d.CustomerName,
		Email:   d.CustomerEmail,
		Phone:   d.CustomerPhone,
		Address: d.CustomerAddress,
	}
}

// Prepare recomputes every row and the aggregate total before submission.
func (d *ReceiptDraft) Prepare() {
	for i := range d.Items {
		d.Items[i].Recompute()
	}
	d.TotalAmount = d.Total()
}

// Validate checks the draft and reports problems per form field.
func (d ReceiptDraft) Validate() error {
	errs := ValidationErrors{}
	if len(strings.TrimSpace(d.CustomerEmail)) < MinEmailLookup {
		errs["customerEmail"] = "Email minimal 5 karakter"
	}
	if strings.TrimSpace(d.CustomerName) == "" {
		errs["customerName"] = "Nama wajib diisi"
	}
	if strings.TrimSpace(d.CustomerPhone) == "" {
		errs["customerPhone"] = "Telepon wajib diisi"
	}
	if strings.TrimSpace(d.CustomerAddress) == "" {
		errs["customerAddress"] = "Alamat wajib diisi"
	}
	if strings.TrimSpace(d.OrderDetails) == "" {
		errs["orderDetails"] = "Detail pesanan wajib diisi"
	}
	if _, err := ParseDate(d.Date); err != nil {
		errs["date"] = "Tanggal tidak valid"
	}
	if len(d.Items) == 0 {
		errs["items"] = "Minimal satu item"
	}
	for i, it := range d.Items {
		if strings.TrimSpace(it.Name) == "" {
			errs[fmt.Sprintf("items.%d.name", i)] = "Nama item wajib diisi"
		}
		if it.Quantity < 1 {
			errs[fmt.Sprintf("items.%d.quantity", i)] = "Jumlah minimal 1"
		}
		switch _, err := LineTotal(it.UnitPrice, it.Quantity); {
		case it.PriceError != "":
			errs[fmt.Sprintf("items.%d.unitPrice", i)] = it.PriceError
		case err != nil:
			errs[fmt.Sprintf("items.%d.unitPrice", i)] = "Total item terlalu besar"
		}
	}
	if _, err := sumItems(d.Items); err != nil {
		errs["items"] = "Total nota terlalu besar"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// FieldError returns the message for one field of a validation error.
func FieldError(err error, field string) string {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v[field]
	}
	return ""
}
