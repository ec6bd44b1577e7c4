// Package notify sends receipt share links to customers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"kwitansi/internal/core"
)

var (
	ErrNoPhone   = errors.New("customer has no phone number")
	ErrNoChannel = errors.New("no sender number configured for this phone")
)

// Notifier delivers the share link of a freshly created receipt.
type Notifier interface {
	SendShareLink(ctx context.Context, r core.Receipt) error
}

// MessageSender is the part of the Twilio REST API used here.
type MessageSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Config struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
	PublicURL      string
}

// Twilio sends share links by WhatsApp when the customer's phone is in
// E.164 form and a WhatsApp sender exists, and by SMS otherwise.
type Twilio struct {
	api       MessageSender
	from      string
	whatsapp  string
	publicURL string
}

func NewTwilio(cfg Config) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return NewTwilioWithSender(client.Api, cfg)
}

// NewTwilioWithSender uses api instead of a real REST client.
func NewTwilioWithSender(api MessageSender, cfg Config) *Twilio {
	return &Twilio{
		api:       api,
		from:      strings.TrimSpace(cfg.PhoneNumber),
		whatsapp:  strings.TrimSpace(strings.TrimPrefix(cfg.WhatsAppNumber, "whatsapp:")),
		publicURL: cfg.PublicURL,
	}
}

func (t *Twilio) SendShareLink(ctx context.Context, r core.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	phone := strings.TrimSpace(r.Customer.Phone)
	if phone == "" {
		return ErrNoPhone
	}

	params := &twilioApi.CreateMessageParams{}
	channel := "sms"
	switch {
	case strings.HasPrefix(phone, "+") && t.whatsapp != "":
		channel = "whatsapp"
		params.SetTo("whatsapp:" + phone)
		params.SetFrom("whatsapp:" + t.whatsapp)
	case t.from != "":
		params.SetTo(phone)
		params.SetFrom(t.from)
	default:
		return ErrNoChannel
	}
	params.SetBody(ShareMessage(r, ShareURL(t.publicURL, r.ID, r.Token)))

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send %s message: %w", channel, err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.InfoContext(ctx, "Share link sent",
		"receipt_id", r.ID,
		"receipt_number", r.ReceiptNumber,
		"channel", channel,
		"sid", sid)
	return nil
}

// LogNotifier only logs the link. Used when Twilio is not configured.
type LogNotifier struct {
	PublicURL string
}

func (n LogNotifier) SendShareLink(ctx context.Context, r core.Receipt) error {
	slog.InfoContext(ctx, "Share link not sent, notifier disabled",
		"receipt_id", r.ID,
		"receipt_number", r.ReceiptNumber,
		"link", ShareURL(n.PublicURL, r.ID, r.Token))
	return nil
}

// ShareURL is the capability link opening a receipt without a login.
func ShareURL(base string, id int64, token string) string {
	u := strings.TrimRight(base, "/") + "/receipts/" + strconv.FormatInt(id, 10)
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func ShareMessage(r core.Receipt, link string) string {
	name := strings.TrimSpace(r.Customer.Name)
	if name == "" {
		name = "Pelanggan"
	}
	return fmt.Sprintf("Halo %s, nota %s sebesar %s sudah dibuat. Lihat nota Anda di %s",
		name, r.ReceiptNumber, core.FormatRupiah(r.TotalAmount), link)
}
