package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/guonaihong/gout"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

type WhatsAppConfig struct {
	APIURL      string
	Token       string
	AdminNumber string
}

func (c WhatsAppConfig) Enabled() bool {
	return strings.TrimSpace(c.APIURL) != "" && strings.TrimSpace(c.Token) != ""
}

// WhatsAppNotifier sends a text message through the WhatsApp Cloud API to the
// admin contact and, when a mobile number is on the bill, to the customer.
type WhatsAppNotifier struct {
	cfg WhatsAppConfig
}

func NewWhatsAppNotifier(cfg WhatsAppConfig) *WhatsAppNotifier {
	return &WhatsAppNotifier{cfg: cfg}
}

func (n *WhatsAppNotifier) Name() string {
	return "whatsapp"
}

func (n *WhatsAppNotifier) BillCreated(ctx context.Context, bill domain.Bill) error {
	if admin := normalizeMobile(n.cfg.AdminNumber); admin != "" {
		if err := n.send(ctx, admin, adminBillText(bill)); err != nil {
			return err
		}
	}
	if customer := normalizeMobile(bill.CustomerMobile); customer != "" {
		if err := n.send(ctx, customer, customerBillText(bill)); err != nil {
			return err
		}
	}
	return nil
}

func (n *WhatsAppNotifier) send(ctx context.Context, to string, text string) error {
	var (
		code int
		body string
	)
	err := gout.POST(n.cfg.APIURL).
		WithContext(ctx).
		SetHeader(gout.H{"Authorization": "Bearer " + n.cfg.Token}).
		SetJSON(gout.H{
			"messaging_product": "whatsapp",
			"to":                to,
			"type":              "text",
			"text":              gout.H{"body": text},
		}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return fmt.Errorf("whatsapp request: %w", err)
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("whatsapp returned status %d: %s", code, truncate(body, 200))
	}
	return nil
}

// normalizeMobile keeps digits only and prefixes bare 10-digit numbers with
// the India country code.
func normalizeMobile(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		return "91" + digits
	}
	return digits
}

func adminBillText(bill domain.Bill) string {
	return fmt.Sprintf("New bill %s\nClient: %s\nTotal: %s (%s)\nAttended by: %s",
		bill.ID, bill.ClientName, bill.TotalAmount.StringFixed(2), bill.PaymentMethod, bill.AttendantBy)
}

func customerBillText(bill domain.Bill) string {
	return fmt.Sprintf("Hi %s, thank you for visiting! Your bill total is %s, paid by %s.",
		bill.ClientName, bill.TotalAmount.StringFixed(2), bill.PaymentMethod)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
