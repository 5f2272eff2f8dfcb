package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tourbook/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrIgnoredEvent marks a correctly signed webhook that carries no payment verdict.
var ErrIgnoredEvent = errors.New("stripe: event ignored")

// Stripe's minimum checkout session lifetime.
const stripeMinExpiry = 30 * time.Minute

type StripeConfig struct {
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Expiry        time.Duration
}

// Stripe sends customers to a hosted Checkout Session and turns its webhooks
// into verified callbacks. The API key is the process-wide stripe.Key.
type Stripe struct {
	cfg        StripeConfig
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripe(cfg StripeConfig) *Stripe {
	if cfg.Expiry < stripeMinExpiry {
		cfg.Expiry = stripeMinExpiry
	}
	return &Stripe{cfg: cfg, newSession: session.New}
}

func (g *Stripe) Method() models.PaymentMethod { return models.MethodStripe }

func (g *Stripe) RedirectTTL() time.Duration { return g.cfg.Expiry }

func (g *Stripe) BuildRedirect(ctx context.Context, p models.Payment, req RedirectRequest) (string, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	// Stripe will not open a session shorter than its minimum lifetime
	if !req.Deadline.IsZero() && req.Deadline.Sub(now) < stripeMinExpiry {
		return "", models.ErrPaymentWindowClosed
	}
	name := req.OrderInfo
	if name == "" {
		name = "Booking " + p.BookingID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.Reference),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		ExpiresAt:         stripe.Int64(req.expiry(now, g.cfg.Expiry).Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(p.Currency)),
					UnitAmount: stripe.Int64(p.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"payment_id": p.ID,
			"booking_id": p.BookingID,
		},
	}
	params.Context = ctx
	if req.Locale == "vn" {
		params.Locale = stripe.String("vi")
	}

	s, err := g.newSession(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return s.URL, nil
}

// VerifyWebhook checks the Stripe-Signature header and maps checkout events
// to a callback. Unrelated events return ErrIgnoredEvent.
func (g *Stripe) VerifyWebhook(payload []byte, signatureHeader string) (*VerifiedCallback, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, models.ErrSignatureInvalid
	}

	var success bool
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		success = true
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		success = false
	default:
		return nil, ErrIgnoredEvent
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, models.ValidationError("stripe event has a malformed checkout session")
	}
	if cs.ClientReferenceID == "" {
		return nil, models.ValidationError("stripe checkout session has no client_reference_id")
	}
	// completed with a delayed method is not paid yet; async_payment_* follows
	if event.Type == "checkout.session.completed" && cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil, ErrIgnoredEvent
	}

	return &VerifiedCallback{
		gateway:      models.MethodStripe,
		reference:    cs.ClientReferenceID,
		success:      success,
		responseCode: string(event.Type),
		amount:       cs.AmountTotal,
		hasAmount:    success,
		gatewayTxnID: cs.ID,
		raw: map[string]string{
			"event_id":       event.ID,
			"event_type":     string(event.Type),
			"session_id":     cs.ID,
			"payment_status": string(cs.PaymentStatus),
		},
	}, nil
}
