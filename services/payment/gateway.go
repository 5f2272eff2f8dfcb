package payment

import (
	"context"
	"time"

	"tourbook/models"
)

// RedirectRequest carries the per-request details a gateway needs to build a
// hosted payment URL.
type RedirectRequest struct {
	ClientIP  string
	OrderInfo string
	Locale    string
	Now       time.Time
	// Deadline is when the booking stops accepting payment. The gateway
	// window never extends past it. Zero means no deadline.
	Deadline time.Time
}

// expiry is the end of the gateway window: now plus window, cut at Deadline.
func (r RedirectRequest) expiry(now time.Time, window time.Duration) time.Time {
	end := now.Add(window)
	if !r.Deadline.IsZero() && r.Deadline.Before(end) {
		end = r.Deadline
	}
	return end
}

// Gateway builds redirect URLs for one asynchronous payment method.
type Gateway interface {
	Method() models.PaymentMethod
	BuildRedirect(ctx context.Context, p models.Payment, req RedirectRequest) (string, error)
	// RedirectTTL is how long a built URL stays usable at the gateway.
	RedirectTTL() time.Duration
}

// VerifiedCallback is a gateway verdict whose authenticity has been checked.
// Only the adapters in this package can build one.
type VerifiedCallback struct {
	gateway      models.PaymentMethod
	reference    string
	success      bool
	responseCode string
	amount       int64
	hasAmount    bool
	gatewayTxnID string
	raw          map[string]string
}

func (c *VerifiedCallback) Gateway() models.PaymentMethod { return c.gateway }
func (c *VerifiedCallback) Reference() string { return c.reference }
func (c *VerifiedCallback) Success() bool { return c.success }
func (c *VerifiedCallback) ResponseCode() string { return c.responseCode }
func (c *VerifiedCallback) GatewayTxnID() string { return c.gatewayTxnID }

// Amount is the amount the gateway reports in minor units, when it reports one.
func (c *VerifiedCallback) Amount() (int64, bool) { return c.amount, c.hasAmount }

// Raw returns a copy of the verified fields.
func (c *VerifiedCallback) Raw() map[string]string {
	out := make(map[string]string, len(c.raw))
	for k, v := range c.raw {
		out[k] = v
	}
	return out
}

// Registry maps asynchronous payment methods to their gateways.
type Registry map[models.PaymentMethod]Gateway

// NewRegistry indexes gateways by method; nil entries are skipped.
func NewRegistry(gateways ...Gateway) Registry {
	r := Registry{}
	for _, g := range gateways {
		if g != nil {
			r[g.Method()] = g
		}
	}
	return r
}

// Lookup returns the gateway for m or ErrUnsupportedGateway.
func (r Registry) Lookup(m models.PaymentMethod) (Gateway, error) {
	g, ok := r[m]
	if !ok {
		return nil, models.ErrUnsupportedGateway
	}
	return g, nil
}
