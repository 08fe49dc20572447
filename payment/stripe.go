package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/utils"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
)

// StripeGateway opens Stripe Checkout sessions. baseURL overrides the API
// host; empty means api.stripe.com.
type StripeGateway struct {
	sessions *checkoutsession.Client
}

func NewStripeGateway(secretKey, baseURL string, timeout time.Duration, log logrus.FieldLogger) *StripeGateway {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(baseURL, "/"))
	}
	if log != nil {
		cfg.LeveledLogger = log
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &StripeGateway{sessions: &checkoutsession.Client{B: backend, Key: secretKey}}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
				UnitAmount: stripe.Int64(req.Amount),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.SetIdempotencyKey(utils.GetUUID())

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, gatewayErr(err)
	}
	if s.ID == "" || s.URL == "" {
		return nil, apperr.Gateway("payment provider returned no session", nil)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// gatewayErr maps a stripe-go failure onto a GatewayError.
func gatewayErr(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = http.StatusText(se.HTTPStatusCode)
		}
		return apperr.Gateway("payment provider rejected the request", fmt.Errorf("stripe: %s", msg))
	}
	var ne interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return apperr.Gateway("payment provider timed out", err)
	}
	return apperr.Gateway("payment provider unreachable", err)
}

// StripeVerifier asks Stripe whether the checkout session was paid instead
// of trusting the client's redirect flag.
type StripeVerifier struct {
	gateway *StripeGateway
}

func NewStripeVerifier(g *StripeGateway) *StripeVerifier {
	return &StripeVerifier{gateway: g}
}

func (v *StripeVerifier) Verify(ctx context.Context, p Proof) error {
	if strings.TrimSpace(p.SessionID) == "" {
		return apperr.Field("sessionId", "is required")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := v.gateway.sessions.Get(p.SessionID, params)
	if err != nil {
		return gatewayErr(err)
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return apperr.Field("success", "payment was not completed")
	}
	return nil
}

// StubGateway stands in for the provider in local runs: the "checkout"
// URL is the success URL itself.
type StubGateway struct{}

func (StubGateway) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	id := "cs_stub_" + strings.ReplaceAll(utils.GetUUID(), "-", "")
	return &Session{ID: id, URL: strings.ReplaceAll(req.SuccessURL, SessionPlaceholder, id)}, nil
}
