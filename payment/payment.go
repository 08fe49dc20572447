// Package payment is the boundary to the hosted-checkout provider. It opens
// checkout sessions and decides whether a returning client really paid; it
// never holds booking state.
package payment

import (
	"context"
	"strings"

	"github.com/loiphan2202/BAT/apperr"
)

// SessionPlaceholder is replaced by the provider with the session id in
// the success URL.
const SessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type SessionRequest struct {
	// Amount in minor units (paise for INR).
	Amount      int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// Proof is what the client brings back from the hosted checkout page.
type Proof struct {
	SessionID string
	Success   bool
}

// Verifier decides whether a Proof stands for a captured payment. It
// returns nil when the booking may be recorded as paid.
type Verifier interface {
	Verify(ctx context.Context, p Proof) error
}

// ClientAssertedVerifier trusts the success flag the client sends after
// the redirect. Nothing is checked with the provider.
type ClientAssertedVerifier struct{}

func (ClientAssertedVerifier) Verify(_ context.Context, p Proof) error {
	if strings.TrimSpace(p.SessionID) == "" {
		return apperr.Field("sessionId", "is required")
	}
	if !p.Success {
		return apperr.Field("success", "payment was not completed")
	}
	return nil
}
