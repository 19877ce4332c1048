package gateway

import (
	"context"

	"github.com/nexcommerce/payment-service/internal/domain"
)

const (
	FieldTypeText   = "text"
	FieldTypeSelect = "select"
	FieldTypeYesNo  = "yesno"
)

const (
	SourceCheckout = "checkout"
	SourceRenewal  = "renewal"
	SourceManual   = "manual"
)

// Capabilities declares what a gateway supports. The flags are static per
// gateway, not per transaction.
type Capabilities struct {
	Refunds           bool
	PartialRefunds    bool
	BillingAgreements bool
}

// FormField describes one input on either the payment screen or the admin
// settings form.
type FormField struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Required bool              `json:"required"`
	Default  string            `json:"default,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// RecurringCost describes a recurring charge attached to an invoice. Passed
// through to gateways that support billing agreements; ignored by those that
// do not.
type RecurringCost struct {
	Amount   domain.Money
	Interval string
}

// FraudContext carries optional request metadata a fraud screening service
// may want before the charge is made.
type FraudContext struct {
	IPAddress string
	UserAgent string
}

// AuthResult is returned by a successful Auth call. StatusURL is where the
// buyer must be redirected to complete payment; issuing that redirect
// terminates the request.
type AuthResult struct {
	GatewayID string
	StatusURL string
	ExpiresAt *int64
}

// Gateway is the contract every payment gateway satisfies. The host only
// needs this interface, not a shared base implementation.
type Gateway interface {
	Capabilities() Capabilities

	// PaymentScreen returns the form fields the buyer must fill in before
	// authorizing, for example a settlement currency selection. It has no
	// side effects.
	PaymentScreen(ctx context.Context, invoice domain.Invoice, amount domain.Money, member *domain.Member, recurrings []RecurringCost, screen string) ([]FormField, error)

	// Auth creates the remote payment transaction. The transaction must
	// already carry a durable transaction number, since the callback URLs
	// sent to the provider embed it.
	Auth(ctx context.Context, trx domain.Transaction, invoice domain.Invoice, values map[string]string, fraud *FraudContext, recurrings []RecurringCost, source string) (AuthResult, error)

	// Void cancels an authorization before settlement, where the provider
	// supports that.
	Void(ctx context.Context, trx domain.Transaction) error

	// SettingsFields returns the admin settings form descriptor,
	// pre-populated from the current settings.
	SettingsFields() []FormField

	// TestSettings validates a candidate settings blob against the provider
	// and returns it unchanged on success.
	TestSettings(ctx context.Context, settings []byte) ([]byte, error)

	// Reconfigure swaps in a new settings blob after it has been tested and
	// persisted.
	Reconfigure(settings []byte) error

	// VerifyNotification authenticates an asynchronous payment notification
	// (raw body plus its signature header) against the gateway's shared
	// secret and configured merchant.
	VerifyNotification(body []byte, signature string, merchantID string) error
}
