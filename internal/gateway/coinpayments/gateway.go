package coinpayments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nexcommerce/payment-service/internal/domain"
	"github.com/nexcommerce/payment-service/internal/gateway"
	paymentgateway "github.com/nexcommerce/payment-service/internal/infrastructure/payment-gateway"
	"github.com/nexcommerce/payment-service/pkg/errs"
)

// CurrencyFieldName is the payment screen field carrying the buyer's
// settlement currency selection.
const CurrencyFieldName = "coinpayments_currency2"

const defaultCurrency = "BTC"

// ProviderClient is the slice of the CoinPayments API the gateway consumes.
type ProviderClient interface {
	GetRates(ctx context.Context, acceptedOnly bool) (map[string]paymentgateway.Rate, error)
	CreateTransaction(ctx context.Context, req paymentgateway.TransactionRequest) (*paymentgateway.TransactionResult, error)
}

// ClientFactory builds a provider client for a key pair. TestSettings uses it
// to probe candidate credentials without touching the live client.
type ClientFactory func(publicKey, privateKey string) ProviderClient

// Gateway integrates CoinPayments hosted checkout: the buyer picks a
// settlement currency, a remote transaction is created, and the buyer is
// redirected to the provider's payment page. Settlement is reconciled later
// through the IPN callback.
type Gateway struct {
	baseURL   string
	newClient ClientFactory

	mu       sync.RWMutex
	settings Settings
	client   ProviderClient
}

func CreateGateway(settings Settings, baseURL string, newClient ClientFactory) *Gateway {
	return &Gateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		newClient: newClient,
		settings:  settings,
		client:    newClient(settings.PublicKey, settings.PrivateKey),
	}
}

func (g *Gateway) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{
		Refunds:           false,
		PartialRefunds:    false,
		BillingAgreements: false,
	}
}

// PaymentScreen offers the accepted settlement currencies as a single
// required select. Codes like "USDT.ETH" denote a network variant of a base
// asset; their display name gets the network suffix appended.
func (g *Gateway) PaymentScreen(ctx context.Context, invoice domain.Invoice, amount domain.Money, member *domain.Member, recurrings []gateway.RecurringCost, screen string) ([]gateway.FormField, error) {
	settings, client := g.current()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	rates, err := client.GetRates(ctx, false)
	if err != nil {
		return nil, err
	}

	options := map[string]string{}
	for code, info := range rates {
		name := info.Name
		if pos := strings.Index(code, "."); pos != -1 {
			name = name + " " + code[pos+1:]
		}

		if info.Accepted == 1 {
			options[code] = name
		}
	}

	return []gateway.FormField{
		{
			Name:     CurrencyFieldName,
			Type:     gateway.FieldTypeSelect,
			Required: true,
			Default:  defaultCurrency,
			Options:  options,
		},
	}, nil
}

// Auth creates the provider transaction and reports where to send the buyer.
// The caller persists the transaction number before calling, because the
// success and IPN URLs built here embed it.
func (g *Gateway) Auth(ctx context.Context, trx domain.Transaction, invoice domain.Invoice, values map[string]string, fraud *gateway.FraudContext, recurrings []gateway.RecurringCost, source string) (gateway.AuthResult, error) {
	settings, client := g.current()
	if err := settings.Validate(); err != nil {
		return gateway.AuthResult{}, err
	}

	if trx.TransactionNumber == "" {
		return gateway.AuthResult{}, fmt.Errorf("transaction has no durable transaction number")
	}

	currency2 := values[CurrencyFieldName]
	if currency2 == "" {
		return gateway.AuthResult{}, errs.ErrClient
	}

	itemNames := make([]string, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		itemNames = append(itemNames, fmt.Sprintf("%d x %s", item.Quantity, item.Name))
	}

	callbackURL := g.callbackURL(trx.TransactionNumber)
	buyer := ResolveBuyer(BuyerSourceForInvoice(invoice))

	req := paymentgateway.TransactionRequest{
		Currency1:  trx.Currency,
		Currency2:  currency2,
		Amount:     strconv.FormatFloat(trx.Amount, 'f', -1, 64),
		ItemName:   strings.Join(itemNames, ", "),
		Custom:     trx.TransactionNumber,
		SuccessURL: callbackURL,
		CancelURL:  invoice.CheckoutURL,
		IPNURL:     callbackURL,
		BuyerEmail: buyer.Email,
	}
	if settings.PassBuyerName {
		req.BuyerName = buyer.FullName
	}

	result, err := client.CreateTransaction(ctx, req)
	if err != nil {
		return gateway.AuthResult{}, err
	}

	authResult := gateway.AuthResult{
		GatewayID: result.TxnID,
		StatusURL: result.StatusURL,
	}
	if result.Timeout > 0 {
		expiresAt := time.Now().Unix() + result.Timeout
		authResult.ExpiresAt = &expiresAt
	}

	return authResult, nil
}

// Void is a deliberate pass-through: the provider exposes no
// cancel-before-settlement operation.
func (g *Gateway) Void(ctx context.Context, trx domain.Transaction) error {
	return nil
}

func (g *Gateway) SettingsFields() []gateway.FormField {
	settings, _ := g.current()

	passName := "1"
	if !settings.PassBuyerName {
		passName = "0"
	}

	return []gateway.FormField{
		{Name: "coinpayments_public_key", Type: gateway.FieldTypeText, Required: true, Default: settings.PublicKey},
		{Name: "coinpayments_private_key", Type: gateway.FieldTypeText, Required: true, Default: settings.PrivateKey},
		{Name: "coinpayments_merchant_id", Type: gateway.FieldTypeText, Required: true, Default: settings.MerchantID},
		{Name: "coinpayments_ipn_secret", Type: gateway.FieldTypeText, Required: true, Default: settings.IPNSecret},
		{Name: "coinpayments_debug_email", Type: gateway.FieldTypeText, Required: true, Default: settings.DebugEmail},
		{Name: "coinpayments_pass_name", Type: gateway.FieldTypeYesNo, Required: true, Default: passName},
	}
}

// TestSettings probes the candidate key pair with a rate lookup. Any failure,
// provider-level or transport, blocks saving and is reported as a
// configuration error. Only the key pair is verified; the IPN secret and
// merchant id cannot be checked this way.
func (g *Gateway) TestSettings(ctx context.Context, raw []byte) ([]byte, error) {
	settings, err := ParseSettings(raw)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	client := g.newClient(settings.PublicKey, settings.PrivateKey)
	if _, err := client.GetRates(ctx, false); err != nil {
		return nil, &errs.ConfigurationInvalidError{Message: providerMessage(err)}
	}

	return raw, nil
}

func (g *Gateway) Reconfigure(raw []byte) error {
	settings, err := ParseSettings(raw)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = settings
	g.client = g.newClient(settings.PublicKey, settings.PrivateKey)

	return nil
}

// VerifyNotification checks the IPN body's HMAC-SHA512 signature against the
// shared secret and the notification's merchant id against the configured
// one.
func (g *Gateway) VerifyNotification(body []byte, signature string, merchantID string) error {
	settings, _ := g.current()

	if settings.IPNSecret == "" {
		return &errs.ConfigurationInvalidError{Message: "IPN secret is not configured"}
	}

	mac := hmac.New(sha512.New, []byte(settings.IPNSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return errs.ErrIPNSignatureMismatch
	}

	if merchantID != settings.MerchantID {
		return errs.ErrIPNMerchantMismatch
	}

	return nil
}

func (g *Gateway) current() (Settings, ProviderClient) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings, g.client
}

func (g *Gateway) callbackURL(transactionNumber string) string {
	return fmt.Sprintf("%s/api/v1/payments/gateway-callback?transactionId=%s", g.baseURL, transactionNumber)
}

// providerMessage unwraps the provider's own message from an upstream error
// so the admin sees the provider's words, not our wrapping.
func providerMessage(err error) string {
	var upstream *errs.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	return err.Error()
}
