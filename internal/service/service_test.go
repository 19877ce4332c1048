package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nexcommerce/payment-service/config"
	"github.com/nexcommerce/payment-service/internal/domain"
	"github.com/nexcommerce/payment-service/internal/dto"
	"github.com/nexcommerce/payment-service/internal/gateway"
	"github.com/nexcommerce/payment-service/internal/repository"
	"github.com/nexcommerce/payment-service/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	calls []string

	invoice    domain.Invoice
	invoiceErr error

	transaction    domain.Transaction
	transactionErr error

	addedTransaction   domain.Transaction
	addTransactionErr  error
	updatedGatewayID   *domain.Transaction
	updatedStatus      []domain.Transaction
	pendingExpired     []domain.Transaction
	settingsBlob       []byte
	updatedSettings    []byte
	updateSettingsArgs string
}

func (f *fakeRepo) HandleTrx(ctx context.Context, fn func(ctx context.Context, repo repository.PaymentRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetInvoiceByID(ctx context.Context, id int64) (domain.Invoice, error) {
	f.calls = append(f.calls, "GetInvoiceByID")
	return f.invoice, f.invoiceErr
}

func (f *fakeRepo) AddTransaction(ctx context.Context, data domain.Transaction) (int64, error) {
	f.calls = append(f.calls, "AddTransaction")
	f.addedTransaction = data
	if f.addTransactionErr != nil {
		return 0, f.addTransactionErr
	}
	return 42, nil
}

func (f *fakeRepo) GetTransactionByNumber(ctx context.Context, transactionNumber string) (domain.Transaction, error) {
	f.calls = append(f.calls, "GetTransactionByNumber")
	return f.transaction, f.transactionErr
}

func (f *fakeRepo) UpdateTransactionGatewayID(ctx context.Context, data domain.Transaction) error {
	f.calls = append(f.calls, "UpdateTransactionGatewayID")
	f.updatedGatewayID = &data
	return nil
}

func (f *fakeRepo) UpdateTransactionStatus(ctx context.Context, data domain.Transaction) error {
	f.calls = append(f.calls, "UpdateTransactionStatus")
	f.updatedStatus = append(f.updatedStatus, data)
	return nil
}

func (f *fakeRepo) GetTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	f.calls = append(f.calls, "GetTransactions")
	return f.pendingExpired, nil
}

func (f *fakeRepo) GetGatewaySettings(ctx context.Context, gatewayKey string) ([]byte, error) {
	return f.settingsBlob, nil
}

func (f *fakeRepo) UpdateGatewaySettings(ctx context.Context, gatewayKey string, settings []byte) error {
	f.calls = append(f.calls, "UpdateGatewaySettings")
	f.updateSettingsArgs = gatewayKey
	f.updatedSettings = settings
	return nil
}

type fakeGateway struct {
	calls []string

	screenFields []gateway.FormField
	screenErr    error

	authResult gateway.AuthResult
	authErr    error
	authTrx    domain.Transaction

	testSettingsErr  error
	reconfigured     []byte
	verifyErr        error
	settingsFields   []gateway.FormField
	voidCalled       bool
	verifiedBody     []byte
	verifiedSig      string
	verifiedMerchant string
}

func (f *fakeGateway) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{}
}

func (f *fakeGateway) PaymentScreen(ctx context.Context, invoice domain.Invoice, amount domain.Money, member *domain.Member, recurrings []gateway.RecurringCost, screen string) ([]gateway.FormField, error) {
	f.calls = append(f.calls, "PaymentScreen")
	return f.screenFields, f.screenErr
}

func (f *fakeGateway) Auth(ctx context.Context, trx domain.Transaction, invoice domain.Invoice, values map[string]string, fraud *gateway.FraudContext, recurrings []gateway.RecurringCost, source string) (gateway.AuthResult, error) {
	f.calls = append(f.calls, "Auth")
	f.authTrx = trx
	return f.authResult, f.authErr
}

func (f *fakeGateway) Void(ctx context.Context, trx domain.Transaction) error {
	f.calls = append(f.calls, "Void")
	f.voidCalled = true
	return nil
}

func (f *fakeGateway) SettingsFields() []gateway.FormField {
	return f.settingsFields
}

func (f *fakeGateway) TestSettings(ctx context.Context, settings []byte) ([]byte, error) {
	f.calls = append(f.calls, "TestSettings")
	if f.testSettingsErr != nil {
		return nil, f.testSettingsErr
	}
	return settings, nil
}

func (f *fakeGateway) Reconfigure(settings []byte) error {
	f.calls = append(f.calls, "Reconfigure")
	f.reconfigured = settings
	return nil
}

func (f *fakeGateway) VerifyNotification(body []byte, signature string, merchantID string) error {
	f.calls = append(f.calls, "VerifyNotification")
	f.verifiedBody = body
	f.verifiedSig = signature
	f.verifiedMerchant = merchantID
	return f.verifyErr
}

func newTestService(repo *fakeRepo, gw *fakeGateway) PaymentService {
	return CreatePaymentService(repo, gw, nil, &config.Config{})
}

func testInvoice() domain.Invoice {
	return domain.Invoice{
		ID:          7,
		Currency:    "USD",
		Total:       24.99,
		CheckoutURL: "https://shop.example.com/checkout/7",
		Items: []domain.InvoiceItem{
			{Name: "Widget", Quantity: 2},
		},
	}
}

func TestGetPaymentOptions(t *testing.T) {
	t.Run("returns the gateway's fields", func(t *testing.T) {
		repo := &fakeRepo{invoice: testInvoice()}
		gw := &fakeGateway{screenFields: []gateway.FormField{{Name: "coinpayments_currency2"}}}
		svc := newTestService(repo, gw)

		fields, err := svc.GetPaymentOptions(context.Background(), 7)

		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, "coinpayments_currency2", fields[0].Name)
	})

	t.Run("propagates an upstream failure with no fields", func(t *testing.T) {
		repo := &fakeRepo{invoice: testInvoice()}
		gw := &fakeGateway{screenErr: &errs.UpstreamError{Message: "rates unavailable"}}
		svc := newTestService(repo, gw)

		fields, err := svc.GetPaymentOptions(context.Background(), 7)

		assert.Nil(t, fields)
		var upstream *errs.UpstreamError
		require.ErrorAs(t, err, &upstream)
	})
}

func TestAuthorize(t *testing.T) {
	req := dto.AuthorizeRequest{InvoiceID: 7, Currency2: "LTC"}

	t.Run("persists the transaction before calling the provider", func(t *testing.T) {
		repo := &fakeRepo{invoice: testInvoice()}
		gw := &fakeGateway{authResult: gateway.AuthResult{GatewayID: "CP123", StatusURL: "https://provider.example.com/status/1"}}
		svc := newTestService(repo, gw)

		resp, err := svc.Authorize(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, []string{"GetInvoiceByID", "AddTransaction", "UpdateTransactionGatewayID"}, repo.calls)
		assert.Equal(t, []string{"Auth"}, gw.calls)

		assert.NotEmpty(t, repo.addedTransaction.TransactionNumber)
		assert.Equal(t, domain.TransactionStatusPending, repo.addedTransaction.Status)
		assert.Equal(t, repo.addedTransaction.TransactionNumber, gw.authTrx.TransactionNumber)
		assert.Equal(t, int64(42), gw.authTrx.ID)

		require.NotNil(t, repo.updatedGatewayID)
		require.NotNil(t, repo.updatedGatewayID.GatewayID)
		assert.Equal(t, "CP123", *repo.updatedGatewayID.GatewayID)

		assert.Equal(t, "https://provider.example.com/status/1", resp.RedirectURL)
		assert.Equal(t, repo.addedTransaction.TransactionNumber, resp.TransactionNumber)
	})

	t.Run("a provider rejection leaves the transaction pending without a gateway id", func(t *testing.T) {
		repo := &fakeRepo{invoice: testInvoice()}
		gw := &fakeGateway{authErr: &errs.UpstreamError{Message: "Amount too small"}}
		svc := newTestService(repo, gw)

		resp, err := svc.Authorize(context.Background(), req)

		var upstream *errs.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Empty(t, resp.RedirectURL)
		assert.Nil(t, repo.updatedGatewayID)
		assert.Contains(t, repo.calls, "AddTransaction")
	})

	t.Run("invariant violations still halt the request", func(t *testing.T) {
		repo := &fakeRepo{invoice: testInvoice()}
		gw := &fakeGateway{authErr: &errs.InternalInvariantError{Op: "create_transaction"}}
		svc := newTestService(repo, gw)

		_, err := svc.Authorize(context.Background(), req)

		var invariant *errs.InternalInvariantError
		require.ErrorAs(t, err, &invariant)
		assert.Nil(t, repo.updatedGatewayID)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		repo := &fakeRepo{invoiceErr: errs.ErrNotFound}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		_, err := svc.Authorize(context.Background(), req)

		assert.True(t, errors.Is(err, errs.ErrNotFound))
		assert.Empty(t, gw.calls)
	})
}

func TestVoid(t *testing.T) {
	repo := &fakeRepo{transaction: domain.Transaction{ID: 42, TransactionNumber: "trx-1"}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw)

	err := svc.Void(context.Background(), "trx-1")

	require.NoError(t, err)
	assert.True(t, gw.voidCalled)
	assert.Empty(t, repo.updatedStatus)
	assert.Nil(t, repo.updatedGatewayID)
}

func TestHandleIPN(t *testing.T) {
	body := []byte("status=100&merchant=merchant-1&custom=trx-1")
	notification := dto.IPNNotification{Status: 100, Merchant: "merchant-1", Custom: "trx-1"}

	t.Run("a complete status marks the transaction paid", func(t *testing.T) {
		repo := &fakeRepo{transaction: domain.Transaction{ID: 42, TransactionNumber: "trx-1", Status: domain.TransactionStatusPending}}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		err := svc.HandleIPN(context.Background(), "trx-1", notification, body, "sig")
		require.NoError(t, err)

		assert.Equal(t, body, gw.verifiedBody)
		assert.Equal(t, "sig", gw.verifiedSig)
		assert.Equal(t, "merchant-1", gw.verifiedMerchant)

		require.Len(t, repo.updatedStatus, 1)
		assert.Equal(t, domain.TransactionStatusPaid, repo.updatedStatus[0].Status)
		assert.NotNil(t, repo.updatedStatus[0].PaidAt)
	})

	t.Run("an already paid transaction is not updated again", func(t *testing.T) {
		repo := &fakeRepo{transaction: domain.Transaction{ID: 42, Status: domain.TransactionStatusPaid}}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		err := svc.HandleIPN(context.Background(), "trx-1", notification, body, "sig")

		require.NoError(t, err)
		assert.Empty(t, repo.updatedStatus)
	})

	t.Run("a negative status marks the transaction failed", func(t *testing.T) {
		repo := &fakeRepo{transaction: domain.Transaction{ID: 42, Status: domain.TransactionStatusPending}}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		err := svc.HandleIPN(context.Background(), "trx-1", dto.IPNNotification{Status: -1, Merchant: "merchant-1", Custom: "trx-1"}, body, "sig")
		require.NoError(t, err)

		require.Len(t, repo.updatedStatus, 1)
		assert.Equal(t, domain.TransactionStatusFailed, repo.updatedStatus[0].Status)
	})

	t.Run("a late failure notification does not unsettle a paid transaction", func(t *testing.T) {
		repo := &fakeRepo{transaction: domain.Transaction{ID: 42, TransactionNumber: "trx-1", Status: domain.TransactionStatusPaid}}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		err := svc.HandleIPN(context.Background(), "trx-1", dto.IPNNotification{Status: -1, Merchant: "merchant-1", Custom: "trx-1"}, body, "sig")

		require.NoError(t, err)
		assert.Empty(t, repo.updatedStatus)
	})

	t.Run("an intermediate status changes nothing", func(t *testing.T) {
		repo := &fakeRepo{transaction: domain.Transaction{ID: 42, Status: domain.TransactionStatusPending}}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		err := svc.HandleIPN(context.Background(), "trx-1", dto.IPNNotification{Status: 2, Merchant: "merchant-1", Custom: "trx-1"}, body, "sig")

		require.NoError(t, err)
		assert.Empty(t, repo.updatedStatus)
	})

	t.Run("a signed notification for another transaction settles nothing", func(t *testing.T) {
		repo := &fakeRepo{transaction: domain.Transaction{ID: 43, TransactionNumber: "trx-2", Status: domain.TransactionStatusPending}}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		err := svc.HandleIPN(context.Background(), "trx-2", notification, body, "sig")

		assert.True(t, errors.Is(err, errs.ErrIPNTransactionMismatch))
		assert.Empty(t, repo.calls)
		assert.Empty(t, repo.updatedStatus)
	})

	t.Run("a bad signature is rejected before any lookup", func(t *testing.T) {
		repo := &fakeRepo{}
		gw := &fakeGateway{verifyErr: errs.ErrIPNSignatureMismatch}
		svc := newTestService(repo, gw)

		err := svc.HandleIPN(context.Background(), "trx-1", notification, body, "bad")

		assert.True(t, errors.Is(err, errs.ErrIPNSignatureMismatch))
		assert.Empty(t, repo.calls)
	})
}

func TestResolveReturnURL(t *testing.T) {
	repo := &fakeRepo{
		transaction: domain.Transaction{ID: 42, InvoiceID: 7},
		invoice:     testInvoice(),
	}
	svc := newTestService(repo, &fakeGateway{})

	url, err := svc.ResolveReturnURL(context.Background(), "trx-1")

	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/checkout/7", url)
}

func TestUpdateSettings(t *testing.T) {
	blob := []byte(`{"public_key":"pub","private_key":"priv"}`)

	t.Run("tests then persists then reconfigures", func(t *testing.T) {
		repo := &fakeRepo{}
		gw := &fakeGateway{}
		svc := newTestService(repo, gw)

		err := svc.UpdateSettings(context.Background(), blob)
		require.NoError(t, err)

		assert.Equal(t, []string{"TestSettings", "Reconfigure"}, gw.calls)
		assert.Equal(t, "coinpayments", repo.updateSettingsArgs)
		assert.Equal(t, blob, repo.updatedSettings)
		assert.Equal(t, blob, gw.reconfigured)
	})

	t.Run("a failed test blocks the save", func(t *testing.T) {
		repo := &fakeRepo{}
		gw := &fakeGateway{testSettingsErr: &errs.ConfigurationInvalidError{Message: "Invalid API key"}}
		svc := newTestService(repo, gw)

		err := svc.UpdateSettings(context.Background(), blob)

		var config *errs.ConfigurationInvalidError
		require.ErrorAs(t, err, &config)
		assert.Empty(t, repo.calls)
		assert.Nil(t, gw.reconfigured)
	})
}

func TestExpirePendingTransactions(t *testing.T) {
	repo := &fakeRepo{
		pendingExpired: []domain.Transaction{
			{ID: 1, Status: domain.TransactionStatusPending},
			{ID: 2, Status: domain.TransactionStatusPending},
		},
	}
	svc := newTestService(repo, &fakeGateway{})

	svc.ExpirePendingTransactions()

	require.Len(t, repo.updatedStatus, 2)
	assert.Equal(t, domain.TransactionStatusExpired, repo.updatedStatus[0].Status)
	assert.Equal(t, domain.TransactionStatusExpired, repo.updatedStatus[1].Status)
}
