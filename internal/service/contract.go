package service

import (
	"context"

	"github.com/nexcommerce/payment-service/internal/dto"
	"github.com/nexcommerce/payment-service/internal/gateway"
)

type PaymentService interface {
	GetPaymentOptions(ctx context.Context, invoiceID int64) ([]gateway.FormField, error)
	Authorize(ctx context.Context, req dto.AuthorizeRequest) (dto.AuthorizeResponse, error)
	Void(ctx context.Context, transactionNumber string) error

	HandleIPN(ctx context.Context, transactionNumber string, notification dto.IPNNotification, rawBody []byte, signature string) error
	ResolveReturnURL(ctx context.Context, transactionNumber string) (string, error)

	GetSettingsForm(ctx context.Context) ([]gateway.FormField, error)
	TestSettings(ctx context.Context, settings []byte) ([]byte, error)
	UpdateSettings(ctx context.Context, settings []byte) error

	ExpirePendingTransactions()
}
