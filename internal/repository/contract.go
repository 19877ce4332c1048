package repository

import (
	"context"

	"github.com/nexcommerce/payment-service/internal/domain"
)

type TransactionFilter struct {
	Status  string
	Expired bool
}

type PaymentRepository interface {
	HandleTrx(ctx context.Context, fn func(ctx context.Context, repo PaymentRepository) error) error

	GetInvoiceByID(ctx context.Context, id int64) (domain.Invoice, error)

	AddTransaction(ctx context.Context, data domain.Transaction) (id int64, err error)
	GetTransactionByNumber(ctx context.Context, transactionNumber string) (data domain.Transaction, err error)
	UpdateTransactionGatewayID(ctx context.Context, data domain.Transaction) (err error)
	UpdateTransactionStatus(ctx context.Context, data domain.Transaction) (err error)
	GetTransactions(ctx context.Context, filter TransactionFilter) (data []domain.Transaction, err error)

	GetGatewaySettings(ctx context.Context, gatewayKey string) ([]byte, error)
	UpdateGatewaySettings(ctx context.Context, gatewayKey string, settings []byte) error
}
