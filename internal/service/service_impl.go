package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nexcommerce/payment-service/config"
	"github.com/nexcommerce/payment-service/internal/domain"
	"github.com/nexcommerce/payment-service/internal/dto"
	"github.com/nexcommerce/payment-service/internal/gateway"
	"github.com/nexcommerce/payment-service/internal/repository"
	"github.com/nexcommerce/payment-service/pkg/errs"
	"github.com/nexcommerce/payment-service/pkg/utils"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"gopkg.in/gomail.v2"
)

const gatewayKey = "coinpayments"

type PaymentServiceImpl struct {
	repository    repository.PaymentRepository
	gateway       gateway.Gateway
	kafkaProducer *kafka.Conn
	config        *config.Config
}

func CreatePaymentService(repository repository.PaymentRepository, gw gateway.Gateway, kafkaProducer *kafka.Conn, config *config.Config) PaymentService {
	return &PaymentServiceImpl{
		repository:    repository,
		gateway:       gw,
		kafkaProducer: kafkaProducer,
		config:        config,
	}
}

func (s *PaymentServiceImpl) GetPaymentOptions(ctx context.Context, invoiceID int64) ([]gateway.FormField, error) {
	invoice, err := s.repository.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	amount := domain.Money{Amount: invoice.Total, Currency: invoice.Currency}

	fields, err := s.gateway.PaymentScreen(ctx, invoice, amount, invoice.Member, nil, gateway.SourceCheckout)
	if err != nil {
		log.Error().Err(err).Str("component", "GetPaymentOptions").Msg("")
		return nil, err
	}

	return fields, nil
}

// Authorize persists a pending transaction first, then creates the remote
// one. The ordering is load-bearing: the provider's callback URLs embed the
// transaction number, so it must be durable before the outbound call. If the
// provider rejects the request the row stays pending with no gateway id and
// the buyer can simply try again.
func (s *PaymentServiceImpl) Authorize(ctx context.Context, req dto.AuthorizeRequest) (response dto.AuthorizeResponse, err error) {
	invoice, err := s.repository.GetInvoiceByID(ctx, req.InvoiceID)
	if err != nil {
		return response, err
	}

	trxNumber, err := uuid.NewV7()
	if err != nil {
		return response, errs.ErrInternalServer
	}

	trx := domain.Transaction{
		TransactionNumber: trxNumber.String(),
		InvoiceID:         invoice.ID,
		Amount:            invoice.Total,
		Currency:          invoice.Currency,
		Status:            domain.TransactionStatusPending,
		CreatedAt:         time.Now().Unix(),
		UpdatedAt:         time.Now().Unix(),
	}

	trx.ID, err = s.repository.AddTransaction(ctx, trx)
	if err != nil {
		return response, err
	}

	values := map[string]string{
		"coinpayments_currency2": req.Currency2,
	}

	result, err := s.gateway.Auth(ctx, trx, invoice, values, nil, nil, gateway.SourceCheckout)
	if err != nil {
		var invariant *errs.InternalInvariantError
		if errors.As(err, &invariant) {
			s.sendDebugEmail(invariant)
		}
		return response, err
	}

	trx.GatewayID = &result.GatewayID
	trx.ExpiredAt = result.ExpiresAt
	if err = s.repository.UpdateTransactionGatewayID(ctx, trx); err != nil {
		return response, err
	}

	response.TransactionNumber = trx.TransactionNumber
	response.RedirectURL = result.StatusURL

	return response, nil
}

// Void is a pass-through for this gateway; the transaction record is not
// touched and the provider is not called.
func (s *PaymentServiceImpl) Void(ctx context.Context, transactionNumber string) error {
	trx, err := s.repository.GetTransactionByNumber(ctx, transactionNumber)
	if err != nil {
		return err
	}

	return s.gateway.Void(ctx, trx)
}

// HandleIPN reconciles an asynchronous settlement notification. The raw body
// signature is verified before anything else, and the signed custom field
// must name the addressed transaction: the signature only proves the body
// came from the provider, not that it belongs to the transaction in the URL.
// A complete status marks the transaction paid and publishes a payment
// event, a negative status marks it failed, intermediate confirmations are
// ignored.
func (s *PaymentServiceImpl) HandleIPN(ctx context.Context, transactionNumber string, notification dto.IPNNotification, rawBody []byte, signature string) error {
	if err := s.gateway.VerifyNotification(rawBody, signature, notification.Merchant); err != nil {
		log.Error().Err(err).Str("component", "HandleIPN").Str("transaction_number", transactionNumber).Msg("")
		return err
	}

	if notification.Custom != transactionNumber {
		log.Error().Err(errs.ErrIPNTransactionMismatch).Str("component", "HandleIPN").Str("transaction_number", transactionNumber).Str("custom", notification.Custom).Msg("")
		return errs.ErrIPNTransactionMismatch
	}

	trx, err := s.repository.GetTransactionByNumber(ctx, transactionNumber)
	if err != nil {
		return err
	}

	switch {
	case notification.Status >= dto.IPNStatusComplete:
		if trx.Status == domain.TransactionStatusPaid {
			return nil
		}

		paidAt := time.Now().Unix()
		trx.Status = domain.TransactionStatusPaid
		trx.PaidAt = &paidAt
		if err = s.repository.UpdateTransactionStatus(ctx, trx); err != nil {
			return err
		}

		s.publishPaymentEvent(trx)
	case notification.Status < 0:
		// Paid is terminal; a late or replayed failure notification must
		// not unsettle the transaction.
		if trx.Status == domain.TransactionStatusPaid {
			return nil
		}

		trx.Status = domain.TransactionStatusFailed
		if err = s.repository.UpdateTransactionStatus(ctx, trx); err != nil {
			return err
		}
	default:
		log.Info().Str("component", "HandleIPN").Str("transaction_number", transactionNumber).Int("status", notification.Status).Msg("intermediate confirmation state")
	}

	return nil
}

// ResolveReturnURL is where the buyer lands after the provider's hosted page
// sends them back: the originating invoice's checkout page.
func (s *PaymentServiceImpl) ResolveReturnURL(ctx context.Context, transactionNumber string) (string, error) {
	trx, err := s.repository.GetTransactionByNumber(ctx, transactionNumber)
	if err != nil {
		return "", err
	}

	invoice, err := s.repository.GetInvoiceByID(ctx, trx.InvoiceID)
	if err != nil {
		return "", err
	}

	return invoice.CheckoutURL, nil
}

func (s *PaymentServiceImpl) GetSettingsForm(ctx context.Context) ([]gateway.FormField, error) {
	return s.gateway.SettingsFields(), nil
}

func (s *PaymentServiceImpl) TestSettings(ctx context.Context, settings []byte) ([]byte, error) {
	return s.gateway.TestSettings(ctx, settings)
}

// UpdateSettings tests the candidate settings first; a failed test blocks
// the save.
func (s *PaymentServiceImpl) UpdateSettings(ctx context.Context, settings []byte) error {
	validated, err := s.gateway.TestSettings(ctx, settings)
	if err != nil {
		return err
	}

	if err = s.repository.UpdateGatewaySettings(ctx, gatewayKey, validated); err != nil {
		return err
	}

	return s.gateway.Reconfigure(validated)
}

// ExpirePendingTransactions marks pending transactions whose provider
// payment window has lapsed. Runs on a schedule.
func (s *PaymentServiceImpl) ExpirePendingTransactions() {
	log.Info().Str("component", "ExpirePendingTransactions").Msg("cron starts")

	transactions, err := s.repository.GetTransactions(context.Background(), repository.TransactionFilter{
		Status:  domain.TransactionStatusPending,
		Expired: true,
	})
	if err != nil {
		return
	}

	for _, trx := range transactions {
		trx.Status = domain.TransactionStatusExpired
		if err = s.repository.UpdateTransactionStatus(context.Background(), trx); err != nil {
			return
		}
	}

	log.Info().Str("component", "ExpirePendingTransactions").Msg("cron ends")
}

func (s *PaymentServiceImpl) publishPaymentEvent(trx domain.Transaction) {
	if s.kafkaProducer == nil {
		return
	}

	gatewayID := ""
	if trx.GatewayID != nil {
		gatewayID = *trx.GatewayID
	}

	kafkaMsg := dto.KafkaMessage{
		EventType: "payment_completed",
		Data: dto.PaymentEvent{
			TransactionNumber: trx.TransactionNumber,
			InvoiceID:         trx.InvoiceID,
			GatewayID:         gatewayID,
			Amount:            trx.Amount,
			Currency:          trx.Currency,
			Status:            trx.Status,
			PaidAt:            trx.PaidAt,
		},
	}

	jsonMsg, err := json.Marshal(kafkaMsg)
	if err != nil {
		log.Error().Err(err).Str("component", "publishPaymentEvent").Msg("")
		return
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		err = s.writeKafkaMessageWithKey(jsonMsg, trx.TransactionNumber)
		if err == nil {
			return
		}
		log.Error().Err(err).Str("component", "publishPaymentEvent").Msg("")
		time.Sleep(time.Second * time.Duration(i+1))
	}
}

func (s *PaymentServiceImpl) writeKafkaMessageWithKey(msg []byte, key string) error {
	_, err := s.kafkaProducer.WriteMessages(
		kafka.Message{
			Key:   []byte(key),
			Value: msg,
		},
	)
	return err
}

// sendDebugEmail alerts the configured operator address when the provider
// breaks its response contract. Best effort; failures are only logged.
func (s *PaymentServiceImpl) sendDebugEmail(invariant *errs.InternalInvariantError) {
	debugEmail := ""
	for _, field := range s.gateway.SettingsFields() {
		if field.Name == "coinpayments_debug_email" {
			debugEmail = field.Default
		}
	}

	if debugEmail == "" || s.config.SMTPConfig.Host == "" {
		return
	}

	message := gomail.NewMessage()
	message.SetHeader("From", s.config.SMTPConfig.Sender)
	message.SetHeader("To", debugEmail)
	message.SetHeader("Subject", "Payment gateway contract violation")
	message.SetBody("text/plain", invariant.Error())

	if err := utils.SendEmail(message, s.config.SMTPConfig.Sender, s.config.SMTPConfig.Password, s.config.SMTPConfig.Host, s.config.SMTPConfig.Port); err != nil {
		log.Error().Err(err).Str("component", "sendDebugEmail").Msg("")
	}
}
