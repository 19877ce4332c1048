package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nexcommerce/payment-service/internal/domain"
	"github.com/nexcommerce/payment-service/pkg/errs"
	"github.com/rs/zerolog/log"
)

type PaymentRepositoryImpl struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

func CreatePaymentRepository(db *sqlx.DB) PaymentRepository {
	return &PaymentRepositoryImpl{
		db: db,
	}
}

func (r *PaymentRepositoryImpl) conn() sqlx.ExtContext {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *PaymentRepositoryImpl) GetInvoiceByID(ctx context.Context, id int64) (data domain.Invoice, err error) {
	err = sqlx.GetContext(ctx, r.conn(), &data, "SELECT id, member_id, currency, total, checkout_url, guest_first_name, guest_last_name, guest_email, created_at, updated_at, deleted_at FROM invoices WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		log.Error().Err(err).Str("component", "GetInvoiceByID").Msg("")
		if err == sql.ErrNoRows {
			return data, errs.ErrNotFound
		}
		return data, errs.ErrInternalServer
	}

	err = sqlx.SelectContext(ctx, r.conn(), &data.Items, "SELECT id, invoice_id, name, quantity, amount, created_at, updated_at FROM invoice_items WHERE invoice_id = $1 ORDER BY id", id)
	if err != nil {
		log.Error().Err(err).Str("component", "GetInvoiceByID").Msg("")
		return data, errs.ErrInternalServer
	}

	if data.MemberID != nil {
		member := domain.Member{}
		err = sqlx.GetContext(ctx, r.conn(), &member, "SELECT id, first_name, last_name, email, created_at, updated_at FROM members WHERE id = $1", *data.MemberID)
		if err != nil {
			log.Error().Err(err).Str("component", "GetInvoiceByID").Msg("")
			if err != sql.ErrNoRows {
				return data, errs.ErrInternalServer
			}
			err = nil
		} else {
			data.Member = &member
		}
	}

	return data, nil
}

func (r *PaymentRepositoryImpl) AddTransaction(ctx context.Context, data domain.Transaction) (id int64, err error) {
	query := "INSERT INTO transactions(transaction_number, invoice_id, amount, currency, status, created_at, updated_at) VALUES (:transaction_number, :invoice_id, :amount, :currency, :status, :created_at, :updated_at) returning id"

	rows, err := sqlx.NamedQueryContext(ctx, r.conn(), query, data)
	if err != nil {
		log.Error().Err(err).Str("component", "AddTransaction").Msg("")
		return 0, err
	}
	defer rows.Close()

	if rows.Next() {
		if err = rows.Scan(&id); err != nil {
			log.Error().Err(err).Str("component", "AddTransaction").Msg("")
			return 0, err
		}
	}

	return id, nil
}

func (r *PaymentRepositoryImpl) GetTransactionByNumber(ctx context.Context, transactionNumber string) (data domain.Transaction, err error) {
	err = sqlx.GetContext(ctx, r.conn(), &data, "SELECT * FROM transactions WHERE transaction_number = $1 AND deleted_at IS NULL", transactionNumber)
	if err != nil {
		log.Error().Err(err).Str("component", "GetTransactionByNumber").Msg("")
		if err == sql.ErrNoRows {
			return data, errs.ErrNotFound
		}
		return data, errs.ErrInternalServer
	}

	return data, nil
}

func (r *PaymentRepositoryImpl) UpdateTransactionGatewayID(ctx context.Context, data domain.Transaction) (err error) {
	data.UpdatedAt = time.Now().Unix()
	_, err = sqlx.NamedExecContext(ctx, r.conn(), "UPDATE transactions SET gw_id = :gw_id, expired_at = :expired_at, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL", data)
	if err != nil {
		log.Error().Err(err).Str("component", "UpdateTransactionGatewayID").Msg("")
		return err
	}

	return nil
}

func (r *PaymentRepositoryImpl) UpdateTransactionStatus(ctx context.Context, data domain.Transaction) (err error) {
	data.UpdatedAt = time.Now().Unix()
	_, err = sqlx.NamedExecContext(ctx, r.conn(), "UPDATE transactions SET status = :status, paid_at = :paid_at, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL", data)
	if err != nil {
		log.Error().Err(err).Str("component", "UpdateTransactionStatus").Msg("")
		return err
	}

	return nil
}

func (r *PaymentRepositoryImpl) GetTransactions(ctx context.Context, filter TransactionFilter) (data []domain.Transaction, err error) {
	query := "SELECT * FROM transactions WHERE deleted_at IS NULL"
	args := map[string]interface{}{}

	if filter.Status != "" {
		query += " AND status = :status"
		args["status"] = filter.Status
	}

	if filter.Expired {
		query += " AND expired_at IS NOT NULL AND expired_at < :now"
		args["now"] = time.Now().Unix()
	}

	rows, err := sqlx.NamedQueryContext(ctx, r.conn(), query, args)
	if err != nil {
		log.Error().Err(err).Str("component", "GetTransactions").Msg("")
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		trx := domain.Transaction{}
		if err = rows.StructScan(&trx); err != nil {
			log.Error().Err(err).Str("component", "GetTransactions").Msg("")
			return nil, err
		}
		data = append(data, trx)
	}

	return data, nil
}

func (r *PaymentRepositoryImpl) GetGatewaySettings(ctx context.Context, gatewayKey string) (settings []byte, err error) {
	err = sqlx.GetContext(ctx, r.conn(), &settings, "SELECT settings FROM gateway_settings WHERE gateway = $1", gatewayKey)
	if err != nil {
		log.Error().Err(err).Str("component", "GetGatewaySettings").Msg("")
		if err == sql.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, errs.ErrInternalServer
	}

	return settings, nil
}

func (r *PaymentRepositoryImpl) UpdateGatewaySettings(ctx context.Context, gatewayKey string, settings []byte) (err error) {
	_, err = r.conn().ExecContext(ctx, "INSERT INTO gateway_settings(gateway, settings, updated_at) VALUES ($1, $2, $3) ON CONFLICT (gateway) DO UPDATE SET settings = $2, updated_at = $3", gatewayKey, settings, time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Str("component", "UpdateGatewaySettings").Msg("")
		return err
	}

	return nil
}

func (r *PaymentRepositoryImpl) HandleTrx(ctx context.Context, fn func(ctx context.Context, repo PaymentRepository) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	txRepo := &PaymentRepositoryImpl{
		tx: tx,
	}

	err = fn(ctx, txRepo)

	if err != nil {
		return err
	}

	return nil
}
