package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/mozpay/webpay-server/pkg/database/postgres"
	"github.com/mozpay/webpay-server/pkg/pointer"
	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
)

const (
	tableName = "webpay__core_transaction"

	allFields = `id, uuid, transaction_type, status, issuer_key, amount, currency, product_name, product_description, json_request, notify_url, pay_url, billing_id, created_at, updated_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Uuid      string `db:"uuid"`
	Type      uint8  `db:"transaction_type"`
	Status    uint8  `db:"status"`
	IssuerKey string `db:"issuer_key"`

	Amount   string `db:"amount"`
	Currency string `db:"currency"`

	ProductName        string `db:"product_name"`
	ProductDescription string `db:"product_description"`

	JSONRequest string `db:"json_request"`
	NotifyURL   string `db:"notify_url"`

	PayURL    sql.NullString `db:"pay_url"`
	BillingID sql.NullString `db:"billing_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toModel(obj *transaction.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Uuid:      obj.Uuid,
		Type:      uint8(obj.Type),
		Status:    uint8(obj.Status),
		IssuerKey: obj.IssuerKey,

		Amount:   obj.Amount,
		Currency: obj.Currency,

		ProductName:        obj.ProductName,
		ProductDescription: obj.ProductDescription,

		JSONRequest: obj.JSONRequest,
		NotifyURL:   obj.NotifyURL,

		PayURL: sql.NullString{
			Valid:  obj.PayURL != nil,
			String: *pointer.StringOrDefault(obj.PayURL, ""),
		},
		BillingID: sql.NullString{
			Valid:  obj.BillingID != nil,
			String: *pointer.StringOrDefault(obj.BillingID, ""),
		},

		CreatedAt: obj.CreatedAt,
		UpdatedAt: obj.UpdatedAt,
	}, nil
}

func fromModel(obj *model) *transaction.Record {
	return &transaction.Record{
		Id: uint64(obj.Id.Int64),

		Uuid:      obj.Uuid,
		Type:      transaction.Type(obj.Type),
		Status:    transaction.Status(obj.Status),
		IssuerKey: obj.IssuerKey,

		Amount:   obj.Amount,
		Currency: obj.Currency,

		ProductName:        obj.ProductName,
		ProductDescription: obj.ProductDescription,

		JSONRequest: obj.JSONRequest,
		NotifyURL:   obj.NotifyURL,

		PayURL:    pointer.StringIfValid(obj.PayURL.Valid, obj.PayURL.String),
		BillingID: pointer.StringIfValid(obj.BillingID.Valid, obj.BillingID.String),

		CreatedAt: obj.CreatedAt,
		UpdatedAt: obj.UpdatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(uuid, transaction_type, status, issuer_key, amount, currency, product_name, product_description, json_request, notify_url, pay_url, billing_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING ` + allFields + `
		`

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		m.UpdatedAt = m.CreatedAt

		return tx.QueryRowxContext(
			ctx,
			query,
			m.Uuid,
			m.Type,
			m.Status,
			m.IssuerKey,
			m.Amount,
			m.Currency,
			m.ProductName,
			m.ProductDescription,
			m.JSONRequest,
			m.NotifyURL,
			m.PayURL,
			m.BillingID,
			m.CreatedAt,
			m.UpdatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, transaction.ErrAlreadyExists)
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		var current model
		query := `SELECT ` + allFields + ` FROM ` + tableName + `
			WHERE uuid = $1
			FOR UPDATE
		`
		err := tx.GetContext(ctx, &current, query, m.Uuid)
		if err != nil {
			return err
		}

		currentRecord := fromModel(&current)
		if !currentRecord.CanTransitionTo(transaction.Status(m.Status)) {
			return transaction.ErrInvalidStatusTransition
		}

		query = `UPDATE ` + tableName + `
			SET status = $2, amount = $3, currency = $4, pay_url = $5, billing_id = $6, updated_at = $7
			WHERE uuid = $1
			RETURNING ` + allFields + `
		`
		return tx.QueryRowxContext(
			ctx,
			query,
			m.Uuid,
			m.Status,
			m.Amount,
			m.Currency,
			m.PayURL,
			m.BillingID,
			time.Now(),
		).StructScan(m)
	})
	return pgutil.CheckNoRows(err, transaction.ErrNotFound)
}

func dbGetByUuid(ctx context.Context, db *sqlx.DB, uuid string) (*model, error) {
	var res model
	query := `SELECT ` + allFields + ` FROM ` + tableName + `
		WHERE uuid = $1
	`

	err := db.GetContext(ctx, &res, query, uuid)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, transaction.ErrNotFound)
	}
	return &res, nil
}

func dbCountByStatus(ctx context.Context, db *sqlx.DB, status transaction.Status) (uint64, error) {
	var res uint64
	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE status = $1
	`

	err := db.GetContext(ctx, &res, query, status)
	if err != nil {
		return 0, err
	}
	return res, nil
}
