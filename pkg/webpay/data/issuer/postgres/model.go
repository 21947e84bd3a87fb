package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/mozpay/webpay-server/pkg/database/postgres"
	"github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
)

const (
	tableName = "webpay__core_issuer"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	IssuerKey string `db:"issuer_key"`
	Domain    string `db:"domain"`

	PostbackPath   string `db:"postback_path"`
	ChargebackPath string `db:"chargeback_path"`
	RequireHTTPS   bool   `db:"require_https"`

	EncryptedSecret []byte `db:"encrypted_secret"`
	KeyTimestamp    int64  `db:"key_timestamp"`

	Access uint8 `db:"access"`
	Active bool  `db:"active"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *issuer.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		IssuerKey: obj.IssuerKey,
		Domain:    obj.Domain,

		PostbackPath:   obj.PostbackPath,
		ChargebackPath: obj.ChargebackPath,
		RequireHTTPS:   obj.RequireHTTPS,

		EncryptedSecret: obj.EncryptedSecret,
		KeyTimestamp:    obj.KeyTimestamp,

		Access: uint8(obj.Access),
		Active: obj.Active,

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *issuer.Record {
	return &issuer.Record{
		Id: uint64(obj.Id.Int64),

		IssuerKey: obj.IssuerKey,
		Domain:    obj.Domain,

		PostbackPath:   obj.PostbackPath,
		ChargebackPath: obj.ChargebackPath,
		RequireHTTPS:   obj.RequireHTTPS,

		EncryptedSecret: obj.EncryptedSecret,
		KeyTimestamp:    obj.KeyTimestamp,

		Access: issuer.Access(obj.Access),
		Active: obj.Active,

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(issuer_key, domain, postback_path, chargeback_path, require_https, encrypted_secret, key_timestamp, access, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, issuer_key, domain, postback_path, chargeback_path, require_https, encrypted_secret, key_timestamp, access, active, created_at
		`

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.IssuerKey,
			m.Domain,
			m.PostbackPath,
			m.ChargebackPath,
			m.RequireHTTPS,
			m.EncryptedSecret,
			m.KeyTimestamp,
			m.Access,
			m.Active,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, issuer.ErrAlreadyExists)
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET domain = $2, postback_path = $3, chargeback_path = $4, require_https = $5, encrypted_secret = $6, key_timestamp = $7, access = $8, active = $9
			WHERE issuer_key = $1
			RETURNING id, issuer_key, domain, postback_path, chargeback_path, require_https, encrypted_secret, key_timestamp, access, active, created_at
		`

		return tx.QueryRowxContext(
			ctx,
			query,
			m.IssuerKey,
			m.Domain,
			m.PostbackPath,
			m.ChargebackPath,
			m.RequireHTTPS,
			m.EncryptedSecret,
			m.KeyTimestamp,
			m.Access,
			m.Active,
		).StructScan(m)
	})
	return pgutil.CheckNoRows(err, issuer.ErrNotFound)
}

func dbGetByIssuerKey(ctx context.Context, db *sqlx.DB, issuerKey string) (*model, error) {
	var res model
	query := `SELECT id, issuer_key, domain, postback_path, chargeback_path, require_https, encrypted_secret, key_timestamp, access, active, created_at FROM ` + tableName + `
		WHERE issuer_key = $1
	`

	err := db.GetContext(ctx, &res, query, issuerKey)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, issuer.ErrNotFound)
	}
	return &res, nil
}

func dbCountActive(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64
	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE active
	`

	err := db.GetContext(ctx, &res, query)
	if err != nil {
		return 0, err
	}
	return res, nil
}
