package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/mozpay/webpay-server/pkg/database/postgres"
	"github.com/mozpay/webpay-server/pkg/webpay/data/notice"
)

const (
	tableName = "webpay__core_notice"

	allFields = `id, notice_id, transaction_uuid, url, kind, success, attempts, last_error, created_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	NoticeId        string `db:"notice_id"`
	TransactionUuid string `db:"transaction_uuid"`
	Url             string `db:"url"`
	Kind            uint8  `db:"kind"`

	Success   bool   `db:"success"`
	Attempts  uint8  `db:"attempts"`
	LastError string `db:"last_error"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *notice.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		NoticeId:        obj.NoticeId,
		TransactionUuid: obj.TransactionUuid,
		Url:             obj.Url,
		Kind:            uint8(obj.Kind),

		Success:   obj.Success,
		Attempts:  obj.Attempts,
		LastError: obj.LastError,

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *notice.Record {
	return &notice.Record{
		Id: uint64(obj.Id.Int64),

		NoticeId:        obj.NoticeId,
		TransactionUuid: obj.TransactionUuid,
		Url:             obj.Url,
		Kind:            notice.Kind(obj.Kind),

		Success:   obj.Success,
		Attempts:  obj.Attempts,
		LastError: obj.LastError,

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(notice_id, transaction_uuid, url, kind, success, attempts, last_error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + allFields + `
		`

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.NoticeId,
			m.TransactionUuid,
			m.Url,
			m.Kind,
			m.Success,
			m.Attempts,
			m.LastError,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, notice.ErrAlreadyExists)
}

func dbGetAllByTransaction(ctx context.Context, db *sqlx.DB, transactionUuid string) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allFields + ` FROM ` + tableName + `
		WHERE transaction_uuid = $1
		ORDER BY id ASC
	`

	err := db.SelectContext(ctx, &res, query, transactionUuid)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, notice.ErrNotFound)
	} else if len(res) == 0 {
		return nil, notice.ErrNotFound
	}
	return res, nil
}

func dbCountBySuccess(ctx context.Context, db *sqlx.DB, success bool) (uint64, error) {
	var res uint64
	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE success = $1
	`

	err := db.GetContext(ctx, &res, query, success)
	if err != nil {
		return 0, err
	}
	return res, nil
}
