package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/mozpay/webpay-server/pkg/webpay/data/notice"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed notice.Store
func New(db *sql.DB) notice.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements notice.Store.Put
func (s *store) Put(ctx context.Context, record *notice.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbPut(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// GetAllByTransaction implements notice.Store.GetAllByTransaction
func (s *store) GetAllByTransaction(ctx context.Context, transactionUuid string) ([]*notice.Record, error) {
	models, err := dbGetAllByTransaction(ctx, s.db, transactionUuid)
	if err != nil {
		return nil, err
	}

	var res []*notice.Record
	for _, model := range models {
		res = append(res, fromModel(model))
	}
	return res, nil
}

// CountBySuccess implements notice.Store.CountBySuccess
func (s *store) CountBySuccess(ctx context.Context, success bool) (uint64, error) {
	return dbCountBySuccess(ctx, s.db, success)
}
