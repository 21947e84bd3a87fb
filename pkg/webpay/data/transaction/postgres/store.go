package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed transaction.Store
func New(db *sql.DB) transaction.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements transaction.Store.Put
func (s *store) Put(ctx context.Context, record *transaction.Record) error {
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

// Update implements transaction.Store.Update
func (s *store) Update(ctx context.Context, record *transaction.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbUpdate(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// GetByUuid implements transaction.Store.GetByUuid
func (s *store) GetByUuid(ctx context.Context, uuid string) (*transaction.Record, error) {
	model, err := dbGetByUuid(ctx, s.db, uuid)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// CountByStatus implements transaction.Store.CountByStatus
func (s *store) CountByStatus(ctx context.Context, status transaction.Status) (uint64, error) {
	return dbCountByStatus(ctx, s.db, status)
}
