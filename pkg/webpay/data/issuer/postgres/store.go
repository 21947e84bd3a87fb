package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed issuer.Store
func New(db *sql.DB) issuer.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements issuer.Store.Put
func (s *store) Put(ctx context.Context, record *issuer.Record) error {
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

// Update implements issuer.Store.Update
func (s *store) Update(ctx context.Context, record *issuer.Record) error {
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

// GetByIssuerKey implements issuer.Store.GetByIssuerKey
func (s *store) GetByIssuerKey(ctx context.Context, issuerKey string) (*issuer.Record, error) {
	model, err := dbGetByIssuerKey(ctx, s.db, issuerKey)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// CountActive implements issuer.Store.CountActive
func (s *store) CountActive(ctx context.Context) (uint64, error) {
	return dbCountActive(ctx, s.db)
}
