package issuer

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("issuer record not found")
	ErrAlreadyExists = errors.New("issuer record already exists")
)

type Store interface {
	// Put creates an issuer record
	//
	// Returns ErrAlreadyExists if a record with the same issuer key exists.
	Put(ctx context.Context, record *Record) error

	// Update updates an issuer record
	//
	// Returns ErrNotFound if no record exists.
	Update(ctx context.Context, record *Record) error

	// GetByIssuerKey finds the record for a given issuer key
	//
	// Returns ErrNotFound if no record is found.
	GetByIssuerKey(ctx context.Context, issuerKey string) (*Record, error)

	// CountActive counts all active issuer records
	CountActive(ctx context.Context) (uint64, error)
}
