package transaction

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("transaction record not found")
	ErrAlreadyExists = errors.New("transaction record already exists")
)

type Store interface {
	// Put creates a transaction record
	//
	// Returns ErrAlreadyExists if a record with the same uuid exists.
	Put(ctx context.Context, record *Record) error

	// Update updates a transaction record
	//
	// Returns ErrNotFound if no record exists, and
	// ErrInvalidStatusTransition if the update would move the transaction
	// backwards.
	Update(ctx context.Context, record *Record) error

	// GetByUuid finds the record for a given transaction uuid
	//
	// Returns ErrNotFound if no record is found.
	GetByUuid(ctx context.Context, uuid string) (*Record, error)

	// CountByStatus counts all transaction records with a provided status
	CountByStatus(ctx context.Context, status Status) (uint64, error)
}
