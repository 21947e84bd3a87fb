package notice

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("notice record not found")
	ErrAlreadyExists = errors.New("notice record already exists")
)

// Store is append-only. Delivery results are never rewritten; every Notify
// call leaves exactly one row behind.
type Store interface {
	// Put appends a notice record
	//
	// Returns ErrAlreadyExists if a record with the same notice id exists.
	Put(ctx context.Context, record *Record) error

	// GetAllByTransaction gets all notice records for a transaction uuid,
	// oldest first.
	//
	// Returns ErrNotFound if no records are found.
	GetAllByTransaction(ctx context.Context, transactionUuid string) ([]*Record, error)

	// CountBySuccess counts all notice records by delivery outcome
	CountBySuccess(ctx context.Context, success bool) (uint64, error)
}
