package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mozpay/webpay-server/pkg/pointer"
	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*transaction.Record
}

// New returns a new in memory transaction.Store
func New() transaction.Store {
	return &store{}
}

// Put implements transaction.Store.Put
func (s *store) Put(_ context.Context, data *transaction.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	if item := s.findByUuid(data.Uuid); item != nil {
		return transaction.ErrAlreadyExists
	}

	if data.Id == 0 {
		data.Id = s.last
	}
	data.CreatedAt = time.Now()
	data.UpdatedAt = data.CreatedAt

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// Update implements transaction.Store.Update
func (s *store) Update(_ context.Context, data *transaction.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByUuid(data.Uuid)
	if item == nil {
		return transaction.ErrNotFound
	}

	if !item.CanTransitionTo(data.Status) {
		return transaction.ErrInvalidStatusTransition
	}

	item.Status = data.Status
	item.Amount = data.Amount
	item.Currency = data.Currency
	item.PayURL = pointer.StringCopy(data.PayURL)
	item.BillingID = pointer.StringCopy(data.BillingID)
	item.UpdatedAt = time.Now()

	item.CopyTo(data)

	return nil
}

// GetByUuid implements transaction.Store.GetByUuid
func (s *store) GetByUuid(_ context.Context, uuid string) (*transaction.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByUuid(uuid)
	if item == nil {
		return nil, transaction.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// CountByStatus implements transaction.Store.CountByStatus
func (s *store) CountByStatus(_ context.Context, status transaction.Status) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.records {
		if item.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *store) findByUuid(uuid string) *transaction.Record {
	for _, item := range s.records {
		if item.Uuid == uuid {
			return item
		}
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = nil
}
