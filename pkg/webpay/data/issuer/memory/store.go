package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*issuer.Record
}

// New returns a new in memory issuer.Store
func New() issuer.Store {
	return &store{}
}

// Put implements issuer.Store.Put
func (s *store) Put(_ context.Context, data *issuer.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	if item := s.findByIssuerKey(data.IssuerKey); item != nil {
		return issuer.ErrAlreadyExists
	}

	if data.Id == 0 {
		data.Id = s.last
	}
	data.CreatedAt = time.Now()

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// Update implements issuer.Store.Update
func (s *store) Update(_ context.Context, data *issuer.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByIssuerKey(data.IssuerKey)
	if item == nil {
		return issuer.ErrNotFound
	}

	item.Domain = data.Domain
	item.PostbackPath = data.PostbackPath
	item.ChargebackPath = data.ChargebackPath
	item.RequireHTTPS = data.RequireHTTPS
	item.EncryptedSecret = make([]byte, len(data.EncryptedSecret))
	copy(item.EncryptedSecret, data.EncryptedSecret)
	item.KeyTimestamp = data.KeyTimestamp
	item.Access = data.Access
	item.Active = data.Active

	item.CopyTo(data)

	return nil
}

// GetByIssuerKey implements issuer.Store.GetByIssuerKey
func (s *store) GetByIssuerKey(_ context.Context, issuerKey string) (*issuer.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByIssuerKey(issuerKey)
	if item == nil {
		return nil, issuer.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// CountActive implements issuer.Store.CountActive
func (s *store) CountActive(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.records {
		if item.Active {
			count++
		}
	}
	return count, nil
}

func (s *store) findByIssuerKey(issuerKey string) *issuer.Record {
	for _, item := range s.records {
		if item.IssuerKey == issuerKey {
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
