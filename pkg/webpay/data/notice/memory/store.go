package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mozpay/webpay-server/pkg/webpay/data/notice"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*notice.Record
}

// New returns a new in memory notice.Store
func New() notice.Store {
	return &store{}
}

// Put implements notice.Store.Put
func (s *store) Put(_ context.Context, data *notice.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	for _, item := range s.records {
		if item.NoticeId == data.NoticeId {
			return notice.ErrAlreadyExists
		}
	}

	if data.Id == 0 {
		data.Id = s.last
	}
	data.CreatedAt = time.Now()

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// GetAllByTransaction implements notice.Store.GetAllByTransaction
func (s *store) GetAllByTransaction(_ context.Context, transactionUuid string) ([]*notice.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*notice.Record
	for _, item := range s.records {
		if item.TransactionUuid == transactionUuid {
			cloned := item.Clone()
			res = append(res, &cloned)
		}
	}

	if len(res) == 0 {
		return nil, notice.ErrNotFound
	}
	return res, nil
}

// CountBySuccess implements notice.Store.CountBySuccess
func (s *store) CountBySuccess(_ context.Context, success bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.records {
		if item.Success == success {
			count++
		}
	}
	return count, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = nil
}
