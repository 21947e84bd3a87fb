package notice

import (
	"time"

	"github.com/pkg/errors"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindPayment
	KindChargeback
)

// MaxLastErrorLength bounds the persisted failure description
const MaxLastErrorLength = 255

// Ledger entry for a single notice delivery. Exactly one row is appended per
// delivery, regardless of how many transport attempts it took.
type Record struct {
	Id uint64

	NoticeId        string
	TransactionUuid string
	Url             string
	Kind            Kind

	Success   bool
	Attempts  uint8
	LastError string

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if len(r.NoticeId) == 0 {
		return errors.New("notice id is required")
	}

	if len(r.TransactionUuid) == 0 {
		return errors.New("transaction uuid is required")
	}

	if len(r.Url) == 0 {
		return errors.New("url is required")
	}

	if r.Kind == KindUnknown {
		return errors.New("kind is required")
	}

	if len(r.LastError) > MaxLastErrorLength {
		return errors.New("last error exceeds max length")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		NoticeId:        r.NoticeId,
		TransactionUuid: r.TransactionUuid,
		Url:             r.Url,
		Kind:            r.Kind,

		Success:   r.Success,
		Attempts:  r.Attempts,
		LastError: r.LastError,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.NoticeId = r.NoticeId
	dst.TransactionUuid = r.TransactionUuid
	dst.Url = r.Url
	dst.Kind = r.Kind

	dst.Success = r.Success
	dst.Attempts = r.Attempts
	dst.LastError = r.LastError

	dst.CreatedAt = r.CreatedAt
}

func (k Kind) String() string {
	switch k {
	case KindPayment:
		return "payment"
	case KindChargeback:
		return "chargeback"
	}
	return "unknown"
}
