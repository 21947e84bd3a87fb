package transaction

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mozpay/webpay-server/pkg/pointer"
)

type Type uint8

const (
	TypeUnknown Type = iota
	TypePayment
	TypeRefund
)

type Status uint8

const (
	StatusUnknown   Status = iota
	StatusPending          // Billing configuration in flight
	StatusChecked          // Provider flow passed fraud checks
	StatusReceived         // Provider reported payment received
	StatusCompleted        // Payment completed successfully
	StatusFailed           // Provider reported failure
	StatusCancelled        // Buyer cancelled the flow
	StatusErrored          // Configuration raised an error
)

// Local mirror of a billing backend transaction. The billing backend owns
// the canonical state; this record exists so notices and status polling
// don't round trip on every read.
type Record struct {
	Id uint64

	Uuid      string
	Type      Type
	Status    Status
	IssuerKey string

	Amount   string
	Currency string

	ProductName        string
	ProductDescription string

	JSONRequest string
	NotifyURL   string

	PayURL    *string
	BillingID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// statusRank orders statuses so updates can't move a transaction backwards.
// Terminal statuses share the highest rank.
var statusRank = map[Status]int{
	StatusPending:   1,
	StatusChecked:   2,
	StatusReceived:  3,
	StatusCompleted: 4,
	StatusFailed:    4,
	StatusCancelled: 4,
	StatusErrored:   4,
}

// ErrInvalidStatusTransition indicates an update would move a transaction
// backwards or out of a terminal status.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// CanTransitionTo reports whether the record may move to the provided status.
func (r *Record) CanTransitionTo(next Status) bool {
	if r.Status == next {
		return true
	}

	currentRank, ok := statusRank[r.Status]
	if !ok {
		return false
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}

	// Terminal statuses never change
	if currentRank == statusRank[StatusCompleted] {
		return false
	}

	return nextRank >= currentRank
}

// IsRetryOK reports whether a new payment attempt may replace this
// transaction with a freshly minted one.
func (r *Record) IsRetryOK() bool {
	switch r.Status {
	case StatusFailed, StatusCancelled, StatusErrored:
		return true
	}
	return false
}

func (r *Record) Validate() error {
	if len(r.Uuid) == 0 {
		return errors.New("uuid is required")
	}

	if r.Type == TypeUnknown {
		return errors.New("type is required")
	}

	if r.Status == StatusUnknown {
		return errors.New("status is required")
	}

	if len(r.IssuerKey) == 0 {
		return errors.New("issuer key is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		Uuid:      r.Uuid,
		Type:      r.Type,
		Status:    r.Status,
		IssuerKey: r.IssuerKey,

		Amount:   r.Amount,
		Currency: r.Currency,

		ProductName:        r.ProductName,
		ProductDescription: r.ProductDescription,

		JSONRequest: r.JSONRequest,
		NotifyURL:   r.NotifyURL,

		PayURL:    pointer.StringCopy(r.PayURL),
		BillingID: pointer.StringCopy(r.BillingID),

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Uuid = r.Uuid
	dst.Type = r.Type
	dst.Status = r.Status
	dst.IssuerKey = r.IssuerKey

	dst.Amount = r.Amount
	dst.Currency = r.Currency

	dst.ProductName = r.ProductName
	dst.ProductDescription = r.ProductDescription

	dst.JSONRequest = r.JSONRequest
	dst.NotifyURL = r.NotifyURL

	dst.PayURL = pointer.StringCopy(r.PayURL)
	dst.BillingID = pointer.StringCopy(r.BillingID)

	dst.CreatedAt = r.CreatedAt
	dst.UpdatedAt = r.UpdatedAt
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusChecked:
		return "checked"
	case StatusReceived:
		return "received"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusErrored:
		return "errored"
	}
	return "unknown"
}

func (t Type) String() string {
	switch t {
	case TypePayment:
		return "payment"
	case TypeRefund:
		return "refund"
	}
	return "unknown"
}
