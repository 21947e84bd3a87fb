package transaction

import (
	"github.com/mozpay/webpay-server/pkg/webpay/request"
)

// Notes is the session-scoped state for one buyer's purchase flow. It is
// owned by the caller (typically a web session) and mutated in place as
// configuration progresses.
type Notes struct {
	// TransactionUuid is the uuid of the transaction currently being
	// purchased. Reminted when the billing backend reports the previous
	// attempt as unrecoverable.
	TransactionUuid string

	IssuerKey  string
	PayRequest *request.PayRequest

	// Buyer locale used to pick a localized product name/description
	Locale string

	// Carrier network hints used for billing provider selection
	NetworkMCC string
	NetworkMNC string

	// LastConfigured is the uuid of the transaction most recently handed to
	// the billing backend from this session. It guards against configuring
	// the same transaction twice.
	LastConfigured string
}
