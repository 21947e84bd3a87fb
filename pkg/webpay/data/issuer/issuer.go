package issuer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mozpay/webpay-server/pkg/netutil"
	"github.com/mozpay/webpay-server/pkg/webpay/keyring"
)

type Access uint8

const (
	AccessUnknown  Access = iota
	AccessPurchase        // Real purchases only
	AccessSimulate        // Simulated purchases only
	AccessBoth            // Real and simulated purchases
)

type Record struct {
	Id uint64

	IssuerKey string
	Domain    string

	PostbackPath   string
	ChargebackPath string
	RequireHTTPS   bool

	EncryptedSecret []byte
	KeyTimestamp    int64

	Access Access
	Active bool

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if len(r.IssuerKey) == 0 {
		return errors.New("issuer key is required")
	}

	// Callback URLs are built from the domain, so it must be registrable
	if err := netutil.ValidateDomainName(r.Domain); err != nil {
		return errors.Wrap(err, "domain is invalid")
	}

	if len(r.PostbackPath) == 0 {
		return errors.New("postback path is required")
	}

	if len(r.ChargebackPath) == 0 {
		return errors.New("chargeback path is required")
	}

	if len(r.EncryptedSecret) == 0 {
		return errors.New("encrypted secret is required")
	}

	if r.KeyTimestamp <= 0 {
		return errors.New("key timestamp is required")
	}

	if r.Access == AccessUnknown {
		return errors.New("access level is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	encryptedSecret := make([]byte, len(r.EncryptedSecret))
	copy(encryptedSecret, r.EncryptedSecret)

	return Record{
		Id: r.Id,

		IssuerKey: r.IssuerKey,
		Domain:    r.Domain,

		PostbackPath:   r.PostbackPath,
		ChargebackPath: r.ChargebackPath,
		RequireHTTPS:   r.RequireHTTPS,

		EncryptedSecret: encryptedSecret,
		KeyTimestamp:    r.KeyTimestamp,

		Access: r.Access,
		Active: r.Active,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.IssuerKey = r.IssuerKey
	dst.Domain = r.Domain

	dst.PostbackPath = r.PostbackPath
	dst.ChargebackPath = r.ChargebackPath
	dst.RequireHTTPS = r.RequireHTTPS

	dst.EncryptedSecret = make([]byte, len(r.EncryptedSecret))
	copy(dst.EncryptedSecret, r.EncryptedSecret)
	dst.KeyTimestamp = r.KeyTimestamp

	dst.Access = r.Access
	dst.Active = r.Active

	dst.CreatedAt = r.CreatedAt
}

// Secret decrypts the issuer's shared secret with the provided keyring.
func (r *Record) Secret(kr *keyring.Keyring) ([]byte, error) {
	return kr.Open(r.KeyTimestamp, r.EncryptedSecret)
}

// AllowsPurchase reports whether the issuer may request real purchases.
func (a Access) AllowsPurchase() bool {
	return a == AccessPurchase || a == AccessBoth
}

// AllowsSimulate reports whether the issuer may request simulated purchases.
func (a Access) AllowsSimulate() bool {
	return a == AccessSimulate || a == AccessBoth
}

func (a Access) String() string {
	switch a {
	case AccessPurchase:
		return "purchase"
	case AccessSimulate:
		return "simulate"
	case AccessBoth:
		return "both"
	}
	return "unknown"
}
