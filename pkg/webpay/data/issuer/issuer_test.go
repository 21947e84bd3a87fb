package issuer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() *Record {
	return &Record{
		IssuerKey: "app.example.com-1",
		Domain:    "app.example.com",

		PostbackPath:   "/mozpay/postback",
		ChargebackPath: "/mozpay/chargeback",

		EncryptedSecret: []byte("sealed-secret"),
		KeyTimestamp:    1000,

		Access: AccessPurchase,
		Active: true,
	}
}

func TestRecord_Validate(t *testing.T) {
	require.NoError(t, validRecord().Validate())

	record := validRecord()
	record.Domain = ""
	assert.Error(t, record.Validate())

	record = validRecord()
	record.Domain = "not a domain!"
	assert.Error(t, record.Validate())

	record = validRecord()
	record.Access = AccessUnknown
	assert.Error(t, record.Validate())
}
