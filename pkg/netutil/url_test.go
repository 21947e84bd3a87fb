package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCallbackUrl(t *testing.T) {
	allowed := []string{"http", "https"}

	assert.NoError(t, ValidateCallbackUrl("https://app.example.com/postback", allowed))
	assert.NoError(t, ValidateCallbackUrl("http://app.example.com/charge", allowed))

	assert.Error(t, ValidateCallbackUrl("fooey!", allowed))
	assert.Error(t, ValidateCallbackUrl("/relative/path", allowed))
	assert.Error(t, ValidateCallbackUrl("ftp://app.example.com/postback", allowed))

	err := ValidateCallbackUrl("http://app.example.com/postback", []string{"https"})
	assert.ErrorIs(t, err, ErrDisallowedScheme)

	// An empty allow-list admits any scheme, but never a relative URL
	assert.NoError(t, ValidateCallbackUrl("ftp://app.example.com/postback", nil))
	assert.Error(t, ValidateCallbackUrl("fooey!", nil))
	assert.Error(t, ValidateCallbackUrl("/relative/path", nil))
}

func TestValidateDomainName(t *testing.T) {
	assert.NoError(t, ValidateDomainName("marketplace.firefox.com"))
	assert.Error(t, ValidateDomainName(""))
}
