package netutil

import (
	"net/url"

	"github.com/pkg/errors"
)

// ErrDisallowedScheme indicates a URL uses a scheme outside the allow-list.
var ErrDisallowedScheme = errors.New("url scheme is not allowed")

// ValidateCallbackUrl validates an absolute URL that payment notices will be
// posted to. The scheme must be a member of allowedSchemes; an empty
// allow-list admits any scheme.
func ValidateCallbackUrl(value string, allowedSchemes []string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return errors.Wrap(err, "url is malformed")
	}

	if len(parsed.Scheme) == 0 || len(parsed.Host) == 0 {
		return errors.New("url must be absolute")
	}

	if len(allowedSchemes) == 0 {
		return nil
	}
	for _, scheme := range allowedSchemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}
	return errors.Wrapf(ErrDisallowedScheme, "got %s, want one of %v", parsed.Scheme, allowedSchemes)
}
