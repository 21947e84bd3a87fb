package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidToken indicates the token could not be parsed or verified
	ErrInvalidToken = errors.New("token is invalid")

	// ErrExpired indicates the token's expiry is in the past
	ErrExpired = errors.New("token is expired")

	// ErrMissingKey indicates a required claim key is absent
	ErrMissingKey = errors.New("token is missing a required key")
)

// Payload is a structured view over a verified token's claims.
type Payload struct {
	Iss string
	Aud string
	Typ string
	Iat int64
	Exp int64

	Request  map[string]interface{}
	Response map[string]interface{}

	// Claims holds the full raw claim set
	Claims jwt.MapClaims
}

// Encode signs the provided claims with HS256.
func Encode(claims jwt.MapClaims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "error signing token")
	}
	return signed, nil
}

// PeekIssuer reads the iss claim without verifying the signature. Callers
// must verify the token with Decode before trusting anything else in it.
func PeekIssuer(raw string) (string, error) {
	var claims jwt.MapClaims
	_, _, err := jwt.NewParser().ParseUnverified(raw, &claims)
	if err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}

	iss, ok := claims["iss"].(string)
	if !ok || len(iss) == 0 {
		return "", errors.Wrap(ErrMissingKey, "iss")
	}
	return iss, nil
}

// Decode verifies the token signature and standard claims, then checks that
// every required dotted-path key (eg. "request.pricePoint") is present and
// non-empty.
func Decode(raw, audience string, secret []byte, requiredKeys []string) (*Payload, error) {
	var claims jwt.MapClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	iat, ok := numericClaim(claims, "iat")
	if !ok {
		return nil, errors.Wrap(ErrMissingKey, "iat")
	}
	exp, ok := numericClaim(claims, "exp")
	if !ok {
		return nil, errors.Wrap(ErrMissingKey, "exp")
	}

	now := time.Now().Unix()
	if exp <= now {
		return nil, ErrExpired
	}
	if exp <= iat {
		return nil, errors.Wrap(ErrInvalidToken, "exp precedes iat")
	}

	aud, _ := claims["aud"].(string)
	if aud != audience {
		return nil, errors.Wrap(ErrInvalidToken, "aud mismatch")
	}

	for _, key := range requiredKeys {
		if !hasNonEmptyKey(claims, key) {
			return nil, errors.Wrap(ErrMissingKey, key)
		}
	}

	iss, _ := claims["iss"].(string)
	typ, _ := claims["typ"].(string)

	return &Payload{
		Iss: iss,
		Aud: aud,
		Typ: typ,
		Iat: iat,
		Exp: exp,

		Request:  mapClaim(claims, "request"),
		Response: mapClaim(claims, "response"),

		Claims: claims,
	}, nil
}

func numericClaim(claims jwt.MapClaims, key string) (int64, bool) {
	switch value := claims[key].(type) {
	case float64:
		return int64(value), true
	case int64:
		return value, true
	}
	return 0, false
}

func mapClaim(claims jwt.MapClaims, key string) map[string]interface{} {
	value, _ := claims[key].(map[string]interface{})
	return value
}

func hasNonEmptyKey(claims jwt.MapClaims, dottedPath string) bool {
	var current interface{} = map[string]interface{}(claims)
	for _, part := range strings.Split(dottedPath, ".") {
		asMap, ok := current.(map[string]interface{})
		if !ok {
			return false
		}

		current, ok = asMap[part]
		if !ok {
			return false
		}
	}

	if asString, ok := current.(string); ok && len(asString) == 0 {
		return false
	}
	return current != nil
}
