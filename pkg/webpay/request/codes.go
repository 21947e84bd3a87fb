package request

// Stable error codes surfaced to callers. These are part of the external
// contract and must not change meaning between releases.
const (
	CodeInvalidJWTOrUnknownIssuer = "INVALID_JWT_OR_UNKNOWN_ISSUER"
	CodeExpiredJWT                = "EXPIRED_JWT"
	CodeInvalidJWT                = "INVALID_JWT"
	CodeMalformedURL              = "MALFORMED_URL"
	CodeBadIconKey                = "BAD_ICON_KEY"
	CodeNoDefaultLocale           = "NO_DEFAULT_LOC"
	CodeBadSimResult              = "BAD_SIM_RESULT"
	CodeNoSimReason               = "NO_SIM_REASON"
	CodeSimOnlyKey                = "SIM_ONLY_KEY"
	CodeSimDisabled               = "SIM_DISABLED"
	CodePayDisabled               = "PAY_DISABLED"
	CodeBadPricePoint             = "BAD_PRICE_POINT"
	CodeConnectionFailed          = "CONNECTION_FAILED"
)

// Failure is a rejected payment request. Code is stable and machine
// readable; Err carries the detail for logs and verbose mode.
type Failure struct {
	Code string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Code
	}
	return f.Code + ": " + f.Err.Error()
}

func failure(code string, err error) *Failure {
	return &Failure{
		Code: code,
		Err:  err,
	}
}
