package localization

import (
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// CodeUnexpectedError is the catch-all shown when a code has no legend entry
// or must be hidden from the buyer.
const CodeUnexpectedError = "UNEXPECTED_ERROR"

// legendMessages is the buyer-facing legend for every stable error code.
// Translations for other languages are layered on top of the English set.
var legendMessages = []*i18n.Message{
	{ID: CodeUnexpectedError, Other: "There was an error processing that request."},

	{ID: "INVALID_JWT_OR_UNKNOWN_ISSUER", Other: "The request was signed by an unknown application or could not be read."},
	{ID: "EXPIRED_JWT", Other: "The payment request has expired. Start the purchase again."},
	{ID: "INVALID_JWT", Other: "The payment request could not be verified."},
	{ID: "MALFORMED_URL", Other: "The application sent an invalid callback address."},
	{ID: "BAD_ICON_KEY", Other: "The application sent an invalid product icon."},
	{ID: "NO_DEFAULT_LOC", Other: "The application sent translations without a default locale."},
	{ID: "BAD_SIM_RESULT", Other: "The application requested an unsupported simulation."},
	{ID: "NO_SIM_REASON", Other: "The application requested a chargeback simulation without a reason."},
	{ID: "SIM_ONLY_KEY", Other: "This application may only simulate payments."},
	{ID: "SIM_DISABLED", Other: "Payment simulations are currently disabled."},
	{ID: "PAY_DISABLED", Other: "Payments are currently disabled."},
	{ID: "BAD_PRICE_POINT", Other: "The application requested an unknown price point."},
	{ID: "CONNECTION_FAILED", Other: "A service needed to process the payment could not be reached. Try again."},

	{ID: "RATE_LIMITED", Other: "Too many payment requests. Try again shortly."},
	{ID: "TRANS_ID_NOT_SET", Other: "Your session has no payment in progress."},
	{ID: "TRANSACTION_NOT_FOUND", Other: "The payment could not be found."},
	{ID: "TRANS_CONFIG_FAILED", Other: "The payment could not be set up. Start the purchase again."},
}

// Localizer renders the stable error codes as buyer-facing text.
type Localizer struct {
	bundle *i18n.Bundle
}

// NewLocalizer returns a localizer seeded with the English legend.
func NewLocalizer() (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	if err := bundle.AddMessages(language.English, legendMessages...); err != nil {
		return nil, err
	}
	return &Localizer{
		bundle: bundle,
	}, nil
}

// ForCode returns the legend text for an error code in the closest available
// language. Unknown codes fall back to the generic message; a rendering
// problem never propagates to the buyer.
func (l *Localizer) ForCode(lang, code string) string {
	localizer := i18n.NewLocalizer(l.bundle, lang)

	localized, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: code})
	if err == nil {
		return localized
	}

	localized, err = localizer.Localize(&i18n.LocalizeConfig{MessageID: CodeUnexpectedError})
	if err != nil {
		return "There was an error processing that request."
	}
	return localized
}

// Legend returns the full code to message mapping for a language.
func (l *Localizer) Legend(lang string) map[string]string {
	res := make(map[string]string)
	for _, msg := range legendMessages {
		res[msg.ID] = l.ForCode(lang, msg.ID)
	}
	return res
}
