package request

import (
	"github.com/pkg/errors"

	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/token"
)

// Simulation results an issuer may request.
const (
	SimResultPostback   = "postback"
	SimResultChargeback = "chargeback"
)

// LocaleEntry is a localized name/description pair from the locales map.
type LocaleEntry struct {
	Name        string
	Description string
}

// Simulation is the optional simulate block of a pay request.
type Simulation struct {
	Result string
	Reason string
}

// PayRequest is the typed view of a pay request's claims.
type PayRequest struct {
	ID          string
	PricePoint  string
	Name        string
	Description string
	ProductData string

	PostbackURL   string
	ChargebackURL string

	Icons map[string]string

	DefaultLocale string
	Locales       map[string]LocaleEntry

	Simulate *Simulation
}

// Validated is a payment request that passed every check.
type Validated struct {
	Issuer  *issuer.Resolved
	Payload *token.Payload
	Request *PayRequest

	// Simulated means the flow must bypass real billing
	Simulated bool
}

// LocalizedName returns the product name for a locale tag, falling back from
// exact tag to bare language to the top-level value.
func (r *PayRequest) LocalizedName(tag string) string {
	if entry, ok := r.lookupLocale(tag); ok && len(entry.Name) > 0 {
		return entry.Name
	}
	return r.Name
}

// LocalizedDescription returns the product description for a locale tag with
// the same fallback chain as LocalizedName. A missing per-locale description
// is never an error.
func (r *PayRequest) LocalizedDescription(tag string) string {
	if entry, ok := r.lookupLocale(tag); ok && len(entry.Description) > 0 {
		return entry.Description
	}
	return r.Description
}

func (r *PayRequest) lookupLocale(tag string) (LocaleEntry, bool) {
	if len(r.Locales) == 0 {
		return LocaleEntry{}, false
	}

	if entry, ok := r.Locales[tag]; ok {
		return entry, true
	}

	if lang := baseLanguage(tag); lang != tag {
		if entry, ok := r.Locales[lang]; ok {
			return entry, true
		}
	}

	if entry, ok := r.Locales[r.DefaultLocale]; ok {
		return entry, true
	}
	return LocaleEntry{}, false
}

func baseLanguage(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' || tag[i] == '_' {
			return tag[:i]
		}
	}
	return tag
}

// parsePayRequest maps the raw request claim onto a PayRequest. Only shape
// errors are reported here; semantic checks belong to the validator.
func parsePayRequest(raw map[string]interface{}) (*PayRequest, error) {
	res := &PayRequest{
		ID:          stringField(raw, "id"),
		PricePoint:  stringField(raw, "pricePoint"),
		Name:        stringField(raw, "name"),
		Description: stringField(raw, "description"),
		ProductData: stringField(raw, "productData"),

		PostbackURL:   stringField(raw, "postbackURL"),
		ChargebackURL: stringField(raw, "chargebackURL"),

		DefaultLocale: stringField(raw, "defaultLocale"),
	}

	if rawIcons, ok := raw["icons"]; ok {
		icons, ok := rawIcons.(map[string]interface{})
		if !ok {
			return nil, errors.New("icons is not a mapping")
		}

		res.Icons = make(map[string]string)
		for size, value := range icons {
			url, ok := value.(string)
			if !ok {
				return nil, errors.Errorf("icon %s is not a url string", size)
			}
			res.Icons[size] = url
		}
	}

	if rawLocales, ok := raw["locales"]; ok {
		locales, ok := rawLocales.(map[string]interface{})
		if !ok {
			return nil, errors.New("locales is not a mapping")
		}

		res.Locales = make(map[string]LocaleEntry)
		for tag, value := range locales {
			entry, ok := value.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("locale %s is not a mapping", tag)
			}
			res.Locales[tag] = LocaleEntry{
				Name:        stringField(entry, "name"),
				Description: stringField(entry, "description"),
			}
		}
	}

	if rawSimulate, ok := raw["simulate"]; ok {
		simulate, ok := rawSimulate.(map[string]interface{})
		if !ok {
			return nil, errors.New("simulate is not a mapping")
		}

		res.Simulate = &Simulation{
			Result: stringField(simulate, "result"),
			Reason: stringField(simulate, "reason"),
		}
	}

	return res, nil
}

func stringField(raw map[string]interface{}, key string) string {
	value, _ := raw[key].(string)
	return value
}
