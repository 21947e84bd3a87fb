package issuer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	cache_util "github.com/mozpay/webpay-server/pkg/cache"
	"github.com/mozpay/webpay-server/pkg/metrics"
	"github.com/mozpay/webpay-server/pkg/webpay/data"
	issuer_data "github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/keyring"
)

const (
	metricsStructName = "issuer.resolver"

	resolvedCacheBudget = 256
)

var (
	// ErrUnknownIssuer indicates the issuer key is not registered or inactive
	ErrUnknownIssuer = errors.New("unknown issuer")
)

// Resolved carries everything the broker needs to trust and call back an
// issuer.
type Resolved struct {
	IssuerKey string
	Secret    []byte
	Access    issuer_data.Access

	// Absolute callback URLs. Empty for the marketplace, whose callbacks
	// come from the pay request itself.
	PostbackURL   string
	ChargebackURL string

	IsMarketplace bool
}

type Resolver struct {
	log     *logrus.Entry
	conf    *conf
	data    data.Provider
	keyring *keyring.Keyring

	// Every pay request resolves its issuer, so successful resolutions are
	// cached. Edits to an issuer record take effect after eviction.
	cache cache_util.Cache
}

// NewResolver returns a resolver that maps issuer keys to their secrets and
// callback configuration.
func NewResolver(data data.Provider, kr *keyring.Keyring, configProvider ConfigProvider) *Resolver {
	return &Resolver{
		log:     logrus.StandardLogger().WithField("service", "issuer_resolver"),
		conf:    configProvider(),
		data:    data,
		keyring: kr,
		cache:   cache_util.NewCache(resolvedCacheBudget),
	}
}

// Resolve looks up the issuer for a key. The marketplace short-circuits to
// statically configured credentials; every other issuer must have an active
// record whose secret can be unsealed.
func (r *Resolver) Resolve(ctx context.Context, issuerKey string) (*Resolved, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Resolve")
	defer tracer.End()

	log := r.log.WithFields(logrus.Fields{
		"method": "Resolve",
		"issuer": issuerKey,
	})

	if len(issuerKey) == 0 {
		return nil, ErrUnknownIssuer
	}

	if issuerKey == r.conf.marketplaceIssuerKey.Get(ctx) {
		return &Resolved{
			IssuerKey:     issuerKey,
			Secret:        []byte(r.conf.marketplaceSecret.Get(ctx)),
			Access:        issuer_data.AccessBoth,
			IsMarketplace: true,
		}, nil
	}

	if cached, ok := r.cache.Retrieve(issuerKey); ok {
		return cached.(*Resolved), nil
	}

	record, err := r.data.GetIssuerByKey(ctx, issuerKey)
	if err == issuer_data.ErrNotFound {
		return nil, ErrUnknownIssuer
	} else if err != nil {
		log.WithError(err).Warn("failure getting issuer record")
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error getting issuer record")
	}

	if !record.Active {
		return nil, ErrUnknownIssuer
	}

	secret, err := record.Secret(r.keyring)
	if err != nil {
		// Fails closed. A stale key timestamp means the secret can't be
		// trusted, which reads the same as an unknown issuer to callers.
		log.WithError(err).Warn("failure unsealing issuer secret")
		tracer.OnError(err)
		return nil, ErrUnknownIssuer
	}

	scheme := "https"
	if !record.RequireHTTPS && !r.conf.requireHTTPS.Get(ctx) {
		scheme = "http"
	}

	resolved := &Resolved{
		IssuerKey: record.IssuerKey,
		Secret:    secret,
		Access:    record.Access,

		PostbackURL:   callbackURL(scheme, record.Domain, record.PostbackPath),
		ChargebackURL: callbackURL(scheme, record.Domain, record.ChargebackPath),
	}
	if err := r.cache.Insert(issuerKey, resolved, 1); err != nil && err != cache_util.ErrExists {
		log.WithError(err).Warn("failure caching resolved issuer")
	}
	return resolved, nil
}

func callbackURL(scheme, domain, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", scheme, domain, path)
}
