package transaction

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mozpay/webpay-server/pkg/metrics"
	"github.com/mozpay/webpay-server/pkg/pointer"
	sync_util "github.com/mozpay/webpay-server/pkg/sync"
	"github.com/mozpay/webpay-server/pkg/webpay/data"
	transaction_data "github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/marketplace"
	"github.com/mozpay/webpay-server/pkg/webpay/solitude"
)

const (
	metricsStructName = "transaction.configurator"

	sellerUUIDProductDataKey = "seller_uuid"
)

var (
	// ErrNoTransaction indicates the session has no transaction to configure
	ErrNoTransaction = errors.New("no transaction to configure")

	// ErrMissingSellerUUID indicates a marketplace pay request without a
	// seller_uuid in its product data
	ErrMissingSellerUUID = errors.New("product data has no seller_uuid")
)

// IssuerResolver resolves an issuer key to its secret and access level.
type IssuerResolver interface {
	Resolve(ctx context.Context, issuerKey string) (*issuer.Resolved, error)
}

// BillingClient is the slice of the billing backend used for configuration.
type BillingClient interface {
	GetTransaction(ctx context.Context, uuid string) (*solitude.Transaction, error)
	ConfigureProductForBilling(ctx context.Context, args *solitude.ConfigureProductArgs) (*solitude.ConfiguredBilling, error)
}

// PriceClient resolves price tiers and cached product icons.
type PriceClient interface {
	GetPrice(ctx context.Context, pricePoint string) (*marketplace.PriceTier, error)
	GetIconURL(ctx context.Context, icons map[string]string, preferredSize int) string
}

// FreeDispatcher emits the payment notice for a zero-price purchase, which
// never enters a billing flow.
type FreeDispatcher interface {
	DispatchFree(ctx context.Context, transactionUuid string) error
}

type Configurator struct {
	log      *logrus.Entry
	conf     *conf
	data     data.Provider
	resolver IssuerResolver
	billing  BillingClient
	prices   PriceClient
	free     FreeDispatcher

	// The session marker is only a best-effort guard. Racing requests for
	// the same transaction are serialized here so the backend sees at most
	// one configuration call.
	configureLocks *sync_util.StripedLock
}

// NewConfigurator returns a configurator that starts billing flows for
// validated payment requests.
func NewConfigurator(
	dataProvider data.Provider,
	resolver IssuerResolver,
	billing BillingClient,
	prices PriceClient,
	free FreeDispatcher,
	configProvider ConfigProvider,
) *Configurator {
	return &Configurator{
		log:      logrus.StandardLogger().WithField("service", "transaction_configurator"),
		conf:     configProvider(),
		data:     dataProvider,
		resolver: resolver,
		billing:  billing,
		prices:   prices,
		free:     free,

		configureLocks: sync_util.NewStripedLock(1024),
	}
}

// Configure hands the session's current transaction to the billing backend
// and persists the resulting pay url and billing id on the local mirror.
//
// Configuration runs at most once per transaction uuid per session, guarded
// by the notes' last configured marker. If the backend already knows the
// uuid and marked it unrecoverable, a fresh uuid is minted and used instead;
// a payment never continues against a transaction the backend gave up on.
//
// Zero-price tiers skip billing entirely and dispatch the payment notice
// immediately.
//
// The returned bool reports whether a new billing flow was started. Errors
// leave the transaction unconfigured; there is no partial commit.
func (c *Configurator) Configure(ctx context.Context, notes *Notes) (bool, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Configure")
	defer tracer.End()

	if notes == nil || len(notes.TransactionUuid) == 0 {
		tracer.OnError(ErrNoTransaction)
		return false, ErrNoTransaction
	}

	log := c.log.WithFields(logrus.Fields{
		"method":      "Configure",
		"transaction": notes.TransactionUuid,
		"issuer":      notes.IssuerKey,
	})

	if notes.LastConfigured == notes.TransactionUuid {
		log.Trace("transaction already configured by this session")
		return false, nil
	}

	mu := c.configureLocks.Get([]byte(notes.TransactionUuid))
	mu.Lock()
	defer mu.Unlock()

	record, err := c.data.GetTransactionByUuid(ctx, notes.TransactionUuid)
	if err != nil {
		tracer.OnError(err)
		return false, errors.Wrap(err, "error getting transaction record")
	}

	record, err = c.remintIfRetryOK(ctx, log, notes, record)
	if err != nil {
		tracer.OnError(err)
		return false, err
	}
	if record == nil {
		// Backend already has this transaction under way
		notes.LastConfigured = notes.TransactionUuid
		return false, nil
	}

	resolved, err := c.resolver.Resolve(ctx, notes.IssuerKey)
	if err != nil {
		tracer.OnError(err)
		return false, errors.Wrap(err, "error resolving issuer")
	}

	sellerUUID, err := sellerUUIDFor(resolved, notes)
	if err != nil {
		tracer.OnError(err)
		return false, err
	}

	tier, err := c.prices.GetPrice(ctx, notes.PayRequest.PricePoint)
	if err != nil {
		tracer.OnError(err)
		return false, errors.Wrap(err, "error getting price tier")
	}

	if tier.IsFree() {
		err = c.configureFree(ctx, log, notes, record, tier)
		if err != nil {
			tracer.OnError(err)
			return false, err
		}
		return true, nil
	}

	locale := notes.Locale
	if len(locale) == 0 {
		locale = c.conf.defaultLocale.Get(ctx)
	}

	// Best effort. The purchase flow renders without an icon.
	icon := c.prices.GetIconURL(ctx, notes.PayRequest.Icons, int(c.conf.iconSize.Get(ctx)))

	configured, err := c.billing.ConfigureProductForBilling(ctx, &solitude.ConfigureProductArgs{
		TransactionUUID: record.Uuid,
		SellerUUID:      sellerUUID,
		ProductName:     notes.PayRequest.LocalizedName(locale),
		ExternalID:      notes.PayRequest.ID,
		PricePoint:      notes.PayRequest.PricePoint,
		Icon:            icon,

		MCC: notes.NetworkMCC,
		MNC: notes.NetworkMNC,
	})
	if err != nil {
		log.WithError(err).Warn("failure configuring product for billing")
		tracer.OnError(err)
		return false, errors.Wrap(err, "error configuring product for billing")
	}

	record.PayURL = pointer.String(configured.PayURL)
	record.BillingID = pointer.String(configured.BillingID)
	if err := c.data.UpdateTransaction(ctx, record); err != nil {
		tracer.OnError(err)
		return false, errors.Wrap(err, "error updating transaction record")
	}

	notes.LastConfigured = record.Uuid
	log.WithField("billing_id", configured.BillingID).Trace("billing flow started")
	return true, nil
}

// remintIfRetryOK checks the billing backend for an existing transaction
// with the same uuid. A fresh uuid replaces one the backend marked
// unrecoverable. Returns nil when the existing transaction is still live
// and must not be configured again.
func (c *Configurator) remintIfRetryOK(
	ctx context.Context,
	log *logrus.Entry,
	notes *Notes,
	record *transaction_data.Record,
) (*transaction_data.Record, error) {
	existing, err := c.billing.GetTransaction(ctx, notes.TransactionUuid)
	if errors.Is(err, solitude.ErrTransactionNotFound) {
		return record, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting backend transaction")
	}

	if !existing.Status.IsRetryOK() {
		log.WithField("status", existing.Status).Trace("backend transaction already under way")
		return nil, nil
	}

	reminted := record.Clone()
	reminted.Id = 0
	reminted.Uuid = uuid.New().String()
	reminted.Status = transaction_data.StatusPending
	reminted.PayURL = nil
	reminted.BillingID = nil

	if err := c.data.PutTransaction(ctx, &reminted); err != nil {
		return nil, errors.Wrap(err, "error creating reminted transaction record")
	}

	log.WithFields(logrus.Fields{
		"old_uuid": notes.TransactionUuid,
		"new_uuid": reminted.Uuid,
	}).Info("reminted transaction after unrecoverable backend status")

	notes.TransactionUuid = reminted.Uuid
	return &reminted, nil
}

// configureFree completes a zero-price purchase without a billing flow.
func (c *Configurator) configureFree(
	ctx context.Context,
	log *logrus.Entry,
	notes *Notes,
	record *transaction_data.Record,
	tier *marketplace.PriceTier,
) error {
	record.Status = transaction_data.StatusCompleted
	if price := tier.PriceFor(record.Currency); price != nil {
		record.Amount = price.Amount
		record.Currency = price.Currency
	}

	if err := c.data.UpdateTransaction(ctx, record); err != nil {
		return errors.Wrap(err, "error updating transaction record")
	}

	notes.LastConfigured = record.Uuid

	if c.free != nil {
		if err := c.free.DispatchFree(ctx, record.Uuid); err != nil {
			// The transaction is committed. Notice delivery is audited in the
			// ledger and can be replayed from there.
			log.WithError(err).Warn("failure dispatching free payment notice")
		}
	}

	log.Trace("completed free transaction without billing")
	return nil
}

// sellerUUIDFor picks the backend seller identity. Marketplace requests
// carry an explicit seller_uuid in their product data; registered issuers
// are their own seller.
func sellerUUIDFor(resolved *issuer.Resolved, notes *Notes) (string, error) {
	if !resolved.IsMarketplace {
		return notes.IssuerKey, nil
	}

	parsed, err := url.ParseQuery(notes.PayRequest.ProductData)
	if err != nil {
		return "", errors.Wrap(ErrMissingSellerUUID, err.Error())
	}

	sellerUUID := parsed.Get(sellerUUIDProductDataKey)
	if len(sellerUUID) == 0 {
		return "", ErrMissingSellerUUID
	}
	return sellerUUID, nil
}
