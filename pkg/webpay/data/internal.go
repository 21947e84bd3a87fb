package data

import (
	"context"

	pg "github.com/mozpay/webpay-server/pkg/database/postgres"

	"github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/data/notice"
	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"

	issuer_memory_client "github.com/mozpay/webpay-server/pkg/webpay/data/issuer/memory"
	notice_memory_client "github.com/mozpay/webpay-server/pkg/webpay/data/notice/memory"
	transaction_memory_client "github.com/mozpay/webpay-server/pkg/webpay/data/transaction/memory"

	issuer_postgres_client "github.com/mozpay/webpay-server/pkg/webpay/data/issuer/postgres"
	notice_postgres_client "github.com/mozpay/webpay-server/pkg/webpay/data/notice/postgres"
	transaction_postgres_client "github.com/mozpay/webpay-server/pkg/webpay/data/transaction/postgres"
)

// Provider aggregates the webpay stores behind typed accessors.
type Provider interface {
	// Issuers
	// --------------------------------------------------------------------------------
	PutIssuer(ctx context.Context, record *issuer.Record) error
	UpdateIssuer(ctx context.Context, record *issuer.Record) error
	GetIssuerByKey(ctx context.Context, issuerKey string) (*issuer.Record, error)
	CountActiveIssuers(ctx context.Context) (uint64, error)

	// Transactions
	// --------------------------------------------------------------------------------
	PutTransaction(ctx context.Context, record *transaction.Record) error
	UpdateTransaction(ctx context.Context, record *transaction.Record) error
	GetTransactionByUuid(ctx context.Context, uuid string) (*transaction.Record, error)
	CountTransactionsByStatus(ctx context.Context, status transaction.Status) (uint64, error)

	// Notices
	// --------------------------------------------------------------------------------
	PutNotice(ctx context.Context, record *notice.Record) error
	GetAllNoticesByTransaction(ctx context.Context, transactionUuid string) ([]*notice.Record, error)
	CountNoticesBySuccess(ctx context.Context, success bool) (uint64, error)
}

type DatabaseProvider struct {
	issuers      issuer.Store
	transactions transaction.Store
	notices      notice.Store
}

// NewDatabaseProvider returns a postgres-backed Provider.
func NewDatabaseProvider(dbConfig *pg.Config) (Provider, error) {
	db, err := pg.New(dbConfig)
	if err != nil {
		return nil, err
	}

	return &DatabaseProvider{
		issuers:      issuer_postgres_client.New(db),
		transactions: transaction_postgres_client.New(db),
		notices:      notice_postgres_client.New(db),
	}, nil
}

// NewTestDataProvider returns an in-memory Provider for tests.
func NewTestDataProvider() Provider {
	return &DatabaseProvider{
		issuers:      issuer_memory_client.New(),
		transactions: transaction_memory_client.New(),
		notices:      notice_memory_client.New(),
	}
}

func (dp *DatabaseProvider) PutIssuer(ctx context.Context, record *issuer.Record) error {
	return dp.issuers.Put(ctx, record)
}
func (dp *DatabaseProvider) UpdateIssuer(ctx context.Context, record *issuer.Record) error {
	return dp.issuers.Update(ctx, record)
}
func (dp *DatabaseProvider) GetIssuerByKey(ctx context.Context, issuerKey string) (*issuer.Record, error) {
	return dp.issuers.GetByIssuerKey(ctx, issuerKey)
}
func (dp *DatabaseProvider) CountActiveIssuers(ctx context.Context) (uint64, error) {
	return dp.issuers.CountActive(ctx)
}

func (dp *DatabaseProvider) PutTransaction(ctx context.Context, record *transaction.Record) error {
	return dp.transactions.Put(ctx, record)
}
func (dp *DatabaseProvider) UpdateTransaction(ctx context.Context, record *transaction.Record) error {
	return dp.transactions.Update(ctx, record)
}
func (dp *DatabaseProvider) GetTransactionByUuid(ctx context.Context, uuid string) (*transaction.Record, error) {
	return dp.transactions.GetByUuid(ctx, uuid)
}
func (dp *DatabaseProvider) CountTransactionsByStatus(ctx context.Context, status transaction.Status) (uint64, error) {
	return dp.transactions.CountByStatus(ctx, status)
}

func (dp *DatabaseProvider) PutNotice(ctx context.Context, record *notice.Record) error {
	return dp.notices.Put(ctx, record)
}
func (dp *DatabaseProvider) GetAllNoticesByTransaction(ctx context.Context, transactionUuid string) ([]*notice.Record, error) {
	return dp.notices.GetAllByTransaction(ctx, transactionUuid)
}
func (dp *DatabaseProvider) CountNoticesBySuccess(ctx context.Context, success bool) (uint64, error) {
	return dp.notices.CountBySuccess(ctx, success)
}
