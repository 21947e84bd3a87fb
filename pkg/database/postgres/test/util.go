package test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/pkg/errors"

	"github.com/mozpay/webpay-server/pkg/retry"
	"github.com/mozpay/webpay-server/pkg/retry/backoff"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	containerName    = "postgres"
	containerVersion = "10.4"

	postgresUser     = "localtest"
	postgresPassword = "localtest"
	postgresDb       = "testdb"

	maxWaitTime = 2 * time.Minute
)

// StartPostgresDB starts a dockerized postgres node for testing, returning a
// connected DB handle and a teardown closure.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	resource, err := pool.Run(containerName, containerVersion, []string{
		fmt.Sprintf("POSTGRES_USER=%s", postgresUser),
		fmt.Sprintf("POSTGRES_PASSWORD=%s", postgresPassword),
		fmt.Sprintf("POSTGRES_DB=%s", postgresDb),
	})
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "error starting postgres container")
	}

	closeFunc = func() {
		if err := pool.Purge(resource); err != nil {
			fmt.Printf("error stopping postgres container: %v\n", err)
		}
	}

	// Kill the container after some time in case the test hangs or the
	// teardown never runs.
	_ = resource.Expire(uint(maxWaitTime.Seconds()))

	dsn := fmt.Sprintf(
		"postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		resource.GetPort("5432/tcp"),
		postgresDb,
	)

	db, err = sql.Open("pgx", dsn)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "error opening db")
	}

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitTime)
	defer cancel()

	_, err = retry.Retry(
		func() error {
			return db.PingContext(ctx)
		},
		retry.Limit(uint(maxWaitTime.Seconds())),
		retry.Backoff(backoff.Constant(time.Second), time.Second),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for postgres to become available")
	}

	return db, closeFunc, nil
}
