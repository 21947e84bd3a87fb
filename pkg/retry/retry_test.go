package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozpay/webpay-server/pkg/retry/backoff"
)

type fakeSleeper struct {
	sleeps []time.Duration
}

func (f *fakeSleeper) Sleep(d time.Duration) {
	f.sleeps = append(f.sleeps, d)
}

func TestRetry_NoStrategies(t *testing.T) {
	errCount := 3
	attempts, err := Retry(func() error {
		if errCount == 0 {
			return nil
		}
		errCount--
		return errors.New("transient")
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, attempts)
}

func TestRetry_Limit(t *testing.T) {
	expected := errors.New("permanent")

	var calls int
	attempts, err := Retry(func() error {
		calls++
		return expected
	}, Limit(5))

	assert.Equal(t, expected, err)
	assert.EqualValues(t, 5, attempts)
	assert.Equal(t, 5, calls)
}

func TestRetry_NonRetriableErrors(t *testing.T) {
	fatal := errors.New("fatal")

	attempts, err := Retry(func() error {
		return fatal
	}, Limit(5), NonRetriableErrors(fatal))

	assert.Equal(t, fatal, err)
	assert.EqualValues(t, 1, attempts)
}

func TestRetry_RetriableErrors(t *testing.T) {
	transient := errors.New("transient")
	fatal := errors.New("fatal")

	var calls int
	_, err := Retry(func() error {
		calls++
		if calls < 3 {
			return transient
		}
		return fatal
	}, Limit(10), RetriableErrors(transient))

	assert.Equal(t, fatal, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_Backoff(t *testing.T) {
	sleeper := &fakeSleeper{}
	sleeperImpl = sleeper
	defer func() { sleeperImpl = &realSleeper{} }()

	_, err := Retry(func() error {
		return errors.New("transient")
	}, Limit(4), Backoff(backoff.Constant(15*time.Second), time.Minute))

	require.Error(t, err)
	require.Len(t, sleeper.sleeps, 3)
	for _, d := range sleeper.sleeps {
		assert.Equal(t, 15*time.Second, d)
	}
}

func TestRetry_BackoffCapped(t *testing.T) {
	sleeper := &fakeSleeper{}
	sleeperImpl = sleeper
	defer func() { sleeperImpl = &realSleeper{} }()

	_, err := Retry(func() error {
		return errors.New("transient")
	}, Limit(6), Backoff(backoff.BinaryExponential(time.Second), 4*time.Second))

	require.Error(t, err)
	require.Len(t, sleeper.sleeps, 5)
	assert.Equal(t, time.Second, sleeper.sleeps[0])
	assert.Equal(t, 4*time.Second, sleeper.sleeps[4])
}
