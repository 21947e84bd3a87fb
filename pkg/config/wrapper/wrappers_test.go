package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozpay/webpay-server/pkg/config/memory"
)

func TestBoolConfig(t *testing.T) {
	ctx := context.Background()
	override := memory.NewConfig(nil)
	conf := NewBoolConfig(override, true)

	val, err := conf.GetSafe(ctx)
	require.NoError(t, err)
	assert.True(t, val)

	override.SetValue([]byte("false"))
	val, err = conf.GetSafe(ctx)
	require.NoError(t, err)
	assert.False(t, val)

	override.InduceErrors()
	val, err = conf.GetSafe(ctx)
	assert.Error(t, err)
	assert.False(t, val, "expected last known value")
}

func TestDurationConfig(t *testing.T) {
	ctx := context.Background()
	override := memory.NewConfig(nil)
	conf := NewDurationConfig(override, 5*time.Second)

	assert.Equal(t, 5*time.Second, conf.Get(ctx))

	override.SetValue([]byte("15s"))
	assert.Equal(t, 15*time.Second, conf.Get(ctx))

	override.SetValue(time.Minute)
	assert.Equal(t, time.Minute, conf.Get(ctx))
}

func TestUint64Config(t *testing.T) {
	ctx := context.Background()
	override := memory.NewConfig(nil)
	conf := NewUint64Config(override, 5)

	assert.EqualValues(t, 5, conf.Get(ctx))

	override.SetValue([]byte("250"))
	assert.EqualValues(t, 250, conf.Get(ctx))

	override.SetValue([]byte("not a number"))
	val, err := conf.GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 250, val, "expected last known value")
}

func TestStringsConfig(t *testing.T) {
	ctx := context.Background()
	override := memory.NewConfig(nil)
	conf := NewStringsConfig(override, []string{"http", "https"})

	assert.Equal(t, []string{"http", "https"}, conf.Get(ctx))

	override.SetValue([]byte("https"))
	assert.Equal(t, []string{"https"}, conf.Get(ctx))

	override.SetValue([]byte("https, http"))
	assert.Equal(t, []string{"https", "http"}, conf.Get(ctx))
}
