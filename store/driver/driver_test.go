package driver_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin/store/driver"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := driver.Open(ctx, "", "", "")
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	s, err = driver.Open(ctx, "sqlite3", filepath.Join(t.TempDir(), "tf.db"), "")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Close())

	_, err = driver.Open(ctx, "sqlite", "", "")
	assert.Error(t, err)

	_, err = driver.Open(ctx, "oracle", "x", "")
	assert.ErrorContains(t, err, "unknown driver")
}

func TestValid(t *testing.T) {
	for _, name := range []string{"memory", "SQLite", "pg", "postgresql", "mongodb", "mongo"} {
		assert.True(t, driver.Valid(name), name)
	}
	assert.False(t, driver.Valid("redis"))
}

func TestIsEphemeral(t *testing.T) {
	assert.True(t, driver.IsEphemeral(""))
	assert.True(t, driver.IsEphemeral("mem"))
	assert.False(t, driver.IsEphemeral("sqlite"))
	assert.False(t, driver.IsEphemeral("mongodb"))
}
