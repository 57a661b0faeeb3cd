package gcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("FLASHDECK_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnv("FLASHDECK_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnv("FLASHDECK_TEST_MISSING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("FLASHDECK_TEST_INT", "7")
	n, err := GetEnvInt("FLASHDECK_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	t.Setenv("FLASHDECK_TEST_INT", "")
	n, err = GetEnvInt("FLASHDECK_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Setenv("FLASHDECK_TEST_INT", "seven")
	_, err = GetEnvInt("FLASHDECK_TEST_INT", 1)
	assert.ErrorContains(t, err, "FLASHDECK_TEST_INT")
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("FLASHDECK_TEST_DURATION", "90s")
	d, err := GetEnvDuration("FLASHDECK_TEST_DURATION", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = GetEnvDuration("FLASHDECK_TEST_DURATION_MISSING", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	t.Setenv("FLASHDECK_TEST_DURATION", "soon")
	_, err = GetEnvDuration("FLASHDECK_TEST_DURATION", time.Minute)
	assert.Error(t, err)
}
