package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedisTLSConfig(t *testing.T) {
	t.Setenv("REDIS_TLS", "")
	t.Setenv("REDIS_TLS_SKIP_VERIFY", "")
	require.Nil(t, redisTLSConfig())

	// Verification is on by default when TLS is enabled.
	t.Setenv("REDIS_TLS", "true")
	conf := redisTLSConfig()
	require.NotNil(t, conf)
	require.False(t, conf.InsecureSkipVerify)

	t.Setenv("REDIS_TLS", "1")
	require.NotNil(t, redisTLSConfig())

	// Skipping verification takes an explicit opt-in.
	t.Setenv("REDIS_TLS_SKIP_VERIFY", "1")
	require.True(t, redisTLSConfig().InsecureSkipVerify)
}
