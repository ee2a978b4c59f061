package main

import (
	"testing"

	"github.com/Conceptual-Machines/magda-markov/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSensitiveHeaders(t *testing.T) {
	got := filterSensitiveHeaders(map[string]string{
		"Authorization": "Bearer abc",
		"cookie":        "session=1",
		"Content-Type":  "application/json",
	})
	assert.Equal(t, map[string]string{
		"Authorization": "[REDACTED]",
		"cookie":        "[REDACTED]",
		"Content-Type":  "application/json",
	}, got)
}

func TestOpenStore_MemoryWithoutDatabase(t *testing.T) {
	st, err := openStore(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Name())
}
