package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopLoggerBeforeInitialize(t *testing.T) {
	// The package-level logger must be usable before Initialize is called.
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() {
		Logger.Infow("pre-init message", "key", "value")
	})
}

func TestInitializeJSON(t *testing.T) {
	err := Initialize(true)
	require.NoError(t, err)
	assert.True(t, JSONOutput)
	assert.NotNil(t, Logger)
}

func TestInitializeConsole(t *testing.T) {
	err := Initialize(false)
	require.NoError(t, err)
	assert.False(t, JSONOutput)
	assert.NotPanics(t, func() {
		Logger.Infow("console message", "stage", "land")
	})
}
