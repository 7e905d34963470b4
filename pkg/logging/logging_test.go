package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("should build a production logger", func(t *testing.T) {
		logger, sync, err := NewLogger("debug", false)
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.NotPanics(t, func() {
			logger.WithFields(map[string]any{"step": 0}).Debug("compiled query")
		})
		sync()
	})

	t.Run("should default to info when no level is set", func(t *testing.T) {
		logger, _, err := NewLogger("", true)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("should reject an unknown level", func(t *testing.T) {
		_, _, err := NewLogger("loud", false)
		assert.Error(t, err)
	})
}
