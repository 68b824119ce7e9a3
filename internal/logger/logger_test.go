package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsePretty(t *testing.T) {
	assert.True(t, usePretty("pretty"))
	assert.False(t, usePretty("json"))
	assert.False(t, usePretty(""))
}

func TestSetup_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ielts.log")

	log := Setup("info", "json", path)
	log.Info().Str("component", "test").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}
