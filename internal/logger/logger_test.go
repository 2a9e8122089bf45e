package logger

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatter(t *testing.T) {
	for name, want := range map[string]log.Formatter{
		"":       log.TextFormatter,
		"text":   log.TextFormatter,
		"JSON":   log.JSONFormatter,
		"logfmt": log.LogfmtFormatter,
	} {
		got, err := ParseFormatter(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseFormatter("xml")
	assert.Error(t, err)
}

func TestSetup(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	require.NoError(t, Setup(Options{Debug: true}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.Equal(t, "srv", New("srv").GetPrefix())

	require.NoError(t, Setup(Options{Format: "json"}))
	assert.Equal(t, log.InfoLevel, log.GetLevel())

	assert.Error(t, Setup(Options{Format: "yaml"}))
}
