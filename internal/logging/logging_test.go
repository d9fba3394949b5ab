package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info().Msg("dropped")
	logger.Warn().Int64("order_id", 7).Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, float64(7), line["order_id"])
	assert.Equal(t, "restaurant-ops", line["service"])
}

func TestNewLogger_EmptyLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "", "json")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "debug", "console")
	require.NoError(t, err)

	logger.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)
}
