package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{LogLevel: zerolog.InfoLevel, Type: JSONLogger, Output: &buf})

	Protocol.Info().Uint64("deposit", 5_000_000).Msg("challenge created")
	Protocol.Debug().Msg("filtered out")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "protocol", line["component"])
	assert.Equal(t, "challenge created", line["message"])
	assert.EqualValues(t, 5_000_000, line["deposit"])
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{LogLevel: zerolog.DebugLevel, Type: ConsoleLogger, Output: &buf})

	Ledger.Debug().Str("account", "vault").Msg("transfer")
	assert.Contains(t, buf.String(), `message: "transfer"`)
	assert.Contains(t, buf.String(), "| DEBUG |")
}

func TestParseLoggerType(t *testing.T) {
	lt, err := ParseLoggerType("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSONLogger, lt)

	lt, err = ParseLoggerType("")
	require.NoError(t, err)
	assert.Equal(t, ConsoleLogger, lt)

	_, err = ParseLoggerType("xml")
	assert.Error(t, err)
}
