package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdinalNames(t *testing.T) {
	for o := OrdOpenContext; o <= OrdListKeys; o++ {
		assert.True(t, o.Valid())
		parsed, err := ParseOrdinal(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, parsed)
	}

	assert.False(t, OrdUnknown.Valid())
	assert.False(t, Ordinal(99).Valid())
	assert.Equal(t, "unknown(99)", Ordinal(99).String())

	_, err := ParseOrdinal("format-disk")
	assert.Error(t, err)
}

func TestOrdinalJSON(t *testing.T) {
	data, err := json.Marshal(OrdTransmitCommand)
	require.NoError(t, err)
	assert.Equal(t, `"transmit-command"`, string(data))

	var o Ordinal
	require.NoError(t, json.Unmarshal(data, &o))
	assert.Equal(t, OrdTransmitCommand, o)
}

func TestResultErrorIs(t *testing.T) {
	err := fmt.Errorf("call failed: %w", &ResultError{Code: ResultKeyNotFound, Msg: "key 1 is not registered"})

	assert.ErrorIs(t, err, &ResultError{Code: ResultKeyNotFound})
	assert.False(t, errors.Is(err, &ResultError{Code: ResultKeyExists}))
	assert.Equal(t, "call failed: key not found: key 1 is not registered", err.Error())
}

func TestRemoteAllowed(t *testing.T) {
	cfg := ServerConfig{RemoteOps: []Ordinal{OrdGetRegisteredKey}}

	assert.True(t, cfg.RemoteAllowed(OrdOpenContext))
	assert.True(t, cfg.RemoteAllowed(OrdCloseContext))
	assert.True(t, cfg.RemoteAllowed(OrdGetRegisteredKey))
	assert.False(t, cfg.RemoteAllowed(OrdTransmitCommand))
	assert.False(t, cfg.RemoteAllowed(OrdRegisterKey))
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "warning", "error"} {
		_, err := ParseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}
