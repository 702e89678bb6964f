package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, l.GetLevel())

	l.WithField("community", "testville").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "testville", entry["community"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(io.Discard, "loud", "text")
	assert.Error(t, err)

	_, err = New(io.Discard, "info", "xml")
	assert.Error(t, err)
}
