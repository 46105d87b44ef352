package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_WritesToConfiguredWriter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf})

	l.Info("server.listening", "addr", "127.0.0.1:9001")

	assert.Contains(t, buf.String(), "server.listening")
	assert.Contains(t, buf.String(), "127.0.0.1:9001")
}

func TestNew_DebugLevel(t *testing.T) {
	var quiet, verbose bytes.Buffer

	New(Config{Writer: &quiet}).Debug("attempt.connected")
	New(Config{Writer: &verbose, Debug: true}).Debug("attempt.connected")

	assert.NotContains(t, quiet.String(), "attempt.connected")
	assert.Contains(t, verbose.String(), "attempt.connected")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard().Error("ignored", "k", "v")
	})
}
