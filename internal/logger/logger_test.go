package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_TextOutputCarriesKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf})

	l.With("component", "auth").Info("signin ok", "user_id", 7)

	out := buf.String()
	assert.Contains(t, out, "signin ok")
	assert.Contains(t, out, "component=auth")
	assert.Contains(t, out, "user_id=7")
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestNew_JSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{JSON: true, Output: &buf})

	l.Error("boom", "err", "smtp down")

	assert.Contains(t, buf.String(), `"msg":"boom"`)
	assert.Contains(t, buf.String(), `"err":"smtp down"`)
}

func TestNop(t *testing.T) {
	l := Nop().With("a", 1)
	l.Info("nothing")
	l.Error("nothing")
}
