package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var typedNil *logger
	var l Logger = typedNil
	require.True(t, IsNil(l))

	safe := OrNop(l)
	require.False(t, IsNil(safe))
	require.NotPanics(t, func() { safe.Info("hello %s", "world") })
}

func TestNewFormatsTextMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{Level: LevelInfo, Format: FormatText, Output: buf, Component: "test"})

	l.Info("hello %s", "world")
	l.Debug("should not appear")

	out := buf.String()
	require.Contains(t, out, "hello world")
	require.Contains(t, out, "[info]")
	require.Contains(t, out, "test")
	require.NotContains(t, out, "should not appear")
}

func TestNewFormatsJSONMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{Level: LevelDebug, Format: FormatJSON, Output: buf})

	l.Warn("disk at %d%%", 90)

	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"msg":"disk at 90%"`)
}

func TestWithAppendsComponentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{Level: LevelInfo, Format: FormatText, Output: buf, Component: "cycle"})
	child := l.With("fsm")

	child.Info("tick")

	require.Contains(t, buf.String(), "cycle.fsm")
}
