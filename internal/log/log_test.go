package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	}()

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn", "day", "2024-01-07")
	Error("shown error", errors.New("boom"), "todo_id", "t1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn day=2024-01-07")
	assert.Contains(t, out, "[ERROR] shown error err=boom todo_id=t1")
}

func TestFormatKVsIgnoresDanglingKey(t *testing.T) {
	got := formatKVs("a", 1, "b")
	assert.Equal(t, " a=1", got)
	assert.False(t, strings.Contains(got, "b"))
}
