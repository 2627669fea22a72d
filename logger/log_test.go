package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func jsonLogger(b *bytes.Buffer) *Logger {
	c := DefaultConfig()
	c.Formatter = "json"
	c.JSONFormat.DisableTimestamp = true
	l := NewLogger("foons", c)
	l.SetOutput(b)
	return l
}

func TestLog(t *testing.T) {
	var b bytes.Buffer
	l := jsonLogger(&b).WithFields("basearg", 1)
	l.Info("test")

	expect := `{"basearg":1,"level":"info","msg":"test","ns":"foons"}` + "\n"
	if b.String() != expect {
		t.Fatal("unexpected log:", b.String())
	}
}

func TestErrorFieldLog(t *testing.T) {
	var b bytes.Buffer
	l := jsonLogger(&b)
	l.Info("test", errors.New("fooerr"))

	expect := `{"error":"fooerr","level":"info","msg":"test","ns":"foons"}` + "\n"
	if b.String() != expect {
		t.Fatal("unexpected log:", b.String())
	}
}

func TestOddArgs(t *testing.T) {
	var b bytes.Buffer
	l := jsonLogger(&b)
	l.Info("test", "key", "value", "dangling")

	expect := `{"key":"value","level":"info","msg":"test","ns":"foons","unknown":"dangling"}` + "\n"
	assert.Equal(t, expect, b.String())
}

func TestLevel(t *testing.T) {
	var b bytes.Buffer
	l := jsonLogger(&b)
	l.SetLevel("warn")

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"warn"`)
	assert.Contains(t, lines[1], `"msg":"error"`)
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var b bytes.Buffer
	parent := jsonLogger(&b)
	parent.WithFields("child", true)
	parent.Info("test")

	assert.NotContains(t, b.String(), "child")
}
