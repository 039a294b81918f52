package logging

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "secret is redacted", input: "my-secret-password"},
		{name: "empty secret is still redacted", input: ""},
		{name: "complex secret is redacted", input: "password123!@#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "[REDACTED]", Secret(tt.input).String())
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", Secret(tt.input)))
		})
	}
}

func TestLoggerWritesLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("started %s", "rotation")
	logger.Warn("slow store")
	logger.Error("failed: %v", "boom")

	out := buf.String()
	assert.Contains(t, out, "✓ started rotation\n")
	assert.Contains(t, out, "⚠ slow store\n")
	assert.Contains(t, out, "✗ failed: boom\n")
	assert.NotContains(t, out, "\033[", "noColor must suppress ANSI codes")
}

func TestLoggerDebugMode(t *testing.T) {
	var buf bytes.Buffer

	NewWithWriter(&buf, false, true).Debug("hidden")
	assert.Empty(t, buf.String())

	logger := NewWithWriter(&buf, true, true)
	assert.True(t, logger.DebugEnabled())
	logger.Debug("visible %d", 1)
	assert.Equal(t, "[DEBUG] visible 1\n", buf.String())
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf, false, true)
	child := parent.With("secret", "db/main").With("step", "createSecret")

	child.Info("created version")
	parent.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "✓ created version secret=db/main step=createSecret", lines[0])
	assert.Equal(t, "✓ plain", lines[1], "parent logger must not inherit child fields")
}

func TestLoggerFieldRedaction(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, false, true).With("password", Secret("hunter22")).Info("applied")

	assert.Contains(t, buf.String(), "password=[REDACTED]")
	assert.NotContains(t, buf.String(), "hunter22")
}

func TestRedact(t *testing.T) {
	got := Redact("user=admin password=s3cr3t-value", []string{"s3cr3t-value", "abc", ""})
	assert.Equal(t, "user=admin password=[REDACTED]", got)
}
