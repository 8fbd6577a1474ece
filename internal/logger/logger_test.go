package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetLogger() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer resetLogger()

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_VerboseEnabled(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("stage %s done", "classify")
	assert.Contains(t, buf.String(), "[DEBUG] stage classify done")
}

func TestDebug_VerboseDisabled(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestSection(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Analysis Run")
	assert.Contains(t, buf.String(), "=== Analysis Run ===")
}

func TestInfoAndWarn(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Info("processed %d", 3)
	Warn("retrying %s", "embed")

	out := buf.String()
	assert.Contains(t, out, "[INFO] processed 3")
	assert.Contains(t, out, "[WARN] retrying embed")
}
