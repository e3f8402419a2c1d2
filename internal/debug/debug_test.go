package debug

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveAndRestoreState saves the debug package state and returns a cleanup function
func saveAndRestoreState() func() {
	originalDebug := EnableDebug
	originalMode := MCPMode
	originalOutput := debugOutput
	originalFile := debugFile
	return func() {
		EnableDebug = originalDebug
		MCPMode = originalMode
		debugOutput = originalOutput
		debugFile = originalFile
	}
}

func TestSetMCPMode(t *testing.T) {
	defer saveAndRestoreState()()

	SetMCPMode(true)
	assert.True(t, MCPMode)

	SetMCPMode(false)
	assert.False(t, MCPMode)
}

func TestIsDebugEnabled(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "false"
	MCPMode = false
	assert.False(t, IsDebugEnabled())

	EnableDebug = "true"
	MCPMode = false
	assert.True(t, IsDebugEnabled())

	// Invalid value defaults to false
	EnableDebug = "invalid"
	assert.False(t, IsDebugEnabled())
}

func TestIsDebugEnabled_MCPModeSuppresses(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "true"
	MCPMode = true
	assert.False(t, IsDebugEnabled())
}

func TestLog(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	MCPMode = false
	Log("SCAN", "scanned %d files\n", 3)

	output := buf.String()
	assert.Contains(t, output, "[DEBUG:SCAN]")
	assert.Contains(t, output, "scanned 3 files")
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2}\]\[\d{2}:\d{2}:\d{2}\]`, output)
}

func TestLog_MCPMode(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	MCPMode = true
	Log("SCAN", "should not appear\n")

	assert.Empty(t, buf.String())
}

func TestLog_NoOutputConfigured(t *testing.T) {
	defer saveAndRestoreState()()

	SetDebugOutput(nil)
	EnableDebug = "true"
	MCPMode = false

	// Must not panic with a nil writer.
	Log("WALK", "dropped\n")
}

func TestInitDebugLogFile(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "true"
	MCPMode = false

	path, err := InitDebugLogFile()
	require.NoError(t, err)
	defer os.Remove(path)
	assert.True(t, strings.Contains(path, "quer-debug-logs"))

	LogExport("exported\n")
	require.NoError(t, CloseDebugLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG:EXPORT] exported")
}
