package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestLevels(t *testing.T) {
	buf := captureLog(t)
	SetVerbose(false)

	Infof("wrote %d cases", 3)
	Warningf("skipping %s", "case_1")
	Errorf("failed: %v", "boom")
	Debugf("hidden")

	out := buf.String()
	assert.Contains(t, out, " INFO wrote 3 cases")
	assert.Contains(t, out, " WARNING skipping case_1")
	assert.Contains(t, out, " ERROR failed: boom")
	assert.NotContains(t, out, "hidden")

	SetVerbose(true)
	defer SetVerbose(false)
	Debugf("shown")
	assert.Contains(t, buf.String(), " DEBUG shown")
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signalseg.log")
	closer := Setup(Config{File: path, MaxSizeMB: 1, MaxAgeDays: 1})
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	Infof("hello %s", "file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), " INFO hello file")
}

func TestSetupStdout(t *testing.T) {
	closer := Setup(Config{})
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	assert.NoError(t, closer.Close())
}
