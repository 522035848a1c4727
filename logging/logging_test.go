package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	filename := filepath.Join(t.TempDir(), "scholix.log")
	c, err := Setup(Options{Level: "debug", Format: "json", File: filename})
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.WithField("run_id", "x").Debug("hello")
	require.NoError(t, c.Close())
	b, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"run_id":"x"`)
}

func TestSetupErrors(t *testing.T) {
	_, err := Setup(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = Setup(Options{Level: "info", Format: "yaml"})
	assert.Error(t, err)
	c, err := Setup(Options{Level: "info"})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
