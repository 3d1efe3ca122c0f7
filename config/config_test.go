package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.BindHost)
	assert.Equal(t, 3999, cfg.Server.BindPort)
	assert.Equal(t, time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.RechargeTimeout)
	assert.Equal(t, "/data/transcripts", cfg.Transcripts.Path)
	assert.Equal(t, 7, cfg.Transcripts.RetentionDays)
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	doc := "server:\n  bind_port: 4001\n  read_timeout: 2s\ntranscripts:\n  retention_days: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.BindHost) // untouched default
	assert.Equal(t, 4001, cfg.Server.BindPort)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.RechargeTimeout) // untouched default
	assert.Equal(t, "/data/transcripts", cfg.Transcripts.Path) // untouched default
	assert.Equal(t, 30, cfg.Transcripts.RetentionDays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
