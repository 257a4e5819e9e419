package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "imap", cfg.Mail.Backend)
	assert.Equal(t, "INBOX", cfg.Mail.Folder)
	assert.Equal(t, "993", cfg.Mail.IMAP.Port)
	assert.Equal(t, 3, cfg.Mail.ConnectAttempts)
	assert.Equal(t, 300*time.Millisecond, cfg.Mail.ConnectBackoff())
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 300*time.Second, cfg.Watch.PollInterval())
	assert.Equal(t, 25, cfg.Watch.BatchSize)
	assert.False(t, cfg.Folders.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TRIAGE_MAIL_FOLDER", "Archive")
	t.Setenv("TRIAGE_WATCH_BATCH_SIZE", "7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Archive", cfg.Mail.Folder)
	assert.Equal(t, 7, cfg.Watch.BatchSize)
}

func TestLoadConfigClampsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mail:\n  connect_attempts: 0\nwatch:\n  batch_size: -3\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Mail.ConnectAttempts)
	assert.Equal(t, 25, cfg.Watch.BatchSize)
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mail: [unclosed\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultAppConfig()
	cfg.Mail.Backend = "gmail"
	cfg.Mail.Gmail.CredentialsFile = "/tmp/creds.json"
	cfg.AI.Model = "local-model"
	cfg.Folders.Enabled = true
	cfg.Rate.HolisticMS = 900

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gmail", loaded.Mail.Backend)
	assert.Equal(t, "/tmp/creds.json", loaded.Mail.Gmail.CredentialsFile)
	assert.Equal(t, "local-model", loaded.AI.Model)
	assert.True(t, loaded.Folders.Enabled)
	assert.Equal(t, 900, loaded.Rate.HolisticMS)
}
