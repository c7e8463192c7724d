package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kartta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	content := `
version: "1"
projects:
  - project-one
  - project-two
storage_dir: /var/lib/kartta
policy_dir: /etc/kartta/policies
interval: 5m
assets:
  functions: true
  buckets: false
`
	cfg, err := LoadConfig(writeTempConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, []string{"project-one", "project-two"}, cfg.Projects)
	assert.Equal(t, "/var/lib/kartta", cfg.StorageDir)
	assert.Equal(t, "/etc/kartta/policies", cfg.PolicyDir)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.True(t, cfg.Assets.Functions)
	assert.False(t, cfg.Assets.Buckets)
}

func TestLoadConfig_Defaults(t *testing.T) {
	content := `
version: "1"
projects:
  - project-one
`
	cfg, err := LoadConfig(writeTempConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "./kartta-data", cfg.StorageDir)
	assert.Equal(t, 15*time.Minute, cfg.Interval)
	// With no asset toggles set, everything is synced
	assert.True(t, cfg.Assets.Functions)
	assert.True(t, cfg.Assets.Buckets)
}

func TestLoadConfig_MissingVersion(t *testing.T) {
	content := `
projects:
  - project-one
`
	_, err := LoadConfig(writeTempConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadConfig_NoProjects(t *testing.T) {
	_, err := LoadConfig(writeTempConfig(t, `version: "1"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project")
}

func TestLoadConfig_EmptyProjectID(t *testing.T) {
	content := `
version: "1"
projects:
  - project-one
  - ""
`
	_, err := LoadConfig(writeTempConfig(t, content))
	require.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeTempConfig(t, "projects: [unclosed"))
	assert.Error(t, err)
}
