package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.DefaultECK)
	assert.Equal(t, 2, cfg.DefaultECM)
	assert.Equal(t, 150, cfg.VnodesPerNode)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoadAppliesDefaultsToUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_ec_k: 6\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.DefaultECK)
	assert.Equal(t, Default().DefaultECM, cfg.DefaultECM)
	assert.Equal(t, Default().VnodesPerNode, cfg.VnodesPerNode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestValidateRejectsOutOfRangeShards(t *testing.T) {
	cfg := Default()
	cfg.DefaultECK = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DefaultECM = 17
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeInlineThreshold(t *testing.T) {
	cfg := Default()
	cfg.InlineThreshold = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroWorkerCount(t *testing.T) {
	cfg := Default()
	cfg.MigrationWorkerCount = 0
	assert.Error(t, cfg.Validate())
}
