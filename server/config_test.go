package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadingNonExistingConfigFile(t *testing.T) {
	cfg := Config{
		ConfigFile: "non-existing-file.ini",
	}
	_, err := ReadConfigFile(&cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctfkit.ini")
	require.NoError(t, os.WriteFile(path, []byte("database = /tmp/ctf.db\ndebuglog = true"), 0o600))

	cfg := Config{ConfigFile: path}
	_, err := ReadConfigFile(&cfg)
	require.NoError(t, err)
	require.Equal(t, "/tmp/ctf.db", cfg.Database)
	require.True(t, cfg.DebugLog)
}

func TestReadConfigFilePathNotSet(t *testing.T) {
	cfg := Config{}
	_, err := ReadConfigFile(&cfg)
	require.NoError(t, err)
}

func TestSetupConfigShiftsDefaultsIntoBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "competition")
	cfg := DefaultConfig()
	cfg.CtfDir = base

	cfg, err := SetupConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, defaultDatabase), cfg.Database)
	require.Equal(t, filepath.Join(base, defaultLogDirname), cfg.LogDir)
	require.DirExists(t, base)
}

func TestSetupConfigKeepsExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.CtfDir = filepath.Join(dir, "base")
	cfg.Database = filepath.Join(dir, "elsewhere", "flags.db")

	cfg, err := SetupConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "elsewhere", "flags.db"), cfg.Database)
	require.Equal(t, filepath.Join(cfg.CtfDir, defaultLogDirname), cfg.LogDir)
}
