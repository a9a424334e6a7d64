package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadFileOverlaysDefaults(t *testing.T) {
	cfg := Defaults()
	require.False(t, cfg.EnableLoopback)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enable_loopback: true\nnetwork_interface: 192.168.1.20\n"), 0o600))

	require.NoError(t, LoadFile(&cfg, path))
	require.True(t, cfg.EnableLoopback)
	require.Equal(t, "192.168.1.20", cfg.NetworkInterface)
}

func TestLoadFileMissingPathIsNotAnError(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, LoadFile(&cfg, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestFlagsOverrideFileValues(t *testing.T) {
	cfg := Defaults()
	cfg.NetworkInterface = "192.168.1.20"

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--interface=10.0.0.5", "--loopback"}))

	require.Equal(t, "10.0.0.5", cfg.NetworkInterface)
	require.True(t, cfg.EnableLoopback)
}
