package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	return fs
}

func TestLoadAppliesDefaultsWithNoOverrides(t *testing.T) {
	fs := newBoundFlagSet()
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(fs, "")
	require.NoError(t, err)

	d := Defaults()
	assert.Equal(t, d.Addr, cfg.Addr)
	assert.Equal(t, d.MaxDOMNodes, cfg.MaxDOMNodes)
	assert.Equal(t, d.PingInterval, cfg.PingInterval)
}

func TestLoadAppliesFlagOverride(t *testing.T) {
	fs := newBoundFlagSet()
	require.NoError(t, fs.Parse([]string{"--addr", ":9999", "--max-dom-nodes", "100"}))

	cfg, err := Load(fs, "")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 100, cfg.MaxDOMNodes)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	fs := newBoundFlagSet()
	require.NoError(t, fs.Parse(nil))

	t.Setenv("DEVTOOLS_BRIDGE_ADDR", ":7000")
	defer os.Unsetenv("DEVTOOLS_BRIDGE_ADDR")

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
}

func TestLoadRejectsInvertedActionTimeoutClamp(t *testing.T) {
	fs := newBoundFlagSet()
	require.NoError(t, fs.Parse([]string{"--min-action-timeout", "60s", "--max-action-timeout", "5s"}))

	_, err := Load(fs, "")
	assert.Error(t, err)
}

func TestClampActionTimeout(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, cfg.MinActionTimeout, cfg.ClampActionTimeout(time.Millisecond))
	assert.Equal(t, cfg.MaxActionTimeout, cfg.ClampActionTimeout(time.Hour))

	mid := (cfg.MinActionTimeout + cfg.MaxActionTimeout) / 2
	assert.Equal(t, mid, cfg.ClampActionTimeout(mid))
}

func TestActionTimeoutPerAction(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, cfg.AccessibilityTreeTimeout, cfg.ActionTimeout("getAccessibilityTree"))
	assert.Equal(t, cfg.DOMSnapshotTimeout, cfg.ActionTimeout("getDOMSnapshot"))
	assert.Equal(t, cfg.DefaultActionTimeout, cfg.ActionTimeout("getAllTabs"))
}
