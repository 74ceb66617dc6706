package service

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	bc "anchorledger/blockchain"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, defaultDifficulty, cfg.Difficulty)
	require.Equal(t, 1, cfg.MiningWorkers)
	require.Equal(t, 5*time.Second, cfg.RemoteTimeout())
	require.False(t, cfg.NTPCheck)
	require.False(t, cfg.Remote.Enabled)
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{Difficulty: -3, RemoteTimeoutSeconds: -1}
	n := cfg.normalized()
	require.Equal(t, defaultDifficulty, n.Difficulty)
	require.Equal(t, 1, n.MiningWorkers)
	require.Equal(t, 5, n.RemoteTimeoutSeconds)
	require.Equal(t, int64(500), n.MaxClockDriftMillis)
	require.Equal(t, []string{"pool.ntp.org"}, n.NTPServers)

	// A difficulty no hash can meet is capped to a minable one.
	capped := Config{Difficulty: 100}.normalized()
	require.Equal(t, bc.MaxDifficulty, capped.Difficulty)
}

func TestLoadConfigFromEnv(t *testing.T) {
	tmp, err := ioutil.TempFile("", "anchorledger-*.toml")
	require.NoError(t, err)
	defer os.Remove(tmp.Name())
	_, err = tmp.WriteString(`
Difficulty = 2
MiningWorkers = 4
RemoteTimeoutSeconds = 7

[Remote]
Enabled = false
Endpoint = "http://127.0.0.1:8545"
`)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	require.NoError(t, os.Setenv(ConfigEnv, tmp.Name()))
	defer os.Unsetenv(ConfigEnv)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Difficulty)
	require.Equal(t, 4, cfg.MiningWorkers)
	require.Equal(t, 7*time.Second, cfg.RemoteTimeout())
	require.False(t, cfg.Remote.Enabled)
	require.Equal(t, "http://127.0.0.1:8545", cfg.Remote.Endpoint)
}

func TestLoadConfigMissingFile(t *testing.T) {
	require.NoError(t, os.Setenv(ConfigEnv, "/nonexistent/anchorledger.toml"))
	defer os.Unsetenv(ConfigEnv)

	// No file means defaults, not an error.
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, defaultDifficulty, cfg.Difficulty)
}

func TestLoadConfigMalformed(t *testing.T) {
	tmp, err := ioutil.TempFile("", "anchorledger-*.toml")
	require.NoError(t, err)
	defer os.Remove(tmp.Name())
	_, err = tmp.WriteString("Difficulty = [oops\n")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	require.NoError(t, os.Setenv(ConfigEnv, tmp.Name()))
	defer os.Unsetenv(ConfigEnv)

	_, err = LoadConfig()
	require.Error(t, err)
}
