package service

import (
	"os"
	"path/filepath"
	"time"

	bc "anchorledger/blockchain"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/onet/v3/cfgpath"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// defaultDifficulty is applied when the config does not set one. It should
// be a constant, but tests lower it to keep mining fast.
var defaultDifficulty = bc.DefaultDifficulty

// Config is the node-side configuration of the anchor ledger.
type Config struct {
	// Difficulty is the proof-of-work difficulty of the local chain. It
	// is fixed at startup: changing it invalidates a persisted chain,
	// which then restarts from genesis.
	Difficulty int
	// MiningWorkers bounds how many proof-of-work searches may run at
	// once.
	MiningWorkers int
	// RemoteTimeoutSeconds bounds every call to the remote ledger.
	RemoteTimeoutSeconds int
	// NTPCheck enables the clock drift advisory at startup.
	NTPCheck bool
	// NTPServers are asked in order until one answers.
	NTPServers []string
	// MaxClockDriftMillis is the advisory threshold.
	MaxClockDriftMillis int64
	// Remote configures the optional smart contract mirror.
	Remote RemoteConfig
}

// RemoteConfig carries the connection parameters of the anchor registry
// contract. Enabled only opts in to the startup probe: an unreachable
// network still leaves the node running locally.
type RemoteConfig struct {
	Enabled         bool
	Endpoint        string
	ContractAddress string
	PrivateKey      string
}

// RemoteTimeout returns the per-call budget for the remote ledger.
func (c Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSeconds) * time.Second
}

// DefaultConfig is the configuration of a node without a config file:
// local anchoring only, one mining worker, no clock check.
func DefaultConfig() Config {
	return Config{
		Difficulty:           defaultDifficulty,
		MiningWorkers:        1,
		RemoteTimeoutSeconds: 5,
		NTPServers:           []string{"pool.ntp.org"},
		MaxClockDriftMillis:  500,
	}
}

// LoadConfig reads the TOML config from the env override or the default
// location. A missing file quietly yields the defaults; a file that exists
// but cannot be parsed is a startup error.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := os.Getenv(ConfigEnv)
	if path == "" {
		path = filepath.Join(cfgpath.GetConfigPath(DefaultName), DefaultConfigName)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Lvl3("no anchor ledger config at", path, "- using defaults")
		return cfg.normalized(), nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, xerrors.Errorf("reading config %s: %v", path, err)
	}
	log.Lvl2("loaded anchor ledger config from", path)
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	if c.Difficulty < 1 {
		c.Difficulty = defaultDifficulty
	}
	if c.Difficulty > bc.MaxDifficulty {
		log.Warnf("difficulty %d cannot be mined, capping at %d",
			c.Difficulty, bc.MaxDifficulty)
		c.Difficulty = bc.MaxDifficulty
	}
	if c.MiningWorkers < 1 {
		c.MiningWorkers = 1
	}
	if c.RemoteTimeoutSeconds <= 0 {
		c.RemoteTimeoutSeconds = 5
	}
	if c.MaxClockDriftMillis <= 0 {
		c.MaxClockDriftMillis = 500
	}
	if len(c.NTPServers) == 0 {
		c.NTPServers = []string{"pool.ntp.org"}
	}
	return c
}
