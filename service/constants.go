package service

// DefaultName is the name of the config directory of the service.
const DefaultName = "anchorledger"

// DefaultConfigName is the TOML file the service reads its settings from.
const DefaultConfigName = "anchorledger.toml"

// ConfigEnv overrides the config file location when set.
const ConfigEnv = "ANCHORLEDGER_CONFIG"

// chainBucket is the bolt bucket holding the chain snapshot.
var chainBucket = []byte("anchorchain")
