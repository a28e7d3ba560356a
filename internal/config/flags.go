package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDir    = flag.String("dir", "", "Model directory to open on start")
	flagDB     = flag.String("db", "", "Path to catalog database file")
	flagLevel  = flag.String("log-level", "", "Log level (debug, info, warn, error)")
)

// ConfigPath returns the explicit config path from flags, if any.
func ConfigPath() string {
	return *flagConfig
}

// StartDirectory returns the -dir flag value, if any.
func StartDirectory() string {
	return *flagDir
}

// applyFlags overrides config values with CLI flags (highest priority).
func applyFlags(cfg *Config) {
	if *flagDB != "" {
		cfg.Catalog.DBPath = *flagDB
	}
	if *flagLevel != "" {
		cfg.Logging.Level = *flagLevel
	}
}
