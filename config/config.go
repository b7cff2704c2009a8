// Package config loads the engine's process-level knobs from a
// flag.FlagSet the way skipper's config.Config does, and the
// declarative routing document (routecfg.Document) from a file via
// github.com/spf13/viper and github.com/mitchellh/mapstructure, the
// way rogeecn-any-hub's internal/config.Load does.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/cnnlabs/cnn-routeomatic/routecfg"
)

// Config holds the process-level settings parsed from the command
// line: where to listen, where the routing document lives, and the
// ambient logging/metrics knobs.
type Config struct {
	Address         string
	SupportListener string
	RoutingDocument string
	LogLevel        string
	LogFilePath     string
	LogMaxSizeMB    int
	LogMaxBackups   int
	LogCompress     bool
	ExtraHeaders    mapFlag
	PrintVersion    bool
}

// NewConfig returns a Config with its flags registered against fs but
// not yet parsed, mirroring skipper's NewConfig/Parse split so callers
// can inject -h handling or extra flags before parsing argv.
func NewConfig(fs *flag.FlagSet) *Config {
	cfg := new(Config)

	fs.StringVar(&cfg.Address, "address", ":9090", "network address to listen on")
	fs.StringVar(&cfg.SupportListener, "support-listener", ":9911", "network address exposing /metrics and /reload; empty disables it")
	fs.StringVar(&cfg.RoutingDocument, "routing-document", "routes.yaml", "path to the declarative routing document")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "logging level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFilePath, "log-file", "", "path to the rotated log file; empty logs to stdout")
	fs.IntVar(&cfg.LogMaxSizeMB, "log-max-size", 100, "maximum size in megabytes before a log file is rotated")
	fs.IntVar(&cfg.LogMaxBackups, "log-max-backups", 10, "maximum number of rotated log files to retain")
	fs.BoolVar(&cfg.LogCompress, "log-compress", true, "compress rotated log files")
	fs.Var(&cfg.ExtraHeaders, "header", "comma-separated key=value pairs added to every response")
	fs.BoolVar(&cfg.PrintVersion, "version", false, "print the engine version and exit")

	return cfg
}

// Parse parses args (typically os.Args[1:]) into cfg's bound flags.
func (cfg *Config) Parse(fs *flag.FlagSet, args []string) error {
	return fs.Parse(args)
}

// LoadDocument reads the declarative routing document at path via
// viper, which auto-detects format from the
// file extension (YAML, TOML or JSON), and decodes it into a
// routecfg.Document.
func LoadDocument(path string) (*routecfg.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("config: routing document path is empty")
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: routing document: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading routing document: %w", err)
	}

	var doc routecfg.Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("config: decoding routing document: %w", err)
	}

	return &doc, nil
}
