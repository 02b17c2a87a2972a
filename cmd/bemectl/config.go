package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"bemekit/internal/storage"
	"bemekit/pkg/bemekit"
)

const envPrefix = "BEMEKIT"

// cliConfig is the merged view of flags, BEMEKIT_* variables and the
// optional config file, in that order of precedence.
type cliConfig struct {
	Store          string `mapstructure:"store"`
	DBPath         string `mapstructure:"db_path"`
	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`
	BuildsDir      string `mapstructure:"builds_dir"`
	RequestDir     string `mapstructure:"request_dir"`
	MetricsOut     string `mapstructure:"metrics_out"`
	LoadWorkers    int    `mapstructure:"load_workers"`
	FireFlowInput  string `mapstructure:"fire_flow_input"`
	JSON           bool   `mapstructure:"json"`
}

// registerGlobalFlags declares the persistent flags. Flag names are the
// config keys with '-' instead of '_'.
func registerGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("store", storage.DefaultStoreKind(), "catalog backend: memory|sqlite")
	fs.String("db-path", "bemekit.db", "sqlite catalog path")
	fs.String("log-level", "info", "log level: error|info|debug|<verbosity>")
	fs.Bool("log-development", false, "human readable logs")
	fs.String("builds-dir", "", "directory holding the simulator releases")
	fs.String("request-dir", "requests", "directory for re-simulation requests")
	fs.String("metrics-out", "", "write Prometheus metrics to this textfile on exit")
	fs.Int("load-workers", 4, "island files read concurrently per experiment")
	fs.String("fire-flow-input", "", "fire flow network referenced by converted fire_rel problems")
	fs.Bool("json", false, "print JSON instead of text")
}

func loadConfig(fs *pflag.FlagSet) (cliConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return cliConfig{}, fmt.Errorf("bind flags: %w", bindErr)
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cliConfig{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cliConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c cliConfig) clientOptions() bemekit.Options {
	return bemekit.Options{
		StoreKind:     c.Store,
		DBPath:        c.DBPath,
		BuildsDir:     c.BuildsDir,
		RequestDir:    c.RequestDir,
		LoadWorkers:   c.LoadWorkers,
		FireFlowInput: c.FireFlowInput,
	}
}
