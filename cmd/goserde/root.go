package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	goserde "github.com/reoring/goserde"
	"github.com/reoring/goserde/normalizer"
	"github.com/reoring/goserde/resolver"
	"github.com/reoring/goserde/store"

	_ "github.com/reoring/goserde/source"
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	Schema   string // YAML class definitions
	Config   string // YAML compile config
	CacheDir string // persistent program store, empty to disable
	LogLevel string
	Driver   string // gojson or json
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "goserde",
	Short: "Compile, inspect and run type-directed JSON programs",
	Long: `goserde compiles type signatures into streaming JSON encode/decode programs.

Classes come from a YAML schema (--schema); compile options from a YAML config
(--config). Compiled programs are persisted under --cache-dir when set.

Environment (also read from .env):
  GOSERDE_CACHE_DIR   default for --cache-dir
  GOSERDE_LOG_LEVEL   default for --log-level`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(globalFlags.LogLevel)
		if err != nil {
			return err
		}
		goserde.SetLogger(l)
		switch globalFlags.Driver {
		case "gojson", "":
		case "json":
			goserde.UseDefaultJSONDriver()
		default:
			return fmt.Errorf("unknown driver %q (want gojson or json)", globalFlags.Driver)
		}
		return nil
	},
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// newMarshaller builds a Marshaller from the global flags.
func newMarshaller() (*goserde.Marshaller, error) {
	var res goserde.Resolver = resolver.NewStatic()
	if globalFlags.Schema != "" {
		s, err := resolver.LoadYAMLFile(globalFlags.Schema)
		if err != nil {
			return nil, err
		}
		if res, err = resolver.Memoize(s, 512); err != nil {
			return nil, err
		}
	}
	cfg := goserde.NewConfig()
	if globalFlags.Config != "" {
		f, err := os.Open(globalFlags.Config)
		if err != nil {
			return nil, err
		}
		cfg, err = goserde.LoadConfig(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}
	cfg = cfg.WithServices(goserde.Services{"rfc3339": normalizer.RFC3339{}})

	var opts []goserde.CacheOption
	if globalFlags.CacheDir != "" {
		dir, err := store.NewDir(globalFlags.CacheDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goserde.WithStore(dir))
	}
	return goserde.New(res, goserde.WithConfig(cfg), goserde.WithCache(goserde.NewCache(opts...))), nil
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&globalFlags.Schema, "schema", "", "YAML class schema")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "YAML compile config")
	rootCmd.PersistentFlags().StringVar(&globalFlags.CacheDir, "cache-dir", os.Getenv("GOSERDE_CACHE_DIR"), "persistent program store directory")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", envOr("GOSERDE_LOG_LEVEL", "warn"), "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Driver, "driver", "gojson", "JSON token driver: gojson|json")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(transcodeCmd)
	rootCmd.AddCommand(warmCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
