package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/profile"
)

var (
	flagConfig  string
	flagProfile string
	flagVerbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML (default ~/.amiengine/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Threshold profile layered over the config")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log decision stages at debug level")
}

var rootCmd = &cobra.Command{
	Use:   "amiengine",
	Short: "Deterministic ethical decision engine",
	Long: "Scores candidate intervention actions against justice, harm and compassion,\n" +
		"enforces hard constraints with a fail-safe, and escalates to a human when\n" +
		"confidence is low. Every decision carries a replayable, hashed trace.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. Warnings and errors only unless
// --verbose is set.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if flagVerbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// loadConfig reads --config and layers --profile on top.
func loadConfig() (*policy.Config, error) {
	cfg, err := policy.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err = profile.Resolve(flagProfile, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine builds an engine from the global flags.
func newEngine(logger *zap.Logger) (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, engine.WithLogger(logger))
}

// readInput reads a file argument, or stdin when the path is "-" or empty.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
