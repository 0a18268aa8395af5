package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vijay5b3/SkillSpeak/internal/config"
	"github.com/vijay5b3/SkillSpeak/internal/daemon"
	"github.com/vijay5b3/SkillSpeak/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay in the foreground",
	Long: `Run the relay server in the foreground until interrupted.
Configuration comes from the optional config file and environment
variables; at minimum the upstream API key and model must be set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}

	return d.Run()
}

// loadConfig loads, overrides, and validates the relay configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
