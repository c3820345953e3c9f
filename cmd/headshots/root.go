package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"headshotstudio/internal/config"
	"headshotstudio/internal/db"
	"headshotstudio/internal/httpclient"
	"headshotstudio/internal/logging"
	"headshotstudio/internal/replicate"
)

var (
	envFile   string
	logLevel  string
	logFormat string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "headshots",
	Short: "AI headshot studio backend",
	Long: `Backend for the headshot studio: image generation through Replicate,
saved images, favorites, the public gallery and LoRA model management.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv(envFile)
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json, console (default: LOG_FORMAT)")
}

func openDB() (*sql.DB, error) {
	conn, err := db.OpenMySQL(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}

func newReplicateClient() *replicate.Client {
	return replicate.New(replicate.Options{
		BaseURL: cfg.ReplicateBaseURL,
		Token:   cfg.ReplicateAPIToken,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.ReplicateHTTPTimeout,
		}),
		PollInterval: cfg.ReplicatePollInterval,
		Timeout:      cfg.ReplicateTimeout,
	})
}

// migrateSchema creates missing tables and adds columns older databases lack.
func migrateSchema(ctx context.Context, conn *sql.DB) error {
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	added, err := db.EnsureTriggerWordColumn(ctx, conn)
	if err != nil {
		return err
	}
	if added {
		log.Info().Msg("added lora_models.trigger_word column")
	}
	return nil
}
