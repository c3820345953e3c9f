package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"headshotstudio/internal/api"
	"headshotstudio/internal/db"
	"headshotstudio/internal/httpclient"
	"headshotstudio/internal/lora"
	"headshotstudio/internal/store"
)

var (
	serveAddr   string
	serveSeed   bool
	skipMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the HTTP API. The schema is migrated on startup unless --skip-migrate
is given.

Examples:
  headshots serve
  headshots serve --addr :9000 --seed`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: :$PORT)")
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Seed LoRA models on startup (MODELS_FILE or the built-in set)")
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not create or alter tables on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	if !skipMigrate {
		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		// An unpatched legacy table only loses trigger words; keep serving.
		if _, err := db.EnsureTriggerWordColumn(ctx, conn); err != nil {
			log.Warn().Err(err).Msg("trigger_word column missing")
		}
	}

	st := store.New(conn)
	rc := newReplicateClient()

	if serveSeed {
		n, err := seedModels(ctx, lora.NewRegistry(st, rc), cfg.ModelsFile)
		if err != nil {
			return err
		}
		log.Info().Int("models", n).Msg("lora models seeded")
	}

	if cfg.ReplicateAPIToken == "" {
		log.Warn().Msg("REPLICATE_API_TOKEN not set; generation requests will fail")
	}

	s := api.NewServer(cfg, api.Deps{
		Store:      st,
		Generator:  rc,
		Describer:  rc,
		HTTPClient: httpclient.New(httpclient.Options{PreferIPv4: cfg.PreferIPv4, Timeout: 30 * time.Second, PublicOnly: true}),
	})
	defer s.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generation holds the request open while the prediction runs.
		WriteTimeout: cfg.ReplicateTimeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
