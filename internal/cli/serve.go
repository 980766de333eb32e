package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/andywolf/twentyq/internal/server"
	"github.com/andywolf/twentyq/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored results over HTTP",
	Long: `Serve the results database as a read-only JSON API:

  GET /health
  GET /games?topic=&limit=
  GET /games/{id}
  GET /summary

Example:
  twentyq serve --addr :8080 --db runs/results.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().String("db", "", "SQLite results database (default <output dir>/results.db)")
	serveCmd.Flags().Int("rate-limit", 0, "Requests per client per interval (0 uses config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path, _ = cmd.Flags().GetString("db")
	}
	if cmd.Flags().Changed("rate-limit") {
		cfg.Server.RateLimit, _ = cmd.Flags().GetInt("rate-limit")
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.Output.Dir, "results.db")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(st, server.Config{
		Addr:           cfg.Server.Addr,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		RateInterval:   cfg.Server.RateInterval,
	}, logger)
	return srv.Run(ctx)
}
