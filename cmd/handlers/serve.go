package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"articleforge/internal/config"
	"articleforge/internal/logger"
	"articleforge/internal/server"
)

// NewServeCmd creates the serve command for the articles REST API
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the articles REST API",
		Long: `Serve the articles REST API from the configured database.

Pending migrations are applied on startup. The API is what the enhance and
scrape commands talk to when the store is 'api'.

Endpoints:
  GET    /api/articles                  list with page, limit, article_type and sort
  GET    /api/articles/search?q=        search titles and content
  GET    /api/articles/slug/{slug}
  GET    /api/articles/{id}
  GET    /api/articles/{id}/with-enhanced
  POST   /api/articles
  PUT    /api/articles/{id}
  DELETE /api/articles/{id}
  GET    /api/health

Examples:
  articleforge serve
  articleforge serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 5000)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: all interfaces)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	cfg := config.Get()
	logger.InitJSON(os.Stderr)
	logger.SetLevel(cfg.App.LogLevel)

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	logger.Info("Connecting to database", "driver", cfg.Database.Driver)
	db, repo, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(repo, serverCfg)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	ctx, stop := signalContext(ctx)
	defer stop()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		logger.Info("Server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(serverCfg.ShutdownTimeout))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", err)
			return err
		}
	}

	return nil
}
