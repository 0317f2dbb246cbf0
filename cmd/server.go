package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/server"
)

var (
	serverPort     int
	serverAllowAll bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the widget store server and browser editor",
	Long: `Starts the popup-studio server: the widget store API, standalone widget
documents under /widgets/{object}.html, the template catalog, the browser
editor at /, live change notifications and the audit trail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Remote() {
			return fmt.Errorf("api_url is set; the server always uses its local store under %s", cfg.DataDir)
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		ws, err := openWorkspace(cfg, reg)
		if err != nil {
			return err
		}
		defer ws.Close()

		port := cfg.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}
		srv := server.New(server.Config{
			Port:            port,
			AllowAll:        cfg.AllowAllOrigins || serverAllowAll,
			PreviewDebounce: cfg.PreviewDebounce,
			RateLimit:       cfg.RateLimit,
			AuditRetention:  cfg.AuditRetention,
		}, ws.db, reg, ws.jwt)

		if n, err := srv.Users().Count(cmd.Context()); err == nil && n == 0 {
			logging.Warn().Msg("no users yet; create one with `popupstudio user add <name> --role admin`")
		}

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go srv.RunAuditRetention(ctx)

		go func() {
			<-ctx.Done()
			logging.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		logging.Info().Str("version", Version).Str("database", cfg.DatabasePath()).Msg("starting popup-studio server")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "port to listen on (overrides config)")
	serverCmd.Flags().BoolVar(&serverAllowAll, "allow-all-origins", false, "allow all CORS origins (development)")
	rootCmd.AddCommand(serverCmd)
}
