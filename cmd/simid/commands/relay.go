package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/bus"
	"github.com/HsiangNianian/simid-bridge/internal/relay"
)

func relayCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve the websocket relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listenAddr != "" {
				cfg.Relay.ListenAddr = listenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := openBus(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			hub := relay.NewHub(b, cfg.Relay.AuthToken, cfg.Relay.ClaimTTL(), logger)
			mux := http.NewServeMux()
			mux.HandleFunc(cfg.Relay.PlayerPath, hub.HandlePlayer)
			mux.HandleFunc(cfg.Relay.CreativePath, hub.HandleCreative)
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})

			srv := &http.Server{Addr: cfg.Relay.ListenAddr, Handler: mux}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				hub.Close()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("relay listening",
				zap.String("addr", cfg.Relay.ListenAddr),
				zap.String("player_path", cfg.Relay.PlayerPath),
				zap.String("creative_path", cfg.Relay.CreativePath),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("relay server failed", zap.Error(err))
				return err
			}
			logger.Info("relay stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides relay.listen_addr)")
	return cmd
}

func openBus(ctx context.Context) (bus.Bus, error) {
	if cfg.Bus.RedisAddr == "" {
		logger.Info("use memory bus")
		return bus.NewMemoryBus(), nil
	}
	rb := bus.NewRedisBus(cfg.Bus.RedisAddr, cfg.Bus.ChannelPrefix, logger)
	if err := rb.Ping(ctx); err != nil {
		_ = rb.Close()
		return nil, err
	}
	logger.Info("use redis bus", zap.String("addr", cfg.Bus.RedisAddr))
	return rb, nil
}
