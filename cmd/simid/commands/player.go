package commands

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/bus"
	"github.com/HsiangNianian/simid-bridge/internal/protocol"
)

// player: accept sessions, answer request types, log observed types.
func playerCmd() *cobra.Command {
	var (
		viaBus  bool
		room    string
		observe []string
	)
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Attach as the player host",
		RunE: func(cmd *cobra.Command, args []string) error {
			if room != "" {
				cfg.Client.Room = room
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l, err := connect(ctx, bus.RolePlayer, viaBus)
			if err != nil {
				return err
			}
			defer func() { _ = l.close() }()

			e := newEngine(nil)

			e.AddListener(protocol.CreateSession, func(env protocol.Envelope) {
				logger.Info("session created", zap.String("session_id", env.SessionID))
				if err := e.Resolve(env, nil); err != nil {
					logger.Warn("resolve createSession failed", zap.Error(err))
				}
			})
			for _, t := range cfg.Engine.RequestTypes {
				e.AddListener(t, func(env protocol.Envelope) {
					logger.Info("request", zap.String("type", env.Type), zap.Int("msg_id", env.MessageID), zap.ByteString("args", env.Args))
					if err := e.Resolve(env, json.RawMessage(`{}`)); err != nil {
						logger.Warn("resolve failed", zap.Int("msg_id", env.MessageID), zap.Error(err))
					}
				})
			}
			for _, t := range observe {
				e.AddListener(t, func(env protocol.Envelope) {
					logger.Info("event", zap.String("type", env.Type), zap.Int("msg_id", env.MessageID), zap.ByteString("args", env.Args))
				})
			}

			return l.run(ctx, e, func() {})
		},
	}
	cmd.Flags().BoolVar(&viaBus, "via-bus", false, "attach to the redis bus instead of the relay")
	cmd.Flags().StringSliceVar(&observe, "observe", nil, "informational message types to log")
	cmd.Flags().StringVar(&room, "room", "", "room to join (overrides client.room)")
	return cmd
}
