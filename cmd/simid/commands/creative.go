package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/bus"
	"github.com/HsiangNianian/simid-bridge/internal/correlation"
	"github.com/HsiangNianian/simid-bridge/internal/engine"
)

// creative: open a session, then send each --send message in order.
func creativeCmd() *cobra.Command {
	var (
		viaBus bool
		room   string
		sends  []string
	)
	cmd := &cobra.Command{
		Use:   "creative",
		Short: "Attach as the creative, open a session and send messages",
		Example: `  simid creative --room demo \
    --send 'Creative:getMediaState' \
    --send 'Creative:log={"message":"hello"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if room != "" {
				cfg.Client.Room = room
			}
			msgs, err := parseSends(sends)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			l, err := connect(ctx, bus.RoleCreative, viaBus)
			if err != nil {
				return err
			}
			defer func() { _ = l.close() }()

			e := newEngine(nil)
			attached := make(chan struct{})
			var once sync.Once
			runErr := make(chan error, 1)
			go func() {
				err := l.run(ctx, e, func() { once.Do(func() { close(attached) }) })
				if err != nil {
					logger.Warn("transport stopped", zap.Error(err))
				}
				runErr <- err
			}()

			hsCtx, hsCancel := context.WithTimeout(ctx, cfg.Client.HandshakeTimeout())
			select {
			case <-attached:
			case err := <-runErr:
				hsCancel()
				if err == nil {
					err = ctx.Err()
				}
				return fmt.Errorf("attach: %w", err)
			case <-hsCtx.Done():
				hsCancel()
				return fmt.Errorf("attach: %w", hsCtx.Err())
			}
			id, err := e.CreateSession(hsCtx)
			hsCancel()
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", id)

			for _, m := range msgs {
				if err := send(ctx, cmd, e, m); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&viaBus, "via-bus", false, "attach to the redis bus instead of the relay")
	cmd.Flags().StringVar(&room, "room", "", "room to join (overrides client.room)")
	cmd.Flags().StringArrayVar(&sends, "send", nil, "message to send after the handshake, as type or type=json")
	return cmd
}

type outgoing struct {
	Type string
	Args json.RawMessage
}

func parseSends(sends []string) ([]outgoing, error) {
	out := make([]outgoing, 0, len(sends))
	for _, s := range sends {
		msgType, args, hasArgs := strings.Cut(s, "=")
		if msgType == "" {
			return nil, fmt.Errorf("--send %q: missing type", s)
		}
		m := outgoing{Type: msgType}
		if hasArgs {
			if !json.Valid([]byte(args)) {
				return nil, fmt.Errorf("--send %q: args are not valid JSON", s)
			}
			m.Args = json.RawMessage(args)
		}
		out = append(out, m)
	}
	return out, nil
}

func send(ctx context.Context, cmd *cobra.Command, e *engine.Engine, m outgoing) error {
	if !e.IsRequestType(m.Type) {
		a, err := e.Notify(m.Type, m.Args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s sent\n", a.MessageID(), m.Type)
		return nil
	}

	f, err := e.Request(m.Type, m.Args)
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, cfg.Client.RequestTimeout())
	defer cancel()
	v, err := f.Wait(waitCtx)
	var rej *correlation.RejectError
	switch {
	case errors.As(err, &rej):
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s rejected %s\n", f.MessageID(), m.Type, rej.Args)
		return nil
	case err != nil:
		return fmt.Errorf("%s: %w", m.Type, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s resolved %s\n", f.MessageID(), m.Type, v)
	return nil
}
