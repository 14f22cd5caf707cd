package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/config"
	"github.com/HsiangNianian/simid-bridge/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    config.Config
	logger = zap.NewNop()
)

func Execute() error {
	root := &cobra.Command{
		Use:           "simid",
		Short:         "Player/creative messaging relay and clients",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "HuJSON config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(relayCmd(), playerCmd(), creativeCmd())
	return root.Execute()
}
