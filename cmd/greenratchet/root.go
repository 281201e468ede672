package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	logger  zerolog.Logger
	out     io.Writer
	errOut  io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut, logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "greenratchet",
		Short: "Evaluate ESG KPIs for sustainability-linked loans",
		Long: `greenratchet computes environmental KPIs (emissions, energy, water, renewable
and carbon-free shares, regional tiers) from cloud usage joined to grid
reference data, and compares them with loan covenant targets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is ./greenratchet.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("db-driver", "sqlite", "database driver (sqlite, postgres)")
	flags.String("db-dsn", "greenratchet.db", "database DSN")
	flags.String("cache", "memory", "evaluation cache backend (none, memory, redis)")

	for key, flag := range map[string]string{
		"log.level":       "log-level",
		"log.format":      "log-format",
		"database.driver": "db-driver",
		"database.dsn":    "db-dsn",
		"cache.backend":   "cache",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newEvaluateCmd(c),
		newTimelineCmd(c),
		newSeedCmd(c),
		newServeCmd(c),
	)
	return rootCmd
}

func (c *cli) init() error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := newLogger(c.errOut, cfg.Log)
	if err != nil {
		return err
	}
	c.logger = logger
	if used := c.v.ConfigFileUsed(); used != "" {
		c.logger.Debug().Str("config_file", used).Msg("Using config file")
	}
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if cfg.Format == "console" {
		out := w
		w = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = out
			cw.TimeFormat = time.RFC3339
		})
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "greenratchet").Logger(), nil
}
