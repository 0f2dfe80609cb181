package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/config"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

// commandContext loads the configuration once for whichever subcommand runs.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	cfg        *config.Config
	fileLogger *log.FileLogger
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := loadConfig(*c.configFlag)
	if err != nil {
		return nil, err
	}
	if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
		cfg.Log.Level = level
	}
	if err := c.setupLogging(cfg.Log); err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) setupLogging(cfg config.LogConfig) error {
	level := log.ParseLevel(cfg.Level)
	if cfg.File == "" {
		log.InitLogger(level)
		return nil
	}
	fl, err := log.NewFileLogger(cfg.File, level)
	if err != nil {
		return fmt.Errorf("set up log file: %w", err)
	}
	log.SetLogger(fl.Logger)
	c.fileLogger = fl
	return nil
}

func (c *commandContext) close() {
	if c.fileLogger != nil {
		_ = c.fileLogger.Close()
		c.fileLogger = nil
	}
}

func loadConfig(path string) (*config.Config, error) {
	var opts []config.Option
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		opts = append(opts, config.WithFile(path))
	}
	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "subgen",
		Short:         "AI subtitle generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))

	return rootCmd
}
