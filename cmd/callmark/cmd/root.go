// Package cmd implements the callmark command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/callmark/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// cli holds state shared by all subcommands.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	registry   *config.Registry
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	c := &cli{registry: config.NewRegistry()}
	registerBuiltinLemmatizers(c.registry)

	root := &cobra.Command{
		Use:           "callmark",
		Short:         "callmark highlights dictionary phrases in call transcripts",
		Long:          "Exact, lemma-normalized and fuzzy phrase matching over client/operator call transcripts.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")

	root.AddCommand(newAnalyzeCmd(c))
	root.AddCommand(newValidateCmd(c))
	root.AddCommand(newServeCmd(c))
	return root
}

// load reads the configuration and installs the default logger.
func (c *cli) load(stderr io.Writer) error {
	if c.configPath == "" {
		c.cfg = config.Default()
	} else {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", c.configPath)
			}
			return err
		}
		c.cfg = cfg
	}
	if c.logLevel != "" {
		lvl := config.LogLevel(c.logLevel)
		if !lvl.IsValid() {
			return fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", c.logLevel)
		}
		c.cfg.Server.LogLevel = lvl
	}
	slog.SetDefault(newLogger(stderr, c.cfg.Server.LogLevel))
	return nil
}

// dictionariesPath returns the flag value, falling back to the config.
func (c *cli) dictionariesPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if c.cfg.Dictionaries.Path != "" {
		return c.cfg.Dictionaries.Path, nil
	}
	return "", errors.New("no dictionary file: pass --dictionaries or set dictionaries.path")
}

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
