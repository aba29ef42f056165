// Package main provides the buddylist command line front end.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/app"
	"github.com/meszmate/buddylist/internal/config"
	"github.com/meszmate/buddylist/internal/logging"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		configPath string
		dataDir    string
		logLevel   string
	}

	// roster is the context the subcommands work on
	roster *app.App
)

var rootCmd = &cobra.Command{
	Use:   "buddylist",
	Short: "Manage an instant messaging buddy list",
	Long: `buddylist edits the accounts, groups, buddies and pounces kept in
accounts.xml, blist.xml and buddylist.db of a data directory.

Changes are written when the command exits.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if globalOpts.logLevel != "" {
			level = globalOpts.logLevel
		}
		if err := logging.Init(logging.Config{
			Level:   level,
			File:    cfg.Logging.File,
			Console: cfg.Logging.Console,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		roster, err = openRoster(cfg)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config.toml (default $XDG_CONFIG_HOME/buddylist/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.dataDir, "data-dir", "",
		"Data directory holding accounts.xml and blist.xml")
	rootCmd.PersistentFlags().StringVar(&globalOpts.logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	var c *config.Config
	var err error
	if globalOpts.configPath != "" {
		paths, perr := config.GetPaths()
		if perr != nil {
			return nil, perr
		}
		c, err = config.LoadFile(globalOpts.configPath, paths.DataDir)
	} else {
		c, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if globalOpts.dataDir != "" {
		c.SetDataDir(globalOpts.dataDir)
	}
	return c, nil
}

func openRoster(c *config.Config) (*app.App, error) {
	r, err := app.New(c)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize buddy list: %w", err)
	}
	if err := r.Load(); err != nil {
		// unreadable files were moved aside; carry on with what loaded
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return r, nil
}

// findAccount resolves an account argument, optionally narrowed to one
// protocol
func findAccount(username, protocolID string) (*account.Account, error) {
	a := roster.FindAccount(username, protocolID)
	if a == nil {
		return nil, fmt.Errorf("no account %q", username)
	}
	return a, nil
}

// shutdown closes the roster, which writes pending changes, and the log.
// It runs after every command, including ones that failed.
func shutdown() error {
	var errs []error
	if roster != nil {
		errs = append(errs, roster.Close())
		roster = nil
	}
	errs = append(errs, logging.Shutdown())
	return errors.Join(errs...)
}

func main() {
	err := rootCmd.Execute()
	if serr := shutdown(); serr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", serr)
		err = errors.Join(err, serr)
	}
	if err != nil {
		os.Exit(1)
	}
}
