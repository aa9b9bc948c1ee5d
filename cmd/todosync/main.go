package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/logging"
	"github.com/nhle/todosync/internal/model"
)

var (
	configPath string
	verbose    bool

	cfg       *model.AppConfig
	logger    zerolog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "todosync",
	Short: "Offline-first todo client with a replayable sync queue",
	Long: `todosync keeps a local cache of your todos, tags and daily stats.

Writes made while the backend is unreachable are committed locally and
queued. The queue is replayed in order once connectivity returns; entries
that keep failing are parked and can be inspected with 'todosync queue list'
or 'todosync inspect'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = model.LoadConfig(configPath)
		if err != nil {
			return err
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger, logCloser, err = logging.New(logging.Options{
			Level:   level,
			File:    cfg.Log.File,
			Console: verbose,
			Stderr:  os.Stderr,
		})
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
}

// tokenStore returns the keyring-backed credential store next to the
// config file.
func tokenStore() *credential.Store {
	return credential.NewStore(filepath.Dir(configPath))
}

// openEngine builds the engine and probes the backend once so the first
// call already knows whether it is online.
func openEngine(ctx context.Context) (*app.Engine, error) {
	e, err := app.NewEngine(ctx, cfg, logger, tokenStore())
	if err != nil {
		return nil, err
	}
	e.Probe(ctx)
	return e, nil
}

// userID returns the configured user or an error telling how to set one.
func userID() (string, error) {
	if cfg.User.ID == "" {
		return "", fmt.Errorf("no user configured; run 'todosync login' or set TODOSYNC_USER_ID")
	}
	return cfg.User.ID, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
