// Package cli provides the command-line interface for chatterm.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatiitd/chatterm/internal/api"
	"github.com/chatiitd/chatterm/internal/config"
	"github.com/chatiitd/chatterm/internal/conversation"
	"github.com/chatiitd/chatterm/internal/metrics"
	"github.com/chatiitd/chatterm/internal/session"
	"github.com/chatiitd/chatterm/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global wiring, built in PersistentPreRunE.
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	stats      *metrics.Collector
	backend    *api.Client
	cache      *store.Store
	sess       *session.Manager
	engine     *conversation.Engine
)

// errNotLoggedIn is surfaced when a command needs a token but none is held.
var errNotLoggedIn = errors.New("not logged in; run `chatterm login` first")

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatterm",
	Short: "Terminal client for the chatIITD assistant",
	Long: `Chatterm is a terminal client for the chatIITD assistant backend.

Authenticate once with an OAuth sign-in, then create conversations and talk
to the assistant from your terminal. Messages appear instantly and are
reconciled against the server once the assistant replies.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip wiring for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		stats = metrics.NewCollector()
		backend = api.New(cfg.APIBaseURL, api.WithLogger(logger), api.WithMetrics(stats))

		// A broken cache only loses the offline chat list.
		cache, err = store.Open(cfg.CacheDB)
		if err != nil {
			logger.Warn("chat cache unavailable", "error", err)
			cache = nil
		}

		sess = session.NewManager(session.Config{
			APIBaseURL:  cfg.APIBaseURL,
			ClientID:    cfg.OAuthClientID,
			AuthBaseURL: cfg.OAuthAuthURL,
			RedirectURL: cfg.OAuthRedirectURL,
		}, backend, session.NewFileStore(cfg.TokenFile), logger)

		engine = conversation.New(backend, cache, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cache != nil {
			if err := cache.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close chat cache: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(chatCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// requireToken resolves the session (restoring a persisted token) and
// returns the access token, or errNotLoggedIn.
func requireToken(ctx context.Context) (string, error) {
	if err := sess.Bootstrap(ctx, session.CallbackParams{}); err != nil {
		return "", fmt.Errorf("bootstrap session: %w", err)
	}
	token := sess.Token()
	if token == "" {
		return "", errNotLoggedIn
	}
	return token, nil
}
