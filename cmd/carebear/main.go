// Command carebear runs the CareBear wellbeing chat service.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("CareBear failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	loadDotEnv()
	cfg := loadEnvironmentConfig()

	root := &cobra.Command{
		Use:           "carebear",
		Short:         "CareBear wellbeing chat companion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initializeLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogJSON)
		},
	}
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error (overrides $CAREBEAR_LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "emit JSON logs")
	root.PersistentFlags().StringVar(&cfg.LexiconPath, "lexicon", cfg.LexiconPath, "YAML mood lexicon override (overrides $CAREBEAR_LEXICON)")
	root.PersistentFlags().StringVar(&cfg.CrisisRulesPath, "crisis-rules", cfg.CrisisRulesPath, "YAML crisis rules override (overrides $CAREBEAR_CRISIS_RULES)")

	root.AddCommand(newServeCmd(&cfg), newChatCmd(&cfg), newClassifyCmd(&cfg))
	return root
}

// initializeLogger installs the default slog logger.
func initializeLogger(w io.Writer, level string, asJSON bool) {
	opts := &slog.HandlerOptions{Level: logLevel(level)}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if asJSON {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}
