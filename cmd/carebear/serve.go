package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/CareBear/internal/api"
	"github.com/BTreeMap/CareBear/internal/flow"
	"github.com/BTreeMap/CareBear/internal/lockfile"
	"github.com/BTreeMap/CareBear/internal/messaging"
	"github.com/BTreeMap/CareBear/internal/metrics"
	"github.com/BTreeMap/CareBear/internal/scheduler"
	"github.com/BTreeMap/CareBear/internal/store"
	"github.com/BTreeMap/CareBear/internal/twiliowhatsapp"
	"github.com/BTreeMap/CareBear/internal/whatsapp"
)

// Session key namespaces per inbound channel.
const (
	twilioKeyPrefix   = "twilio:"
	whatsAppKeyPrefix = "wa:"
)

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and messaging channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for CareBear data (overrides $CAREBEAR_STATE_DIR)")
	f.StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)")
	f.StringVar(&cfg.DatabaseURL, "db-dsn", cfg.DatabaseURL, "transcript database: SQLite path or Postgres DSN (overrides $DATABASE_URL)")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for shared session state (overrides $REDIS_ADDR)")
	f.StringVar(&cfg.OpenAIKey, "openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	f.BoolVar(&cfg.WhatsAppEnabled, "whatsapp", cfg.WhatsAppEnabled, "connect to WhatsApp through whatsmeow (overrides $WHATSAPP_ENABLED)")
	f.StringVar(&cfg.QROutput, "qr-output", cfg.QROutput, "path to write the WhatsApp login QR code")
	f.BoolVar(&cfg.NumericCode, "numeric-code", cfg.NumericCode, "print the raw WhatsApp login code instead of a QR code")
	return cmd
}

func runServe(ctx context.Context, cfg Config) error {
	lock, err := lockfile.Acquire(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	classifier, err := buildClassifier(cfg.LexiconPath)
	if err != nil {
		return err
	}
	screener, err := buildScreener(cfg.CrisisRulesPath)
	if err != nil {
		return err
	}

	m := metrics.New()

	backend, err := buildStateBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.store.Close()

	engine := flow.NewEngine(classifier, screener, backend.store, engineOptions(cfg, backend, m)...)

	transcripts, err := store.NewTranscriptStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	defer transcripts.Close()

	convOpts := []messaging.ConversationOption{
		messaging.WithTranscripts(transcripts),
		messaging.WithObserver(m),
	}
	replier, err := buildReplier(cfg)
	if err != nil {
		return err
	}
	if replier != nil {
		convOpts = append(convOpts, messaging.WithReplier(replier))
	}
	conv := messaging.NewConversation(engine, convOpts...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if _, err := sched.SchedulePrune(cfg.PruneSpec, backend.store, cfg.MaxIdle, m); err != nil {
		return err
	}
	dedup := inboundDeduper(backend, transcripts)
	if _, err := sched.ScheduleInboundPrune(cfg.PruneSpec, dedup, scheduler.DefaultDedupRetention); err != nil {
		return err
	}

	apiOpts := []api.Option{
		api.WithMetrics(m.Handler()),
		api.WithSecureCookies(cfg.SecureCookies),
	}
	if backend.health != nil {
		apiOpts = append(apiOpts, api.WithHealthCheck(backend.health))
	}

	if cfg.twilioConfigured() {
		tc, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID),
			twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken),
			twiliowhatsapp.WithFromWhats(cfg.TwilioFrom),
		)
		if err != nil {
			return fmt.Errorf("failed to create Twilio client: %w", err)
		}
		apiOpts = append(apiOpts, api.WithTwilio(messaging.NewResponseHandler(conv, tc, twilioKeyPrefix, messaging.WithDeduper(dedup))))
		if cfg.PublicURL != "" {
			apiOpts = append(apiOpts, api.WithTwilioSignature(cfg.TwilioAuthToken, cfg.PublicURL))
		} else {
			slog.Warn("PUBLIC_URL not set, Twilio webhook signatures are not verified")
		}
		slog.Info("Twilio WhatsApp webhook enabled")
	}

	if cfg.WhatsAppEnabled {
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(cfg.whatsAppDSN())}
		if cfg.QROutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(cfg.QROutput))
		}
		if cfg.NumericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		wc, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return fmt.Errorf("failed to start WhatsApp client: %w", err)
		}
		defer wc.Close()

		rh := messaging.NewResponseHandler(conv, wc, whatsAppKeyPrefix, messaging.WithDeduper(dedup))
		wc.Listen(ctx, func(ctx context.Context, messageID, from, text string) {
			if err := rh.ProcessInbound(ctx, messageID, from, text); err != nil {
				slog.Warn("WhatsApp message not answered", "error", err, "from", from)
			}
		})
		slog.Info("WhatsApp listener enabled")
	}

	slog.Info("Bootstrapping CareBear", "state_dir", cfg.StateDir, "api_addr", cfg.APIAddr,
		"redis", cfg.RedisAddr != "", "transcripts_dsn_set", cfg.DatabaseURL != "", "genai", replier != nil)
	if err := api.NewServer(conv, apiOpts...).Run(ctx, cfg.APIAddr); err != nil {
		return err
	}
	slog.Info("CareBear exited successfully")
	return nil
}
