package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/CareBear/internal/crisis"
	"github.com/BTreeMap/CareBear/internal/flow"
	"github.com/BTreeMap/CareBear/internal/genai"
	"github.com/BTreeMap/CareBear/internal/mood"
	"github.com/BTreeMap/CareBear/internal/store"
)

const redisKeyPrefix = "carebear:"

// buildClassifier uses the lexicon file at path, or the built-in one when path is empty.
func buildClassifier(path string) (*mood.Classifier, error) {
	if path == "" {
		return mood.NewDefaultClassifier(), nil
	}
	lex, err := mood.LoadLexicon(path)
	if err != nil {
		return nil, err
	}
	return mood.NewClassifier(lex), nil
}

// buildScreener uses the rules file at path, or the built-in rules when path is empty.
func buildScreener(path string) (*crisis.Screener, error) {
	if path == "" {
		return crisis.NewDefaultScreener(), nil
	}
	rules, err := crisis.LoadRules(path)
	if err != nil {
		return nil, err
	}
	return crisis.NewScreener(rules)
}

// stateBackend is the session store plus what the engine, the inbound
// channels and the health check need from it.
type stateBackend struct {
	store  store.StateStore
	locker store.Locker
	dedup  store.InboundDeduper
	health func(ctx context.Context) error
}

// buildStateBackend picks Redis when an address is configured, process memory otherwise.
func buildStateBackend(ctx context.Context, cfg Config) (stateBackend, error) {
	if cfg.RedisAddr == "" {
		slog.Info("Using in-memory session store")
		return stateBackend{store: store.NewMemoryStateStore()}, nil
	}

	rs := store.NewRedisStateStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, store.WithTTL(cfg.SessionTTL))
	if err := rs.Ping(ctx); err != nil {
		rs.Close()
		return stateBackend{}, fmt.Errorf("redis unavailable at %s: %w", cfg.RedisAddr, err)
	}
	slog.Info("Using Redis session store", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.SessionTTL)
	return stateBackend{
		store:  rs,
		locker: store.NewRedisLocker(rs.Client(), redisKeyPrefix),
		dedup:  store.NewRedisDeduper(rs.Client(), redisKeyPrefix, store.DefaultDedupTTL),
		health: rs.Ping,
	}, nil
}

// inboundDeduper prefers the shared Redis deduper, then the transcript
// database, then process memory.
func inboundDeduper(backend stateBackend, transcripts store.TranscriptStore) store.InboundDeduper {
	if backend.dedup != nil {
		return backend.dedup
	}
	if d, ok := transcripts.(store.InboundDeduper); ok {
		return d
	}
	return store.NewMemoryDeduper()
}

// engineOptions assembles engine options shared by serve and chat.
func engineOptions(cfg Config, backend stateBackend, recorder flow.Recorder) []flow.Option {
	opts := []flow.Option{flow.WithPicker(cfg.picker())}
	if backend.locker != nil {
		opts = append(opts, flow.WithLocker(backend.locker, flow.DefaultLockTTL))
	}
	if recorder != nil {
		opts = append(opts, flow.WithRecorder(recorder))
	}
	return opts
}

// buildReplier returns the generative backend, or nil when no API key is set.
func buildReplier(cfg Config) (*genai.Client, error) {
	if cfg.OpenAIKey == "" {
		slog.Info("No OpenAI API key, replies come from the engine only")
		return nil, nil
	}
	opts := []genai.Option{genai.WithAPIKey(cfg.OpenAIKey)}
	if model := cfg.openAIModel(); model != "" {
		opts = append(opts, genai.WithModel(model))
	}
	if cfg.OpenAITemperature >= 0 {
		opts = append(opts, genai.WithTemperature(cfg.OpenAITemperature))
	}
	if cfg.OpenAIMaxTokens > 0 {
		opts = append(opts, genai.WithMaxTokens(int64(cfg.OpenAIMaxTokens)))
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	client, err := genai.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	slog.Info("Generative replies enabled", "model", client.Model())
	return client, nil
}
