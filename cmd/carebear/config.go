package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/CareBear/internal/genai"
	"github.com/BTreeMap/CareBear/internal/scheduler"
	"github.com/BTreeMap/CareBear/internal/util"
	"github.com/BTreeMap/CareBear/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CareBear state data
	DefaultStateDir = "/var/lib/carebear"
	// DefaultAPIAddr is the default HTTP listen address
	DefaultAPIAddr = ":8080"
	// DefaultSessionTTL is how long Redis keeps an idle session
	DefaultSessionTTL = 24 * time.Hour
)

// Config holds environment configuration. Flags override individual fields.
type Config struct {
	StateDir    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	OpenAIKey           string
	OpenAIModel         string
	OpenAIFinetuneModel string
	OpenAIBaseURL       string
	OpenAITemperature   float64
	OpenAIMaxTokens     int

	APIAddr       string
	PublicURL     string
	SecureCookies bool

	LexiconPath     string
	CrisisRulesPath string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	WhatsAppEnabled bool
	WhatsAppDSN     string
	QROutput        string
	NumericCode     bool

	PruneSpec string
	MaxIdle   time.Duration

	LogLevel string
	LogJSON  bool
	Seed     int
}

// loadDotEnv loads a .env file from the working directory if present.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
}

// loadEnvironmentConfig reads configuration from environment variables.
func loadEnvironmentConfig() Config {
	config := Config{
		StateDir:            os.Getenv("CAREBEAR_STATE_DIR"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             util.ParseIntEnv("REDIS_DB", 0),
		SessionTTL:          util.ParseDurationEnv("SESSION_TTL", DefaultSessionTTL),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		OpenAIFinetuneModel: strings.TrimSpace(os.Getenv("OPENAI_FINETUNE_MODEL")),
		OpenAITemperature:   util.ParseFloatEnv("OPENAI_TEMPERATURE", genai.DefaultTemperature),
		OpenAIMaxTokens:     util.ParseIntEnv("OPENAI_MAX_TOKENS", genai.DefaultMaxTokens),
		APIAddr:             os.Getenv("API_ADDR"),
		PublicURL:           os.Getenv("PUBLIC_URL"),
		SecureCookies:       util.ParseBoolEnv("CAREBEAR_SECURE_COOKIES", false),
		LexiconPath:         os.Getenv("CAREBEAR_LEXICON"),
		CrisisRulesPath:     os.Getenv("CAREBEAR_CRISIS_RULES"),
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:          os.Getenv("TWILIO_FROM_NUMBER"),
		WhatsAppEnabled:     util.ParseBoolEnv("WHATSAPP_ENABLED", false),
		WhatsAppDSN:         os.Getenv("WHATSAPP_DB_DSN"),
		PruneSpec:           os.Getenv("CAREBEAR_PRUNE_SCHEDULE"),
		MaxIdle:             util.ParseDurationEnv("CAREBEAR_MAX_IDLE", scheduler.DefaultMaxIdle),
		LogLevel:            os.Getenv("CAREBEAR_LOG_LEVEL"),
		LogJSON:             util.ParseBoolEnv("CAREBEAR_LOG_JSON", false),
		Seed:                util.ParseIntEnv("CAREBEAR_SEED", 0),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CAREBEAR_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	slog.Debug("environment variables loaded",
		"CAREBEAR_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_ADDR", config.RedisAddr,
		"SESSION_TTL", config.SessionTTL,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"TWILIO_CONFIGURED", config.twilioConfigured(),
		"WHATSAPP_ENABLED", config.WhatsAppEnabled)

	return config
}

// whatsAppDSN defaults to a SQLite file in the state directory with the
// foreign key pragma whatsmeow requires.
func (c Config) whatsAppDSN() string {
	if c.WhatsAppDSN != "" {
		return c.WhatsAppDSN
	}
	return "file:" + filepath.Join(c.StateDir, whatsapp.DefaultDBFile) + "?_foreign_keys=on"
}

func (c Config) twilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

// picker returns a seeded picker when a seed is configured.
func (c Config) picker() util.Picker {
	if c.Seed != 0 {
		return util.NewSeededPicker(uint64(c.Seed))
	}
	return util.EntropyPicker{}
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		slog.Warn("invalid log level, using info", "level", name)
		return slog.LevelInfo
	}
	return level
}

// openAIModel is the model replies are generated with.
func (c Config) openAIModel() string {
	if c.OpenAIFinetuneModel != "" {
		return c.OpenAIFinetuneModel
	}
	return c.OpenAIModel
}
