// Package config provides configuration management for the application.
package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LogConfig     `mapstructure:"logging"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Opik    OpikConfig    `mapstructure:"opik"`
	Storage StorageConfig `mapstructure:"storage"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	// MasterKey enables bearer authentication on /api routes when non-empty.
	MasterKey string `mapstructure:"master_key"`
	// BodySizeLimit uses echo's size syntax ("2M", "512K"). Empty means the default.
	BodySizeLimit      string   `mapstructure:"body_size_limit"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	// Format is "json" or "pretty".
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// GeminiConfig holds Google Gemini-specific configuration
type GeminiConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	WorkoutModel string `mapstructure:"workout_model"`
}

// LLMConfig holds retry settings for the generation client.
type LLMConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	// Type is one of "file", "redis", "sqlite" or "none".
	Type       string `mapstructure:"type"`
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	RedisURL   string `mapstructure:"redis_url"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// OpikConfig holds credentials for the hosted trace collector.
type OpikConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Workspace   string `mapstructure:"workspace"`
	URL         string `mapstructure:"url"`
	ProjectName string `mapstructure:"project_name"`
}

// StorageConfig selects the database used for local agent traces.
type StorageConfig struct {
	// Type is "sqlite", "postgresql", "mongodb", or empty to disable local trace storage.
	Type       string           `mapstructure:"type"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	PostgreSQL PostgreSQLConfig `mapstructure:"postgresql"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
}

// SQLiteConfig holds SQLite-specific storage settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific storage settings.
type PostgreSQLConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific storage settings.
type MongoDBConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// TracingConfig tunes the asynchronous trace recorder.
type TracingConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// Defaults.
const (
	DefaultPort          = "5001"
	DefaultGeminiModel   = "gemini-2.0-flash-lite"
	DefaultWorkoutModel  = "gemini-2.0-flash"
	DefaultOpikURL       = "https://www.comet.com/opik/api"
	DefaultOpikProject   = "healthflow-ai"
	DefaultOpikWorkspace = "default"
)

// Body size limit bounds accepted by ValidateBodySizeLimit.
const (
	MinBodySizeLimit = 1 << 10
	MaxBodySizeLimit = 100 << 20
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

var bodySizePattern = regexp.MustCompile(`^(\d+)([KMGkmg])?[Bb]?$`)

// Load reads configuration from defaults, an optional config.yaml, .env and the environment.
// Environment variables win over config.yaml, which wins over defaults.
func Load() (*Config, error) {
	// Real environment variables take precedence over .env entries.
	_ = godotenv.Load()

	cfg := buildDefaultConfig()

	if err := readConfigFile(cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := ValidateBodySizeLimit(cfg.Server.BodySizeLimit); err != nil {
		return nil, fmt.Errorf("invalid BODY_SIZE_LIMIT: %w", err)
	}
	return cfg, nil
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               DefaultPort,
			CORSAllowedOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Gemini: GeminiConfig{
			Model:        DefaultGeminiModel,
			WorkoutModel: DefaultWorkoutModel,
		},
		LLM: LLMConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			AttemptTimeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Type: "file",
			Dir:  ".cache",
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
		Opik: OpikConfig{
			Workspace:   DefaultOpikWorkspace,
			URL:         DefaultOpikURL,
			ProjectName: DefaultOpikProject,
		},
		Storage: StorageConfig{
			SQLite:     SQLiteConfig{Path: "data/healthflow.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "healthflow"},
		},
		Tracing: TracingConfig{
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			RetentionDays: 30,
		},
	}
}

// readConfigFile merges config.yaml from ./config or the working directory into cfg.
// ${VAR} and ${VAR:-default} placeholders are expanded before parsing.
func readConfigFile(cfg *Config) error {
	var raw []byte
	for _, path := range []string{"config/config.yaml", "config.yaml"} {
		data, err := os.ReadFile(path)
		if err == nil {
			raw = data
			break
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	if raw == nil {
		return nil
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader([]byte(expandString(string(raw))))); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

// applyEnvOverrides copies recognised environment variables onto cfg.
func applyEnvOverrides(cfg *Config) error {
	v := viper.New()
	v.AutomaticEnv()

	setString(v, "PORT", &cfg.Server.Port)
	setSecret(v, "HEALTHFLOW_MASTER_KEY", &cfg.Server.MasterKey)
	setString(v, "BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit)
	if origins := strings.TrimSpace(v.GetString("CORS_ALLOWED_ORIGINS")); origins != "" {
		cfg.Server.CORSAllowedOrigins = splitList(origins)
	}

	setString(v, "LOG_FORMAT", &cfg.Logging.Format)
	setString(v, "LOG_LEVEL", &cfg.Logging.Level)

	setSecret(v, "GEMINI_API_KEY", &cfg.Gemini.APIKey)
	setString(v, "GEMINI_MODEL", &cfg.Gemini.Model)
	setString(v, "GEMINI_WORKOUT_MODEL", &cfg.Gemini.WorkoutModel)

	if err := setInt(v, "LLM_MAX_ATTEMPTS", &cfg.LLM.MaxAttempts); err != nil {
		return err
	}
	if err := setDuration(v, "LLM_INITIAL_BACKOFF", &cfg.LLM.InitialBackoff); err != nil {
		return err
	}
	if err := setDuration(v, "LLM_MAX_BACKOFF", &cfg.LLM.MaxBackoff); err != nil {
		return err
	}
	if err := setDuration(v, "LLM_ATTEMPT_TIMEOUT", &cfg.LLM.AttemptTimeout); err != nil {
		return err
	}

	setString(v, "CACHE_TYPE", &cfg.Cache.Type)
	setString(v, "CACHE_DIR", &cfg.Cache.Dir)
	setString(v, "CACHE_SQLITE_PATH", &cfg.Cache.SQLitePath)
	setString(v, "REDIS_URL", &cfg.Cache.RedisURL)

	if err := setBool(v, "METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	setString(v, "METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	setSecret(v, "OPIK_API_KEY", &cfg.Opik.APIKey)
	setString(v, "OPIK_WORKSPACE", &cfg.Opik.Workspace)
	setString(v, "OPIK_URL_OVERRIDE", &cfg.Opik.URL)
	setString(v, "OPIK_PROJECT_NAME", &cfg.Opik.ProjectName)

	setString(v, "TRACE_STORAGE_TYPE", &cfg.Storage.Type)
	setString(v, "STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setString(v, "POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	if err := setInt(v, "POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns); err != nil {
		return err
	}
	setString(v, "MONGODB_URL", &cfg.Storage.MongoDB.URL)
	setString(v, "MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)

	if err := setInt(v, "TRACE_BUFFER_SIZE", &cfg.Tracing.BufferSize); err != nil {
		return err
	}
	if err := setDuration(v, "TRACE_FLUSH_INTERVAL", &cfg.Tracing.FlushInterval); err != nil {
		return err
	}
	if err := setInt(v, "TRACE_RETENTION_DAYS", &cfg.Tracing.RetentionDays); err != nil {
		return err
	}
	return nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if val := strings.TrimSpace(v.GetString(key)); val != "" {
		*dst = val
	}
}

// setSecret is setString for credentials; template placeholders such as
// "your_gemini_api_key_here" are treated as unset.
func setSecret(v *viper.Viper, key string, dst *string) {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" || IsPlaceholder(val) {
		return
	}
	*dst = val
}

func setInt(v *viper.Viper, key string, dst *int) error {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	*dst = n
	return nil
}

func setBool(v *viper.Viper, key string, dst *bool) error {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	*dst = b
	return nil
}

// setDuration accepts Go duration strings ("1500ms") or plain integers as seconds.
func setDuration(v *viper.Viper, key string, dst *time.Duration) error {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsPlaceholder reports whether a credential is an unedited template value.
func IsPlaceholder(val string) bool {
	lower := strings.ToLower(val)
	return strings.HasPrefix(lower, "your_") && strings.HasSuffix(lower, "_here")
}

// expandString replaces ${VAR} and ${VAR:-default} with environment values.
// ${VAR} stays verbatim when VAR is unset or empty; the default form uses the
// default in that case.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if val := os.Getenv(name); val != "" {
			return val
		}
		if hasDefault {
			return def
		}
		return match
	})
}

// ValidateBodySizeLimit checks an echo-style size string ("10M", "512KB", "1048576")
// falls within [MinBodySizeLimit, MaxBodySizeLimit]. Empty is valid.
func ValidateBodySizeLimit(limit string) error {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return nil
	}
	m := bodySizePattern.FindStringSubmatch(limit)
	if m == nil {
		return fmt.Errorf("unrecognised size %q (use e.g. 512K, 10M)", limit)
	}
	if m[2] == "" && strings.ContainsAny(limit, "Bb") {
		return fmt.Errorf("unrecognised size %q: a B suffix needs a unit", limit)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", limit, err)
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		n <<= 10
	case "M":
		n <<= 20
	case "G":
		n <<= 30
	}
	if n < MinBodySizeLimit || n > MaxBodySizeLimit {
		return fmt.Errorf("size %q out of range: must be between 1K and 100M", limit)
	}
	return nil
}
