package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpandString tests the expandString function with various scenarios
func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "string without placeholders",
			input:    "simple-string",
			envVars:  map[string]string{},
			expected: "simple-string",
		},
		{
			name:     "simple variable expansion",
			input:    "${API_KEY}",
			envVars:  map[string]string{"API_KEY": "sk-12345"},
			expected: "sk-12345",
		},
		{
			name:     "variable in middle of string",
			input:    "prefix-${API_KEY}-suffix",
			envVars:  map[string]string{"API_KEY": "sk-12345"},
			expected: "prefix-sk-12345-suffix",
		},
		{
			name:     "multiple variables",
			input:    "${SCHEME}://${HOST}:${PORT}",
			envVars:  map[string]string{"SCHEME": "https", "HOST": "api.example.com", "PORT": "8080"},
			expected: "https://api.example.com:8080",
		},
		{
			name:     "variable with default value - env var exists",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{"API_KEY": "sk-real-key"},
			expected: "sk-real-key",
		},
		{
			name:     "variable with default value - env var missing",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{},
			expected: "default-key",
		},
		{
			name:     "variable with default value - env var empty",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{"API_KEY": ""},
			expected: "default-key",
		},
		{
			name:     "unresolved variable - no default",
			input:    "${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "${MISSING_VAR}",
		},
		{
			name:     "partially resolved string",
			input:    "${RESOLVED}-${UNRESOLVED}",
			envVars:  map[string]string{"RESOLVED": "value1"},
			expected: "value1-${UNRESOLVED}",
		},
		{
			name:     "mixed resolved and unresolved with defaults",
			input:    "${RESOLVED}:${UNRESOLVED:-fallback}:${MISSING}",
			envVars:  map[string]string{"RESOLVED": "value1"},
			expected: "value1:fallback:${MISSING}",
		},
		{
			name:     "default value with special characters",
			input:    "${API_KEY:-https://api.example.com/v1}",
			envVars:  map[string]string{},
			expected: "https://api.example.com/v1",
		},
		{
			name:     "default value with colon in it",
			input:    "${URL:-http://localhost:8080}",
			envVars:  map[string]string{},
			expected: "http://localhost:8080",
		},
		{
			name:     "complex real-world example",
			input:    "${BASE_URL:-https://generativelanguage.googleapis.com}/v1beta/models",
			envVars:  map[string]string{},
			expected: "https://generativelanguage.googleapis.com/v1beta/models",
		},
		{
			name:     "environment variable set to empty string (no default)",
			input:    "${EMPTY_VAR}",
			envVars:  map[string]string{"EMPTY_VAR": ""},
			expected: "${EMPTY_VAR}",
		},
		{
			name:     "empty default value - env var missing",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "empty default value - env var set",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{"OPTIONAL_VAR": "actual-value"},
			expected: "actual-value",
		},
		{
			name:     "empty default value - env var empty",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{"OPTIONAL_VAR": ""},
			expected: "",
		},
		{
			name:     "master key pattern - not set should be empty",
			input:    "${HEALTHFLOW_MASTER_KEY:-}",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "master key pattern - set to value",
			input:    "${HEALTHFLOW_MASTER_KEY:-}",
			envVars:  map[string]string{"HEALTHFLOW_MASTER_KEY": "secret-key"},
			expected: "secret-key",
		},
		{
			name:     "multiple placeholders some resolved some not",
			input:    "prefix-${VAR1}-${VAR2}-${VAR3}-suffix",
			envVars:  map[string]string{"VAR1": "a", "VAR3": "c"},
			expected: "prefix-a-${VAR2}-c-suffix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				_ = os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.envVars {
					_ = os.Unsetenv(k)
				}
			}()

			result := expandString(tt.input)
			if result != tt.expected {
				t.Errorf("expandString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}


// TestApplyEnvOverrides tests the applyEnvOverrides function
func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "PORT override",
			envVars: map[string]string{"PORT": "3000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "3000", cfg.Server.Port)
			},
		},
		{
			name:    "HEALTHFLOW_MASTER_KEY override",
			envVars: map[string]string{"HEALTHFLOW_MASTER_KEY": "my-secret"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "my-secret", cfg.Server.MasterKey)
			},
		},
		{
			name:    "placeholder API keys are ignored",
			envVars: map[string]string{"GEMINI_API_KEY": "your_gemini_api_key_here", "OPIK_API_KEY": "your_opik_key_here"},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Gemini.APIKey)
				assert.Empty(t, cfg.Opik.APIKey)
			},
		},
		{
			name:    "real API key is kept",
			envVars: map[string]string{"GEMINI_API_KEY": "AIza-test"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "AIza-test", cfg.Gemini.APIKey)
			},
		},
		{
			name:    "storage overrides",
			envVars: map[string]string{"TRACE_STORAGE_TYPE": "postgresql", "POSTGRES_URL": "postgres://localhost/test", "POSTGRES_MAX_CONNS": "20"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgresql", cfg.Storage.Type)
				assert.Equal(t, "postgres://localhost/test", cfg.Storage.PostgreSQL.URL)
				assert.Equal(t, 20, cfg.Storage.PostgreSQL.MaxConns)
			},
		},
		{
			name:    "durations accept seconds and Go syntax",
			envVars: map[string]string{"LLM_INITIAL_BACKOFF": "2", "LLM_MAX_BACKOFF": "1500ms", "TRACE_FLUSH_INTERVAL": "1m"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2*time.Second, cfg.LLM.InitialBackoff)
				assert.Equal(t, 1500*time.Millisecond, cfg.LLM.MaxBackoff)
				assert.Equal(t, time.Minute, cfg.Tracing.FlushInterval)
			},
		},
		{
			name:    "bool and list overrides",
			envVars: map[string]string{"METRICS_ENABLED": "true", "CORS_ALLOWED_ORIGINS": "http://localhost:3000, https://app.example.com"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Metrics.Enabled)
				assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.Server.CORSAllowedOrigins)
			},
		},
		{
			name:    "cache overrides",
			envVars: map[string]string{"CACHE_TYPE": "redis", "REDIS_URL": "redis://localhost:6379/1"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis", cfg.Cache.Type)
				assert.Equal(t, "redis://localhost:6379/1", cfg.Cache.RedisURL)
			},
		},
		{
			name:    "no env vars set preserves defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultPort, cfg.Server.Port)
				assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
				assert.Equal(t, DefaultGeminiModel, cfg.Gemini.Model)
				assert.Equal(t, DefaultWorkoutModel, cfg.Gemini.WorkoutModel)
				assert.Equal(t, 3, cfg.LLM.MaxAttempts)
				assert.Equal(t, time.Second, cfg.LLM.InitialBackoff)
				assert.Equal(t, 30*time.Second, cfg.LLM.MaxBackoff)
				assert.Equal(t, "file", cfg.Cache.Type)
				assert.Equal(t, ".cache", cfg.Cache.Dir)
				assert.Equal(t, DefaultOpikProject, cfg.Opik.ProjectName)
				assert.Equal(t, DefaultOpikWorkspace, cfg.Opik.Workspace)
				assert.Empty(t, cfg.Storage.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	for _, kv := range [][2]string{
		{"LLM_MAX_ATTEMPTS", "three"},
		{"METRICS_ENABLED", "maybe"},
		{"LLM_ATTEMPT_TIMEOUT", "soon"},
	} {
		t.Run(kv[0], func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			err := applyEnvOverrides(buildDefaultConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), kv[0])
		})
	}
}

func TestLoad_ConfigFileWithEnvExpansion(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("config.yaml", []byte(`
server:
  port: "${TEST_HF_PORT:-7070}"
gemini:
  model: gemini-2.5-flash
llm:
  max_backoff: 45s
cache:
  type: sqlite
`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.MaxBackoff)
	assert.Equal(t, "sqlite", cfg.Cache.Type)
	assert.Equal(t, DefaultWorkoutModel, cfg.Gemini.WorkoutModel, "keys absent from the file keep defaults")
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("config.yaml", []byte("server:\n  port: \"7070\"\n"), 0o600))
	t.Setenv("PORT", "9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("GEMINI_MODEL=from-dotenv\n"), 0o600))
	_ = os.Unsetenv("GEMINI_MODEL")
	t.Cleanup(func() { _ = os.Unsetenv("GEMINI_MODEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Gemini.Model)
}

func TestLoad_RejectsBadBodySizeLimit(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BODY_SIZE_LIMIT", "1G")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateBodySizeLimit(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"empty string is valid", "", false},
		{"plain number", "1048576", false},
		{"kilobytes lowercase", "100k", false},
		{"kilobytes with B suffix", "100KB", false},
		{"megabytes uppercase", "10M", false},
		{"whitespace trimmed", "  10M  ", false},
		{"minimum valid (1KB)", "1K", false},
		{"maximum valid (100MB)", "100M", false},
		{"invalid format with letters", "abc", true},
		{"invalid unit", "10X", true},
		{"negative number", "-10M", true},
		{"decimal number", "10.5M", true},
		{"empty unit with B", "10B", true},
		{"below minimum (100 bytes)", "100", true},
		{"above maximum (200MB)", "200M", true},
		{"above maximum (1GB)", "1G", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBodySizeLimit(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder("your_gemini_api_key_here"))
	assert.True(t, IsPlaceholder("YOUR_OPIK_KEY_HERE"))
	assert.False(t, IsPlaceholder("AIzaSyExample"))
	assert.False(t, IsPlaceholder(""))
}
