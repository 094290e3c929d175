package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when neither --config nor TASKPAD_CONFIG names a file.
const DefaultConfigFile = "taskpad.yaml"

// Load applies defaults < YAML < ENV. A missing YAML file is not an error.
func Load() (*Config, error) {
	return load(configPath(nil), nil)
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(yamlPath string) (*Config, error) {
	return load(yamlPath, nil)
}

func configPath(flagPath *string) string {
	switch {
	case flagPath != nil:
		return *flagPath
	case os.Getenv("TASKPAD_CONFIG") != "":
		return os.Getenv("TASKPAD_CONFIG")
	default:
		return DefaultConfigFile
	}
}

func load(path string, cli *CLIFlags) (*Config, error) {
	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if cli != nil {
		applyCLI(&cfg, *cli)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

// loadYAML decodes path over cfg. Unknown keys are rejected so a typo does
// not silently fall back to a default.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator supplied path
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// envReader collects parse failures so every bad variable is reported at once.
type envReader struct {
	errs []error
}

func bind[T any](r *envReader, dst *T, key string, parse func(string) (T, error)) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	parsed, err := parse(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, v, err))
		return
	}
	*dst = parsed
}

func str(v string) (string, error) { return v, nil }

func int32Of(v string) (int32, error) {
	n, err := strconv.ParseInt(v, 10, 32)
	return int32(n), err
}

func int64Of(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) }

func float64Of(v string) (float64, error) { return strconv.ParseFloat(v, 64) }

func loadEnv(cfg *Config) error {
	var r envReader

	bind(&r, &cfg.Server.Port, "TASKPAD_PORT", str)
	bind(&r, &cfg.Server.CORSOrigin, "TASKPAD_CORS_ORIGIN", str)

	bind(&r, &cfg.Postgres.DSN, "DATABASE_URL", str)
	bind(&r, &cfg.Postgres.MaxConns, "TASKPAD_PG_MAX_CONNS", int32Of)
	bind(&r, &cfg.Postgres.MinConns, "TASKPAD_PG_MIN_CONNS", int32Of)
	bind(&r, &cfg.Postgres.MaxConnLifetime, "TASKPAD_PG_MAX_CONN_LIFETIME", time.ParseDuration)
	bind(&r, &cfg.Postgres.MaxConnIdleTime, "TASKPAD_PG_MAX_CONN_IDLE_TIME", time.ParseDuration)
	bind(&r, &cfg.Postgres.HealthCheck, "TASKPAD_PG_HEALTH_CHECK", time.ParseDuration)

	bind(&r, &cfg.NATS.URL, "NATS_URL", str)
	bind(&r, &cfg.NATS.KVBucket, "TASKPAD_NATS_KV_BUCKET", str)
	bind(&r, &cfg.NATS.RetryDelay, "TASKPAD_NATS_RETRY_DELAY", time.ParseDuration)
	bind(&r, &cfg.NATS.StreamAge, "TASKPAD_NATS_STREAM_MAX_AGE", time.ParseDuration)

	bind(&r, &cfg.LiteLLM.URL, "LITELLM_URL", str)
	bind(&r, &cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY", str)
	bind(&r, &cfg.LiteLLM.Model, "TASKPAD_LLM_MODEL", str)
	bind(&r, &cfg.LiteLLM.FallbackModel, "TASKPAD_LLM_FALLBACK_MODEL", str)
	bind(&r, &cfg.LiteLLM.MaxTokens, "TASKPAD_LLM_MAX_TOKENS", strconv.Atoi)
	bind(&r, &cfg.LiteLLM.Timeout, "TASKPAD_LLM_TIMEOUT", time.ParseDuration)

	bind(&r, &cfg.Assistant.Endpoint, "TASKPAD_ASSISTANT_ENDPOINT", str)
	bind(&r, &cfg.Assistant.SessionIdleTimeout, "TASKPAD_ASSISTANT_SESSION_IDLE_TIMEOUT", time.ParseDuration)
	bind(&r, &cfg.Assistant.ReapInterval, "TASKPAD_ASSISTANT_REAP_INTERVAL", time.ParseDuration)

	bind(&r, &cfg.Auth.Enabled, "TASKPAD_AUTH_ENABLED", strconv.ParseBool)
	bind(&r, &cfg.Auth.JWTSecret, "TASKPAD_JWT_SECRET", str)
	bind(&r, &cfg.Auth.AccessTokenExpiry, "TASKPAD_ACCESS_TOKEN_EXPIRY", time.ParseDuration)
	bind(&r, &cfg.Auth.BcryptCost, "TASKPAD_BCRYPT_COST", strconv.Atoi)

	bind(&r, &cfg.Logging.Level, "TASKPAD_LOG_LEVEL", str)
	bind(&r, &cfg.Logging.Service, "TASKPAD_LOG_SERVICE", str)
	bind(&r, &cfg.Logging.Async, "TASKPAD_LOG_ASYNC", strconv.ParseBool)

	bind(&r, &cfg.Breaker.MaxFailures, "TASKPAD_BREAKER_MAX_FAILURES", strconv.Atoi)
	bind(&r, &cfg.Breaker.Timeout, "TASKPAD_BREAKER_TIMEOUT", time.ParseDuration)

	bind(&r, &cfg.Rate.RequestsPerSecond, "TASKPAD_RATE_RPS", float64Of)
	bind(&r, &cfg.Rate.Burst, "TASKPAD_RATE_BURST", strconv.Atoi)
	bind(&r, &cfg.Rate.CleanupInterval, "TASKPAD_RATE_CLEANUP_INTERVAL", time.ParseDuration)
	bind(&r, &cfg.Rate.MaxIdleTime, "TASKPAD_RATE_MAX_IDLE_TIME", time.ParseDuration)

	bind(&r, &cfg.Cache.L1MaxSizeMB, "TASKPAD_CACHE_L1_SIZE_MB", int64Of)
	bind(&r, &cfg.Cache.TTL, "TASKPAD_CACHE_TTL", time.ParseDuration)
	bind(&r, &cfg.Cache.L1TTL, "TASKPAD_CACHE_L1_TTL", time.ParseDuration)

	bind(&r, &cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT", str)
	bind(&r, &cfg.OTEL.ServiceName, "TASKPAD_OTEL_SERVICE_NAME", str)
	bind(&r, &cfg.OTEL.Insecure, "TASKPAD_OTEL_INSECURE", strconv.ParseBool)

	bind(&r, &cfg.MCP.Enabled, "TASKPAD_MCP_ENABLED", strconv.ParseBool)
	bind(&r, &cfg.MCP.APIKey, "TASKPAD_MCP_API_KEY", str)

	return errors.Join(r.errs...)
}

// validate reports every invalid setting, one per line.
func validate(cfg *Config) error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(cfg.Server.Port == "", "server.port is required")
	check(cfg.Postgres.DSN == "", "postgres.dsn is required")
	check(cfg.Postgres.MaxConns < 1, "postgres.max_conns must be >= 1")
	check(cfg.Postgres.MaxConns >= 1 && cfg.Postgres.MinConns > cfg.Postgres.MaxConns, "postgres.min_conns must not exceed max_conns")
	check(cfg.NATS.URL != "" && cfg.NATS.RetryDelay <= 0, "nats.retry_delay must be > 0")
	check(cfg.Breaker.MaxFailures < 1, "breaker.max_failures must be >= 1")
	check(cfg.Rate.Burst < 1, "rate.burst must be >= 1")
	check(cfg.Rate.RequestsPerSecond <= 0, "rate.requests_per_second must be > 0")
	switch {
	case cfg.Auth.Enabled && cfg.Auth.JWTSecret == "":
		check(true, "auth.jwt_secret is required when auth is enabled")
	case cfg.Auth.Enabled && len(cfg.Auth.JWTSecret) < 32:
		check(true, "auth.jwt_secret must be at least 32 characters")
	}
	check(cfg.Assistant.SessionIdleTimeout <= 0, "assistant.session_idle_timeout must be > 0")
	check(cfg.MCP.Enabled && cfg.MCP.APIKey == "", "mcp.api_key is required when mcp is enabled")

	return errors.Join(errs...)
}
