package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vanish/cmd/internal/pgutil"
)

// EnvConfigFile names an optional YAML file whose values sit between defaults and env vars.
const EnvConfigFile = "VANISH_CONFIG_FILE"

// Config contains all runtime configuration.
type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the database is configured and reachable.
	ReadinessRequireDB bool

	// If true, VANISH_TOKEN_HMAC_KEY must be set (>= 32 bytes) and digests must be HMAC-based.
	RequireTokenHMAC bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:          "0.0.0.0:8080",
		LogLevel:          "info",
		LogFormat:         "json",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		DBSchema:          pgutil.DefaultSchema,
		DBMaxConns:        10,
		CORSMaxAgeSeconds: 600,
	}
}

type fileConfig struct {
	HTTP struct {
		Addr              string        `yaml:"addr"`
		PublicBaseURL     string        `yaml:"public_base_url"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		IdleTimeout       time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		MaxHeaderBytes    int           `yaml:"max_header_bytes"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Database struct {
		URL      string `yaml:"url"`
		Schema   string `yaml:"schema"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"database"`
	ReadinessRequireDB *bool `yaml:"readiness_require_db"`
	RequireTokenHMAC   *bool `yaml:"require_token_hmac"`
	CORS               struct {
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AllowCredentials *bool    `yaml:"allow_credentials"`
		MaxAgeSeconds    int      `yaml:"max_age_seconds"`
	} `yaml:"cors"`
}

// LoadConfig layers defaults, the optional YAML file and environment variables, in that order.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := EnvString(EnvConfigFile, ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := applyFile(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg = Config{
		HTTPAddr:      EnvString("VANISH_HTTP_ADDR", cfg.HTTPAddr),
		PublicBaseURL: EnvString("VANISH_PUBLIC_BASE_URL", cfg.PublicBaseURL),
		LogLevel:      EnvString("VANISH_LOG_LEVEL", cfg.LogLevel),
		LogFormat:     EnvString("VANISH_LOG_FORMAT", cfg.LogFormat),

		ReadHeaderTimeout: EnvDuration("VANISH_HTTP_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout),
		ReadTimeout:       EnvDuration("VANISH_HTTP_READ_TIMEOUT", cfg.ReadTimeout),
		WriteTimeout:      EnvDuration("VANISH_HTTP_WRITE_TIMEOUT", cfg.WriteTimeout),
		IdleTimeout:       EnvDuration("VANISH_HTTP_IDLE_TIMEOUT", cfg.IdleTimeout),
		ShutdownTimeout:   EnvDuration("VANISH_HTTP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout),
		MaxHeaderBytes:    EnvInt("VANISH_HTTP_MAX_HEADER_BYTES", cfg.MaxHeaderBytes),

		DatabaseURL: EnvString("VANISH_DATABASE_URL", cfg.DatabaseURL),
		DBSchema:    EnvString("VANISH_DB_SCHEMA", cfg.DBSchema),
		DBMaxConns:  EnvInt32("VANISH_DB_MAX_CONNS", cfg.DBMaxConns),
		DBMinConns:  EnvInt32("VANISH_DB_MIN_CONNS", cfg.DBMinConns),

		ReadinessRequireDB: EnvBool("VANISH_READINESS_REQUIRE_DB", cfg.ReadinessRequireDB),
		RequireTokenHMAC:   EnvBool("VANISH_REQUIRE_TOKEN_HMAC", cfg.RequireTokenHMAC),

		CORSAllowedOrigins:   EnvList("VANISH_CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins),
		CORSAllowCredentials: EnvBool("VANISH_CORS_ALLOW_CREDENTIALS", cfg.CORSAllowCredentials),
		CORSMaxAgeSeconds:    EnvInt("VANISH_CORS_MAX_AGE_SECONDS", cfg.CORSMaxAgeSeconds),
	}

	if _, err := pgutil.CheckSchema(cfg.DBSchema); err != nil {
		return Config{}, err
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("db pool invalid: min_conns(%d) > max_conns(%d)", cfg.DBMinConns, cfg.DBMaxConns)
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	setString(&cfg.HTTPAddr, f.HTTP.Addr)
	setString(&cfg.PublicBaseURL, f.HTTP.PublicBaseURL)
	setDuration(&cfg.ReadHeaderTimeout, f.HTTP.ReadHeaderTimeout)
	setDuration(&cfg.ReadTimeout, f.HTTP.ReadTimeout)
	setDuration(&cfg.WriteTimeout, f.HTTP.WriteTimeout)
	setDuration(&cfg.IdleTimeout, f.HTTP.IdleTimeout)
	setDuration(&cfg.ShutdownTimeout, f.HTTP.ShutdownTimeout)
	if f.HTTP.MaxHeaderBytes > 0 {
		cfg.MaxHeaderBytes = f.HTTP.MaxHeaderBytes
	}

	setString(&cfg.LogLevel, f.Log.Level)
	setString(&cfg.LogFormat, f.Log.Format)

	setString(&cfg.DatabaseURL, f.Database.URL)
	setString(&cfg.DBSchema, f.Database.Schema)
	if f.Database.MaxConns > 0 {
		cfg.DBMaxConns = f.Database.MaxConns
	}
	if f.Database.MinConns > 0 {
		cfg.DBMinConns = f.Database.MinConns
	}

	if f.ReadinessRequireDB != nil {
		cfg.ReadinessRequireDB = *f.ReadinessRequireDB
	}
	if f.RequireTokenHMAC != nil {
		cfg.RequireTokenHMAC = *f.RequireTokenHMAC
	}
	if len(f.CORS.AllowedOrigins) > 0 {
		cfg.CORSAllowedOrigins = f.CORS.AllowedOrigins
	}
	if f.CORS.AllowCredentials != nil {
		cfg.CORSAllowCredentials = *f.CORS.AllowCredentials
	}
	if f.CORS.MaxAgeSeconds > 0 {
		cfg.CORSMaxAgeSeconds = f.CORS.MaxAgeSeconds
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
