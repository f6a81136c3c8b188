package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Models        ModelsConfig
	Chat          ChatConfig
	Viz           VizConfig
	Export        ExportConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig selects the single active database for the session.
// Driver is "duckdb" (DSN is a local file path, empty for in-memory) or
// "postgres" (DSN is a connection string).
type DatabaseConfig struct {
	Driver       string
	DSN          string
	QueryTimeout time.Duration
	MaxRows      int
	SampleRows   int
}

type ModelsConfig struct {
	BaseURL     string
	APIKey      string
	Candidates  string
	Temperature float64
	Timeout     time.Duration
}

type ChatConfig struct {
	HistoryLimit int
	ContextTurns int
}

type VizConfig struct {
	AdvisorEnabled bool
	MaxPoints      int
}

type ExportConfig struct {
	Enabled bool
	Prefix  string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLSCOUT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLSCOUT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLSCOUT_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCOUT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCOUT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCOUT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_DB_DSN", &cfg.Database.DSN); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCOUT_DB_QUERY_TIMEOUT", &cfg.Database.QueryTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCOUT_DB_MAX_ROWS", &cfg.Database.MaxRows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCOUT_DB_SAMPLE_ROWS", &cfg.Database.SampleRows); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_MODELS_BASE_URL", &cfg.Models.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_MODELS_API_KEY", &cfg.Models.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_MODELS_CANDIDATES", &cfg.Models.Candidates); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLSCOUT_MODELS_TEMPERATURE", &cfg.Models.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCOUT_MODELS_TIMEOUT", &cfg.Models.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCOUT_CHAT_HISTORY_LIMIT", &cfg.Chat.HistoryLimit); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCOUT_CHAT_CONTEXT_TURNS", &cfg.Chat.ContextTurns); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCOUT_VIZ_ADVISOR_ENABLED", &cfg.Viz.AdvisorEnabled); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCOUT_VIZ_MAX_POINTS", &cfg.Viz.MaxPoints); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCOUT_EXPORT_ENABLED", &cfg.Export.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_EXPORT_PREFIX", &cfg.Export.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCOUT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCOUT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCOUT_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLSCOUT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCOUT_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCOUT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if !isValidDriver(cfg.Database.Driver) {
		return Config{}, fmt.Errorf("invalid SQLSCOUT_DB_DRIVER: %q", cfg.Database.Driver)
	}
	if len(cfg.Models.CandidateIDs()) == 0 {
		return Config{}, fmt.Errorf("at least one model candidate is required")
	}
	return cfg, nil
}

// CandidateIDs returns the configured model identifiers in priority order.
func (c ModelsConfig) CandidateIDs() []string {
	parts := strings.Split(c.Candidates, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlscout-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "duckdb",
			DSN:          "sample_data.db",
			QueryTimeout: 15 * time.Second,
			MaxRows:      500,
			SampleRows:   3,
		},
		Models: ModelsConfig{
			BaseURL:     "https://api.groq.com/openai",
			Candidates:  "llama3-70b-8192,llama-3.1-70b-versatile,llama-3.1-8b-instant,gemma2-9b-it",
			Temperature: 0,
			Timeout:     15 * time.Second,
		},
		Chat: ChatConfig{
			HistoryLimit: 50,
			ContextTurns: 6,
		},
		Viz: VizConfig{
			AdvisorEnabled: true,
			MaxPoints:      100,
		},
		Export: ExportConfig{
			Enabled: false,
			Prefix:  "exports",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlscout",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidDriver(driver string) bool {
	switch driver {
	case "duckdb", "postgres":
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
