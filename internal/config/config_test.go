package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("sqlscout-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Database.Driver != "duckdb" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.MaxRows != 500 {
		t.Fatalf("Database.MaxRows = %d", cfg.Database.MaxRows)
	}
	if cfg.Database.SampleRows != 3 {
		t.Fatalf("Database.SampleRows = %d", cfg.Database.SampleRows)
	}
	if cfg.Chat.HistoryLimit != 50 {
		t.Fatalf("Chat.HistoryLimit = %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Chat.ContextTurns != 6 {
		t.Fatalf("Chat.ContextTurns = %d", cfg.Chat.ContextTurns)
	}
	if !cfg.Viz.AdvisorEnabled {
		t.Fatal("Viz.AdvisorEnabled should default to true")
	}
	if cfg.Export.Enabled {
		t.Fatal("Export.Enabled should default to false")
	}
	ids := cfg.Models.CandidateIDs()
	if len(ids) != 4 {
		t.Fatalf("CandidateIDs() = %v", ids)
	}
	if ids[0] != "llama3-70b-8192" {
		t.Fatalf("first candidate = %q", ids[0])
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"SQLSCOUT_PROFILE": "prod"})
	cfg, err := Load("sqlscout-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLSCOUT_HTTP_ADDR":          ":9090",
		"SQLSCOUT_DB_DRIVER":          "postgres",
		"SQLSCOUT_DB_DSN":             "postgres://localhost:5432/app",
		"SQLSCOUT_DB_QUERY_TIMEOUT":   "7s",
		"SQLSCOUT_DB_MAX_ROWS":        "250",
		"SQLSCOUT_MODELS_BASE_URL":    "https://api.example.com",
		"SQLSCOUT_MODELS_API_KEY":     "secret-key",
		"SQLSCOUT_MODELS_CANDIDATES":  "model-a, model-b",
		"SQLSCOUT_MODELS_TEMPERATURE": "0.3",
		"SQLSCOUT_MODELS_TIMEOUT":     "21s",
		"SQLSCOUT_CHAT_HISTORY_LIMIT": "12",
		"SQLSCOUT_CHAT_CONTEXT_TURNS": "4",
		"SQLSCOUT_VIZ_ADVISOR_ENABLED": "false",
		"SQLSCOUT_EXPORT_ENABLED":     "true",
		"SQLSCOUT_EXPORT_PREFIX":      "results",
	})
	cfg, err := Load("sqlscout-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.QueryTimeout != 7*time.Second {
		t.Fatalf("Database.QueryTimeout = %s", cfg.Database.QueryTimeout)
	}
	if cfg.Database.MaxRows != 250 {
		t.Fatalf("Database.MaxRows = %d", cfg.Database.MaxRows)
	}
	if cfg.Models.APIKey != "secret-key" {
		t.Fatalf("Models.APIKey = %q", cfg.Models.APIKey)
	}
	if cfg.Models.Temperature != 0.3 {
		t.Fatalf("Models.Temperature = %f", cfg.Models.Temperature)
	}
	ids := cfg.Models.CandidateIDs()
	if len(ids) != 2 || ids[0] != "model-a" || ids[1] != "model-b" {
		t.Fatalf("CandidateIDs() = %v", ids)
	}
	if cfg.Chat.HistoryLimit != 12 {
		t.Fatalf("Chat.HistoryLimit = %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Viz.AdvisorEnabled {
		t.Fatal("Viz.AdvisorEnabled = true, want false")
	}
	if !cfg.Export.Enabled {
		t.Fatal("Export.Enabled = false, want true")
	}
	if cfg.Export.Prefix != "results" {
		t.Fatalf("Export.Prefix = %q", cfg.Export.Prefix)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLSCOUT_PROFILE": "oops"},
		{"SQLSCOUT_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLSCOUT_DB_DRIVER": "oracle"},
		{"SQLSCOUT_DB_MAX_ROWS": "oops"},
		{"SQLSCOUT_MODELS_CANDIDATES": " , "},
		{"SQLSCOUT_MODELS_TEMPERATURE": "bad"},
		{"SQLSCOUT_AUTH_REQUIRED": "not-bool"},
		{"SQLSCOUT_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("sqlscout-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
