package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"broker-copilot/internal/shared/telemetry"
)

const (
	AgentModeLocal  = "local"
	AgentModeRemote = "remote"
)

// Config holds application configuration.
type Config struct {
	Port              string
	CORSAllowOrigin   []string
	Env               string
	AgentMode         string
	AgentBaseURL      string
	AgentTimeout      time.Duration
	ClarifiersEnabled bool
	HighThreshold     int
	MidThreshold      int
	CatalogueFile     string
	DedupeFollowups   bool
	SessionCapacity   int
	SessionTTL        time.Duration
	RateLimitRPS      float64
	RateLimitBurst    int
	DatabaseURL       string
	ObjectStoreType   string
	LocalStoreDir     string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	SSEKMSKeyID       string
	LogLevel          string
	LogFile           string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(os.Getenv("COPILOT_CONFIG")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			telemetry.Warn("config.file_unreadable", map[string]any{"path": path, "error": err})
		}
	}

	env := normalizeEnv(v.GetString("env"))
	dbURL := strings.TrimSpace(v.GetString("database_url"))
	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:              v.GetString("port"),
		CORSAllowOrigin:   splitAndTrim(v.GetString("cors_allow_origins")),
		Env:               env,
		AgentMode:         normalizeAgentMode(v.GetString("agent_mode")),
		AgentBaseURL:      strings.TrimRight(strings.TrimSpace(v.GetString("agent_base_url")), "/"),
		AgentTimeout:      v.GetDuration("agent_timeout"),
		ClarifiersEnabled: v.GetBool("clarifiers_enabled"),
		HighThreshold:     v.GetInt("high_threshold"),
		MidThreshold:      v.GetInt("mid_threshold"),
		CatalogueFile:     strings.TrimSpace(v.GetString("catalogue_file")),
		DedupeFollowups:   v.GetBool("dedupe_followups"),
		SessionCapacity:   v.GetInt("session_capacity"),
		SessionTTL:        v.GetDuration("session_ttl"),
		RateLimitRPS:      v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:    v.GetInt("rate_limit_burst"),
		DatabaseURL:       dbURL,
		ObjectStoreType:   normalizeStoreType(v.GetString("object_store")),
		LocalStoreDir:     v.GetString("local_store_dir"),
		AWSRegion:         v.GetString("aws_region"),
		S3Bucket:          v.GetString("s3_bucket"),
		S3Prefix:          v.GetString("s3_prefix"),
		SSEKMSKeyID:       v.GetString("sse_kms_key_id"),
		LogLevel:          v.GetString("log_level"),
		LogFile:           v.GetString("log_file"),
	}
}

// Validate reports configuration combinations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.HighThreshold <= c.MidThreshold {
		errs = append(errs, fmt.Errorf("HIGH_THRESHOLD (%d) must be greater than MID_THRESHOLD (%d)", c.HighThreshold, c.MidThreshold))
	}
	if c.AgentMode == AgentModeRemote && c.AgentBaseURL == "" {
		errs = append(errs, errors.New("AGENT_BASE_URL is required when AGENT_MODE=remote"))
	}
	if c.ObjectStoreType == "s3" && strings.TrimSpace(c.S3Bucket) == "" {
		errs = append(errs, errors.New("S3_BUCKET is required when OBJECT_STORE=s3"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "dev")
	v.SetDefault("cors_allow_origins", "http://localhost:5173")
	v.SetDefault("agent_mode", AgentModeLocal)
	v.SetDefault("agent_base_url", "")
	v.SetDefault("agent_timeout", 30*time.Second)
	v.SetDefault("clarifiers_enabled", true)
	v.SetDefault("high_threshold", 60)
	v.SetDefault("mid_threshold", 30)
	v.SetDefault("catalogue_file", "")
	v.SetDefault("dedupe_followups", false)
	v.SetDefault("session_capacity", 1024)
	v.SetDefault("session_ttl", 2*time.Hour)
	v.SetDefault("rate_limit_rps", 1.0)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("database_url", "")
	v.SetDefault("object_store", "local")
	v.SetDefault("local_store_dir", "./data")
	v.SetDefault("aws_region", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "quote-packs/")
	v.SetDefault("sse_kms_key_id", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// loadEnvFiles loads KEY=VALUE pairs from the given files if they exist.
// Variables already present in the environment win.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			telemetry.Warn("config.env_file_invalid", map[string]any{"path": path, "error": err})
		}
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeAgentMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case AgentModeRemote, "agent", "delegated":
		return AgentModeRemote
	default:
		return AgentModeLocal
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
