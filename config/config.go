// Package config loads service configuration from embedded defaults, an
// optional YAML file and the environment, in that order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed defaults.yaml
var defaults []byte

const maxConfigFileSize = 1024 * 1024

// Store names reported by SelectedStore
const (
	StorePostgres = "postgres"
	StoreSupabase = "supabase"
	StoreNone     = "none"
)

// envKeys maps the documented environment variables onto config keys
var envKeys = map[string]string{
	"PORT":                        "server.port",
	"CORS_ENABLED":                "server.cors_enabled",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"GROQ_API_KEY":                "groq.api_key",
	"GROQ_BASE_URL":               "groq.base_url",
	"GROQ_MODEL":                  "groq.model",
	"MAX_CONCURRENT_LLM":          "analyzer.max_concurrent_llm",
	"TRANSCRIPT_API_URL":          "transcript.api_url",
	"TRANSCRIPT_PORT":             "transcript.port",
	"SUPABASE_URL":                "supabase.url",
	"SUPABASE_ANON_KEY":           "supabase.anon_key",
	"SUPABASE_SERVICE_ROLE_KEY":   "supabase.service_role_key",
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"STORAGE_BASE_PATH":           "storage.base_path",
	"S3_BUCKET":                   "storage.s3.bucket",
	"S3_REGION":                   "storage.s3.region",
	"S3_ENDPOINT":                 "storage.s3.endpoint",
	"S3_ACCESS_KEY_ID":            "storage.s3.access_key_id",
	"S3_SECRET_ACCESS_KEY":        "storage.s3.secret_access_key",
	"S3_USE_PATH_STYLE":           "storage.s3.use_path_style",
	"EMAILJS_SERVICE_ID":          "emailjs.service_id",
	"EMAILJS_TEMPLATE_ID":         "emailjs.template_id",
	"EMAILJS_PUBLIC_KEY":          "emailjs.public_key",
	"EMAILJS_PRIVATE_KEY":         "emailjs.private_key",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "tracing.endpoint",
	"OTEL_SERVICE_NAME":           "tracing.service_name",
	"REQUIRE_AUTH":                "server.require_auth",
}

// Config is the full service configuration
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Groq       GroqConfig       `koanf:"groq"`
	Analyzer   AnalyzerConfig   `koanf:"analyzer"`
	Transcript TranscriptConfig `koanf:"transcript"`
	Supabase   SupabaseConfig   `koanf:"supabase"`
	Database   DatabaseConfig   `koanf:"database"`
	Storage    StorageConfig    `koanf:"storage"`
	EmailJS    EmailJSConfig    `koanf:"emailjs"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	CORSEnabled     bool          `koanf:"cors_enabled"`
	RequireAuth     bool          `koanf:"require_auth"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type GroqConfig struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Model      string        `koanf:"model"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	RateLimit  float64       `koanf:"rate_limit"`
	Burst      int           `koanf:"burst"`
}

type AnalyzerConfig struct {
	HTTPTimeout      time.Duration `koanf:"http_timeout"`
	ActionTimeout    time.Duration `koanf:"action_timeout"`
	MaxConcurrentLLM int           `koanf:"max_concurrent_llm"`
}

type TranscriptConfig struct {
	APIURL   string `koanf:"api_url"`
	Port     int    `koanf:"port"`
	Language string `koanf:"language"`
}

type SupabaseConfig struct {
	URL            string `koanf:"url"`
	AnonKey        string `koanf:"anon_key"`
	ServiceRoleKey string `koanf:"service_role_key"`
}

type DatabaseConfig struct {
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

type StorageConfig struct {
	BasePath string   `koanf:"base_path"`
	S3       S3Config `koanf:"s3"`
}

type S3Config struct {
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	UsePathStyle    bool   `koanf:"use_path_style"`
}

type EmailJSConfig struct {
	ServiceID  string `koanf:"service_id"`
	TemplateID string `koanf:"template_id"`
	PublicKey  string `koanf:"public_key"`
	PrivateKey string `koanf:"private_key"`
}

type TracingConfig struct {
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

type MetricsConfig struct {
	DBStatsInterval time.Duration `koanf:"db_stats_interval"`
}

// Load reads the embedded defaults, then path (when not empty), then the
// environment. Later sources win.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey returns the config key for a known variable and "" for the rest,
// which koanf then skips.
func envKey(name string) string {
	return envKeys[name]
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// SelectedStore names the persistence backend. A direct database URL takes
// precedence over Supabase.
func (c *Config) SelectedStore() string {
	switch {
	case c.Database.URL != "":
		return StorePostgres
	case c.Supabase.URL != "" && c.Supabase.ServiceRoleKey != "":
		return StoreSupabase
	default:
		return StoreNone
	}
}

// UseS3 reports whether blob storage should go to S3
func (c *Config) UseS3() bool {
	return c.Storage.S3.Bucket != ""
}

// Validate reports missing or inconsistent values
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Analyzer.MaxConcurrentLLM < 1 {
		errs = append(errs, "analyzer.max_concurrent_llm must be at least 1")
	}
	if c.Supabase.URL != "" && c.Supabase.ServiceRoleKey == "" && c.Database.URL == "" {
		errs = append(errs, "supabase.service_role_key is required when supabase.url is set")
	}
	if c.UseS3() {
		s3 := c.Storage.S3
		if s3.Region == "" {
			errs = append(errs, "storage.s3.region is required when storage.s3.bucket is set")
		}
		if s3.AccessKeyID == "" || s3.SecretAccessKey == "" {
			errs = append(errs, "storage.s3 credentials are required when storage.s3.bucket is set")
		}
	} else if c.Storage.BasePath == "" {
		errs = append(errs, "storage.base_path is required without S3")
	}
	e := c.EmailJS
	if (e.ServiceID != "" || e.TemplateID != "" || e.PublicKey != "") &&
		(e.ServiceID == "" || e.TemplateID == "" || e.PublicKey == "") {
		errs = append(errs, "emailjs.service_id, template_id and public_key must be set together")
	}

	if len(errs) > 0 {
		return errors.New("invalid configuration: " + strings.Join(errs, "; "))
	}
	return nil
}
