package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DefaultProviderURL   = "https://api.lemonfox.ai/v1/audio/transcriptions"
	DefaultProviderModel = "whisper-1"
	CallbackPath         = "/transcription-callback"
)

// DefaultAllowedTypes are the MIME types accepted for direct uploads.
var DefaultAllowedTypes = []string{
	"audio/mp3",
	"audio/wav",
	"audio/flac",
	"audio/aac",
	"audio/opus",
	"audio/ogg",
	"audio/m4a",
	"audio/mpeg",
	"video/mp4",
	"video/mpeg",
	"video/mov",
	"video/webm",
}

type Config struct {
	Service       ServiceConfig
	Provider      ProviderConfig
	Callback      CallbackConfig
	Upload        UploadConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal     string
	HTTPPort      string
	MetricsPort   string
	Environment   string
	PublicBaseURL string
}

type ProviderConfig struct {
	Name    string // lemonfox, openai, google, mock
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration

	// Mock backend only: answer with a task id and call back after MockDelay.
	MockAsync bool
	MockDelay time.Duration
}

type CallbackConfig struct {
	Secret string
}

type UploadConfig struct {
	MaxBytes     int64
	URLMaxBytes  int64
	AllowedTypes []string
}

type StoreConfig struct {
	Backend                 string // memory, redis
	MaxAge                  time.Duration
	RetentionAfterRetrieval time.Duration
	SweepInterval           time.Duration
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	RedisKeyPrefix          string
}

type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicAccepted  string
	TopicCompleted string
	Principal      string
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. Values that fail to parse
// fall back to their defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-transcription-proxy")
	apiKey := envOrDefault("PROVIDER_API_KEY", os.Getenv("LEMONFOX_API_KEY"))

	return &Config{
		Service: ServiceConfig{
			Principal:     principal,
			HTTPPort:      envOrDefault("HTTP_PORT", "8080"),
			MetricsPort:   envOrDefault("METRICS_PORT", "9090"),
			Environment:   strings.ToLower(envOrDefault("ENV", EnvDevelopment)),
			PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		},
		Provider: ProviderConfig{
			Name:    strings.ToLower(envOrDefault("PROVIDER", "lemonfox")),
			APIURL:  envOrDefault("PROVIDER_API_URL", DefaultProviderURL),
			APIKey:  apiKey,
			Model:   envOrDefault("PROVIDER_MODEL", DefaultProviderModel),
			Timeout: envOrDefaultDuration("PROVIDER_TIMEOUT", time.Hour),

			MockAsync: envOrDefaultBool("PROVIDER_MOCK_ASYNC", false),
			MockDelay: envOrDefaultDuration("PROVIDER_MOCK_DELAY", 3*time.Second),
		},
		Callback: CallbackConfig{
			Secret: envOrDefault("CALLBACK_SECRET", apiKey),
		},
		Upload: UploadConfig{
			MaxBytes:     envOrDefaultInt64("UPLOAD_MAX_BYTES", 100*1024*1024),
			URLMaxBytes:  envOrDefaultInt64("UPLOAD_URL_MAX_BYTES", 1024*1024*1024),
			AllowedTypes: envOrDefaultList("UPLOAD_ALLOWED_TYPES", DefaultAllowedTypes),
		},
		Store: StoreConfig{
			Backend:                 strings.ToLower(envOrDefault("STORE_BACKEND", "memory")),
			MaxAge:                  envOrDefaultDuration("STORE_MAX_AGE", time.Hour),
			RetentionAfterRetrieval: envOrDefaultDuration("STORE_RETENTION_AFTER_RETRIEVAL", time.Minute),
			SweepInterval:           envOrDefaultDuration("STORE_SWEEP_INTERVAL", 5*time.Minute),
			RedisAddr:               os.Getenv("REDIS_ADDR"),
			RedisPassword:           os.Getenv("REDIS_PASSWORD"),
			RedisDB:                 envOrDefaultInt("REDIS_DB", 0),
			RedisKeyPrefix:          envOrDefault("REDIS_KEY_PREFIX", "transcription:"),
		},
		Kafka: KafkaConfig{
			Enabled:        envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:        envOrDefaultList("KAFKA_BROKERS", nil),
			TopicAccepted:  envOrDefault("KAFKA_TOPIC_ACCEPTED", "transcription.accepted"),
			TopicCompleted: envOrDefault("KAFKA_TOPIC_COMPLETED", "transcription.completed"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

// LoadEnvFiles loads KEY=value files into the process environment. Missing
// files are skipped and variables already set are not overridden.
func LoadEnvFiles(paths ...string) []string {
	var loaded []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Service.Environment == EnvProduction
}

// CallbackURL returns the URL the provider should push asynchronous results to,
// or "" when the deployment is not publicly reachable.
func (c *Config) CallbackURL() string {
	if !c.IsProduction() || c.Service.PublicBaseURL == "" {
		return ""
	}
	u, err := url.Parse(c.Service.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	if isLocalHost(u.Hostname()) {
		return ""
	}
	return c.Service.PublicBaseURL + CallbackPath
}

func isLocalHost(host string) bool {
	h := strings.ToLower(host)
	if h == "localhost" || strings.HasSuffix(h, ".localhost") || strings.HasSuffix(h, ".local") {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
