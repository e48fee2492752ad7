package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Reputation  ReputationConfig  `mapstructure:"reputation"`
	OCR         OCRConfig         `mapstructure:"ocr"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
}

// StorageConfig selects where scan records live. Backend is "file" or "postgres".
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	ResultsDir string `mapstructure:"results_dir"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// HuggingFaceConfig holds the access token shared by the classifier and the LLM.
type HuggingFaceConfig struct {
	Token string `mapstructure:"token"`
}

type ClassifierConfig struct {
	Model        string        `mapstructure:"model"`
	InferenceURL string        `mapstructure:"inference_url"`
	HubURL       string        `mapstructure:"hub_url"`
	Threshold    float64       `mapstructure:"threshold"`
	MaxChars     int           `mapstructure:"max_chars"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ReputationConfig struct {
	Concurrency  int                `mapstructure:"concurrency"`
	CacheTTL     time.Duration      `mapstructure:"cache_ttl"`
	Phone        PhoneLookupConfig  `mapstructure:"phone"`
	SafeBrowsing SafeBrowsingConfig `mapstructure:"safe_browsing"`
}

type PhoneLookupConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIURL            string        `mapstructure:"api_url"`
	APIKey            string        `mapstructure:"api_key"`
	CountryCode       string        `mapstructure:"country_code"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type SafeBrowsingConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIURL            string        `mapstructure:"api_url"`
	APIKey            string        `mapstructure:"api_key"`
	ClientID          string        `mapstructure:"client_id"`
	ClientVersion     string        `mapstructure:"client_version"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type OCRConfig struct {
	Language string `mapstructure:"language"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "smishguard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 90*time.Second)
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.results_dir", "results")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "smishguard")
	v.SetDefault("database.dbname", "smishguard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "smishguard:")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("classifier.model", "ixjordan/distilbert_phishing_sms")
	v.SetDefault("classifier.inference_url", "https://router.huggingface.co/hf-inference/models")
	v.SetDefault("classifier.hub_url", "https://huggingface.co")
	v.SetDefault("classifier.threshold", 0.5)
	v.SetDefault("classifier.max_chars", 512)
	v.SetDefault("classifier.timeout", 30*time.Second)

	v.SetDefault("llm.base_url", "https://router.huggingface.co/v1")
	v.SetDefault("llm.model", "HuggingFaceTB/SmolLM3-3B:hf-inference")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("reputation.concurrency", 4)
	v.SetDefault("reputation.cache_ttl", 24*time.Hour)
	v.SetDefault("reputation.phone.enabled", false)
	v.SetDefault("reputation.phone.country_code", "GB")
	v.SetDefault("reputation.phone.timeout", 10*time.Second)
	v.SetDefault("reputation.phone.requests_per_second", 5)
	v.SetDefault("reputation.safe_browsing.enabled", false)
	v.SetDefault("reputation.safe_browsing.api_url", "https://safebrowsing.googleapis.com/v4/threatMatches:find")
	v.SetDefault("reputation.safe_browsing.client_id", "smishguard")
	v.SetDefault("reputation.safe_browsing.client_version", "1.0.0")
	v.SetDefault("reputation.safe_browsing.timeout", 10*time.Second)
	v.SetDefault("reputation.safe_browsing.requests_per_second", 10)

	v.SetDefault("ocr.language", "eng")
}

// Load reads configuration from an optional file, a .env file and environment variables
func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/smishguard")
	}

	v.SetEnvPrefix("SMISHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("huggingface.token", "SMISHGUARD_HUGGINGFACE_TOKEN", "HF_TOKEN")
	v.BindEnv("llm.api_key", "SMISHGUARD_LLM_API_KEY")
	v.BindEnv("redis.enabled", "SMISHGUARD_REDIS_ENABLED")
	v.BindEnv("redis.host", "SMISHGUARD_REDIS_HOST")
	v.BindEnv("redis.password", "SMISHGUARD_REDIS_PASSWORD")
	v.BindEnv("database.host", "SMISHGUARD_DATABASE_HOST")
	v.BindEnv("database.password", "SMISHGUARD_DATABASE_PASSWORD")
	v.BindEnv("storage.backend", "SMISHGUARD_STORAGE_BACKEND")
	v.BindEnv("reputation.phone.api_key", "SMISHGUARD_REPUTATION_PHONE_API_KEY")
	v.BindEnv("reputation.safe_browsing.api_key", "SMISHGUARD_REPUTATION_SAFE_BROWSING_API_KEY")
	v.BindEnv("app.environment", "SMISHGUARD_APP_ENVIRONMENT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = cfg.HuggingFace.Token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		return fmt.Errorf("classifier threshold %v outside [0,1]", c.Classifier.Threshold)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("ratelimit.requests_per_minute must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	if c.Reputation.Phone.Enabled && c.Reputation.Phone.APIURL == "" {
		return fmt.Errorf("reputation.phone.api_url is required when phone lookups are enabled")
	}
	return nil
}
