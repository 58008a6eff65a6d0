package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, relative to the service working
// directory. INGEST_CONFIG_PATH overrides it.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr        string `yaml:"redisAddr"`
	RedisPassword    string `yaml:"redisPassword"`
	BatchLogTTLHours int    `yaml:"batchLogTtlHours"`

	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPublicBaseURL string `yaml:"minioPublicBaseURL"`

	GeminiAPIKey string `yaml:"geminiApiKey"`
	GeminiModel  string `yaml:"geminiModel"`

	MaxBatchSize      int    `yaml:"maxBatchSize"`
	PacingDelayMs     int    `yaml:"pacingDelayMs"`
	RetryMaxAttempts  int    `yaml:"retryMaxAttempts"`
	RetryBaseDelayMs  int    `yaml:"retryBaseDelayMs"`
	RateLimitPerMin   int    `yaml:"rateLimitPerMin"`
	TrustedProxyCIDRs string `yaml:"trustedProxyCidrs"`

	JWKSURL     string `yaml:"jwksURL"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
}

// Load reads config from path (defaults to config.yaml, or INGEST_CONFIG_PATH).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	if v := os.Getenv("INGEST_CONFIG_PATH"); v != "" {
		path = v
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_PUBLIC_BASE_URL"); v != "" {
		cfg.MinioPublicBaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("PROMPTDECK_JWKS_URL"); v != "" {
		cfg.JWKSURL = v
	}
	if v := os.Getenv("PROMPTDECK_JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("PROMPTDECK_JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("INGEST_MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBatchSize = n
		}
	}
	if v := os.Getenv("INGEST_PACING_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PacingDelayMs = n
		}
	}
	if v := os.Getenv("INGEST_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryMaxAttempts = n
		}
	}
	if v := os.Getenv("INGEST_RETRY_BASE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryBaseDelayMs = n
		}
	}
	if v := os.Getenv("INGEST_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMin = n
		}
	}
	if v := os.Getenv("INGEST_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = v
	}

	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.PacingDelayMs == 0 {
		cfg.PacingDelayMs = 5000
	}
	if cfg.RetryMaxAttempts == 0 {
		cfg.RetryMaxAttempts = 3
	}
	if cfg.RetryBaseDelayMs == 0 {
		cfg.RetryBaseDelayMs = 3000
	}
	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = 60
	}
	if cfg.BatchLogTTLHours == 0 {
		cfg.BatchLogTTLHours = 24
	}
	if cfg.MinioBucket == "" {
		cfg.MinioBucket = "prompt-assets"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml or MINIO_ENDPOINT)")
	}
	if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return errors.New("config: minio credentials are required (MINIO_ACCESS_KEY + MINIO_SECRET_KEY)")
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return errors.New("config: geminiApiKey is required (set in config.yaml or GEMINI_API_KEY)")
	}
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		return errors.New("config: jwksURL is required (set in config.yaml or PROMPTDECK_JWKS_URL)")
	}
	if cfg.MaxBatchSize < 1 {
		return errors.New("config: maxBatchSize must be >= 1")
	}
	if cfg.PacingDelayMs < 0 {
		return errors.New("config: pacingDelayMs must be >= 0")
	}
	if cfg.RetryMaxAttempts < 0 {
		return errors.New("config: retryMaxAttempts must be >= 0")
	}
	if cfg.RetryBaseDelayMs < 0 {
		return errors.New("config: retryBaseDelayMs must be >= 0")
	}
	if cfg.RateLimitPerMin < 1 {
		return errors.New("config: rateLimitPerMin must be >= 1")
	}
	return nil
}
