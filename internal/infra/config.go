package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DevelopmentBaseURL = "http://localhost:3000/api"
	ProductionBaseURL  = "https://shlxlyzagqnc.sealoshzh.site/api"
)

// Config корневая структура конфигурации клиента.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// APIConfig описывает бэкенд, к которому ходит клиент.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Env       string        `mapstructure:"env"` // development, production
	Timeout   time.Duration `mapstructure:"timeout"`
	AITimeout time.Duration `mapstructure:"ai_timeout"` // AI-эндпоинты отвечают минутами
	UserAgent string        `mapstructure:"user_agent"`
}

// AuthConfig содержит имена ключей хранилища токенов и путь обновления.
type AuthConfig struct {
	TokenKey        string `mapstructure:"token_key"`
	RefreshTokenKey string `mapstructure:"refresh_token_key"`
	RefreshPath     string `mapstructure:"refresh_path"`
	Store           string `mapstructure:"store"` // memory, redis
	Token           string `mapstructure:"token"`
	RefreshToken    string `mapstructure:"refresh_token"`
	PublicKeyPath   string `mapstructure:"public_key_path"`
	PublicKey       []byte
}

// ReliabilityConfig лимитер, предохранитель и повторы исходящих запросов.
type ReliabilityConfig struct {
	MaxAttempts      uint          `mapstructure:"max_attempts"` // включая первую попытку
	Backoff          time.Duration `mapstructure:"backoff"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst"`
	CBMaxRequests    uint32        `mapstructure:"cb_max_requests"`
	CBInterval       time.Duration `mapstructure:"cb_interval"`
	CBTimeout        time.Duration `mapstructure:"cb_timeout"`
	FailureThreshold uint32        `mapstructure:"cb_failure_threshold"`
}

// RedisConfig описывает подключение к Redis (хранилище токенов).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig описывает подключение к PostgreSQL для журнала вызовов.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

type JournalConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoadConfig объединяет значения из файла, ENV и дефолтов.
// Пути поиска можно переопределить, по умолчанию "." и "./configs".
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// API_BASE_URL=... перекроет api.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Файла нет, работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.API.BaseURL = ResolveBaseURL(cfg.API)
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Пустые дефолты нужны, чтобы Unmarshal видел ключи из ENV
	v.SetDefault("api.base_url", "")
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.refresh_token", "")
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("database.url", "")
	v.SetDefault("journal.enabled", false)
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("api.env", "production")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.ai_timeout", 600*time.Second)
	v.SetDefault("api.user_agent", "kyyup-apiclient/1.0")

	v.SetDefault("auth.token_key", "kindergarten_token")
	v.SetDefault("auth.refresh_token_key", "kindergarten_refresh_token")
	v.SetDefault("auth.refresh_path", "/auth/refresh-token")
	v.SetDefault("auth.store", "memory")

	v.SetDefault("reliability.max_attempts", 2)
	v.SetDefault("reliability.backoff", 300*time.Millisecond)
	v.SetDefault("reliability.rate_limit", 100)
	v.SetDefault("reliability.rate_burst", 20)
	v.SetDefault("reliability.cb_max_requests", 3)
	v.SetDefault("reliability.cb_interval", 5*time.Second)
	v.SetDefault("reliability.cb_timeout", 30*time.Second)
	v.SetDefault("reliability.cb_failure_threshold", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("journal.buffer_size", 1000)
	v.SetDefault("journal.batch_size", 100)
	v.SetDefault("journal.flush_interval", 500*time.Millisecond)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// ResolveBaseURL выбирает адрес API: явная настройка, затем окружение.
func ResolveBaseURL(cfg APIConfig) string {
	if cfg.BaseURL != "" {
		return strings.TrimRight(cfg.BaseURL, "/")
	}
	if strings.EqualFold(cfg.Env, "development") {
		return DevelopmentBaseURL
	}
	return ProductionBaseURL
}

// loadKeyResource берет PEM из ENV, если его нет, читает файл по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
