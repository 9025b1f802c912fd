package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Parser   ParserConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type ParserConfig struct {
	MaxAttempts   int
	URLPrefix     string
	ResultsDir    string
	RetryDelayMin time.Duration
	RetryDelayMax time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

// DatabaseConfig is optional. History is recorded only when Host is set.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig is optional. Events are published only when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	QueueSize       int
	JobRetention    time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Parser: ParserConfig{
			MaxAttempts:   getIntOrDefault("PARSER_MAX_ATTEMPTS", 3),
			URLPrefix:     getEnvOrDefault("PARSER_URL_PREFIX", "https://www.vprok.ru/product/"),
			ResultsDir:    getEnvOrDefault("PARSER_RESULTS_DIR", "parse_results"),
			RetryDelayMin: getDurationOrDefault("PARSER_RETRY_DELAY_MIN", 2*time.Second),
			RetryDelayMax: getDurationOrDefault("PARSER_RETRY_DELAY_MAX", 5*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1080),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1024),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "vprok_prices"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:price_observations"),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			QueueSize:       getIntOrDefault("SERVER_QUEUE_SIZE", 100),
			JobRetention:    getDurationOrDefault("SERVER_JOB_RETENTION", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Parser.MaxAttempts < 1 {
		return fmt.Errorf("PARSER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Parser.URLPrefix == "" {
		return fmt.Errorf("PARSER_URL_PREFIX is required")
	}

	if c.Parser.RetryDelayMin > c.Parser.RetryDelayMax {
		return fmt.Errorf("PARSER_RETRY_DELAY_MIN cannot be greater than PARSER_RETRY_DELAY_MAX")
	}

	if c.Browser.ViewportWidth < 1 || c.Browser.ViewportHeight < 1 {
		return fmt.Errorf("invalid viewport: %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}

	if c.Server.QueueSize < 1 {
		return fmt.Errorf("SERVER_QUEUE_SIZE must be at least 1")
	}

	if c.Database.Enabled() && c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required when DB_HOST is set")
	}

	return nil
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
