package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	cfg     *APIConfig
	loadErr error
	once    sync.Once
)

// APIConfig represents the root element.
type APIConfig struct {
	XMLName        xml.Name             `xml:"API"`
	RequestDump    bool                 `xml:"REQUEST_DUMP,attr"`
	Context        ContextConfig        `xml:"CONTEXT"`
	Authentication AuthenticationConfig `xml:"AUTHENTICATION"`
	Pagination     PaginationConfig     `xml:"PAGINATION"`
	DB             DBConfig             `xml:"DB"`
	Logging        LoggingConfig        `xml:"LOGGING"`
	LLM            LLMConfig            `xml:"LLM"`
	Quiz           QuizConfig           `xml:"QUIZ"`
	RateLimit      RateLimitConfig      `xml:"RATE_LIMIT"`
}

// ContextConfig holds basic server settings.
type ContextConfig struct {
	Port            int    `xml:"PORT"`
	Host            string `xml:"HOST"`
	Path            string `xml:"PATH"`
	TimeZone        string `xml:"TIME_ZONE"`
	EnableH2C       bool   `xml:"ENABLE_H2C"`
	AllowedOrigins  string `xml:"ALLOWED_ORIGINS"`
	ShutdownTimeout int    `xml:"SHUTDOWN_TIMEOUT"`
}

// AuthenticationConfig holds authentication settings.
type AuthenticationConfig struct {
	EnableTokenAuth    bool   `xml:"ENABLE_TOKEN_AUTH"`
	AccessSecret       string `xml:"ACCESS_SECRET"`
	RefreshSecret      string `xml:"REFRESH_SECRET"`
	AccessTokenMinutes int    `xml:"ACCESS_TOKEN_MINUTES"`
	RefreshTokenHours  int    `xml:"REFRESH_TOKEN_HOURS"`
}

// PaginationConfig holds pagination settings.
type PaginationConfig struct {
	PageSize    int `xml:"PAGE_SIZE"`
	MaxPageSize int `xml:"MAX_PAGE_SIZE"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Initialize bool         `xml:"INITIALIZE"`
	Driver     string       `xml:"DRIVER"`
	Host       string       `xml:"HOST"`
	Port       int          `xml:"PORT"`
	SSLMode    string       `xml:"SSL_MODE"`
	Name       string       `xml:"NAME"`
	Path       string       `xml:"PATH"`
	Username   string       `xml:"USERNAME"`
	Password   DBPassword   `xml:"PASSWORD"`
	Pool       DBPoolConfig `xml:"POOL"`
	LogQueries bool         `xml:"LOG_QUERIES"`
}

// DBPassword holds password details.
type DBPassword struct {
	Type  string `xml:"TYPE,attr"`
	Value string `xml:",chardata"`
}

// DBPoolConfig holds database connection pooling settings.
type DBPoolConfig struct {
	MaxOpenConns    int `xml:"MAX_OPEN_CONNS"`
	MaxIdleConns    int `xml:"MAX_IDLE_CONNS"`
	ConnMaxLifetime int `xml:"CONN_MAX_LIFETIME"`
}

// LoggingConfig controls the application logger.
type LoggingConfig struct {
	Level      string `xml:"LEVEL"`
	File       string `xml:"FILE"`
	MaxSizeMB  int    `xml:"MAX_SIZE_MB"`
	MaxBackups int    `xml:"MAX_BACKUPS"`
	MaxAgeDays int    `xml:"MAX_AGE_DAYS"`
	Console    bool   `xml:"CONSOLE"`
}

// LLMConfig selects and configures the external question provider.
type LLMConfig struct {
	Provider       string `xml:"PROVIDER"`
	APIKey         string `xml:"API_KEY"`
	Model          string `xml:"MODEL"`
	BaseURL        string `xml:"BASE_URL"`
	MaxTokens      int    `xml:"MAX_TOKENS"`
	Temperature    string `xml:"TEMPERATURE"`
	RetryAttempts  int    `xml:"RETRY_ATTEMPTS"`
	RequestTimeout int    `xml:"REQUEST_TIMEOUT"`
}

// QuizConfig tunes question generation.
type QuizConfig struct {
	ProviderTimeoutSeconds int   `xml:"PROVIDER_TIMEOUT_SECONDS"`
	HistoryLimit           int   `xml:"HISTORY_LIMIT"`
	AvoidanceCacheSize     int   `xml:"AVOIDANCE_CACHE_SIZE"`
	AvoidanceBucketMinutes int   `xml:"AVOIDANCE_BUCKET_MINUTES"`
	SubcallCacheSize       int   `xml:"SUBCALL_CACHE_SIZE"`
	DuplicateWindowDays    int   `xml:"DUPLICATE_WINDOW_DAYS"`
	DuplicateRetries       int   `xml:"DUPLICATE_RETRIES"`
	ExposeAnswerKey        bool  `xml:"EXPOSE_ANSWER_KEY"`
	RandomSeed             int64 `xml:"RANDOM_SEED"`
}

// RateLimitConfig bounds question generation per learner.
type RateLimitConfig struct {
	Enabled           bool    `xml:"ENABLED,attr"`
	RequestsPerMinute float64 `xml:"REQUESTS_PER_MINUTE"`
	Burst             int     `xml:"BURST"`
}

// LoadConfig loads and parses the XML configuration from the given file,
// then applies .env and environment overrides.
func LoadConfig(xmlPath string) (*APIConfig, error) {
	once.Do(func() {
		f, err := os.Open(xmlPath)
		if err != nil {
			loadErr = fmt.Errorf("open config: %w", err)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			loadErr = fmt.Errorf("read config: %w", err)
			return
		}

		// A missing .env file is normal outside local development.
		_ = godotenv.Load()

		cfg, loadErr = Parse(data)
	})

	if loadErr != nil {
		return nil, loadErr
	}
	return cfg, nil
}

// Parse decodes an XML document, applies environment overrides and fills
// in defaults.
func Parse(data []byte) (*APIConfig, error) {
	var newCfg APIConfig
	if err := xml.Unmarshal(data, &newCfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	newCfg.applyEnv()
	newCfg.applyDefaults()
	return &newCfg, nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *APIConfig {
	return cfg
}

func (c *APIConfig) applyEnv() {
	envString("HOST", &c.Context.Host)
	envInt("PORT", &c.Context.Port)
	envString("DB_DRIVER", &c.DB.Driver)
	envString("DB_HOST", &c.DB.Host)
	envInt("DB_PORT", &c.DB.Port)
	envString("DB_NAME", &c.DB.Name)
	envString("DB_PATH", &c.DB.Path)
	envString("DB_USERNAME", &c.DB.Username)
	envString("DB_PASSWORD", &c.DB.Password.Value)
	envString("JWT_ACCESS_SECRET", &c.Authentication.AccessSecret)
	envString("JWT_REFRESH_SECRET", &c.Authentication.RefreshSecret)
	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LLM_PROVIDER", &c.LLM.Provider)
	envString("LLM_API_KEY", &c.LLM.APIKey)
	envString("LLM_MODEL", &c.LLM.Model)
	envString("LLM_BASE_URL", &c.LLM.BaseURL)
	envInt("PROVIDER_TIMEOUT_SECONDS", &c.Quiz.ProviderTimeoutSeconds)
	if v, ok := os.LookupEnv("EXPOSE_ANSWER_KEY"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Quiz.ExposeAnswerKey = b
		}
	}
	if v, ok := os.LookupEnv("RANDOM_SEED"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Quiz.RandomSeed = n
		}
	}
}

func (c *APIConfig) applyDefaults() {
	defaultString(&c.Context.Host, "0.0.0.0")
	defaultInt(&c.Context.Port, 8080)
	defaultString(&c.Context.AllowedOrigins, "*")
	defaultInt(&c.Context.ShutdownTimeout, 10)

	defaultInt(&c.Authentication.AccessTokenMinutes, 15)
	defaultInt(&c.Authentication.RefreshTokenHours, 24*7)

	defaultInt(&c.Pagination.PageSize, 10)
	defaultInt(&c.Pagination.MaxPageSize, 100)

	defaultString(&c.DB.Driver, "postgres")
	defaultInt(&c.DB.Port, 5432)
	defaultString(&c.DB.SSLMode, "disable")
	defaultString(&c.DB.Path, "quiz.db")

	defaultString(&c.Logging.Level, "info")
	defaultInt(&c.Logging.MaxSizeMB, 50)
	defaultInt(&c.Logging.MaxBackups, 5)
	defaultInt(&c.Logging.MaxAgeDays, 28)

	defaultInt(&c.LLM.MaxTokens, 1000)
	defaultString(&c.LLM.Temperature, "0.7")
	defaultInt(&c.LLM.RetryAttempts, 2)
	defaultInt(&c.LLM.RequestTimeout, 60)

	defaultInt(&c.Quiz.ProviderTimeoutSeconds, 30)
	defaultInt(&c.Quiz.HistoryLimit, 50)
	defaultInt(&c.Quiz.AvoidanceCacheSize, 100)
	defaultInt(&c.Quiz.AvoidanceBucketMinutes, 10)
	defaultInt(&c.Quiz.SubcallCacheSize, 1000)
	defaultInt(&c.Quiz.DuplicateWindowDays, 30)
	if c.Quiz.DuplicateRetries < 0 {
		c.Quiz.DuplicateRetries = 0
	} else if c.Quiz.DuplicateRetries == 0 {
		c.Quiz.DuplicateRetries = 2
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 20
	}
	defaultInt(&c.RateLimit.Burst, 5)
}

// ProviderTimeout is the deadline applied to one generation call.
func (q QuizConfig) ProviderTimeout() time.Duration {
	return time.Duration(q.ProviderTimeoutSeconds) * time.Second
}

// AvoidanceBucket is the width of the avoidance cache time bucket.
func (q QuizConfig) AvoidanceBucket() time.Duration {
	return time.Duration(q.AvoidanceBucketMinutes) * time.Minute
}

// DuplicateWindow is how far back a repeated question hash counts as a
// duplicate.
func (q QuizConfig) DuplicateWindow() time.Duration {
	return time.Duration(q.DuplicateWindowDays) * 24 * time.Hour
}

// TemperatureValue parses the configured sampling temperature.
func (l LLMConfig) TemperatureValue() float64 {
	t, err := strconv.ParseFloat(l.Temperature, 64)
	if err != nil {
		return 0.7
	}
	return t
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func defaultString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func defaultInt(dst *int, v int) {
	if *dst <= 0 {
		*dst = v
	}
}
