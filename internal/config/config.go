package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Server configuration
	ServerPort  string `validate:"required,numeric"`
	Environment string `validate:"oneof=development production test"`
	LogLevel    string `validate:"oneof=debug info warn error"`

	// Storage: postgres or memory
	StoreDriver string `validate:"oneof=postgres memory"`

	// Database configuration
	DBHost     string `validate:"required_if=StoreDriver postgres"`
	DBPort     string `validate:"required_if=StoreDriver postgres"`
	DBUser     string
	DBPassword string
	DBName     string `validate:"required_if=StoreDriver postgres"`

	// Redis configuration, empty disables redis
	RedisAddress string

	// JWT configuration
	JWTSecret string `validate:"required,min=16"`

	// Landing pages of versions are FrontendURL/versions/{id}
	FrontendURL string `validate:"required,url"`

	// DOI / DataCite
	DOIPrefix              string `validate:"required,startswith=10."`
	DOIResolverURL         string `validate:"required,url"`
	DataCiteEnabled        bool
	DataCiteAPIURL         string `validate:"required_if=DataCiteEnabled true,omitempty,url"`
	DataCiteUsername       string `validate:"required_if=DataCiteEnabled true"`
	DataCitePassword       string `validate:"required_if=DataCiteEnabled true"`
	DataCiteMaxAttempts    int    `validate:"min=1,max=10"`
	DataCiteBackoffBase    time.Duration
	DataCiteAttemptTimeout time.Duration `validate:"min=1s"`
	DataCiteRateLimit      float64       `validate:"gte=0"`
	DataCiteRequireLanding bool
	PublisherName          string `validate:"required"`

	// Background retry of withdraw registrations
	RetryWorkers  int           `validate:"min=1,max=64"`
	RetryDelay    time.Duration `validate:"gte=0"`
	RetryInterval time.Duration `validate:"min=1s"`

	// Tracing exporter: off or stdout
	Tracing string `validate:"oneof=off stdout"`
}

// Global application configuration
var AppConfig Config

var validate = validator.New()

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("error loading .env file")
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateRandomSecret(32)
		log.Warn().Msg("JWT_SECRET not set, generated a random secret")
	}

	AppConfig = Config{
		ServerPort:             getEnv("PORT", "8080"),
		Environment:            getEnv("ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		StoreDriver:            getEnv("STORE_DRIVER", "postgres"),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBUser:                 getEnv("DB_USER", "postgres"),
		DBPassword:             getEnv("DB_PASSWORD", "postgres"),
		DBName:                 getEnv("DB_NAME", "living_science"),
		RedisAddress:           getEnv("REDIS_ADDRESS", "localhost:6379"),
		JWTSecret:              jwtSecret,
		FrontendURL:            getEnv("FRONTEND_URL", "http://localhost:3000"),
		DOIPrefix:              getEnv("DOI_PREFIX", "10.1234"),
		DOIResolverURL:         getEnv("DOI_RESOLVER_URL", "https://doi.org"),
		DataCiteEnabled:        getBool("DATACITE_ENABLED", false),
		DataCiteAPIURL:         getEnv("DATACITE_API_URL", "https://api.test.datacite.org"),
		DataCiteUsername:       os.Getenv("DATACITE_USERNAME"),
		DataCitePassword:       os.Getenv("DATACITE_PASSWORD"),
		DataCiteMaxAttempts:    getInt("DATACITE_MAX_ATTEMPTS", 3),
		DataCiteBackoffBase:    getDuration("DATACITE_BACKOFF_BASE", 500*time.Millisecond),
		DataCiteAttemptTimeout: getDuration("DATACITE_ATTEMPT_TIMEOUT", 15*time.Second),
		DataCiteRateLimit:      getFloat("DATACITE_RATE_LIMIT", 5),
		DataCiteRequireLanding: getBool("DATACITE_REQUIRE_LANDING", false),
		PublisherName:          getEnv("PUBLISHER_NAME", "Living Science Documents"),
		RetryWorkers:           getInt("RETRY_WORKERS", 2),
		RetryDelay:             getDuration("RETRY_DELAY", 30*time.Second),
		RetryInterval:          getDuration("RETRY_INTERVAL", 5*time.Minute),
		Tracing:                getEnv("TRACING", "off"),
	}
}

// Validate checks AppConfig-style values against their struct tags.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// generateRandomSecret returns a hex secret built from n random bytes
func generateRandomSecret(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "insecure-development-secret-change-me"
	}
	return hex.EncodeToString(b)
}
