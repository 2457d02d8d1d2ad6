package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envPort                  = "PORT"
	envServerReadTimeout     = "SERVER_READ_TIMEOUT"
	envServerWriteTimeout    = "SERVER_WRITE_TIMEOUT"
	envServerShutdownTimeout = "SERVER_SHUTDOWN_TIMEOUT"
	envEnablePprof           = "ENABLE_PPROF"
	envIdentityStore         = "IDENTITY_STORE"
	envDBHost                = "DB_HOST"
	envDBPort                = "DB_PORT"
	envDBName                = "DB_NAME"
	envDBUser                = "DB_USER"
	envDBPassword            = "DB_PASSWORD"
	envDBSSLMode             = "DB_SSL_MODE"
	envDBMaxConns            = "DB_MAX_CONNS"
	envDBMinConns            = "DB_MIN_CONNS"
	envSQLitePath            = "SQLITE_PATH"
	envAWSRegion             = "REGION"
	envJWTSecret             = "JWT_SECRET"
	envJWTSecretARN          = "JWT_SECRET_ARN"
	envJWTExpiry             = "JWT_EXPIRY"
	envJWTLeeway             = "JWT_LEEWAY"
	envJWTIssuer             = "JWT_ISSUER"
	envBcryptCost            = "BCRYPT_COST"
	envIdentityLookupTimeout = "IDENTITY_LOOKUP_TIMEOUT"
	envRoutePolicyFile       = "ROUTE_POLICY_FILE"
	envRateLimitBackend      = "RATE_LIMIT_BACKEND"
	envRedisAddr             = "REDIS_ADDR"
	envRedisPassword         = "REDIS_PASSWORD"
	envRedisDB               = "REDIS_DB"
	envLoginRateLimit        = "LOGIN_RATE_LIMIT"
	envLoginRateWindow       = "LOGIN_RATE_WINDOW"
	envLogLevel              = "LOG_LEVEL"
	envLogFormat             = "LOG_FORMAT"
)

// Identity store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Rate limit backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

const (
	defaultServerPort            = "8080"
	defaultServerReadTimeout     = 10 * time.Second
	defaultServerWriteTimeout    = 10 * time.Second
	defaultServerShutdown        = 10 * time.Second
	defaultIdentityStore         = StorePostgres
	defaultDBHost                = "localhost"
	defaultDBPort                = 5432
	defaultDBName                = "projectservice"
	defaultDBUser                = "projectservice_app"
	defaultDBSSLMode             = "disable"
	defaultDBMaxConns            = 25
	defaultDBMinConns            = 5
	defaultSQLitePath            = "projectservice.db"
	defaultJWTExpiry             = 24 * time.Hour
	defaultJWTLeeway             = time.Duration(0)
	defaultBcryptCost            = 12
	defaultIdentityLookupTimeout = 2 * time.Second
	defaultRateLimitBackend      = RateLimitMemory
	defaultRedisAddr             = "localhost:6379"
	defaultLoginRateLimit        = 5
	defaultLoginRateWindow       = time.Minute
	defaultLogLevel              = "info"
	defaultLogFormat             = "json"
	minJWTSecretLength           = 32
	minUniqueCharsInSecret       = 16
	minRepeatedCharThreshold     = 4
	maxRepeatedChars             = 2
	minBcryptCost                = 4
	maxBcryptCost                = 31
)

const (
	errPortRequiredFmt         = "PORT must be set"
	errRequiredEnvNotSetFmt    = "required environment variable %s is not set"
	errUnknownIdentityStoreFmt = "IDENTITY_STORE must be %q or %q, got %q"
	errSQLitePathRequiredFmt   = "SQLITE_PATH must be set"
	errJWTSecretSourceFmt      = "one of JWT_SECRET or JWT_SECRET_ARN must be set"
	errJWTSecretARNRegionFmt   = "REGION must be set when JWT_SECRET_ARN is used"
	errJWTSecretMinLengthFmt   = "JWT secret must be at least %d characters"
	errJWTSecretLowEntropyFmt  = "JWT secret has insufficient entropy (appears non-random). Use a cryptographically secure random string."
	errJWTExpiryFmt            = "JWT_EXPIRY must be positive"
	errJWTLeewayFmt            = "JWT_LEEWAY must not be negative"
	errBcryptCostFmt           = "BCRYPT_COST must be between %d and %d"
	errLookupTimeoutFmt        = "IDENTITY_LOOKUP_TIMEOUT must be positive"
	errRateLimitBackendFmt     = "RATE_LIMIT_BACKEND must be %q or %q, got %q"
	errLoginRateFmt            = "LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive"
	errInvalidConfigurationFmt = "invalid configuration: %w"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	AWS       AWSConfig
	JWT       JWTConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// EnablePprof exposes /debug/pprof/* to administrators.
	EnablePprof bool
}

type StoreConfig struct {
	Backend    string
	SQLitePath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

type AWSConfig struct {
	Region string
}

// JWTConfig holds signing material. Secret is empty until resolved when the
// key lives in AWS Secrets Manager (SecretARN).
type JWTConfig struct {
	Secret         string
	SecretARN      string
	ExpiryDuration time.Duration
	Leeway         time.Duration
	Issuer         string
}

type AuthConfig struct {
	BcryptCost            int
	IdentityLookupTimeout time.Duration
	RoutePolicyFile       string
}

type RateLimitConfig struct {
	Backend     string
	LoginLimit  int
	LoginWindow time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the full service configuration from the environment and
// validates it.
func Load() (*Config, error) {
	cfg := parse()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}
	return cfg, nil
}

// LoadStore reads the environment but only validates the identity store
// settings. Admin commands that never sign tokens use it.
func LoadStore() (*Config, error) {
	cfg := parse()
	if err := cfg.ValidateStore(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}
	return cfg, nil
}

// BcryptCost returns BCRYPT_COST or its default without validating anything
// else.
func BcryptCost() int {
	return getIntEnv(envBcryptCost, defaultBcryptCost)
}

func parse() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv(envPort, defaultServerPort),
			ReadTimeout:     getDurationEnv(envServerReadTimeout, defaultServerReadTimeout),
			WriteTimeout:    getDurationEnv(envServerWriteTimeout, defaultServerWriteTimeout),
			ShutdownTimeout: getDurationEnv(envServerShutdownTimeout, defaultServerShutdown),
			EnablePprof:     getBoolEnv(envEnablePprof, false),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(getEnv(envIdentityStore, defaultIdentityStore)),
			SQLitePath: getEnv(envSQLitePath, defaultSQLitePath),
		},
		Database: DatabaseConfig{
			Host:     getEnv(envDBHost, defaultDBHost),
			Port:     getIntEnv(envDBPort, defaultDBPort),
			Database: getEnv(envDBName, defaultDBName),
			User:     getEnv(envDBUser, defaultDBUser),
			Password: os.Getenv(envDBPassword),
			SSLMode:  getEnv(envDBSSLMode, defaultDBSSLMode),
			MaxConns: getIntEnv(envDBMaxConns, defaultDBMaxConns),
			MinConns: getIntEnv(envDBMinConns, defaultDBMinConns),
		},
		AWS: AWSConfig{
			Region: os.Getenv(envAWSRegion),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv(envJWTSecret),
			SecretARN:      os.Getenv(envJWTSecretARN),
			ExpiryDuration: getDurationEnv(envJWTExpiry, defaultJWTExpiry),
			Leeway:         getDurationEnv(envJWTLeeway, defaultJWTLeeway),
			Issuer:         os.Getenv(envJWTIssuer),
		},
		Auth: AuthConfig{
			BcryptCost:            getIntEnv(envBcryptCost, defaultBcryptCost),
			IdentityLookupTimeout: getDurationEnv(envIdentityLookupTimeout, defaultIdentityLookupTimeout),
			RoutePolicyFile:       os.Getenv(envRoutePolicyFile),
		},
		RateLimit: RateLimitConfig{
			Backend:     strings.ToLower(getEnv(envRateLimitBackend, defaultRateLimitBackend)),
			LoginLimit:  getIntEnv(envLoginRateLimit, defaultLoginRateLimit),
			LoginWindow: getDurationEnv(envLoginRateWindow, defaultLoginRateWindow),
		},
		Redis: RedisConfig{
			Addr:     getEnv(envRedisAddr, defaultRedisAddr),
			Password: os.Getenv(envRedisPassword),
			DB:       getIntEnv(envRedisDB, 0),
		},
		Log: LogConfig{
			Level:  getEnv(envLogLevel, defaultLogLevel),
			Format: getEnv(envLogFormat, defaultLogFormat),
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New(errPortRequiredFmt)
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	switch {
	case c.JWT.Secret != "":
		if err := ValidateJWTSecret(c.JWT.Secret); err != nil {
			return err
		}
	case c.JWT.SecretARN != "":
		if c.AWS.Region == "" {
			return errors.New(errJWTSecretARNRegionFmt)
		}
	default:
		return errors.New(errJWTSecretSourceFmt)
	}

	if c.JWT.ExpiryDuration <= 0 {
		return errors.New(errJWTExpiryFmt)
	}

	if c.JWT.Leeway < 0 {
		return errors.New(errJWTLeewayFmt)
	}

	if c.Auth.BcryptCost < minBcryptCost || c.Auth.BcryptCost > maxBcryptCost {
		return fmt.Errorf(errBcryptCostFmt, minBcryptCost, maxBcryptCost)
	}

	if c.Auth.IdentityLookupTimeout <= 0 {
		return errors.New(errLookupTimeoutFmt)
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory, RateLimitRedis:
	default:
		return fmt.Errorf(errRateLimitBackendFmt, RateLimitMemory, RateLimitRedis, c.RateLimit.Backend)
	}

	if c.RateLimit.LoginLimit <= 0 || c.RateLimit.LoginWindow <= 0 {
		return errors.New(errLoginRateFmt)
	}

	return nil
}

// ValidateStore checks the identity store selection and its settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Backend {
	case StorePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf(errRequiredEnvNotSetFmt, envDBPassword)
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New(errSQLitePathRequiredFmt)
		}
	default:
		return fmt.Errorf(errUnknownIdentityStoreFmt, StorePostgres, StoreSQLite, c.Store.Backend)
	}
	return nil
}

// ValidateJWTSecret applies the length and entropy rules to a signing secret,
// wherever it was loaded from.
func ValidateJWTSecret(secret string) error {
	if len(secret) < minJWTSecretLength {
		return fmt.Errorf(errJWTSecretMinLengthFmt, minJWTSecretLength)
	}

	if !hasMinimumEntropy(secret) {
		return errors.New(errJWTSecretLowEntropyFmt)
	}

	return nil
}

func hasMinimumEntropy(secret string) bool {
	if len(secret) < minJWTSecretLength {
		return false
	}

	charCounts := make(map[rune]int)
	for _, char := range secret {
		charCounts[char]++
	}

	uniqueChars := len(charCounts)
	if uniqueChars < minUniqueCharsInSecret {
		return false
	}

	repeatedChars := 0
	for _, count := range charCounts {
		if count > len(secret)/minRepeatedCharThreshold {
			repeatedChars++
		}
	}

	return repeatedChars <= maxRepeatedChars
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
