package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName         = "TrustID"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSessionTTL      = 30 * time.Minute
	defaultRecoveryTTL     = 5 * time.Minute
	defaultResetTicketTTL  = 15 * time.Minute
	defaultRecoveryGrant   = 10 * time.Minute
	defaultBcryptCost      = 12
	defaultFaceThreshold   = 0.8
	defaultLoginRateLimit  = 5
	defaultRecoveryLimit   = 10
	devJWTSecret           = "dev-only-insecure-secret"
	minProductionSecretLen = 32
)

// Config captures application runtime configuration loaded from the environment
// and an optional .env file.
type Config struct {
	AppName            string        `mapstructure:"APP_NAME"`
	AppEnv             string        `mapstructure:"APP_ENV"`
	Port               string        `mapstructure:"PORT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	ShutdownPeriod     time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	IdempotencyTTL     time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	RecoverySessionTTL time.Duration `mapstructure:"RECOVERY_SESSION_TTL"`
	ResetTicketTTL     time.Duration `mapstructure:"RESET_TICKET_TTL"`
	RecoveryGrantTTL   time.Duration `mapstructure:"RECOVERY_GRANT_TTL"`
	BcryptCost         int           `mapstructure:"BCRYPT_COST"`
	AdminAPIKey        string        `mapstructure:"ADMIN_API_KEY"`
	FaceMatchThreshold float64       `mapstructure:"FACE_MATCH_THRESHOLD"`
	LoginRateLimit     int           `mapstructure:"LOGIN_RATE_LIMIT"`
	RecoveryRateLimit  int           `mapstructure:"RECOVERY_RATE_LIMIT"`
}

// Load reads .env (if present) and then the environment. Env vars override .env.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", defaultSessionTTL)
	v.SetDefault("RECOVERY_SESSION_TTL", defaultRecoveryTTL)
	v.SetDefault("RESET_TICKET_TTL", defaultResetTicketTTL)
	v.SetDefault("RECOVERY_GRANT_TTL", defaultRecoveryGrant)
	v.SetDefault("BCRYPT_COST", defaultBcryptCost)
	v.SetDefault("ADMIN_API_KEY", "")
	v.SetDefault("FACE_MATCH_THRESHOLD", defaultFaceThreshold)
	v.SetDefault("LOGIN_RATE_LIMIT", defaultLoginRateLimit)
	v.SetDefault("RECOVERY_RATE_LIMIT", defaultRecoveryLimit)
}

func (c *Config) validate() error {
	if c.IsDev() {
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
	} else {
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set")
		}
		if c.RedisURL == "" {
			return errors.New("REDIS_URL must be set")
		}
		if len(c.JWTSecret) < minProductionSecretLen {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes", minProductionSecretLen)
		}
		if c.AdminAPIKey == "" {
			return errors.New("ADMIN_API_KEY must be set")
		}
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}
	if c.FaceMatchThreshold <= 0 || c.FaceMatchThreshold > 1 {
		return errors.New("FACE_MATCH_THRESHOLD must be in (0, 1]")
	}
	if c.SessionTTL <= 0 || c.RecoverySessionTTL <= 0 || c.ResetTicketTTL <= 0 || c.RecoveryGrantTTL <= 0 {
		return errors.New("token and session TTLs must be positive")
	}
	return nil
}

// IsDev reports whether the service runs in a local/development environment,
// where in-memory backends stand in for Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
