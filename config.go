package authrbac

import (
	"errors"
	"time"

	"github.com/taskforge/authrbac/password"
	"github.com/taskforge/authrbac/token"
)

// Config defines a public type used by authrbac APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token     TokenConfig
	Password  PasswordConfig
	Cache     CacheConfig
	Ledger    LedgerConfig
	RateLimit RateLimitConfig
	Account   AccountConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authrbac APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	Secret     []byte // >= 32 bytes; exactly 32 used directly, longer keys are SHA-256 stretched
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authrbac APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Policy      password.Policy
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig defines a public type used by authrbac APIs.
//
// CacheConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CacheConfig struct {
	PermissionTTL time.Duration
}

/*
====================================
LEDGER CONFIG
====================================
*/

// LedgerConfig defines a public type used by authrbac APIs.
//
// LedgerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LedgerConfig struct {
	ResetTTL        time.Duration
	VerificationTTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by authrbac APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Enabled           bool
	EnableIPThrottle  bool
	MaxLoginAttempts  int
	LoginCooldown     time.Duration
	MaxForgotRequests int
	ForgotCooldown    time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig defines a public type used by authrbac APIs.
//
// AccountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountConfig struct {
	DefaultRole string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by authrbac APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking flows when the
	// buffer is saturated.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authrbac APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:     "task-management-system",
			Audience:   "task-management-api",
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			Policy:      password.DefaultPolicy(),
		},
		Cache: CacheConfig{
			PermissionTTL: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			ResetTTL:        time.Hour,
			VerificationTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			MaxLoginAttempts:  5,
			LoginCooldown:     15 * time.Minute,
			MaxForgotRequests: 3,
			ForgotCooldown:    time.Hour,
		},
		Account: AccountConfig{
			DefaultRole: "User",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DevelopmentPreset describes the developmentpreset operation and its observable behavior.
//
// DevelopmentPreset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DevelopmentPreset() Config {
	cfg := defaultConfig()
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 1
	cfg.Audit.Enabled = false
	return cfg
}

// ProductionPreset describes the productionpreset operation and its observable behavior.
//
// ProductionPreset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ProductionPreset() Config {
	cfg := defaultConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.EnableIPThrottle = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Token.Secret != nil {
		out.Token.Secret = make([]byte, len(cfg.Token.Secret))
		copy(out.Token.Secret, cfg.Token.Secret)
	}
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return token.ErrSecretTooShort
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if err := password.ValidateConfig(password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}); err != nil {
		return err
	}
	if c.Password.Policy.MinLength < 1 {
		return errors.New("password policy minimum length must be positive")
	}
	if c.Cache.PermissionTTL <= 0 {
		return errors.New("permission cache TTL must be positive")
	}
	if c.Ledger.ResetTTL <= 0 || c.Ledger.VerificationTTL <= 0 {
		return errors.New("ledger TTLs must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts < 1 || c.RateLimit.LoginCooldown <= 0 {
			return errors.New("invalid login rate limit configuration")
		}
		if c.RateLimit.MaxForgotRequests < 1 || c.RateLimit.ForgotCooldown <= 0 {
			return errors.New("invalid forgot-password rate limit configuration")
		}
	}
	if c.Account.DefaultRole == "" {
		return errors.New("default role must be set")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("audit buffer size must be positive")
	}
	return nil
}
