package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session     SessionConfig
	Lockout     LockoutConfig
	Password    PasswordConfig
	Escalation  EscalationConfig
	TOTP        TOTPConfig
	OneTimeCode OneTimeCodeConfig
	Challenge   ChallengeConfig
	BackupCodes BackupCodeConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig holds the informational absolute session lifetime and the
// role-scoped inactivity countdowns.
type SessionConfig struct {
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`

	UserCountdown       time.Duration `mapstructure:"user_countdown"`
	AdminCountdown      time.Duration `mapstructure:"admin_countdown"`
	SuperAdminCountdown time.Duration `mapstructure:"superadmin_countdown"`
}

// CountdownForRole returns the inactivity countdown for a role tier.
func (c SessionConfig) CountdownForRole(role Role) time.Duration {
	switch role {
	case RoleSuperAdmin:
		return c.SuperAdminCountdown
	case RoleAdmin:
		return c.AdminCountdown
	default:
		return c.UserCountdown
	}
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls failed-login lockout.
type LockoutConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Duration    time.Duration `mapstructure:"duration"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds PBKDF2 parameters.
type PasswordConfig struct {
	Iterations int `mapstructure:"iterations"`
	SaltLength int `mapstructure:"salt_length"`
	KeyLength  int `mapstructure:"key_length"`
}

/*
====================================
ESCALATION CONFIG
====================================
*/

// EscalationConfig controls temporary privilege grants.
type EscalationConfig struct {
	Duration           time.Duration `mapstructure:"duration"`
	SuperAdminDuration time.Duration `mapstructure:"superadmin_duration"`
}

// DurationForRole returns the grant lifetime for the requested role.
func (c EscalationConfig) DurationForRole(role Role) time.Duration {
	if role == RoleSuperAdmin {
		return c.SuperAdminDuration
	}
	return c.Duration
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TOTPConfig controls time-based code derivation.
type TOTPConfig struct {
	Issuer    string `mapstructure:"issuer"`
	Digits    int    `mapstructure:"digits"`
	Period    int    `mapstructure:"period"`
	Skew      int    `mapstructure:"skew"`
	Algorithm string `mapstructure:"algorithm"`
}

// OneTimeCodeConfig controls email/SMS delivery codes.
type OneTimeCodeConfig struct {
	Digits int           `mapstructure:"digits"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// ChallengeConfig controls two-factor challenges.
type ChallengeConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
}

// BackupCodeConfig controls recovery code batches.
type BackupCodeConfig struct {
	Count  int `mapstructure:"count"`
	Length int `mapstructure:"length"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TokenLifetime:       8 * time.Hour,
			UserCountdown:       480 * time.Minute,
			AdminCountdown:      120 * time.Minute,
			SuperAdminCountdown: 60 * time.Minute,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    30 * time.Minute,
		},
		Password: PasswordConfig{
			Iterations: 10_000,
			SaltLength: 32,
			KeyLength:  32,
		},
		Escalation: EscalationConfig{
			Duration:           5 * time.Minute,
			SuperAdminDuration: time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:    "WeighOps",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		OneTimeCode: OneTimeCodeConfig{
			Digits: 6,
			TTL:    5 * time.Minute,
		},
		Challenge: ChallengeConfig{
			TTL:         10 * time.Minute,
			RedisPrefix: "wac",
		},
		BackupCodes: BackupCodeConfig{
			Count:  10,
			Length: 8,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the production defaults described in the component
// design: 60/120/480-minute session countdowns, five-attempt 30-minute
// lockout, 1/5-minute escalation grants, 10-minute challenges with
// 5-minute delivery codes.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

// Validate checks that cfg is internally consistent.
func (c *Config) Validate() error {
	if c.Session.TokenLifetime <= 0 {
		return errors.New("session token lifetime must be positive")
	}
	if c.Session.UserCountdown <= 0 || c.Session.AdminCountdown <= 0 || c.Session.SuperAdminCountdown <= 0 {
		return errors.New("session countdowns must be positive")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Escalation.Duration <= 0 || c.Escalation.SuperAdminDuration <= 0 {
		return errors.New("escalation durations must be positive")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("totp digits must be between 6 and 10")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("totp skew must not be negative")
	}
	if c.OneTimeCode.Digits < 4 || c.OneTimeCode.Digits > 10 {
		return errors.New("one-time code digits must be between 4 and 10")
	}
	if c.OneTimeCode.TTL <= 0 {
		return errors.New("one-time code ttl must be positive")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("challenge ttl must be positive")
	}
	if c.Challenge.TTL < c.OneTimeCode.TTL {
		return errors.New("challenge ttl must not be shorter than the one-time code ttl")
	}
	if c.BackupCodes.Count < 1 {
		return errors.New("backup code count must be at least 1")
	}
	if c.BackupCodes.Length < 8 {
		return errors.New("backup code length must be at least 8")
	}
	return nil
}
