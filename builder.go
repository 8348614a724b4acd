package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/weighops/authcore/internal/audit"
	"github.com/weighops/authcore/internal/clock"
	"github.com/weighops/authcore/internal/escalate"
	"github.com/weighops/authcore/internal/stores"
	"github.com/weighops/authcore/notify"
	"github.com/weighops/authcore/otp"
	"github.com/weighops/authcore/password"
	"github.com/weighops/authcore/session"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	userStore UserStore
	notifier  notify.Notifier
	auditSink AuditSink
	listeners []EventListener
	clk       clock.Clock

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserStore describes the withuserstore operation and its observable behavior.
//
// WithUserStore may return an error when input validation, dependency calls, or security checks fail.
// WithUserStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
//
// WithNotifier may return an error when input validation, dependency calls, or security checks fail.
// WithNotifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithEventListener describes the witheventlistener operation and its observable behavior.
//
// WithEventListener may return an error when input validation, dependency calls, or security checks fail.
// WithEventListener does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventListener(l EventListener) *Builder {
	if l != nil {
		b.listeners = append(b.listeners, l)
	}
	return b
}

// WithClock overrides the engine's time source. Tests use this to drive
// countdowns deterministically; production builds leave it unset.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clk = clk
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userStore == nil {
		return nil, errors.New("user store required")
	}

	clk := b.clk
	if clk == nil {
		clk = clock.System()
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = notify.NoOp{}
	}

	// -------- CHALLENGE AND CODE STORES --------
	var (
		challenges stores.ChallengeStore
		codes      stores.CodeStore
	)
	if b.redis != nil {
		challenges = stores.NewRedisChallengeStore(b.redis, cfg.Challenge.RedisPrefix)
		codes = stores.NewRedisCodeStore(b.redis, cfg.Challenge.RedisPrefix)
	} else {
		challenges = stores.NewMemoryChallengeStore(clk.Now)
		codes = stores.NewMemoryCodeStore(clk.Now)
	}

	ph, err := password.NewHasher(password.Config{
		Iterations: cfg.Password.Iterations,
		SaltLength: cfg.Password.SaltLength,
		KeyLength:  cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	totp := otp.NewManager(otp.TOTPConfig{
		Issuer:    cfg.TOTP.Issuer,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Skew:      cfg.TOTP.Skew,
		Algorithm: cfg.TOTP.Algorithm,
	})

	engine := &Engine{
		config:     cfg,
		userStore:  b.userStore,
		hasher:     ph,
		totp:       totp,
		challenges: challenges,
		codes:      codes,
		notifier:   notifier,
		clk:        clk,
		listeners:  append([]EventListener(nil), b.listeners...),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	// Timer callbacks land back in the engine; the managers hold only
	// primitive identifiers, never engine state.
	engine.sessions = session.NewManager(clk, engine.onSessionExpired)
	engine.escalations = escalate.NewManager(clk, engine.onEscalationExpired)

	b.built = true

	return engine, nil
}
