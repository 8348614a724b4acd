package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/weighops/authcore/internal/audit"
	"github.com/weighops/authcore/internal/clock"
	"github.com/weighops/authcore/internal/escalate"
	"github.com/weighops/authcore/internal/stores"
	"github.com/weighops/authcore/notify"
	"github.com/weighops/authcore/otp"
	"github.com/weighops/authcore/password"
	"github.com/weighops/authcore/session"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	userStore   UserStore
	hasher      *password.Hasher
	totp        *otp.Manager
	sessions    *session.Manager
	escalations *escalate.Manager
	challenges  stores.ChallengeStore
	codes       stores.CodeStore
	notifier    notify.Notifier
	clk         clock.Clock
	audit       *audit.Dispatcher
	metrics     *Metrics
	listeners   []EventListener

	// mu guards the current operator slot. The engine serves one desktop
	// workstation, so exactly one operator is signed in at a time.
	mu      sync.Mutex
	current *operator
}

type operator struct {
	userID    int64
	username  string
	role      Role
	sessionID string
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	cur := e.current
	e.current = nil
	e.mu.Unlock()

	if cur != nil {
		e.sessions.End(cur.userID)
		e.escalations.Clear(cur.userID)
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clk == nil {
		return time.Now()
	}
	return e.clk.Now()
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, username, pass string) (*LoginResult, error) {
	if e == nil || e.hasher == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = e.now()
		defer func() { e.metrics.Observe(MetricLoginLatency, e.now().Sub(start)) }()
	}

	identifier := normalizeUsername(username)
	now := e.now()

	user, err := e.userStore.GetByUsername(ctx, identifier)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		// Store outage, not a wrong username. Propagate instead of
		// masquerading as an authentication failure.
		return nil, err
	}
	if user == nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, identifier, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "user_not_found"}
		})
		return &LoginResult{Success: false, Message: "Invalid username or password"}, ErrInvalidCredentials
	}

	if user.LockoutUntil != nil && now.Before(*user.LockoutUntil) {
		remaining := user.LockoutUntil.Sub(now)
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventLoginLockedOut, false, user.ID, identifier, ErrAccountLocked, func() map[string]string {
			return map[string]string{"remaining": remaining.String()}
		})
		return &LoginResult{
			Success:          false,
			Message:          lockoutMessage(remaining),
			IsLockedOut:      true,
			LockoutRemaining: remaining,
		}, ErrAccountLocked
	}

	if !user.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, identifier, ErrAccountDisabled, func() map[string]string {
			return map[string]string{"reason": "account_disabled"}
		})
		return &LoginResult{Success: false, Message: "Account is deactivated"}, ErrAccountDisabled
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		// Corrupt stored hash or bad hasher parameters is an internal
		// fault, not a wrong password; it must never advance the lockout
		// counter. The caller still sees only a generic failure.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, identifier, err, func() map[string]string {
			return map[string]string{"reason": "credential_check_failed"}
		})
		return &LoginResult{Success: false, Message: "Invalid username or password"}, ErrInvalidCredentials
	}
	if !ok {
		return e.recordFailedAttempt(ctx, user, now)
	}

	// Correct password: reset the failure counter and clear any stale
	// lockout marker before opening the session.
	user.FailedLoginAttempts = 0
	user.LockoutUntil = nil
	user.LastLogin = now
	if err := e.userStore.Update(ctx, user); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, identifier, err, func() map[string]string {
			return map[string]string{"reason": "user_update_failed"}
		})
		return nil, err
	}

	countdown := e.config.Session.CountdownForRole(user.Role)
	sess := e.sessions.Start(user.ID, e.config.Session.TokenLifetime, countdown)

	e.mu.Lock()
	prior := e.current
	e.current = &operator{
		userID:    user.ID,
		username:  user.Username,
		role:      user.Role,
		sessionID: sess.ID,
	}
	e.mu.Unlock()

	// A different operator was still signed in on this workstation; their
	// session is torn down before the new one takes over.
	if prior != nil && prior.userID != user.ID {
		e.sessions.End(prior.userID)
		e.escalations.Clear(prior.userID)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, identifier, nil, func() map[string]string {
		return map[string]string{
			"role":       user.Role.String(),
			"session_id": sess.ID,
		}
	})
	e.notifyListeners(Event{
		Type:     EventUserLoggedIn,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})

	out := *user
	return &LoginResult{
		Success: true,
		Message: "Login successful",
		User:    &out,
	}, nil
}

func (e *Engine) recordFailedAttempt(ctx context.Context, user *User, now time.Time) (*LoginResult, error) {
	identifier := normalizeUsername(user.Username)

	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= e.config.Lockout.MaxAttempts {
		until := now.Add(e.config.Lockout.Duration)
		user.LockoutUntil = &until
		if err := e.userStore.Update(ctx, user); err != nil {
			return nil, err
		}

		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventLoginLockedOut, false, user.ID, identifier, ErrAccountLocked, func() map[string]string {
			return map[string]string{"attempts": itoa(user.FailedLoginAttempts)}
		})
		return &LoginResult{
			Success:          false,
			Message:          lockoutMessage(e.config.Lockout.Duration),
			IsLockedOut:      true,
			LockoutRemaining: e.config.Lockout.Duration,
		}, ErrAccountLocked
	}

	if err := e.userStore.Update(ctx, user); err != nil {
		return nil, err
	}

	remaining := e.config.Lockout.MaxAttempts - user.FailedLoginAttempts
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, identifier, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason":             "password_mismatch",
			"attempts_remaining": itoa(remaining),
		}
	})
	return &LoginResult{
		Success:           false,
		Message:           attemptsMessage(remaining),
		AttemptsRemaining: remaining,
	}, ErrInvalidCredentials
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}

	e.mu.Lock()
	cur := e.current
	e.current = nil
	e.mu.Unlock()

	if cur == nil {
		return ErrNoActiveSession
	}

	e.sessions.End(cur.userID)
	if role, ok := e.escalations.Clear(cur.userID); ok {
		e.emitAudit(ctx, auditEventEscalationCleared, true, cur.userID, cur.username, nil, func() map[string]string {
			return map[string]string{"role": Role(role).String()}
		})
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, cur.userID, cur.username, nil, nil)
	e.notifyListeners(Event{
		Type:     EventUserLoggedOut,
		UserID:   cur.userID,
		Username: cur.username,
		Role:     cur.role,
	})

	return nil
}

// CurrentUser describes the currentuser operation and its observable behavior.
//
// CurrentUser may return an error when input validation, dependency calls, or security checks fail.
// CurrentUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CurrentUser(ctx context.Context) (*User, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if cur == nil {
		return nil, ErrNoActiveSession
	}
	return e.userStore.GetByID(ctx, cur.userID)
}

// CurrentSession describes the currentsession operation and its observable behavior.
//
// CurrentSession may return an error when input validation, dependency calls, or security checks fail.
// CurrentSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CurrentSession() (*session.Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if cur == nil {
		return nil, ErrNoActiveSession
	}
	sess, ok := e.sessions.Get(cur.userID)
	if !ok {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

// onSessionExpired runs on the countdown goroutine when an inactivity timer
// fires. The current operator slot is cleared only when it still belongs to
// the expired session, so a timer racing a fresh login is harmless.
func (e *Engine) onSessionExpired(sess *session.Session) {
	e.mu.Lock()
	cur := e.current
	if cur == nil || cur.userID != sess.UserID || cur.sessionID != sess.ID {
		e.mu.Unlock()
		return
	}
	e.current = nil
	e.mu.Unlock()

	e.escalations.Clear(cur.userID)

	e.metricInc(MetricSessionExpired)
	e.emitAudit(context.Background(), auditEventSessionExpired, true, cur.userID, cur.username, nil, func() map[string]string {
		return map[string]string{"session_id": sess.ID}
	})
	e.notifyListeners(Event{
		Type:     EventSessionExpired,
		UserID:   cur.userID,
		Username: cur.username,
		Role:     cur.role,
	})
}
