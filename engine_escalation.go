package authcore

import (
	"context"
)

// RequestPrivilegeEscalation describes the requestprivilegeescalation operation and its observable behavior.
//
// The purpose string is the caller's reason for the elevation ("audit",
// "weighment correction"). It is recorded in the audit trail and the
// emitted event, never interpreted.
//
// RequestPrivilegeEscalation may return an error when input validation, dependency calls, or security checks fail.
// RequestPrivilegeEscalation does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestPrivilegeEscalation(ctx context.Context, role Role, purpose string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	if role < RoleUser || role > RoleSuperAdmin {
		return false, ErrInvalidRole
	}

	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if cur == nil {
		return false, ErrNoActiveSession
	}

	// The stored role is a ceiling. Escalation re-arms privileges the
	// operator already holds for a bounded window; it never invents new
	// ones.
	if role > cur.role {
		e.metricInc(MetricEscalationDenied)
		e.emitAudit(ctx, auditEventEscalationDenied, false, cur.userID, cur.username, ErrEscalationDenied, func() map[string]string {
			return map[string]string{
				"requested": role.String(),
				"base":      cur.role.String(),
				"purpose":   purpose,
			}
		})
		return false, ErrEscalationDenied
	}

	ttl := e.config.Escalation.DurationForRole(role)
	e.escalations.Grant(cur.userID, uint8(role), ttl)

	e.metricInc(MetricEscalationGranted)
	e.emitAudit(ctx, auditEventEscalationGranted, true, cur.userID, cur.username, nil, func() map[string]string {
		return map[string]string{
			"role":    role.String(),
			"ttl":     ttl.String(),
			"purpose": purpose,
		}
	})
	e.notifyListeners(Event{
		Type:     EventPrivilegeEscalated,
		UserID:   cur.userID,
		Username: cur.username,
		Role:     role,
		Purpose:  purpose,
	})

	return true, nil
}

// ClearPrivilegeEscalation describes the clearprivilegeescalation operation and its observable behavior.
//
// ClearPrivilegeEscalation may return an error when input validation, dependency calls, or security checks fail.
// ClearPrivilegeEscalation does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ClearPrivilegeEscalation(ctx context.Context) {
	if e == nil {
		return
	}

	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if cur == nil {
		return
	}

	if role, ok := e.escalations.Clear(cur.userID); ok {
		e.emitAudit(ctx, auditEventEscalationCleared, true, cur.userID, cur.username, nil, func() map[string]string {
			return map[string]string{"role": Role(role).String()}
		})
	}
}

// CurrentRole returns the signed-in operator's stored role, ignoring any
// active escalation grant. With no operator signed in it returns zero.
func (e *Engine) CurrentRole() Role {
	if e == nil {
		return 0
	}

	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if cur == nil {
		return 0
	}
	return cur.role
}

// EffectiveRole returns the role that authorization checks should use: the
// escalated role while a grant is active, the stored role otherwise. With
// no operator signed in it returns zero.
func (e *Engine) EffectiveRole() Role {
	if e == nil {
		return 0
	}

	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if cur == nil {
		return 0
	}
	if granted, ok := e.escalations.Get(cur.userID); ok {
		return Role(granted)
	}
	return cur.role
}

// HasPermission describes the haspermission operation and its observable behavior.
//
// HasPermission may return an error when input validation, dependency calls, or security checks fail.
// HasPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) HasPermission(required Role) bool {
	effective := e.EffectiveRole()
	if effective == 0 {
		return false
	}
	return effective >= required
}

// onEscalationExpired runs on the countdown goroutine when a grant lapses.
func (e *Engine) onEscalationExpired(userID int64, role uint8) {
	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	username := ""
	if cur != nil && cur.userID == userID {
		username = cur.username
	}

	e.metricInc(MetricEscalationExpired)
	e.emitAudit(context.Background(), auditEventEscalationExpired, true, userID, username, nil, func() map[string]string {
		return map[string]string{"role": Role(role).String()}
	})
	e.notifyListeners(Event{
		Type:     EventPrivilegeExpired,
		UserID:   userID,
		Username: username,
		Role:     Role(role),
	})
}
