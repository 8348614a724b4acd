package authcore

import (
	"context"
)

// SetAccountActive describes the setaccountactive operation and its observable behavior.
//
// SetAccountActive may return an error when input validation, dependency calls, or security checks fail.
// SetAccountActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetAccountActive(ctx context.Context, userID int64, active bool) error {
	if e == nil || e.userStore == nil {
		return ErrEngineNotReady
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	if user.IsActive == active {
		return nil
	}

	user.IsActive = active
	if err := e.userStore.Update(ctx, user); err != nil {
		return err
	}

	if !active {
		e.metricInc(MetricAccountDisabled)

		// Deactivation takes effect immediately: a signed-in operator
		// loses their session and any escalation.
		e.mu.Lock()
		cur := e.current
		if cur != nil && cur.userID == userID {
			e.current = nil
		} else {
			cur = nil
		}
		e.mu.Unlock()

		if cur != nil {
			e.sessions.End(cur.userID)
			e.escalations.Clear(cur.userID)
			e.notifyListeners(Event{
				Type:     EventUserLoggedOut,
				UserID:   cur.userID,
				Username: cur.username,
				Role:     cur.role,
			})
		}
	}

	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, normalizeUsername(user.Username), nil, func() map[string]string {
		status := "deactivated"
		if active {
			status = "activated"
		}
		return map[string]string{"status": status}
	})

	return nil
}
