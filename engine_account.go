package authcore

import (
	"context"
)

// CreateAccount describes the createaccount operation and its observable behavior.
//
// CreateAccount may return an error when input validation, dependency calls, or security checks fail.
// CreateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*User, error) {
	if e == nil || e.hasher == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}

	identifier := normalizeUsername(req.Username)
	if identifier == "" || req.Password == "" {
		return nil, ErrPasswordPolicy
	}

	role := req.Role
	if role == 0 {
		role = RoleUser
	}
	if role < RoleUser || role > RoleSuperAdmin {
		return nil, ErrInvalidRole
	}

	if existing, err := e.userStore.GetByUsername(ctx, identifier); err == nil && existing != nil {
		e.emitAudit(ctx, auditEventAccountCreated, false, existing.ID, identifier, ErrAccountExists, nil)
		return nil, ErrAccountExists
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, ErrPasswordPolicy
	}

	now := e.now()
	user := &User{
		Username:           identifier,
		PasswordHash:       hash,
		Role:               role,
		IsActive:           true,
		Email:              req.Email,
		Phone:              req.Phone,
		LastPasswordChange: now,
		CreatedAt:          now,
	}

	if err := e.userStore.Create(ctx, user); err != nil {
		return nil, err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, user.ID, identifier, nil, func() map[string]string {
		return map[string]string{"role": role.String()}
	})

	out := *user
	return &out, nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if e == nil || e.hasher == nil || e.userStore == nil {
		return ErrEngineNotReady
	}
	if oldPassword == "" || newPassword == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "invalid_input"}
		})
		return ErrPasswordPolicy
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil || user == nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrUserNotFound, func() map[string]string {
			return map[string]string{"reason": "user_not_found"}
		})
		return ErrUserNotFound
	}

	identifier := normalizeUsername(user.Username)

	oldOK, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, identifier, err, func() map[string]string {
			return map[string]string{"reason": "credential_check_failed"}
		})
		return err
	}
	if !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, identifier, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "invalid_old_password"}
		})
		return ErrInvalidCredentials
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, identifier, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "hash_policy"}
		})
		return ErrPasswordPolicy
	}

	user.PasswordHash = newHash
	user.LastPasswordChange = e.now()

	if err := e.userStore.Update(ctx, user); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, identifier, err, func() map[string]string {
			return map[string]string{"reason": "update_failed"}
		})
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, identifier, nil, nil)

	return nil
}
