package authcore

import (
	"context"
)

// GenerateSecretKey describes the generatesecretkey operation and its observable behavior.
//
// GenerateSecretKey may return an error when input validation, dependency calls, or security checks fail.
// GenerateSecretKey does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GenerateSecretKey() (string, error) {
	if e == nil || e.totp == nil {
		return "", ErrEngineNotReady
	}
	return e.totp.GenerateSecret()
}

// GenerateQRCodeURL describes the generateqrcodeurl operation and its observable behavior.
//
// GenerateQRCodeURL may return an error when input validation, dependency calls, or security checks fail.
// GenerateQRCodeURL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GenerateQRCodeURL(secretBase32, username string) (string, error) {
	if e == nil || e.totp == nil {
		return "", ErrEngineNotReady
	}
	if secretBase32 == "" || username == "" {
		return "", ErrInvalidCodeFormat
	}
	return e.totp.ProvisionURI(secretBase32, normalizeUsername(username)), nil
}

// VerifyTOTPSetupCode checks a code against a secret that has not been
// saved to the user record yet. Enrollment flows call this before
// EnableTwoFactor so a mistyped authenticator setup never locks the
// operator out.
func (e *Engine) VerifyTOTPSetupCode(secretBase32, code string) (bool, error) {
	if e == nil || e.totp == nil {
		return false, ErrEngineNotReady
	}
	if !e.totp.CheckFormat(code) {
		return false, ErrInvalidCodeFormat
	}
	return e.totp.VerifyCode(secretBase32, code, e.now())
}

// EnableTwoFactor describes the enabletwofactor operation and its observable behavior.
//
// EnableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// EnableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID int64, method TwoFactorMethod, secretBase32 string) error {
	if e == nil || e.userStore == nil {
		return ErrEngineNotReady
	}
	if method == MethodNone {
		return e.DisableTwoFactor(ctx, userID)
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	if method == MethodTOTP {
		if _, err := e.totp.CodeAt(secretBase32, e.now()); err != nil {
			return ErrInvalidCodeFormat
		}
		user.TOTPSecret = secretBase32
	}
	user.TwoFactorMethod = method

	if err := e.userStore.Update(ctx, user); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, user.ID, normalizeUsername(user.Username), nil, func() map[string]string {
		return map[string]string{"method": method.String()}
	})
	return nil
}

// DisableTwoFactor describes the disabletwofactor operation and its observable behavior.
//
// DisableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// DisableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID int64) error {
	if e == nil || e.userStore == nil {
		return ErrEngineNotReady
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	user.TwoFactorMethod = MethodNone
	user.TOTPSecret = ""

	if err := e.userStore.Update(ctx, user); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, user.ID, normalizeUsername(user.Username), nil, nil)
	return nil
}
