package authcore

import "errors"

var (
	// ErrEngineNotReady indicates the engine was used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidCredentials indicates an unknown username or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account is under failed-attempt lockout.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled indicates the account is deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountExists indicates the username is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrUserNotFound indicates no user record matches the identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRole indicates an unrecognized role name or value.
	ErrInvalidRole = errors.New("invalid role")
	// ErrNoActiveSession indicates the operation requires a logged-in operator.
	ErrNoActiveSession = errors.New("no active session")
	// ErrEscalationDenied indicates the caller's base role is below the requested one.
	ErrEscalationDenied = errors.New("privilege escalation denied")
	// ErrTwoFactorNotEnabled indicates the user has no enrolled second factor.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrChallengeNotFound indicates an unknown or already consumed challenge id.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeExpired indicates the challenge outlived its ten-minute window.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeUnavailable indicates the challenge backend is unreachable.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrInvalidCodeFormat indicates the submitted code has the wrong shape.
	ErrInvalidCodeFormat = errors.New("invalid code format")
	// ErrInvalidCode indicates the submitted code did not verify.
	ErrInvalidCode = errors.New("invalid code")
	// ErrBackupCodeInvalid indicates an unknown or already consumed backup code.
	ErrBackupCodeInvalid = errors.New("invalid backup code")
	// ErrBackupCodesNotConfigured indicates no backup codes are on record.
	ErrBackupCodesNotConfigured = errors.New("backup codes not configured")
	// ErrBackupCodeRegenerationRequiresTOTP guards regeneration for TOTP-enrolled users.
	ErrBackupCodeRegenerationRequiresTOTP = errors.New("backup code regeneration requires totp verification")
	// ErrPasswordPolicy indicates the new password violates the hashing policy.
	ErrPasswordPolicy = errors.New("password policy violation")
)
