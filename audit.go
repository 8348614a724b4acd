package authcore

import (
	"context"
	"errors"
	"io"

	"github.com/weighops/authcore/internal/audit"
)

// AuditEvent defines a public type used by authcore APIs.
//
// AuditEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEvent = audit.Event

// AuditSink defines a public type used by authcore APIs.
//
// AuditSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditSink = audit.Sink

// NoOpSink defines a public type used by authcore APIs.
//
// NoOpSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NoOpSink = audit.NoOpSink

// ChannelSink defines a public type used by authcore APIs.
//
// ChannelSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChannelSink = audit.ChannelSink

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// NewChannelSink may return an error when input validation, dependency calls, or security checks fail.
// NewChannelSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// NewJSONWriterSink may return an error when input validation, dependency calls, or security checks fail.
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginLockedOut        = "login_locked_out"
	auditEventLogout                = "logout"
	auditEventSessionExpired        = "session_expired"
	auditEventEscalationGranted     = "escalation_granted"
	auditEventEscalationDenied      = "escalation_denied"
	auditEventEscalationExpired     = "escalation_expired"
	auditEventEscalationCleared     = "escalation_cleared"
	auditEventChallengeIssued       = "challenge_issued"
	auditEventChallengeVerified     = "challenge_verified"
	auditEventChallengeFailed       = "challenge_failed"
	auditEventCodeSent              = "code_sent"
	auditEventCodeSendFailure       = "code_send_failure"
	auditEventBackupCodesGenerated  = "backup_codes_generated"
	auditEventBackupCodeUsed        = "backup_code_used"
	auditEventBackupCodeFailed      = "backup_code_failed"
	auditEventAccountCreated        = "account_created"
	auditEventAccountStatusChange   = "account_status_change"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventTwoFactorEnabled      = "two_factor_enabled"
	auditEventTwoFactorDisabled     = "two_factor_disabled"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrNoActiveSession    AuditErrorCode = "no_active_session"
	auditErrEscalationDenied   AuditErrorCode = "escalation_denied"
	auditErrTwoFactorDisabled  AuditErrorCode = "two_factor_not_enabled"
	auditErrChallengeNotFound  AuditErrorCode = "challenge_not_found"
	auditErrChallengeExpired   AuditErrorCode = "challenge_expired"
	auditErrCodeFormat         AuditErrorCode = "invalid_code_format"
	auditErrCodeInvalid        AuditErrorCode = "invalid_code"
	auditErrBackupCodeInvalid  AuditErrorCode = "backup_code_invalid"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	username string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Username:  username,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrNoActiveSession):
		return auditErrNoActiveSession
	case errors.Is(err, ErrEscalationDenied),
		errors.Is(err, ErrInvalidRole):
		return auditErrEscalationDenied
	case errors.Is(err, ErrTwoFactorNotEnabled):
		return auditErrTwoFactorDisabled
	case errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeNotFound
	case errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeExpired
	case errors.Is(err, ErrInvalidCodeFormat):
		return auditErrCodeFormat
	case errors.Is(err, ErrInvalidCode):
		return auditErrCodeInvalid
	case errors.Is(err, ErrBackupCodeInvalid),
		errors.Is(err, ErrBackupCodesNotConfigured),
		errors.Is(err, ErrBackupCodeRegenerationRequiresTOTP):
		return auditErrBackupCodeInvalid
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrChallengeUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
