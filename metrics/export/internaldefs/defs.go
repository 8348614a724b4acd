package internaldefs

import (
	authcore "github.com/weighops/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the access control engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginLockedOut, Name: "authcore_login_locked_out_total", Help: "Login attempts rejected by lockout."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Explicit logout operations."},
	{ID: authcore.MetricSessionExpired, Name: "authcore_session_expired_total", Help: "Sessions torn down by countdown expiry."},
	{ID: authcore.MetricEscalationGranted, Name: "authcore_escalation_granted_total", Help: "Granted privilege escalations."},
	{ID: authcore.MetricEscalationDenied, Name: "authcore_escalation_denied_total", Help: "Denied privilege escalations."},
	{ID: authcore.MetricEscalationExpired, Name: "authcore_escalation_expired_total", Help: "Escalations revoked by countdown expiry."},
	{ID: authcore.MetricChallengeIssued, Name: "authcore_challenge_issued_total", Help: "Issued two-factor challenges."},
	{ID: authcore.MetricChallengeVerified, Name: "authcore_challenge_verified_total", Help: "Successfully verified two-factor challenges."},
	{ID: authcore.MetricChallengeFailed, Name: "authcore_challenge_failed_total", Help: "Failed two-factor verification attempts."},
	{ID: authcore.MetricChallengeExpired, Name: "authcore_challenge_expired_total", Help: "Two-factor challenges rejected as expired."},
	{ID: authcore.MetricCodeSent, Name: "authcore_code_sent_total", Help: "Delivered one-time verification codes."},
	{ID: authcore.MetricCodeSendFailure, Name: "authcore_code_send_failure_total", Help: "One-time code delivery failures."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Successful backup-code verifications."},
	{ID: authcore.MetricBackupCodeFailed, Name: "authcore_backup_code_failed_total", Help: "Failed backup-code verifications."},
	{ID: authcore.MetricBackupCodeRegenerated, Name: "authcore_backup_code_regenerated_total", Help: "Backup-code batch regenerations."},
	{ID: authcore.MetricAccountCreated, Name: "authcore_account_created_total", Help: "Created operator accounts."},
	{ID: authcore.MetricAccountDisabled, Name: "authcore_account_disabled_total", Help: "Account deactivation operations."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeInvalidOld, Name: "authcore_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
}

// HistogramDefs is an exported constant or variable used by the access control engine.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the access control engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the access control engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
