package authcore

import (
	"context"
	"strconv"

	"github.com/weighops/authcore/otp"
)

// GenerateBackupCodes describes the generatebackupcodes operation and its observable behavior.
//
// GenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// GenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GenerateBackupCodes(ctx context.Context, userID int64) ([]string, error) {
	if e == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	owner := strconv.FormatInt(user.ID, 10)
	plaintexts := make([]string, 0, e.config.BackupCodes.Count)
	records := make([]BackupCodeRecord, 0, e.config.BackupCodes.Count)

	for i := 0; i < e.config.BackupCodes.Count; i++ {
		code, err := otp.NewBackupCode(e.config.BackupCodes.Length)
		if err != nil {
			return nil, err
		}
		plaintexts = append(plaintexts, otp.FormatBackupCode(code))
		records = append(records, BackupCodeRecord{
			Hash: otp.BackupCodeHash(owner, code),
		})
	}

	if err := e.userStore.ReplaceBackupCodes(ctx, user.ID, records); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, user.ID, normalizeUsername(user.Username), nil, func() map[string]string {
		return map[string]string{"count": itoa(len(records))}
	})

	// Plaintexts exist only in this return value. The store keeps hashes.
	return plaintexts, nil
}

// RegenerateBackupCodes replaces the outstanding batch. A TOTP-enrolled
// user must present a fresh authenticator code first, so a stolen but
// unlocked workstation cannot silently mint recovery codes.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID int64, totpCode string) ([]string, error) {
	if e == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	if user.TwoFactorMethod == MethodTOTP && user.TOTPSecret != "" {
		if !e.totp.CheckFormat(totpCode) {
			return nil, ErrBackupCodeRegenerationRequiresTOTP
		}
		ok, err := e.totp.VerifyCode(user.TOTPSecret, totpCode, e.now())
		if err != nil || !ok {
			e.metricInc(MetricBackupCodeFailed)
			e.emitAudit(ctx, auditEventBackupCodeFailed, false, user.ID, normalizeUsername(user.Username), ErrBackupCodeRegenerationRequiresTOTP, nil)
			return nil, ErrBackupCodeRegenerationRequiresTOTP
		}
	}

	return e.GenerateBackupCodes(ctx, userID)
}

// RemainingBackupCodes reports how many unspent backup codes the user
// still holds.
func (e *Engine) RemainingBackupCodes(ctx context.Context, userID int64) (int, error) {
	if e == nil || e.userStore == nil {
		return 0, ErrEngineNotReady
	}
	records, err := e.userStore.GetBackupCodes(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
