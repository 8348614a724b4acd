package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weighops/authcore/internal/stores"
	"github.com/weighops/authcore/notify"
	"github.com/weighops/authcore/otp"
)

// InitiateTwoFactorChallenge describes the initiatetwofactorchallenge operation and its observable behavior.
//
// InitiateTwoFactorChallenge may return an error when input validation, dependency calls, or security checks fail.
// InitiateTwoFactorChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) InitiateTwoFactorChallenge(ctx context.Context, username string) (*Challenge, error) {
	if e == nil || e.userStore == nil || e.challenges == nil {
		return nil, ErrEngineNotReady
	}

	identifier := normalizeUsername(username)
	user, err := e.userStore.GetByUsername(ctx, identifier)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.TwoFactorMethod == MethodNone {
		return nil, ErrTwoFactorNotEnabled
	}

	now := e.now()
	challenge := &Challenge{
		ID:        uuid.NewString(),
		Username:  identifier,
		Method:    user.TwoFactorMethod,
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.Challenge.TTL),
	}

	record := &stores.ChallengeRecord{
		Username:  identifier,
		Method:    uint8(user.TwoFactorMethod),
		CreatedAt: now.Unix(),
		ExpiresAt: challenge.ExpiresAt.Unix(),
	}
	if err := e.challenges.Save(ctx, challenge.ID, record, e.config.Challenge.TTL); err != nil {
		return nil, ErrChallengeUnavailable
	}

	switch user.TwoFactorMethod {
	case MethodEmail, MethodSMS:
		msg, err := e.sendDeliveryCode(ctx, user)
		if err != nil {
			return nil, err
		}
		challenge.Message = msg
	case MethodTOTP:
		challenge.Message = "Enter the code from your authenticator app"
	case MethodBackupCodes:
		challenge.Message = "Enter one of your backup codes"
	}

	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventChallengeIssued, true, user.ID, identifier, nil, func() map[string]string {
		return map[string]string{
			"challenge_id": challenge.ID,
			"method":       user.TwoFactorMethod.String(),
		}
	})

	return challenge, nil
}

func (e *Engine) sendDeliveryCode(ctx context.Context, user *User) (string, error) {
	code, err := otp.NewNumericCode(e.config.OneTimeCode.Digits)
	if err != nil {
		return "", err
	}

	identifier := normalizeUsername(user.Username)
	key := codeKey(identifier, user.TwoFactorMethod)
	if err := e.codes.Save(ctx, key, code, e.config.OneTimeCode.TTL); err != nil {
		return "", ErrChallengeUnavailable
	}

	var (
		channel   notify.Channel
		recipient string
		message   string
	)
	switch user.TwoFactorMethod {
	case MethodSMS:
		channel = notify.ChannelSMS
		recipient = user.Phone
		message = fmt.Sprintf("Verification code sent to %s", maskPhone(user.Phone))
	default:
		channel = notify.ChannelEmail
		recipient = user.Email
		message = fmt.Sprintf("Verification code sent to %s", maskEmail(user.Email))
	}

	// Delivery is fire-and-forget so a slow SMTP gateway never blocks the
	// login flow. Failures surface through metrics and the audit trail.
	userID := user.ID
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Print("authcore: notifier panicked")
			}
		}()
		err := e.notifier.Send(context.Background(), notify.Message{
			Channel:   channel,
			Recipient: recipient,
			Code:      code,
			TTL:       e.config.OneTimeCode.TTL,
		})
		if err != nil {
			e.metricInc(MetricCodeSendFailure)
			e.emitAudit(context.Background(), auditEventCodeSendFailure, false, userID, identifier, err, nil)
			return
		}
		e.metricInc(MetricCodeSent)
		e.emitAudit(context.Background(), auditEventCodeSent, true, userID, identifier, nil, nil)
	}()

	return message, nil
}

// VerifyTwoFactorChallenge describes the verifytwofactorchallenge operation and its observable behavior.
//
// VerifyTwoFactorChallenge may return an error when input validation, dependency calls, or security checks fail.
// VerifyTwoFactorChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyTwoFactorChallenge(ctx context.Context, challengeID, code string) (*VerifyResult, error) {
	if e == nil || e.challenges == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeExpired):
			e.metricInc(MetricChallengeExpired)
			e.emitAudit(ctx, auditEventChallengeFailed, false, 0, "", ErrChallengeExpired, nil)
			return nil, ErrChallengeExpired
		case errors.Is(err, stores.ErrChallengeNotFound):
			return nil, ErrChallengeNotFound
		default:
			return nil, ErrChallengeUnavailable
		}
	}

	if now := e.now().Unix(); now >= record.ExpiresAt {
		// Redis TTLs reap lazily; enforce the deadline on read as well.
		_, _ = e.challenges.Delete(ctx, challengeID)
		e.metricInc(MetricChallengeExpired)
		e.emitAudit(ctx, auditEventChallengeFailed, false, 0, record.Username, ErrChallengeExpired, nil)
		return nil, ErrChallengeExpired
	}

	user, err := e.userStore.GetByUsername(ctx, record.Username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	method := TwoFactorMethod(record.Method)
	if err := e.verifyByMethod(ctx, user, method, code); err != nil {
		e.metricInc(MetricChallengeFailed)
		e.emitAudit(ctx, auditEventChallengeFailed, false, user.ID, record.Username, err, func() map[string]string {
			return map[string]string{
				"challenge_id": challengeID,
				"method":       method.String(),
			}
		})
		// The challenge stays open; the operator may retry until it
		// expires.
		return nil, err
	}

	// Single use: the challenge is consumed on first success.
	if _, err := e.challenges.Delete(ctx, challengeID); err != nil {
		return nil, ErrChallengeUnavailable
	}

	e.metricInc(MetricChallengeVerified)
	e.emitAudit(ctx, auditEventChallengeVerified, true, user.ID, record.Username, nil, func() map[string]string {
		return map[string]string{
			"challenge_id": challengeID,
			"method":       method.String(),
		}
	})
	e.notifyListeners(Event{
		Type:     EventTwoFactorVerified,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Method:   method,
	})

	return &VerifyResult{
		Success:  true,
		Username: user.Username,
		Message:  "Verification successful",
	}, nil
}

func (e *Engine) verifyByMethod(ctx context.Context, user *User, method TwoFactorMethod, code string) error {
	switch method {
	case MethodTOTP:
		return e.verifyTOTP(user.TOTPSecret, code)
	case MethodEmail, MethodSMS:
		return e.verifyDeliveryCode(ctx, user, method, code)
	case MethodBackupCodes:
		return e.verifyBackupCode(ctx, user, code)
	default:
		return ErrTwoFactorNotEnabled
	}
}

func (e *Engine) verifyTOTP(secretBase32, code string) error {
	if secretBase32 == "" {
		return ErrTwoFactorNotEnabled
	}
	if !e.totp.CheckFormat(code) {
		return ErrInvalidCodeFormat
	}
	ok, err := e.totp.VerifyCode(secretBase32, code, e.now())
	if err != nil || !ok {
		return ErrInvalidCode
	}
	return nil
}

func (e *Engine) verifyDeliveryCode(ctx context.Context, user *User, method TwoFactorMethod, code string) error {
	code = strings.TrimSpace(code)
	if len(code) != e.config.OneTimeCode.Digits || !isDigits(code) {
		return ErrInvalidCodeFormat
	}

	key := codeKey(normalizeUsername(user.Username), method)
	err := e.codes.Consume(ctx, key, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrCodeMismatch), errors.Is(err, stores.ErrCodeNotFound):
		return ErrInvalidCode
	case errors.Is(err, stores.ErrCodeExpired):
		return fmt.Errorf("%w: code expired", ErrInvalidCode)
	default:
		return ErrChallengeUnavailable
	}
}

func (e *Engine) verifyBackupCode(ctx context.Context, user *User, code string) error {
	canonical := otp.CanonicalizeBackupCode(code)
	if len(canonical) != e.config.BackupCodes.Length {
		return ErrInvalidCodeFormat
	}

	records, err := e.userStore.GetBackupCodes(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrBackupCodesNotConfigured
	}

	hash := otp.BackupCodeHash(strconv.FormatInt(user.ID, 10), canonical)
	consumed, err := e.userStore.ConsumeBackupCode(ctx, user.ID, hash)
	if err != nil {
		return err
	}
	if !consumed {
		e.metricInc(MetricBackupCodeFailed)
		e.emitAudit(ctx, auditEventBackupCodeFailed, false, user.ID, normalizeUsername(user.Username), ErrBackupCodeInvalid, nil)
		return ErrBackupCodeInvalid
	}

	e.metricInc(MetricBackupCodeUsed)
	e.emitAudit(ctx, auditEventBackupCodeUsed, true, user.ID, normalizeUsername(user.Username), nil, nil)
	return nil
}

func codeKey(identifier string, method TwoFactorMethod) string {
	return identifier + ":" + method.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:2] + "***@" + domain
}

func maskPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) < 4 {
		return "***"
	}
	return "***" + digits[len(digits)-4:]
}

// ExpiresIn reports the time until a challenge deadline; used by callers
// that show a countdown alongside the code prompt.
func (c *Challenge) ExpiresIn(now time.Time) time.Duration {
	if c == nil {
		return 0
	}
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
