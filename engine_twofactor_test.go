package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/weighops/authcore/notify"
)

func enrollTOTP(t *testing.T, engine *Engine, store *mockUserStore, username string) string {
	t.Helper()

	u, err := store.GetByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("seed user missing: %v", err)
	}
	secret, err := engine.GenerateSecretKey()
	if err != nil {
		t.Fatalf("GenerateSecretKey failed: %v", err)
	}
	u.TwoFactorMethod = MethodTOTP
	u.TOTPSecret = secret
	if err := store.Update(context.Background(), u); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return secret
}

func enrollDelivery(t *testing.T, store *mockUserStore, username string, method TwoFactorMethod) {
	t.Helper()

	u, err := store.GetByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("seed user missing: %v", err)
	}
	u.TwoFactorMethod = method
	u.Email = "operator1@weighbridge.example"
	u.Phone = "+15550123456"
	if err := store.Update(context.Background(), u); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func awaitMessage(t *testing.T, ch <-chan notify.Message) notify.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no code delivered")
		return notify.Message{}
	}
}

func TestChallengeRequiresEnrollment(t *testing.T) {
	engine, _, store := newTestEngine(t)
	seedUser(t, store, "operator1", "scale-pass", RoleUser)

	_, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if !errors.Is(err, ErrTwoFactorNotEnabled) {
		t.Fatalf("err = %v, want ErrTwoFactorNotEnabled", err)
	}
}

func TestChallengeUnknownUser(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.InitiateTwoFactorChallenge(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestChallengeStoreOutagePropagates(t *testing.T) {
	engine, _, store := newTestEngine(t)
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	enrollTOTP(t, engine, store, "operator1")

	outage := errors.New("connection refused")
	store.readErr = outage

	_, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if !errors.Is(err, outage) || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want the store outage", err)
	}
}

func TestTOTPChallengeVerify(t *testing.T) {
	engine, fc, store := newTestEngine(t)
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	secret := enrollTOTP(t, engine, store, "operator1")

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}
	if challenge.Method != MethodTOTP {
		t.Fatalf("method = %v, want MethodTOTP", challenge.Method)
	}
	if got := challenge.ExpiresIn(fc.Now()); got != 10*time.Minute {
		t.Fatalf("ExpiresIn = %v, want 10m", got)
	}

	code, err := engine.totp.CodeAt(secret, fc.Now())
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}

	res, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !res.Success || res.Username != "operator1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	// Consumed on success; a replay must not find it.
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, code); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("replay err = %v, want ErrChallengeNotFound", err)
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	engine, fc, store := newTestEngine(t)
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	secret := enrollTOTP(t, engine, store, "operator1")

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}

	// One step behind is inside the accepted skew.
	code, err := engine.totp.CodeAt(secret, fc.Now().Add(-30*time.Second))
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, code); err != nil {
		t.Fatalf("one-step-old code rejected: %v", err)
	}
}

func TestTOTPWrongCodeLeavesChallengeOpen(t *testing.T) {
	engine, fc, store := newTestEngine(t)
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	secret := enrollTOTP(t, engine, store, "operator1")

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}

	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("err = %v, want ErrInvalidCode", err)
	}
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, "12345"); !errors.Is(err, ErrInvalidCodeFormat) {
		t.Fatalf("err = %v, want ErrInvalidCodeFormat", err)
	}

	code, err := engine.totp.CodeAt(secret, fc.Now())
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, code); err != nil {
		t.Fatalf("challenge not retryable after failure: %v", err)
	}
}

func TestChallengeExpires(t *testing.T) {
	engine, fc, store := newTestEngine(t)
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	secret := enrollTOTP(t, engine, store, "operator1")

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}

	fc.Advance(10*time.Minute + time.Second)
	code, err := engine.totp.CodeAt(secret, fc.Now())
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, code); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("err = %v, want ErrChallengeExpired", err)
	}
}

func TestEmailCodeChallenge(t *testing.T) {
	delivered := make(chan notify.Message, 4)
	engine, _, store := newTestEngine(t, func(b *Builder) {
		b.WithNotifier(notify.Func(func(_ context.Context, msg notify.Message) error {
			delivered <- msg
			return nil
		}))
	})
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	enrollDelivery(t, store, "operator1", MethodEmail)

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}
	if !strings.Contains(challenge.Message, "op***@weighbridge.example") {
		t.Fatalf("recipient not masked: %q", challenge.Message)
	}

	msg := awaitMessage(t, delivered)
	if msg.Channel != notify.ChannelEmail || msg.Recipient != "operator1@weighbridge.example" {
		t.Fatalf("unexpected delivery: %+v", msg)
	}
	if len(msg.Code) != 6 {
		t.Fatalf("code length = %d, want 6", len(msg.Code))
	}

	res, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, msg.Code)
	if err != nil || !res.Success {
		t.Fatalf("verify failed: res=%+v err=%v", res, err)
	}
}

func TestEmailCodeSingleUse(t *testing.T) {
	delivered := make(chan notify.Message, 4)
	engine, _, store := newTestEngine(t, func(b *Builder) {
		b.WithNotifier(notify.Func(func(_ context.Context, msg notify.Message) error {
			delivered <- msg
			return nil
		}))
	})
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	enrollDelivery(t, store, "operator1", MethodEmail)

	first, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}
	firstCode := awaitMessage(t, delivered).Code
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), first.ID, firstCode); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}

	second, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("second challenge failed: %v", err)
	}
	secondCode := awaitMessage(t, delivered).Code

	// The consumed first code must not verify the fresh challenge.
	if firstCode != secondCode {
		if _, err := engine.VerifyTwoFactorChallenge(context.Background(), second.ID, firstCode); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("stale code err = %v, want ErrInvalidCode", err)
		}
	}
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), second.ID, secondCode); err != nil {
		t.Fatalf("second verify failed: %v", err)
	}
}

func TestSMSChallengeMasksPhone(t *testing.T) {
	delivered := make(chan notify.Message, 1)
	engine, _, store := newTestEngine(t, func(b *Builder) {
		b.WithNotifier(notify.Func(func(_ context.Context, msg notify.Message) error {
			delivered <- msg
			return nil
		}))
	})
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	enrollDelivery(t, store, "operator1", MethodSMS)

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}
	if strings.Contains(challenge.Message, "+15550123456") {
		t.Fatalf("phone not masked: %q", challenge.Message)
	}
	if !strings.HasSuffix(challenge.Message, "3456") {
		t.Fatalf("masked phone should keep last digits: %q", challenge.Message)
	}

	msg := awaitMessage(t, delivered)
	if msg.Channel != notify.ChannelSMS || msg.Recipient != "+15550123456" {
		t.Fatalf("unexpected delivery: %+v", msg)
	}
}

func TestBackupCodeChallenge(t *testing.T) {
	engine, _, store := newTestEngine(t)
	u := seedUser(t, store, "operator1", "scale-pass", RoleUser)

	plaintexts, err := engine.GenerateBackupCodes(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	if len(plaintexts) != 10 {
		t.Fatalf("got %d codes, want 10", len(plaintexts))
	}

	stored, _ := store.GetByUsername(context.Background(), "operator1")
	stored.TwoFactorMethod = MethodBackupCodes
	if err := store.Update(context.Background(), stored); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}
	res, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, plaintexts[0])
	if err != nil || !res.Success {
		t.Fatalf("verify failed: res=%+v err=%v", res, err)
	}

	// The spent code is rejected on a fresh challenge.
	replay, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("second challenge failed: %v", err)
	}
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), replay.ID, plaintexts[0]); !errors.Is(err, ErrBackupCodeInvalid) {
		t.Fatalf("replay err = %v, want ErrBackupCodeInvalid", err)
	}

	remaining, err := engine.RemainingBackupCodes(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("RemainingBackupCodes failed: %v", err)
	}
	if remaining != 9 {
		t.Fatalf("remaining = %d, want 9", remaining)
	}
}
