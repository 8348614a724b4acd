package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/weighops/authcore/internal/clock"
	"github.com/weighops/authcore/notify"
)

func newRedisTestEngine(t *testing.T, mutate ...func(*Builder)) (*Engine, *clock.Fake, *mockUserStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return newTestEngine(t, append([]func(*Builder){func(b *Builder) {
		b.WithRedis(rdb)
	}}, mutate...)...)
}

func TestRedisBackedChallengeFlow(t *testing.T) {
	delivered := make(chan notify.Message, 4)
	engine, _, store := newRedisTestEngine(t, func(b *Builder) {
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

	code := awaitMessage(t, delivered).Code
	res, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, code)
	if err != nil || !res.Success {
		t.Fatalf("verify failed: res=%+v err=%v", res, err)
	}

	// Consumed from redis on success.
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, code); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("replay err = %v, want ErrChallengeNotFound", err)
	}
}

func TestRedisBackedChallengeExpiry(t *testing.T) {
	engine, fc, store := newRedisTestEngine(t)
	seedUser(t, store, "operator1", "scale-pass", RoleUser)
	enrollTOTP(t, engine, store, "operator1")

	challenge, err := engine.InitiateTwoFactorChallenge(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("InitiateTwoFactorChallenge failed: %v", err)
	}

	// Redis reaps on its own clock; the deadline stored in the record is
	// still enforced on read.
	fc.Advance(10*time.Minute + time.Second)
	if _, err := engine.VerifyTwoFactorChallenge(context.Background(), challenge.ID, "123456"); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("err = %v, want ErrChallengeExpired", err)
	}
}
