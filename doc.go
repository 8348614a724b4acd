// Package authcore provides the identity and access-control engine for a
// weighbridge operator workstation: password login with failed-attempt
// lockout, role-scoped session countdowns, time-bounded privilege
// escalation, and pluggable two-factor verification (TOTP, email, SMS,
// backup codes).
//
// The package is designed around a single signed-in operator per process:
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build], but exactly one session is live
// at a time and a fresh login replaces it.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, Challenge, MetricsSnapshot, etc.). Timer
// plumbing, challenge and one-time-code stores, and audit dispatch live
// under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store encodings, or timer internals in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Timer contract
//
// Session and escalation countdowns are single-shot and generation
// numbered: replacing a session or grant invalidates the old timer even if
// it has already fired and is waiting on the lock. Explicit teardown and a
// timer firing are idempotent with respect to each other.
package authcore
