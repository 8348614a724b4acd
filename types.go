package authcore

import (
	"context"
	"strings"
	"time"
)

// Role is the ordered operator privilege tier. Comparison is numeric:
// RoleUser < RoleAdmin < RoleSuperAdmin.
type Role uint8

const (
	// RoleUser is a regular weighbridge operator.
	RoleUser Role = iota + 1
	// RoleAdmin may manage operators and correct weighments.
	RoleAdmin
	// RoleSuperAdmin may supervise audits and change system configuration.
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "superadmin"
	default:
		return "unknown"
	}
}

// ParseRole maps a stored role name to its Role value.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "operator":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	case "superadmin", "super_admin":
		return RoleSuperAdmin, nil
	default:
		return 0, ErrInvalidRole
	}
}

// TwoFactorMethod selects how a second factor is verified.
type TwoFactorMethod uint8

const (
	MethodNone TwoFactorMethod = iota
	MethodTOTP
	MethodEmail
	MethodSMS
	MethodBackupCodes
)

func (m TwoFactorMethod) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodTOTP:
		return "totp"
	case MethodEmail:
		return "email"
	case MethodSMS:
		return "sms"
	case MethodBackupCodes:
		return "backup_codes"
	default:
		return "unknown"
	}
}

// User is the stored operator record. Usernames are unique
// case-insensitively; lookups always normalize to lower case.
type User struct {
	ID       int64
	Username string

	// PasswordHash is the PHC-encoded PBKDF2 output; it embeds the salt
	// and iteration count.
	PasswordHash string

	Role     Role
	IsActive bool

	FailedLoginAttempts int
	LockoutUntil        *time.Time

	TwoFactorMethod TwoFactorMethod
	TOTPSecret      string
	Email           string
	Phone           string

	LastLogin          time.Time
	LastPasswordChange time.Time
	CreatedAt          time.Time
}

// BackupCodeRecord stores the SHA-256 hash of a single backup code. The
// plaintext is never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// UserStore is the persistence interface the surrounding system implements
// (or borrows from memstore/gormstore). GetByUsername must match
// case-insensitively and return [ErrUserNotFound] for a missing user; any
// other error is treated as a backend fault and propagated, never as an
// authentication failure. ConsumeBackupCode must atomically mark the code
// used and report whether it was still unspent.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error

	GetBackupCodes(ctx context.Context, userID int64) ([]BackupCodeRecord, error)
	ReplaceBackupCodes(ctx context.Context, userID int64, codes []BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, userID int64, hash [32]byte) (bool, error)
}

// LoginResult is returned by [Engine.Login]. Failures carry the reason in
// Message and, for lockouts, the remaining lockout duration.
type LoginResult struct {
	Success bool
	Message string
	User    *User

	IsLockedOut       bool
	LockoutRemaining  time.Duration
	AttemptsRemaining int
}

// Challenge is an open two-factor verification bound to a user and method.
// It is single-use and expires ten minutes after issuance.
type Challenge struct {
	ID        string
	Username  string
	Method    TwoFactorMethod
	CreatedAt time.Time
	ExpiresAt time.Time
	Message   string
}

// VerifyResult is returned by [Engine.VerifyTwoFactorChallenge].
type VerifyResult struct {
	Success  bool
	Username string
	Message  string
}

// CreateAccountRequest is the input for [Engine.CreateAccount]. Role
// defaults to RoleUser when zero.
type CreateAccountRequest struct {
	Username string
	Password string
	Role     Role
	Email    string
	Phone    string
}
