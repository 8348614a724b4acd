// Package gormstore persists operator accounts and backup codes through
// GORM. Deployments that outgrow memstore point it at SQLite (the usual
// choice for a standalone weighbridge workstation) or any other dialect
// GORM supports.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	authcore "github.com/weighops/authcore"
)

type userRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	Username      string `gorm:"size:64"`
	UsernameLower string `gorm:"size:64;uniqueIndex"`
	PasswordHash  string `gorm:"size:256"`
	Role          uint8
	IsActive      bool

	FailedLoginAttempts int
	LockoutUntil        *time.Time

	TwoFactorMethod uint8
	TOTPSecret      string `gorm:"size:64"`
	Email           string `gorm:"size:128"`
	Phone           string `gorm:"size:32"`

	LastLogin          time.Time
	LastPasswordChange time.Time
	CreatedAt          time.Time
}

func (userRow) TableName() string { return "users" }

type backupCodeRow struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	UserID int64 `gorm:"index"`
	Hash   []byte `gorm:"size:32"`
	Used   bool
}

func (backupCodeRow) TableName() string { return "backup_codes" }

// Store is a GORM-backed [authcore.UserStore].
type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a Store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gormstore: nil db")
	}
	if err := db.AutoMigrate(&userRow{}, &backupCodeRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func toRow(u *authcore.User) *userRow {
	return &userRow{
		ID:                  u.ID,
		Username:            u.Username,
		UsernameLower:       strings.ToLower(strings.TrimSpace(u.Username)),
		PasswordHash:        u.PasswordHash,
		Role:                uint8(u.Role),
		IsActive:            u.IsActive,
		FailedLoginAttempts: u.FailedLoginAttempts,
		LockoutUntil:        u.LockoutUntil,
		TwoFactorMethod:     uint8(u.TwoFactorMethod),
		TOTPSecret:          u.TOTPSecret,
		Email:               u.Email,
		Phone:               u.Phone,
		LastLogin:           u.LastLogin,
		LastPasswordChange:  u.LastPasswordChange,
		CreatedAt:           u.CreatedAt,
	}
}

func fromRow(r *userRow) *authcore.User {
	return &authcore.User{
		ID:                  r.ID,
		Username:            r.Username,
		PasswordHash:        r.PasswordHash,
		Role:                authcore.Role(r.Role),
		IsActive:            r.IsActive,
		FailedLoginAttempts: r.FailedLoginAttempts,
		LockoutUntil:        r.LockoutUntil,
		TwoFactorMethod:     authcore.TwoFactorMethod(r.TwoFactorMethod),
		TOTPSecret:          r.TOTPSecret,
		Email:               r.Email,
		Phone:               r.Phone,
		LastLogin:           r.LastLogin,
		LastPasswordChange:  r.LastPasswordChange,
		CreatedAt:           r.CreatedAt,
	}
}

// GetByUsername looks up a user case-insensitively via the username_lower
// column.
func (s *Store) GetByUsername(ctx context.Context, username string) (*authcore.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).
		Where("username_lower = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

// GetByID is a member of the UserStore interface.
func (s *Store) GetByID(ctx context.Context, id int64) (*authcore.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

// Create inserts a new user row; the generated ID is written back.
func (s *Store) Create(ctx context.Context, user *authcore.User) error {
	row := toRow(user)
	err := s.db.WithContext(ctx).Create(row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return authcore.ErrAccountExists
		}
		return err
	}
	user.ID = row.ID
	return nil
}

// Update overwrites the full user row.
func (s *Store) Update(ctx context.Context, user *authcore.User) error {
	row := toRow(user)
	res := s.db.WithContext(ctx).
		Model(&userRow{}).
		Where("id = ?", row.ID).
		Select("*").
		Omit("id").
		Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// GetBackupCodes returns records for unspent codes.
func (s *Store) GetBackupCodes(ctx context.Context, userID int64) ([]authcore.BackupCodeRecord, error) {
	var rows []backupCodeRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND used = ?", userID, false).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]authcore.BackupCodeRecord, 0, len(rows))
	for _, r := range rows {
		var rec authcore.BackupCodeRecord
		copy(rec.Hash[:], r.Hash)
		out = append(out, rec)
	}
	return out, nil
}

// ReplaceBackupCodes swaps the batch inside a transaction.
func (s *Store) ReplaceBackupCodes(ctx context.Context, userID int64, records []authcore.BackupCodeRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&backupCodeRow{}).Error; err != nil {
			return err
		}
		for _, rec := range records {
			hash := make([]byte, len(rec.Hash))
			copy(hash, rec.Hash[:])
			row := backupCodeRow{UserID: userID, Hash: hash}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ConsumeBackupCode flips the used flag of a matching unspent row. The
// guarded UPDATE makes consumption atomic: a replay matches zero rows.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID int64, hash [32]byte) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&backupCodeRow{}).
		Where("user_id = ? AND hash = ? AND used = ?", userID, hash[:], false).
		Update("used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
