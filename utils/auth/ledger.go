package auth

import (
	"context"
	"time"

	"github.com/enigmarium/backend/model"
	"gorm.io/gorm"
)

// TokenLedger is the durable record of issued session credentials. It answers
// "is this token still alive" during validation and supports bulk revocation.
type TokenLedger struct {
	db *gorm.DB
}

// NewTokenLedger creates a new ledger over the given database
func NewTokenLedger(db *gorm.DB) *TokenLedger {
	return &TokenLedger{db: db}
}

// Record persists a shadow row for a freshly issued credential
func (l *TokenLedger) Record(ctx context.Context, userID uint, token string, deadline time.Time) error {
	entry := model.SessionToken{
		UserID:   userID,
		Token:    token,
		Deadline: deadline,
	}

	return l.db.WithContext(ctx).Create(&entry).Error
}

// IsValid reports whether the raw token is still alive. Among all rows for
// the same raw string the one with the most recent deadline wins; duplicates
// can exist after concurrent re-issuance. A userID of 0 skips the ownership
// check.
func (l *TokenLedger) IsValid(ctx context.Context, token string, userID uint) (bool, error) {
	var entry model.SessionToken
	err := l.db.WithContext(ctx).
		Where("token = ? AND deadline > ?", token, time.Now()).
		Order("deadline DESC").
		First(&entry).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}

	if entry.IsInvalid {
		return false, nil
	}
	if userID != 0 && entry.UserID != userID {
		return false, nil
	}

	return true, nil
}

// InvalidateAll marks every row matching the raw token as invalid
func (l *TokenLedger) InvalidateAll(ctx context.Context, token string) error {
	return l.db.WithContext(ctx).
		Model(&model.SessionToken{}).
		Where("token = ?", token).
		Update("is_invalid", true).
		Error
}

// InvalidateAllForUser marks every one of the user's session tokens invalid.
// Used on credential rotation (password change/reset) and admin revocation.
func (l *TokenLedger) InvalidateAllForUser(ctx context.Context, userID uint) error {
	return l.db.WithContext(ctx).
		Model(&model.SessionToken{}).
		Where("user_id = ?", userID).
		Update("is_invalid", true).
		Error
}

// Sweep deletes every row whose deadline has passed. Expired rows are
// functionally dead before removal, so the sweep never races a valid lookup.
func (l *TokenLedger) Sweep(ctx context.Context) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("deadline < ?", time.Now()).
		Delete(&model.SessionToken{})
	return res.RowsAffected, res.Error
}

// LiveCount returns the number of live tokens for monitoring
func (l *TokenLedger) LiveCount(ctx context.Context) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&model.SessionToken{}).
		Where("is_invalid = ? AND deadline > ?", false, time.Now()).
		Count(&count).
		Error
	return count, err
}

// LiveCountForUser returns the number of live tokens a single user holds
func (l *TokenLedger) LiveCountForUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&model.SessionToken{}).
		Where("user_id = ? AND is_invalid = ? AND deadline > ?", userID, false, time.Now()).
		Count(&count).
		Error
	return count, err
}
