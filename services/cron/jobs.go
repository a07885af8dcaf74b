package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/utils/auth"
)

// SweepSessionTokens deletes session token records whose deadline has
// passed. Runs every 12 hours independent of request traffic.
func (m *CronManager) SweepSessionTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "sweep_session_tokens"

	ledger := auth.NewTokenLedger(m.db)
	removed, err := ledger.Sweep(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to sweep session tokens: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("removed %d expired session tokens", removed))
}

// SweepResetTokens deletes password reset tokens whose deadline has passed
func (m *CronManager) SweepResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "sweep_reset_tokens"

	res := m.db.WithContext(ctx).
		Where("deadline < ?", time.Now()).
		Delete(&model.PasswordResetToken{})
	if res.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to sweep reset tokens: %w", res.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("removed %d expired reset tokens", res.RowsAffected))
}

// CleanupCronLogs trims job logs older than 30 days
func (m *CronManager) CleanupCronLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_cron_logs"

	cutoff := time.Now().AddDate(0, 0, -30)
	res := m.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&model.CronJobLog{})
	if res.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to cleanup cron logs: %w", res.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("removed %d old log rows", res.RowsAffected))
}
