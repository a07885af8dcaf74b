package cron

import (
	"testing"
	"time"

	"github.com/enigmarium/backend/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestManager(t *testing.T) (*CronManager, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SessionToken{}, &model.PasswordResetToken{}, &model.CronJobLog{}))
	return NewCronManager(db), db
}

func TestSweepSessionTokens(t *testing.T) {
	m, db := newTestManager(t)

	require.NoError(t, db.Create(&model.SessionToken{
		UserID: 1, Token: "expired", Deadline: time.Now().Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&model.SessionToken{
		UserID: 1, Token: "alive", Deadline: time.Now().Add(time.Hour),
	}).Error)

	m.logJobStart("sweep_session_tokens")
	m.SweepSessionTokens()

	var tokens []model.SessionToken
	require.NoError(t, db.Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.Equal(t, "alive", tokens[0].Token)

	var jobLog model.CronJobLog
	require.NoError(t, db.Where("job_name = ?", "sweep_session_tokens").First(&jobLog).Error)
	assert.Equal(t, "completed", jobLog.Status)
	assert.NotNil(t, jobLog.CompletedAt)
}

func TestSweepResetTokens(t *testing.T) {
	m, db := newTestManager(t)

	require.NoError(t, db.Create(&model.PasswordResetToken{
		UserID: 1, Token: "expired", Deadline: time.Now().Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&model.PasswordResetToken{
		UserID: 2, Token: "alive", Deadline: time.Now().Add(time.Hour),
	}).Error)

	m.logJobStart("sweep_reset_tokens")
	m.SweepResetTokens()

	var tokens []model.PasswordResetToken
	require.NoError(t, db.Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.Equal(t, "alive", tokens[0].Token)
}

func TestCleanupCronLogs(t *testing.T) {
	m, db := newTestManager(t)

	old := model.CronJobLog{JobName: "old", Status: "completed", StartedAt: time.Now().AddDate(0, 0, -40)}
	require.NoError(t, db.Create(&old).Error)
	// Backdate created_at past the 30 day cutoff
	require.NoError(t, db.Model(&old).Update("created_at", time.Now().AddDate(0, 0, -40)).Error)

	recent := model.CronJobLog{JobName: "recent", Status: "completed", StartedAt: time.Now()}
	require.NoError(t, db.Create(&recent).Error)

	m.logJobStart("cleanup_cron_logs")
	m.CleanupCronLogs()

	var names []string
	require.NoError(t, db.Model(&model.CronJobLog{}).Pluck("job_name", &names).Error)
	assert.NotContains(t, names, "old")
	assert.Contains(t, names, "recent")
}

func TestManagerStartAndStop(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Start())
	m.Stop()
}
