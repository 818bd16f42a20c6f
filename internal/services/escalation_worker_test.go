package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"medbuddy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

type sentEmail struct {
	to   string
	tier models.ReminderType
	info MissedMedicationInfo
}

// fakeSender records dispatched emails instead of talking to a provider
type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeSender) SendMissedMedicationEmail(toEmail string, info MissedMedicationInfo, tier models.ReminderType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: toEmail, tier: tier, info: info})
	return f.err
}

func (f *fakeSender) SendTestEmail(toEmail string) error {
	return f.err
}

func (f *fakeSender) emails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Medication{},
		&models.TrackingRecord{},
		&models.EmailNotification{},
		&models.Alert{},
	))

	return db
}

func newTestWorker(db *gorm.DB, sender Sender, now time.Time) *EscalationWorker {
	return &EscalationWorker{
		db:           db,
		email:        sender,
		interval:     time.Minute,
		initialDelay: time.Millisecond,
		now:          func() time.Time { return now },
	}
}

func seedPatient(t *testing.T, db *gorm.DB, scheduledTimes string) (models.Profile, models.Medication) {
	t.Helper()

	caretaker := "caretaker@example.com"
	profile := models.Profile{
		Email:              "patient@example.com",
		HashedPass:         "x",
		FullName:           "Pat Example",
		Role:               models.RolePatient,
		CaretakerEmail:     &caretaker,
		EmailNotifications: true,
	}
	require.NoError(t, db.Create(&profile).Error)

	medication := models.Medication{
		UserID: profile.ID,
		Name:   "Aspirin",
		Dosage: "100mg",
		Time:   scheduledTimes,
	}
	require.NoError(t, db.Create(&medication).Error)

	return profile, medication
}

// clockAt returns a wall-clock time the given minutes after 08:00
func clockAt(minutesAfterEight int) time.Time {
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(minutesAfterEight) * time.Minute)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCheckerBelowFirstTierThreshold(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	seedPatient(t, db, "08:00")

	w := newTestWorker(db, sender, clockAt(29))
	w.RunOnce(context.Background())

	assert.Empty(t, sender.emails())
	assert.EqualValues(t, 0, countRows(t, db, &models.EmailNotification{}))
	assert.EqualValues(t, 0, countRows(t, db, &models.Alert{}))
}

func TestCheckerFirstReminder(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	profile, medication := seedPatient(t, db, "08:00")

	w := newTestWorker(db, sender, clockAt(45))
	w.RunOnce(context.Background())

	emails := sender.emails()
	require.Len(t, emails, 1)
	assert.Equal(t, "caretaker@example.com", emails[0].to)
	assert.Equal(t, models.ReminderFirst, emails[0].tier)
	assert.Equal(t, 45, emails[0].info.DelayMinutes)
	assert.Equal(t, "Pat Example", emails[0].info.PatientName)

	var notification models.EmailNotification
	require.NoError(t, db.First(&notification).Error)
	assert.Equal(t, models.ReminderFirst, notification.ReminderType)
	assert.Equal(t, medication.ID, notification.MedicationID)
	assert.Equal(t, profile.ID, notification.UserID)
	assert.Equal(t, "08:00", notification.ScheduledTime)
	assert.Equal(t, "2025-03-10", notification.TrackingDate)
	assert.True(t, notification.EmailSent)
	assert.NotNil(t, notification.SentAt)
	assert.Nil(t, notification.ErrorMessage)

	var alert models.Alert
	require.NoError(t, db.First(&alert).Error)
	assert.Equal(t, models.SeverityMedium, alert.Severity)
	assert.Contains(t, alert.Message, "First reminder")
	assert.Contains(t, alert.Message, "Aspirin")
}

func TestCheckerSecondReminderAndIdempotence(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	profile, medication := seedPatient(t, db, "08:00")

	require.NoError(t, db.Create(&models.EmailNotification{
		UserID:        profile.ID,
		MedicationID:  medication.ID,
		TrackingDate:  "2025-03-10",
		ScheduledTime: "08:00",
		ReminderType:  models.ReminderFirst,
		EmailSent:     true,
	}).Error)

	w := newTestWorker(db, sender, clockAt(75))
	w.RunOnce(context.Background())

	emails := sender.emails()
	require.Len(t, emails, 1)
	assert.Equal(t, models.ReminderSecond, emails[0].tier)

	var alert models.Alert
	require.NoError(t, db.First(&alert).Error)
	assert.Equal(t, models.SeverityHigh, alert.Severity)

	// Re-running at the same elapsed time must not send a duplicate
	w.RunOnce(context.Background())
	assert.Len(t, sender.emails(), 1)
	assert.EqualValues(t, 2, countRows(t, db, &models.EmailNotification{}))
}

func TestCheckerSkipsTakenDose(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	profile, medication := seedPatient(t, db, "08:00")

	takenAt := clockAt(10)
	require.NoError(t, db.Create(&models.TrackingRecord{
		MedicationID:  medication.ID,
		UserID:        profile.ID,
		TrackingDate:  "2025-03-10",
		ScheduledTime: "08:00",
		Taken:         true,
		TakenAt:       &takenAt,
	}).Error)

	// Deep into the critical window, still no action
	w := newTestWorker(db, sender, clockAt(130))
	w.RunOnce(context.Background())

	assert.Empty(t, sender.emails())
	assert.EqualValues(t, 0, countRows(t, db, &models.EmailNotification{}))
}

func TestCheckerStrictProgressionNeverSkipsToCritical(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	profile, medication := seedPatient(t, db, "08:00")

	// Ledger stuck at "first": the second-tier window was never observed
	require.NoError(t, db.Create(&models.EmailNotification{
		UserID:        profile.ID,
		MedicationID:  medication.ID,
		TrackingDate:  "2025-03-10",
		ScheduledTime: "08:00",
		ReminderType:  models.ReminderFirst,
		EmailSent:     true,
	}).Error)

	w := newTestWorker(db, sender, clockAt(130))
	w.RunOnce(context.Background())

	assert.Empty(t, sender.emails())
	assert.EqualValues(t, 1, countRows(t, db, &models.EmailNotification{}))
}

func TestCheckerCatchUpSendsAllUnloggedTiers(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	seedPatient(t, db, "08:00")

	w := newTestWorker(db, sender, clockAt(130))
	w.catchUp = true
	w.RunOnce(context.Background())

	emails := sender.emails()
	require.Len(t, emails, 3)
	assert.Equal(t, models.ReminderFirst, emails[0].tier)
	assert.Equal(t, models.ReminderSecond, emails[1].tier)
	assert.Equal(t, models.ReminderEndOfDay, emails[2].tier)

	// A second run finds everything logged and sends nothing
	w.RunOnce(context.Background())
	assert.Len(t, sender.emails(), 3)
	assert.EqualValues(t, 3, countRows(t, db, &models.EmailNotification{}))
}

func TestCheckerCatchUpSkipsAlreadyLoggedTier(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	profile, medication := seedPatient(t, db, "08:00")

	require.NoError(t, db.Create(&models.EmailNotification{
		UserID:        profile.ID,
		MedicationID:  medication.ID,
		TrackingDate:  "2025-03-10",
		ScheduledTime: "08:00",
		ReminderType:  models.ReminderFirst,
		EmailSent:     true,
	}).Error)

	w := newTestWorker(db, sender, clockAt(130))
	w.catchUp = true
	w.RunOnce(context.Background())

	emails := sender.emails()
	require.Len(t, emails, 2)
	assert.Equal(t, models.ReminderSecond, emails[0].tier)
	assert.Equal(t, models.ReminderEndOfDay, emails[1].tier)
}

func TestCheckerRecordsFailedDispatch(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{err: ErrEmailNotConfigured}
	seedPatient(t, db, "08:00")

	w := newTestWorker(db, sender, clockAt(45))
	w.RunOnce(context.Background())

	var notification models.EmailNotification
	require.NoError(t, db.First(&notification).Error)
	assert.False(t, notification.EmailSent)
	assert.Nil(t, notification.SentAt)
	require.NotNil(t, notification.ErrorMessage)
	assert.Contains(t, *notification.ErrorMessage, "not configured")

	// Alert creation is not blocked by the email failure
	assert.EqualValues(t, 1, countRows(t, db, &models.Alert{}))
}

func TestCheckerSkipsUnconfiguredProfiles(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}

	profile := models.Profile{
		Email:              "quiet@example.com",
		HashedPass:         "x",
		FullName:           "Quiet User",
		EmailNotifications: false,
	}
	require.NoError(t, db.Create(&profile).Error)
	require.NoError(t, db.Create(&models.Medication{
		UserID: profile.ID,
		Name:   "Ibuprofen",
		Dosage: "200mg",
		Time:   "08:00",
	}).Error)

	w := newTestWorker(db, sender, clockAt(45))
	w.RunOnce(context.Background())

	assert.Empty(t, sender.emails())
}

func TestCheckerContinuesPastBadSlot(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	// First slot is unparseable, second is 45 minutes late
	seedPatient(t, db, "not-a-time, 08:00")

	w := newTestWorker(db, sender, clockAt(45))
	w.RunOnce(context.Background())

	emails := sender.emails()
	require.Len(t, emails, 1)
	assert.Equal(t, models.ReminderFirst, emails[0].tier)
}

func TestCheckerEvaluatesEverySlot(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	// 07:00 is 105 minutes late (no prior ledger: no action), 08:00 is 45
	seedPatient(t, db, "07:00, 08:00")

	w := newTestWorker(db, sender, clockAt(45))
	w.RunOnce(context.Background())

	emails := sender.emails()
	require.Len(t, emails, 1)
	assert.Equal(t, "8:00 AM", emails[0].info.ScheduledTime)
}

func TestWorkerStartStop(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	seedPatient(t, db, "08:00")

	w := newTestWorker(db, sender, clockAt(45))
	w.interval = 5 * time.Millisecond

	w.Start()
	w.Start() // second Start is a no-op
	time.Sleep(30 * time.Millisecond)
	w.Stop()
	w.Stop() // second Stop is a no-op

	// The loop ran at least once and tier dedup held
	assert.NotEmpty(t, sender.emails())
	assert.EqualValues(t, 1, countRows(t, db, &models.EmailNotification{}))
}
