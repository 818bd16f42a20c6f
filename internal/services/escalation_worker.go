package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"medbuddy/internal/models"
	"medbuddy/internal/realtime"

	"gorm.io/gorm"
)

// EscalationWorker scans every scheduled dose on a fixed interval and sends
// tiered caretaker emails for doses that are late and not marked taken.
// Tiers: "first" at 30 minutes, "second" at 60, "end_of_day" at 120+. The
// email_notification ledger deduplicates tiers so each is sent at most once
// per dose.
type EscalationWorker struct {
	db       *gorm.DB
	email    Sender
	bus      realtime.Bus
	interval time.Duration

	// catchUp replaces the strict previous-tier precondition with a pure
	// function of lateness: every tier due and not yet logged is sent in
	// order. Default off: a dose that skipped a tier window stays skipped.
	catchUp bool

	// initialDelay is how long after Start the first check runs
	initialDelay time.Duration

	now func() time.Time

	inFlight sync.Mutex // guards against overlapping runs

	stateMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

func NewEscalationWorker(db *gorm.DB, email Sender, bus realtime.Bus) *EscalationWorker {
	interval := time.Minute * 5 // Check every 5 minutes
	if v := os.Getenv("ESCALATION_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		} else {
			log.Printf("Invalid ESCALATION_CHECK_INTERVAL %q, using %v", v, interval)
		}
	}

	return &EscalationWorker{
		db:           db,
		email:        email,
		bus:          bus,
		interval:     interval,
		catchUp:      os.Getenv("ESCALATION_CATCH_UP") == "true",
		initialDelay: time.Second * 5,
		now:          time.Now,
	}
}

// Start launches the polling loop. Calling Start on a running worker is a no-op.
func (w *EscalationWorker) Start() {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.stop != nil {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.stop, w.done)
	log.Printf("Escalation worker started (interval %v)", w.interval)
}

// Stop terminates the polling loop and waits for it to exit
func (w *EscalationWorker) Stop() {
	w.stateMu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.stateMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	log.Println("Escalation worker stopped")
}

func (w *EscalationWorker) run(stop, done chan struct{}) {
	defer close(done)

	// Run an initial check shortly after startup
	select {
	case <-time.After(w.initialDelay):
		w.RunOnce(context.Background())
	case <-stop:
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// escalationRow is one medication joined with its owner's caretaker contact
type escalationRow struct {
	ID             string
	UserID         string
	Name           string
	Dosage         string
	Time           string
	FullName       string
	CaretakerEmail string
}

// RunOnce performs a single check over all medications. A run already in
// progress makes this call return immediately rather than double-sending.
func (w *EscalationWorker) RunOnce(ctx context.Context) {
	if !w.inFlight.TryLock() {
		log.Println("Escalation check already running, skipping this tick")
		return
	}
	defer w.inFlight.Unlock()

	now := w.now()
	today := now.Format(models.DateLayout)
	currentMinutes := now.Hour()*60 + now.Minute()

	// All medications whose owner has notifications enabled and a caretaker
	// email configured, in creation order so runs are deterministic.
	var meds []escalationRow
	err := w.db.WithContext(ctx).Table("medication").
		Select("medication.id, medication.user_id, medication.name, medication.dosage, medication.time, profile.full_name, profile.caretaker_email").
		Joins("JOIN profile ON profile.id = medication.user_id").
		Where("profile.email_notifications = ? AND profile.caretaker_email IS NOT NULL AND profile.caretaker_email <> ''", true).
		Order("medication.created_at").
		Scan(&meds).Error
	if err != nil {
		log.Printf("Escalation check failed to load medications: %v", err)
		return
	}

	for _, med := range meds {
		for _, slot := range models.SplitTimes(med.Time) {
			if err := w.evaluateSlot(ctx, med, slot, today, currentMinutes, now); err != nil {
				log.Printf("Escalation check failed for medication %s at %s: %v", med.ID, slot, err)
			}
		}
	}
}

// evaluateSlot applies the tier rules to one (medication, scheduled-time)
// dose. The whole read-check-send-record sequence runs in one transaction so
// concurrent runs cannot both observe the same unlogged tier.
func (w *EscalationWorker) evaluateSlot(ctx context.Context, med escalationRow, slot, today string, currentMinutes int, now time.Time) error {
	scheduled, err := models.ParseClock(slot)
	if err != nil {
		return err
	}

	minutesLate := currentMinutes - scheduled
	if minutesLate <= 0 {
		// Not yet due
		return nil
	}

	var events []realtime.Event

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A taken dose needs no escalation, no matter how late it was
		var tracking models.TrackingRecord
		err := tx.Where("medication_id = ? AND tracking_date = ? AND scheduled_time = ?",
			med.ID, today, slot).First(&tracking).Error
		if err == nil && tracking.Taken {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		info := MissedMedicationInfo{
			PatientName:    med.FullName,
			MedicationName: med.Name,
			Dosage:         med.Dosage,
			ScheduledTime:  models.FormatTime(slot),
			MissedTime:     now.Format("3:04:05 PM"),
			DelayMinutes:   minutesLate,
		}

		if w.catchUp {
			events, err = w.escalateCatchUp(tx, med, slot, today, minutesLate, info)
			return err
		}

		// Most recent ledger entry for this dose decides tier progression
		var last models.EmailNotification
		hasLedger := true
		err = tx.Where("medication_id = ? AND tracking_date = ? AND scheduled_time = ?",
			med.ID, today, slot).Order("created_at DESC").First(&last).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			hasLedger = false
		} else if err != nil {
			return err
		}

		var tier models.ReminderType
		switch {
		case minutesLate >= 30 && minutesLate < 60 && !hasLedger:
			tier = models.ReminderFirst
		case minutesLate >= 60 && minutesLate < 120 && hasLedger && last.ReminderType == models.ReminderFirst:
			tier = models.ReminderSecond
		case minutesLate >= 120 && hasLedger && last.ReminderType == models.ReminderSecond:
			tier = models.ReminderEndOfDay
		default:
			// Tier progression not satisfied, nothing to do this run
			return nil
		}

		event, err := w.dispatch(tx, med, slot, today, info, tier)
		if err != nil {
			return err
		}
		events = append(events, event)
		return nil
	})
	if err != nil {
		return err
	}

	if w.bus != nil {
		for _, event := range events {
			w.bus.Publish(ctx, event)
		}
	}
	return nil
}

// escalateCatchUp sends every tier the dose's lateness calls for that is not
// yet in the ledger, lowest tier first.
func (w *EscalationWorker) escalateCatchUp(tx *gorm.DB, med escalationRow, slot, today string, minutesLate int, info MissedMedicationInfo) ([]realtime.Event, error) {
	due := tiersFor(minutesLate)
	if len(due) == 0 {
		return nil, nil
	}

	var logged []models.EmailNotification
	if err := tx.Where("medication_id = ? AND tracking_date = ? AND scheduled_time = ?",
		med.ID, today, slot).Find(&logged).Error; err != nil {
		return nil, err
	}
	sent := make(map[models.ReminderType]bool, len(logged))
	for _, n := range logged {
		sent[n.ReminderType] = true
	}

	var events []realtime.Event
	for _, tier := range due {
		if sent[tier] {
			continue
		}
		event, err := w.dispatch(tx, med, slot, today, info, tier)
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// tiersFor maps lateness to the ordered tiers it warrants
func tiersFor(minutesLate int) []models.ReminderType {
	switch {
	case minutesLate >= 120:
		return []models.ReminderType{models.ReminderFirst, models.ReminderSecond, models.ReminderEndOfDay}
	case minutesLate >= 60:
		return []models.ReminderType{models.ReminderFirst, models.ReminderSecond}
	case minutesLate >= 30:
		return []models.ReminderType{models.ReminderFirst}
	}
	return nil
}

// dispatch sends the tier email, records the attempt in the ledger with the
// observed outcome, and creates the dashboard alert. Email failure does not
// block the ledger row or the alert.
func (w *EscalationWorker) dispatch(tx *gorm.DB, med escalationRow, slot, today string, info MissedMedicationInfo, tier models.ReminderType) (realtime.Event, error) {
	log.Printf("Sending %s reminder for %s (%d mins late)", tier, med.Name, info.DelayMinutes)

	sendErr := w.email.SendMissedMedicationEmail(med.CaretakerEmail, info, tier)
	if sendErr != nil {
		log.Printf("Failed to send %s reminder for %s: %v", tier, med.Name, sendErr)
	}

	notification := models.EmailNotification{
		UserID:        med.UserID,
		MedicationID:  med.ID,
		TrackingDate:  today,
		ScheduledTime: slot,
		ReminderType:  tier,
		EmailSent:     sendErr == nil,
	}
	if sendErr == nil {
		at := w.now()
		notification.SentAt = &at
	} else {
		msg := sendErr.Error()
		notification.ErrorMessage = &msg
	}
	if err := tx.Create(&notification).Error; err != nil {
		return realtime.Event{}, err
	}

	alert := models.Alert{
		UserID:   med.UserID,
		Message:  alertMessage(tier, med.Name, slot),
		Severity: alertSeverity(tier),
	}
	if err := tx.Create(&alert).Error; err != nil {
		return realtime.Event{}, err
	}

	return realtime.Event{
		Table:   models.Alert{}.TableName(),
		Action:  realtime.ActionInsert,
		UserID:  med.UserID,
		Payload: alert,
	}, nil
}

func alertMessage(tier models.ReminderType, name, slot string) string {
	formatted := models.FormatTime(slot)
	switch tier {
	case models.ReminderSecond:
		return fmt.Sprintf("Urgent: %s at %s is 1 hour late!", name, formatted)
	case models.ReminderEndOfDay:
		return fmt.Sprintf("CRITICAL: %s at %s is over 2 hours late!", name, formatted)
	default:
		return fmt.Sprintf("First reminder: %s at %s is 30 minutes late", name, formatted)
	}
}

func alertSeverity(tier models.ReminderType) models.AlertSeverity {
	if tier == models.ReminderFirst {
		return models.SeverityMedium
	}
	return models.SeverityHigh
}
