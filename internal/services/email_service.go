package services

import (
	"errors"
	"fmt"
	"log"
	"os"

	"medbuddy/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrEmailNotConfigured is returned when no email provider API key is set.
// Dispatch degrades to log-only and the ledger records the failed attempt.
var ErrEmailNotConfigured = errors.New("email delivery is not configured")

// MissedMedicationInfo carries everything the caretaker email template needs
type MissedMedicationInfo struct {
	PatientName    string
	MedicationName string
	Dosage         string
	ScheduledTime  string
	MissedTime     string
	DelayMinutes   int
}

// Sender dispatches caretaker emails. The escalation worker depends on this
// interface so tests can record sends without a provider.
type Sender interface {
	SendMissedMedicationEmail(toEmail string, info MissedMedicationInfo, tier models.ReminderType) error
	SendTestEmail(toEmail string) error
}

type EmailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	enabled   bool
}

func NewEmailService() *EmailService {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	fromEmail := os.Getenv("SENDGRID_NOTIFICATIONS_FROM_EMAIL")
	fromName := os.Getenv("SENDGRID_FROM_NAME")

	if fromEmail == "" {
		fromEmail = "notifications@medbuddy.app"
	}
	if fromName == "" {
		fromName = "MedBuddy Care System"
	}
	if apiKey == "" {
		log.Println("SENDGRID_API_KEY not set, caretaker emails will be logged only")
	}

	client := sendgrid.NewSendClient(apiKey)

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   apiKey != "",
	}
}

// tierStyle maps an escalation tier to its subject label and accent color
func tierStyle(tier models.ReminderType) (label, color string) {
	switch tier {
	case models.ReminderSecond:
		return "Urgent Reminder", "#f59e0b"
	case models.ReminderEndOfDay:
		return "End of Day Alert - Critical", "#ef4444"
	default:
		return "First Reminder", "#3b82f6"
	}
}

// SendMissedMedicationEmail notifies the caretaker that a dose is late
func (s *EmailService) SendMissedMedicationEmail(toEmail string, info MissedMedicationInfo, tier models.ReminderType) error {
	label, color := tierStyle(tier)

	subject := fmt.Sprintf("%s missed %s - %s", info.PatientName, info.MedicationName, label)

	plainContent := fmt.Sprintf(
		"Dear Caretaker, %s has missed their medication %s %s scheduled for %s. It is now %d minutes late (checked at %s). Please check on them and mark the dose as taken in the app.",
		info.PatientName, info.MedicationName, info.Dosage, info.ScheduledTime, info.DelayMinutes, info.MissedTime)

	htmlContent := fmt.Sprintf(`
		<div style="max-width:600px;margin:20px auto;font-family:Arial,sans-serif;color:#1f2937;">
			<div style="background:%s;color:white;padding:24px;text-align:center;border-radius:8px 8px 0 0;">
				<h1 style="margin:0;">Medication Alert</h1>
				<p style="margin:8px 0 0;">%s</p>
			</div>
			<div style="border:1px solid #e5e7eb;border-top:none;padding:24px;border-radius:0 0 8px 8px;">
				<p>Dear Caretaker,</p>
				<p><strong>%s</strong> has missed their medication scheduled for <strong>%s</strong>.
				This medication is now <strong>%d minutes late</strong>.</p>
				<table style="width:100%%;border-collapse:collapse;margin:16px 0;">
					<tr><td style="padding:8px;border-bottom:1px solid #e5e7eb;font-weight:bold;">Medication</td><td style="padding:8px;border-bottom:1px solid #e5e7eb;">%s %s</td></tr>
					<tr><td style="padding:8px;border-bottom:1px solid #e5e7eb;font-weight:bold;">Scheduled Time</td><td style="padding:8px;border-bottom:1px solid #e5e7eb;">%s</td></tr>
					<tr><td style="padding:8px;border-bottom:1px solid #e5e7eb;font-weight:bold;">Missed Time</td><td style="padding:8px;border-bottom:1px solid #e5e7eb;">%s</td></tr>
					<tr><td style="padding:8px;font-weight:bold;">Delay</td><td style="padding:8px;color:%s;font-weight:bold;">%d minutes</td></tr>
				</table>
				<p style="font-size:14px;color:#4b5563;">Check on the patient, ensure they take the missed medication, and mark it as taken in the app.</p>
			</div>
			<p style="text-align:center;font-size:12px;color:#6b7280;">This is an automated message from MedBuddy Care System.</p>
		</div>`,
		color, label,
		info.PatientName, info.ScheduledTime, info.DelayMinutes,
		info.MedicationName, info.Dosage,
		info.ScheduledTime,
		info.MissedTime,
		color, info.DelayMinutes)

	return s.send(toEmail, subject, plainContent, htmlContent)
}

// SendTestEmail verifies the caretaker email configuration end to end
func (s *EmailService) SendTestEmail(toEmail string) error {
	subject := "MedBuddy Test Notification"
	plainContent := "Your MedBuddy email notifications are working correctly. You will now receive alerts when medications are missed."
	htmlContent := "<h2>Email Test Successful!</h2><p>Your MedBuddy email notifications are working correctly.</p><p>You will now receive alerts when medications are missed.</p>"

	return s.send(toEmail, subject, plainContent, htmlContent)
}

func (s *EmailService) send(toEmail, subject, plainContent, htmlContent string) error {
	if !s.enabled {
		log.Printf("Email delivery disabled, skipping %q to %s", subject, toEmail)
		return ErrEmailNotConfigured
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainContent, htmlContent)

	response, err := s.client.Send(message)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email to %s: %d", toEmail, response.StatusCode)
	}

	return nil
}
