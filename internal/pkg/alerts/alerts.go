package alerts

import (
	"fmt"
	"log"
	"strings"

	"github.com/rankpulse/rankpulse/internal/pkg/env"
	"github.com/rankpulse/rankpulse/internal/pkg/mail"
)

const (
	SeverityHigh = "HIGH"
	SeverityInfo = "INFO"
)

// Notifier delivers operator alerts. The billing pipeline takes one of these
// so tests can swap the SMTP-backed default for a recorder.
type Notifier interface {
	Notify(severity, subject, message string) error
}

type mailNotifier struct{}

// NewMailNotifier returns the default notifier: log line plus an email to
// ALERT_EMAIL when configured.
func NewMailNotifier() Notifier {
	return mailNotifier{}
}

func (mailNotifier) Notify(severity, subject, message string) error {
	log.Printf("[ALERT:%s] %s: %s", severity, subject, message)

	to := strings.TrimSpace(env.GetEnv("ALERT_EMAIL", ""))
	if to == "" {
		// Alerting still works without SMTP; the log line is the floor.
		return nil
	}
	body := fmt.Sprintf("<p><strong>%s</strong></p><p>%s</p>", subject, message)
	return mail.SendMail(to, fmt.Sprintf("[%s] %s", severity, subject), body)
}
