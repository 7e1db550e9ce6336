package jobs

import (
	"context"
	"crm_advocacia_go/config"
	"crm_advocacia_go/models"
	"crm_advocacia_go/services"
	"log"
	"time"
)

// DefaultDeadlineWindow is how far ahead a deadline counts as urgent
const DefaultDeadlineWindow = 5 * 24 * time.Hour

// DeadlineAlerter turns urgent deadlines into in-app notifications and an email digest
type DeadlineAlerter struct {
	Credentials   *services.CredentialService
	Intimacoes    *services.IntimacaoService
	Notifications *services.NotificationService
	Config        *config.Config
	Window        time.Duration
	Location      *time.Location

	Now       func() time.Time
	SendEmail func(cfg *config.Config, email *services.Email) error
}

func NewDeadlineAlerter(
	credentials *services.CredentialService,
	intimacoes *services.IntimacaoService,
	notifications *services.NotificationService,
	cfg *config.Config,
) *DeadlineAlerter {
	window := DefaultDeadlineWindow
	if cfg.DeadlineWindow > 0 {
		window = time.Duration(cfg.DeadlineWindow) * 24 * time.Hour
	}
	return &DeadlineAlerter{
		Credentials:   credentials,
		Intimacoes:    intimacoes,
		Notifications: notifications,
		Config:        cfg,
		Window:        window,
		Location:      cfg.Location(),
		Now:           time.Now,
		SendEmail:     services.SendEmail,
	}
}

// DeadlineAlertSummary counts what one run produced
type DeadlineAlertSummary struct {
	Practitioners int
	Notifications int
	Emails        int
}

// Check lists one practitioner's urgent deadlines without notifying anyone
func (a *DeadlineAlerter) Check(practitionerID string) ([]services.DeadlineAlert, error) {
	return a.Intimacoes.UrgentDeadlines(practitionerID, a.Now().In(a.Location), a.Window)
}

// SendDeadlineAlerts checks every active practitioner. Alerts already raised today
// are not repeated, so the job can run more than once a day.
func (a *DeadlineAlerter) SendDeadlineAlerts(ctx context.Context) (DeadlineAlertSummary, error) {
	log.Println("[DEADLINE] Starting deadline alert job...")

	var summary DeadlineAlertSummary
	practitioners, err := a.Credentials.ListActive()
	if err != nil {
		log.Printf("[DEADLINE] Error fetching practitioners: %v", err)
		return summary, err
	}

	now := a.Now().In(a.Location)
	for i := range practitioners {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p := &practitioners[i]

		alerts, err := a.Intimacoes.UrgentDeadlines(p.ID, now, a.Window)
		if err != nil {
			log.Printf("[DEADLINE] Error checking deadlines for %s: %v", p.ID, err)
			continue
		}
		if len(alerts) == 0 {
			continue
		}
		summary.Practitioners++

		var fresh []services.DeadlineAlert
		for _, alert := range alerts {
			created, err := a.Notifications.NotifyDeadline(p.ID, alert, now)
			if err != nil {
				log.Printf("[DEADLINE] Failed to notify %s about %s: %v", p.ID, alert.ProcessNumber, err)
				continue
			}
			if created {
				fresh = append(fresh, alert)
			}
		}
		summary.Notifications += len(fresh)

		if len(fresh) > 0 && a.emailDigest(p, fresh) {
			summary.Emails++
		}
	}

	log.Printf("[DEADLINE] Job completed: %d practitioners, %d notifications, %d emails",
		summary.Practitioners, summary.Notifications, summary.Emails)
	return summary, nil
}

func (a *DeadlineAlerter) emailDigest(p *models.Practitioner, alerts []services.DeadlineAlert) bool {
	if p.Email == "" {
		return false
	}
	email := services.BuildDeadlineDigestEmail(p.Email, services.DeadlineDigestEmailData{
		PractitionerName: p.Name,
		Alerts:           alerts,
		AppURL:           a.Config.AppURL,
	})
	if err := a.SendEmail(a.Config, email); err != nil {
		log.Printf("[DEADLINE] Failed to send digest to %s: %v", p.ID, err)
		return false
	}
	return true
}
