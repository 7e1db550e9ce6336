package jobs

import (
	"context"
	"crm_advocacia_go/config"
	"crm_advocacia_go/models"
	"crm_advocacia_go/services"
	"crm_advocacia_go/services/nlp"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeadlineAlerts(t *testing.T) {
	db := setupCollectorTestDB(t)
	vault, err := services.NewCredentialVault("deadline-test-secret")
	require.NoError(t, err)

	creds := services.NewCredentialService(db, vault)
	store := services.NewIntimacaoService(db)
	notifications := services.NewNotificationService(db)
	cfg := &config.Config{
		AppURL:         "http://crm.local",
		EmailTestMode:  true,
		Timezone:       "UTC",
		DeadlineWindow: 5,
	}

	withEmail, err := creds.Configure(uuid.New().String(), services.CredentialInput{
		OABNumber: "100CE", PortalUsername: "u1", PortalPassword: "p1", Name: "Maria", Email: "maria@example.com",
	})
	require.NoError(t, err)
	withoutEmail, err := creds.Configure(uuid.New().String(), services.CredentialInput{
		OABNumber: "200CE", PortalUsername: "u2", PortalPassword: "p2",
	})
	require.NoError(t, err)
	quiet, err := creds.Configure(uuid.New().String(), services.CredentialInput{
		OABNumber: "300CE", PortalUsername: "u3", PortalPassword: "p3", Email: "quiet@example.com",
	})
	require.NoError(t, err)

	create := func(practitionerID, number, published string, days int) {
		raw := card(number, "Teor")
		raw.AvailabilityDate = published
		row, _, err := store.Create(practitionerID, raw, models.IntimacaoStatusPending)
		require.NoError(t, err)
		require.NoError(t, store.ApplyNLPResult(row.ID, &nlp.Result{
			Summary:   "Resumo",
			Deadlines: []nlp.Deadline{{Days: days}},
		}))
	}
	create(withEmail.ID, "0000001-00.2024.8.06.0001", "15/03/2024", 8)
	create(withEmail.ID, "0000002-00.2024.8.06.0001", "18/03/2024", 5)
	create(withoutEmail.ID, "0000003-00.2024.8.06.0001", "15/03/2024", 8)
	create(quiet.ID, "0000004-00.2024.8.06.0001", "15/03/2024", 60)

	var sent []*services.Email
	alerter := NewDeadlineAlerter(creds, store, notifications, cfg)
	alerter.Now = func() time.Time { return time.Date(2024, 3, 20, 7, 0, 0, 0, time.UTC) }
	alerter.SendEmail = func(_ *config.Config, email *services.Email) error {
		sent = append(sent, email)
		return nil
	}

	t.Run("Check lists without notifying", func(t *testing.T) {
		alerts, err := alerter.Check(withEmail.ID)
		require.NoError(t, err)
		assert.Len(t, alerts, 2)

		alerts, err = alerter.Check(quiet.ID)
		require.NoError(t, err)
		assert.Empty(t, alerts)

		count, _ := notifications.GetNotificationCount(withEmail.ID)
		assert.Equal(t, int64(0), count)
	})

	t.Run("First run notifies and emails", func(t *testing.T) {
		summary, err := alerter.SendDeadlineAlerts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DeadlineAlertSummary{Practitioners: 2, Notifications: 3, Emails: 1}, summary)

		require.Len(t, sent, 1)
		assert.Equal(t, []string{"maria@example.com"}, sent[0].To)
		assert.Equal(t, "2 prazos se encerrando", sent[0].Subject)

		count, _ := notifications.GetNotificationCount(withEmail.ID)
		assert.Equal(t, int64(2), count)
		count, _ = notifications.GetNotificationCount(withoutEmail.ID)
		assert.Equal(t, int64(1), count)
		count, _ = notifications.GetNotificationCount(quiet.ID)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Second run on the same day is silent", func(t *testing.T) {
		summary, err := alerter.SendDeadlineAlerts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DeadlineAlertSummary{Practitioners: 2}, summary)
		assert.Len(t, sent, 1)
	})

	t.Run("Email failure is not fatal", func(t *testing.T) {
		alerter.Now = func() time.Time { return time.Date(2024, 3, 21, 7, 0, 0, 0, time.UTC) }
		alerter.SendEmail = func(*config.Config, *services.Email) error { return errors.New("resend down") }

		summary, err := alerter.SendDeadlineAlerts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Notifications)
		assert.Equal(t, 0, summary.Emails)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := alerter.SendDeadlineAlerts(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewDeadlineAlerterWindow(t *testing.T) {
	a := NewDeadlineAlerter(nil, nil, nil, &config.Config{Timezone: "UTC"})
	assert.Equal(t, DefaultDeadlineWindow, a.Window)

	a = NewDeadlineAlerter(nil, nil, nil, &config.Config{Timezone: "UTC", DeadlineWindow: 2})
	assert.Equal(t, 48*time.Hour, a.Window)
}
