package services

import (
	"crm_advocacia_go/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService(t *testing.T) {
	db := setupIntimacaoTestDB(t)
	svc := NewNotificationService(db)

	practitionerID := "adv-1"

	t.Run("Create and Get Unread", func(t *testing.T) {
		err := svc.CreateNotification(&models.Notification{
			PractitionerID: practitionerID,
			Type:           models.NotificationTypeSystem,
			Title:          "Test",
			Message:        "Message",
		})
		assert.NoError(t, err)

		notifications, err := svc.GetUnreadNotifications(practitionerID, 0)
		assert.NoError(t, err)
		assert.Len(t, notifications, 1)
		assert.Equal(t, "Test", notifications[0].Title)

		count, _ := svc.GetNotificationCount(practitionerID)
		assert.Equal(t, int64(1), count)

		other, _ := svc.GetNotificationCount("adv-2")
		assert.Equal(t, int64(0), other)
	})

	t.Run("Mark as Read", func(t *testing.T) {
		var n models.Notification
		db.First(&n)

		// Another practitioner cannot mark it
		assert.NoError(t, svc.MarkAsRead(n.ID, "adv-2"))
		count, _ := svc.GetNotificationCount(practitionerID)
		assert.Equal(t, int64(1), count)

		err := svc.MarkAsRead(n.ID, practitionerID)
		assert.NoError(t, err)

		count, _ = svc.GetNotificationCount(practitionerID)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Mark All as Read", func(t *testing.T) {
		svc.CreateNotification(&models.Notification{PractitionerID: practitionerID, Type: models.NotificationTypeSystem, Title: "a"})
		svc.CreateNotification(&models.Notification{PractitionerID: practitionerID, Type: models.NotificationTypeSystem, Title: "b"})

		count, _ := svc.GetNotificationCount(practitionerID)
		assert.Equal(t, int64(2), count)

		err := svc.MarkAllAsRead(practitionerID)
		assert.NoError(t, err)

		count, _ = svc.GetNotificationCount(practitionerID)
		assert.Equal(t, int64(0), count)
	})
}

func TestNotifyNewIntimacoes(t *testing.T) {
	db := setupIntimacaoTestDB(t)
	svc := NewNotificationService(db)

	require.NoError(t, svc.NotifyNewIntimacoes("adv-1", 0))
	count, _ := svc.GetNotificationCount("adv-1")
	assert.Equal(t, int64(0), count)

	require.NoError(t, svc.NotifyNewIntimacoes("adv-1", 1))
	require.NoError(t, svc.NotifyNewIntimacoes("adv-1", 4))

	notifications, err := svc.GetUnreadNotifications("adv-1", 10)
	require.NoError(t, err)
	require.Len(t, notifications, 2)

	var messages []string
	for _, n := range notifications {
		assert.Equal(t, models.NotificationTypeNewIntimacao, n.Type)
		messages = append(messages, n.Message)
	}
	assert.ElementsMatch(t, []string{"1 nova intimação foi coletada.", "4 novas intimações foram coletadas."}, messages)
}

func TestNotifyDeadline(t *testing.T) {
	db := setupIntimacaoTestDB(t)
	svc := NewNotificationService(db)

	alert := DeadlineAlert{
		IntimacaoID:   "00000000-0000-0000-0000-000000000001",
		ProcessNumber: "0001234-56.2024.8.06.0001",
		Days:          15,
		Message:       "Prazo de 15 dias se encerrando para o processo 0001234-56.2024.8.06.0001.",
	}
	now := time.Now()

	created, err := svc.NotifyDeadline("adv-1", alert, now)
	require.NoError(t, err)
	assert.True(t, created)

	// Same alert on the same day is not repeated
	created, err = svc.NotifyDeadline("adv-1", alert, now)
	require.NoError(t, err)
	assert.False(t, created)

	// Next day it is
	created, err = svc.NotifyDeadline("adv-1", alert, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, created)

	var stored []models.Notification
	db.Where("type = ?", models.NotificationTypeDeadlineAlert).Find(&stored)
	require.Len(t, stored, 2)
	assert.Equal(t, alert.IntimacaoID, *stored[0].IntimacaoID)
	assert.Equal(t, "/intimacoes/"+alert.IntimacaoID, stored[0].LinkURL)
}
