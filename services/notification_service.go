package services

import (
	"crm_advocacia_go/models"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (s *NotificationService) GetUnreadNotifications(practitionerID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 5
	}
	var notifications []models.Notification
	err := s.DB.Where("practitioner_id = ? AND read_at IS NULL", practitionerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (s *NotificationService) MarkAsRead(notificationID, practitionerID string) error {
	now := time.Now()
	// Ensure the notification belongs to the practitioner
	return s.DB.Model(&models.Notification{}).
		Where("id = ? AND practitioner_id = ?", notificationID, practitionerID).
		Update("read_at", now).Error
}

func (s *NotificationService) MarkAllAsRead(practitionerID string) error {
	now := time.Now()
	return s.DB.Model(&models.Notification{}).
		Where("practitioner_id = ? AND read_at IS NULL", practitionerID).
		Update("read_at", now).Error
}

func (s *NotificationService) GetNotificationCount(practitionerID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Notification{}).
		Where("practitioner_id = ? AND read_at IS NULL", practitionerID).
		Count(&count).Error
	return count, err
}

func (s *NotificationService) CreateNotification(notification *models.Notification) error {
	return s.DB.Create(notification).Error
}

// NotifyNewIntimacoes tells the practitioner how many intimações a collection stored
func (s *NotificationService) NotifyNewIntimacoes(practitionerID string, count int) error {
	if count <= 0 {
		return nil
	}
	title := "Nova intimação"
	message := "1 nova intimação foi coletada."
	if count > 1 {
		title = "Novas intimações"
		message = fmt.Sprintf("%d novas intimações foram coletadas.", count)
	}
	return s.CreateNotification(&models.Notification{
		PractitionerID: practitionerID,
		Type:           models.NotificationTypeNewIntimacao,
		Title:          title,
		Message:        message,
		LinkURL:        "/intimacoes",
	})
}

// NotifyDeadline creates one alert per intimação and deadline; repeats on the same day are skipped.
// The alert is stamped with now so the daily check follows the caller's clock.
func (s *NotificationService) NotifyDeadline(practitionerID string, alert DeadlineAlert, now time.Time) (bool, error) {
	intimacaoID := alert.IntimacaoID

	var last models.Notification
	err := s.DB.
		Where("practitioner_id = ? AND intimacao_id = ? AND type = ? AND message = ?",
			practitionerID, intimacaoID, models.NotificationTypeDeadlineAlert, alert.Message).
		Order("created_at DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return false, err
	}
	if last.ID != "" && !last.CreatedAt.In(now.Location()).Before(StartOfDay(now)) {
		return false, nil
	}

	err = s.CreateNotification(&models.Notification{
		CreatedAt:      now,
		PractitionerID: practitionerID,
		IntimacaoID:    &intimacaoID,
		Type:           models.NotificationTypeDeadlineAlert,
		Title:          "Prazo se encerrando",
		Message:        alert.Message,
		LinkURL:        "/intimacoes/" + intimacaoID,
	})
	return err == nil, err
}
