package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types
const (
	NotificationTypeNewIntimacao  = "NEW_INTIMACAO"
	NotificationTypeDeadlineAlert = "DEADLINE_ALERT"
	NotificationTypeSystem        = "SYSTEM"
)

// Notification is an in-app alert shown to a practitioner
type Notification struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Targeting
	PractitionerID string `gorm:"type:uuid;not null;index" json:"advogado_id"`

	// Context
	IntimacaoID *string `gorm:"type:uuid" json:"intimacao_id,omitempty"`

	// Content
	Type    string `gorm:"not null" json:"type"`
	Title   string `gorm:"not null" json:"title"`
	Message string `gorm:"type:text" json:"message"`
	LinkURL string `json:"link_url,omitempty"` // e.g., "/intimacoes/{id}"

	// Read tracking
	ReadAt *time.Time `json:"read_at,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
