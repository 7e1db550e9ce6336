package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sync kinds and outcomes
const (
	SyncKindScheduled = "scheduled"
	SyncKindManual    = "manual"

	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncHistory records one collection run for one practitioner
type SyncHistory struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PractitionerID string     `gorm:"type:uuid;not null;index" json:"advogado_id"`
	Kind           string     `gorm:"not null" json:"tipo_sincronizacao"`
	Status         string     `gorm:"not null" json:"status"`
	Collected      int        `json:"intimacoes_coletadas"`
	Message        string     `gorm:"type:text" json:"mensagem"`
	StartedAt      time.Time  `gorm:"not null;index" json:"data_inicio"`
	FinishedAt     *time.Time `json:"data_fim,omitempty"`
}

func (s *SyncHistory) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

func (SyncHistory) TableName() string {
	return "sync_history"
}
