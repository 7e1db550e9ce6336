package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Intimação processing status (NLP lifecycle)
const (
	IntimacaoStatusPending   = "pendente_processamento_nlp"
	IntimacaoStatusNoText    = "sem_teor"
	IntimacaoStatusProcessed = "processado_nlp"
	IntimacaoStatusNLPError  = "erro_nlp"
)

// Practitioner workflow status (what the lawyer did about it)
const (
	WorkflowPending    = "pendente"
	WorkflowInProgress = "em_andamento"
	WorkflowDone       = "cumprida"
	WorkflowDelegated  = "delegada"
	WorkflowExpired    = "vencida"
)

// NotAvailable is the placeholder the portal scraper writes for missing fields
const NotAvailable = "N/A"

// Intimacao is a court notification addressed to a practitioner
type Intimacao struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Identity: one row per (practitioner, process number)
	PractitionerID string `gorm:"type:uuid;not null;uniqueIndex:idx_intimacao_practitioner_process" json:"advogado_id"`
	ProcessNumber  string `gorm:"size:40;not null;uniqueIndex:idx_intimacao_practitioner_process" json:"numero_processo"`

	// Portal data
	Teor             string     `gorm:"type:text" json:"teor"`
	AvailabilityDate string     `json:"data_disponibilizacao"`                            // As published (DD/MM/YYYY)
	AvailableOn      *time.Time `gorm:"index" json:"data_disponibilizacao_iso,omitempty"` // Parsed, UTC midnight
	Tribunal         string     `json:"tribunal"`
	FilePath         string     `json:"caminho_arquivo"` // Certificate / printable link
	ArchiveKey       string     `json:"-"`               // Raw snapshot in storage

	Status string `gorm:"not null;default:sem_teor;index" json:"status"`

	// NLP results
	Summary            string     `gorm:"type:text" json:"resumo"`
	Entities           JSONMap    `gorm:"type:text" json:"entidades"`
	Deadlines          JSONList   `gorm:"type:text" json:"prazos"`
	DocumentType       string     `json:"tipo_documento"`
	LegalOpinion       string     `gorm:"type:text" json:"parecer"`
	RecommendedActions JSONList   `gorm:"type:text" json:"acoes_recomendadas"`
	DraftResponse      string     `gorm:"type:text" json:"minuta_resposta"`
	Urgency            string     `json:"urgencia"`
	Complexity         string     `json:"complexidade"`
	ProcessedAt        *time.Time `json:"processado_em,omitempty"`

	// Practitioner-facing
	PractitionerNotes string `gorm:"type:text" json:"notas_advogado"`
	WorkflowStatus    string `gorm:"not null;default:pendente" json:"status_workflow"`
}

// BeforeCreate hook to generate UUID
func (i *Intimacao) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.WorkflowStatus == "" {
		i.WorkflowStatus = WorkflowPending
	}
	return nil
}

// TableName specifies the table name for Intimacao model
func (Intimacao) TableName() string {
	return "intimacoes"
}

// HasTeor reports whether the stored text is usable for NLP
func (i *Intimacao) HasTeor() bool {
	return HasText(i.Teor)
}

// HasText reports whether a scraped text is present and not the "N/A" placeholder
func HasText(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != NotAvailable
}

// StatusForText returns the initial NLP status for a given text
func StatusForText(teor string) string {
	if HasText(teor) {
		return IntimacaoStatusPending
	}
	return IntimacaoStatusNoText
}

// IsValidWorkflowStatus checks if the workflow status is valid
func IsValidWorkflowStatus(status string) bool {
	validStatuses := []string{
		WorkflowPending,
		WorkflowInProgress,
		WorkflowDone,
		WorkflowDelegated,
		WorkflowExpired,
	}
	for _, s := range validStatuses {
		if s == status {
			return true
		}
	}
	return false
}
