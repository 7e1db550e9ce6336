package services

import (
	"crm_advocacia_go/models"
	"crm_advocacia_go/services/judicial"
	"strings"
)

// IngestionAction is what the collector does with one scraped card
type IngestionAction string

const (
	ActionSkip             IngestionAction = "SKIP"
	ActionInsert           IngestionAction = "INSERT"
	ActionUpdateAndRequeue IngestionAction = "UPDATE_AND_REQUEUE"
)

// Decision is the outcome for one (raw, existing) pair
type Decision struct {
	Action  IngestionAction
	Status  string // Status to write; empty on SKIP
	Enqueue bool   // Emit a queue item
}

// Substrings the NLP service writes into fields when a step fails.
// Matched in summary, opinion, draft and practitioner notes.
var nlpErrorMarkers = []string{
	"Erro ao gerar resumo",
	"Erro ao gerar parecer",
	"Erro ao gerar minuta",
	"Erro no processamento NLP",
	"Falha no processamento NLP",
}

// Defaults the NLP service returns when it could not produce content
var nlpPlaceholders = []string{
	"Texto muito curto para gerar resumo.",
	"Não foi possível gerar um parecer.",
	"Erro ao gerar minuta automática.",
}

// Decide classifies a scraped card against its stored counterpart (nil if none).
// It performs no I/O and returns the same result for the same inputs.
func Decide(raw judicial.RawIntimacao, existing *models.Intimacao) Decision {
	status := models.StatusForText(raw.Teor)
	enqueue := status == models.IntimacaoStatusPending

	if existing == nil {
		return Decision{Action: ActionInsert, Status: status, Enqueue: enqueue}
	}

	if !NeedsReprocessing(existing) {
		return Decision{Action: ActionSkip}
	}

	// Text already stored is never downgraded to sem_teor
	if status == models.IntimacaoStatusNoText && existing.HasTeor() {
		status = models.IntimacaoStatusPending
		enqueue = true
	}

	return Decision{Action: ActionUpdateAndRequeue, Status: status, Enqueue: enqueue}
}

// NeedsReprocessing is the quality gate for a stored intimação
func NeedsReprocessing(existing *models.Intimacao) bool {
	if existing.Status != models.IntimacaoStatusProcessed {
		return true
	}

	for _, field := range []string{existing.Summary, existing.LegalOpinion, existing.DraftResponse, existing.PractitionerNotes} {
		if containsErrorMarker(field) {
			return true
		}
	}

	for _, field := range []string{existing.Summary, existing.LegalOpinion, existing.DraftResponse} {
		if isPlaceholder(field) {
			return true
		}
	}

	return false
}

func containsErrorMarker(s string) bool {
	for _, marker := range nlpErrorMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, p := range nlpPlaceholders {
		if s == p {
			return true
		}
	}
	return false
}
