package services

import (
	"crm_advocacia_go/models"
	"crm_advocacia_go/services/judicial"
	"testing"

	"github.com/stretchr/testify/assert"
)

func wellProcessed() *models.Intimacao {
	return &models.Intimacao{
		ID:                "int-1",
		ProcessNumber:     "0001234-56.2024.8.06.0001",
		Teor:              "Texto da intimação...",
		Status:            models.IntimacaoStatusProcessed,
		Summary:           "Intimação para apresentar contestação.",
		LegalOpinion:      "Cabe contestação no prazo legal.",
		DraftResponse:     "EXCELENTÍSSIMO SENHOR DOUTOR JUIZ DE DIREITO...",
		PractitionerNotes: "Cliente avisado por telefone.",
	}
}

func TestDecide(t *testing.T) {
	t.Run("New notification with text", func(t *testing.T) {
		raw := judicial.RawIntimacao{ProcessNumber: "0001234-56.2024.8.06.0001", Teor: "Texto da intimação..."}

		d := Decide(raw, nil)
		assert.Equal(t, ActionInsert, d.Action)
		assert.Equal(t, models.IntimacaoStatusPending, d.Status)
		assert.True(t, d.Enqueue)
	})

	t.Run("New notification without text", func(t *testing.T) {
		raw := judicial.RawIntimacao{ProcessNumber: "0001234-56.2024.8.06.0001", Teor: judicial.NotAvailable}

		d := Decide(raw, nil)
		assert.Equal(t, ActionInsert, d.Action)
		assert.Equal(t, models.IntimacaoStatusNoText, d.Status)
		assert.False(t, d.Enqueue)
	})

	t.Run("Blank text counts as missing", func(t *testing.T) {
		d := Decide(judicial.RawIntimacao{Teor: "  \n "}, nil)
		assert.Equal(t, models.IntimacaoStatusNoText, d.Status)
		assert.False(t, d.Enqueue)
	})

	t.Run("Well processed record is skipped", func(t *testing.T) {
		raw := judicial.RawIntimacao{ProcessNumber: "0001234-56.2024.8.06.0001", Teor: "Texto da intimação..."}

		d := Decide(raw, wellProcessed())
		assert.Equal(t, ActionSkip, d.Action)
		assert.Empty(t, d.Status)
		assert.False(t, d.Enqueue)
	})

	t.Run("Error marker in opinion requeues", func(t *testing.T) {
		existing := wellProcessed()
		existing.LegalOpinion = "Erro ao gerar parecer: timeout"
		raw := judicial.RawIntimacao{ProcessNumber: existing.ProcessNumber, Teor: "Texto da intimação..."}

		d := Decide(raw, existing)
		assert.Equal(t, ActionUpdateAndRequeue, d.Action)
		assert.Equal(t, models.IntimacaoStatusPending, d.Status)
		assert.True(t, d.Enqueue)
	})

	t.Run("Errored record re-seen without text keeps stored text", func(t *testing.T) {
		existing := wellProcessed()
		existing.Status = models.IntimacaoStatusNLPError
		raw := judicial.RawIntimacao{ProcessNumber: existing.ProcessNumber, Teor: judicial.NotAvailable}

		d := Decide(raw, existing)
		assert.Equal(t, ActionUpdateAndRequeue, d.Action)
		assert.Equal(t, models.IntimacaoStatusPending, d.Status)
		assert.True(t, d.Enqueue)
	})

	t.Run("Record without text stays sem_teor", func(t *testing.T) {
		existing := &models.Intimacao{Status: models.IntimacaoStatusNoText, Teor: judicial.NotAvailable}
		d := Decide(judicial.RawIntimacao{Teor: judicial.NotAvailable}, existing)
		assert.Equal(t, ActionUpdateAndRequeue, d.Action)
		assert.Equal(t, models.IntimacaoStatusNoText, d.Status)
		assert.False(t, d.Enqueue)
	})

	t.Run("Text arriving later promotes sem_teor", func(t *testing.T) {
		existing := &models.Intimacao{Status: models.IntimacaoStatusNoText, Teor: judicial.NotAvailable}
		d := Decide(judicial.RawIntimacao{Teor: "Agora com teor"}, existing)
		assert.Equal(t, models.IntimacaoStatusPending, d.Status)
		assert.True(t, d.Enqueue)
	})
}

func TestDecideIsIdempotent(t *testing.T) {
	texts := []string{"Texto da intimação...", judicial.NotAvailable, ""}
	existing := []*models.Intimacao{nil, wellProcessed(), {Status: models.IntimacaoStatusNLPError, Teor: "x"}, {Status: models.IntimacaoStatusNoText}}

	for _, teor := range texts {
		for _, e := range existing {
			raw := judicial.RawIntimacao{ProcessNumber: "0001234-56.2024.8.06.0001", Teor: teor}
			first := Decide(raw, e)
			second := Decide(raw, e)
			assert.Equal(t, first, second)
		}
	}
}

func TestDecideNeverDowngradesText(t *testing.T) {
	statuses := []string{
		models.IntimacaoStatusPending,
		models.IntimacaoStatusProcessed,
		models.IntimacaoStatusNLPError,
		models.IntimacaoStatusNoText,
	}

	for _, status := range statuses {
		existing := wellProcessed()
		existing.Status = status
		existing.Summary = ""

		for _, teor := range []string{"", judicial.NotAvailable, "novo teor"} {
			d := Decide(judicial.RawIntimacao{Teor: teor}, existing)
			assert.NotEqual(t, models.IntimacaoStatusNoText, d.Status, "status %s teor %q", status, teor)
		}
	}
}

func TestNeedsReprocessing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(i *models.Intimacao)
		want   bool
	}{
		{"Fully populated", func(i *models.Intimacao) {}, false},
		{"Pending status", func(i *models.Intimacao) { i.Status = models.IntimacaoStatusPending }, true},
		{"Error status", func(i *models.Intimacao) { i.Status = models.IntimacaoStatusNLPError }, true},
		{"No text status", func(i *models.Intimacao) { i.Status = models.IntimacaoStatusNoText }, true},
		{"Summary error marker", func(i *models.Intimacao) { i.Summary = "Erro ao gerar resumo" }, true},
		{"Draft error marker", func(i *models.Intimacao) { i.DraftResponse = "Erro ao gerar minuta: falha" }, true},
		{"Notes error marker", func(i *models.Intimacao) { i.PractitionerNotes = "Erro no processamento NLP: NLP processing failed: x" }, true},
		{"Opinion failure marker", func(i *models.Intimacao) { i.LegalOpinion = "Falha no processamento NLP" }, true},
		{"Summary placeholder", func(i *models.Intimacao) { i.Summary = "Texto muito curto para gerar resumo." }, true},
		{"Opinion placeholder", func(i *models.Intimacao) { i.LegalOpinion = "Não foi possível gerar um parecer." }, true},
		{"Draft placeholder", func(i *models.Intimacao) { i.DraftResponse = "Erro ao gerar minuta automática." }, true},
		{"Empty summary", func(i *models.Intimacao) { i.Summary = "" }, true},
		{"Empty opinion", func(i *models.Intimacao) { i.LegalOpinion = "   " }, true},
		{"Empty notes are fine", func(i *models.Intimacao) { i.PractitionerNotes = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := wellProcessed()
			tt.mutate(i)
			assert.Equal(t, tt.want, NeedsReprocessing(i))
		})
	}
}
