package services

import (
	"crm_advocacia_go/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportIntimacoes(t *testing.T) {
	intimacoes := []models.Intimacao{
		{
			ProcessNumber:      "0001234-56.2024.8.06.0001",
			Tribunal:           "TJCE",
			AvailabilityDate:   "15/03/2024",
			Status:             models.IntimacaoStatusProcessed,
			WorkflowStatus:     models.WorkflowInProgress,
			Urgency:            "alta",
			Summary:            "Intimação para contestar.",
			Deadlines:          models.JSONList{map[string]interface{}{"dias": float64(15)}, map[string]interface{}{"dias": float64(5)}},
			RecommendedActions: models.JSONList{"Contestar", "Juntar procuração"},
			PractitionerNotes:  "Cliente avisado",
		},
		{
			ProcessNumber: "0009999-00.2024.8.06.0001",
			Status:        models.IntimacaoStatusNoText,
		},
	}

	buf, err := ExportIntimacoes(intimacoes)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "0001234-56.2024.8.06.0001", rows[1][0])
	assert.Equal(t, models.WorkflowInProgress, rows[1][4])
	assert.Equal(t, "15, 5", rows[1][8])
	assert.Equal(t, "Contestar; Juntar procuração", rows[1][10])
	assert.Equal(t, "Cliente avisado", rows[1][11])
	assert.Equal(t, models.IntimacaoStatusNoText, rows[2][3])
}

func TestExportIntimacoesEmpty(t *testing.T) {
	buf, err := ExportIntimacoes(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
