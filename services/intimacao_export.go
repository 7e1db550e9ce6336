package services

import (
	"bytes"
	"crm_advocacia_go/models"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Intimações"

var exportHeaders = []string{
	"Número do Processo",
	"Tribunal",
	"Disponibilização",
	"Status",
	"Status do Workflow",
	"Tipo de Documento",
	"Urgência",
	"Complexidade",
	"Prazos (dias)",
	"Resumo",
	"Ações Recomendadas",
	"Notas",
}

// ExportIntimacoes writes the intimações to an xlsx workbook
func ExportIntimacoes(intimacoes []models.Intimacao) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", exportSheet)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
	}

	for i, intimacao := range intimacoes {
		row := i + 2
		values := []interface{}{
			intimacao.ProcessNumber,
			intimacao.Tribunal,
			intimacao.AvailabilityDate,
			intimacao.Status,
			intimacao.WorkflowStatus,
			intimacao.DocumentType,
			intimacao.Urgency,
			intimacao.Complexity,
			joinDays(deadlineDays(intimacao.Deadlines)),
			intimacao.Summary,
			joinList(intimacao.RecommendedActions),
			intimacao.PractitionerNotes,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(exportSheet, cell, value)
		}
	}

	// Header Style
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	f.SetCellStyle(exportSheet, "A1", lastHeader, headerStyle)
	f.SetColWidth(exportSheet, "A", "A", 28)
	f.SetColWidth(exportSheet, "J", "K", 60)
	f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}

	return buf, nil
}

func joinDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, ", ")
}

func joinList(list models.JSONList) string {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}
