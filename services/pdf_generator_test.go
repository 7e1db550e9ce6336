package services

import (
	"context"
	"crm_advocacia_go/models"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPDFOptions(t *testing.T) {
	opts := DefaultPDFOptions()
	assert.Equal(t, "portrait", opts.PageOrientation)
	assert.Equal(t, "A4", opts.PageSize)
	assert.Equal(t, 72, opts.MarginTop)
	assert.Equal(t, 72, opts.MarginBottom)
	assert.Equal(t, 72, opts.MarginLeft)
	assert.Equal(t, 72, opts.MarginRight)
}

func TestPaperSize(t *testing.T) {
	w, h := paperSize(PDFOptions{PageSize: "A4"})
	assert.Equal(t, 8.27, w)
	assert.Equal(t, 11.69, h)

	w, h = paperSize(PDFOptions{PageSize: "legal", PageOrientation: "landscape"})
	assert.Equal(t, 14.0, w)
	assert.Equal(t, 8.5, h)
}

func TestWrapHTMLForPDF(t *testing.T) {
	content := "<h1>Test Title</h1><p>Test Content</p>"
	html := WrapHTMLForPDF(content)

	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "font-family: \"Times New Roman\"")
	assert.Contains(t, html, content)
}

func TestRenderIntimacaoDocument(t *testing.T) {
	intimacao := &models.Intimacao{
		ProcessNumber:    "0001234-56.2024.8.06.0001",
		Tribunal:         "TJCE",
		AvailabilityDate: "15/03/2024",
		LegalOpinion:     "Primeiro parágrafo.\nMesma ideia.\n\nSegundo parágrafo: prazo < 15 dias & outros.",
		DraftResponse:    "<p>Excelentíssimo Juiz</p><script>alert(1)</script>",
	}

	t.Run("Plain text opinion", func(t *testing.T) {
		html, err := RenderIntimacaoDocument(intimacao, DocumentOpinion)
		require.NoError(t, err)
		assert.Contains(t, html, "<h1>Parecer Jurídico</h1>")
		assert.Contains(t, html, "0001234-56.2024.8.06.0001")
		assert.Contains(t, html, "<p>Primeiro parágrafo.<br")
		assert.Contains(t, html, "Mesma ideia.</p>")
		assert.Contains(t, html, "prazo &lt; 15 dias &amp; outros.")
	})

	t.Run("Markup draft is sanitized", func(t *testing.T) {
		html, err := RenderIntimacaoDocument(intimacao, DocumentDraft)
		require.NoError(t, err)
		assert.Contains(t, html, "<h1>Minuta de Resposta</h1>")
		assert.Contains(t, html, "<p>Excelentíssimo Juiz</p>")
		assert.NotContains(t, html, "<script>")
	})

	t.Run("Unknown kind", func(t *testing.T) {
		_, err := RenderIntimacaoDocument(intimacao, "resumo")
		assert.ErrorIs(t, err, ErrUnknownDocument)
	})

	t.Run("Not generated yet", func(t *testing.T) {
		_, err := RenderIntimacaoDocument(&models.Intimacao{LegalOpinion: "  "}, DocumentOpinion)
		assert.ErrorIs(t, err, ErrDocumentNotReady)
	})

	assert.Equal(t, "parecer_0001234-56.2024.8.06.0001.pdf", DocumentFilename(intimacao, DocumentOpinion))
}

func TestGeneratePDFSmoke(t *testing.T) {
	chromePath := os.Getenv("CHROME_PATH")
	if chromePath == "" {
		t.Skip("Skipping PDF generation test: CHROME_PATH not set")
	}

	opts := DefaultPDFOptions()
	opts.ChromePath = chromePath

	pdf, err := GeneratePDF(context.Background(), "<h1>Olá</h1>", opts)
	if err != nil {
		if os.IsNotExist(err) {
			t.Skipf("Skipping: Chrome not found at %s", chromePath)
		}
		t.Errorf("GeneratePDF failed: %v", err)
		return
	}

	assert.NotNil(t, pdf)
	assert.True(t, len(pdf) > 0)
	assert.Contains(t, string(pdf[:5]), "%PDF-")
}
