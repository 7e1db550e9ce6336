package services

import (
	"context"
	"crm_advocacia_go/models"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/microcosm-cc/bluemonday"
)

// Document kinds that can be downloaded for an intimação
const (
	DocumentOpinion = "parecer"
	DocumentDraft   = "minuta"
)

var (
	// ErrUnknownDocument is returned for a kind other than parecer or minuta
	ErrUnknownDocument = errors.New("unknown document type")
	// ErrDocumentNotReady is returned when NLP has not produced the text yet
	ErrDocumentNotReady = errors.New("document not generated yet")
)

// PDFOptions contains options for PDF generation
type PDFOptions struct {
	PageOrientation string // portrait, landscape
	PageSize        string // letter, legal, A4
	MarginTop       int    // points (72 = 1 inch)
	MarginBottom    int
	MarginLeft      int
	MarginRight     int
	ChromePath      string
	Timeout         time.Duration
}

// DefaultPDFOptions returns default options for legal documents (A4, 2.5cm margins)
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageOrientation: "portrait",
		PageSize:        "A4",
		MarginTop:       72,
		MarginBottom:    72,
		MarginLeft:      72,
		MarginRight:     72,
		Timeout:         30 * time.Second,
	}
}

// GeneratePDF renders HTML content to PDF using headless Chrome
func GeneratePDF(ctx context.Context, htmlContent string, options PDFOptions) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)

	// Custom Chrome path (headless-shell in Docker)
	if options.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(options.ChromePath))
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	paperWidth, paperHeight := paperSize(options)

	// Convert points to inches for margins
	marginTop := float64(options.MarginTop) / 72.0
	marginBottom := float64(options.MarginBottom) / 72.0
	marginLeft := float64(options.MarginLeft) / 72.0
	marginRight := float64(options.MarginRight) / 72.0

	var pdfBuf []byte

	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		// Wait for content to render
		chromedp.Sleep(100*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(marginTop).
				WithMarginBottom(marginBottom).
				WithMarginLeft(marginLeft).
				WithMarginRight(marginRight).
				WithPrintBackground(true).
				WithDisplayHeaderFooter(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return pdfBuf, nil
}

// paperSize returns width and height in inches
func paperSize(options PDFOptions) (float64, float64) {
	var w, h float64
	switch options.PageSize {
	case "legal":
		w, h = 8.5, 14.0
	case "letter":
		w, h = 8.5, 11.0
	default: // A4
		w, h = 8.27, 11.69
	}
	if options.PageOrientation == "landscape" {
		w, h = h, w
	}
	return w, h
}

// RenderIntimacaoDocument builds the printable HTML of the opinion or the draft
// response generated for an intimação. NLP output is untrusted and is sanitized.
func RenderIntimacaoDocument(intimacao *models.Intimacao, kind string) (string, error) {
	var title, body string
	switch kind {
	case DocumentOpinion:
		title, body = "Parecer Jurídico", intimacao.LegalOpinion
	case DocumentDraft:
		title, body = "Minuta de Resposta", intimacao.DraftResponse
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDocument, kind)
	}
	if strings.TrimSpace(body) == "" {
		return "", ErrDocumentNotReady
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<p class=\"meta\"><strong>Processo:</strong> %s<br><strong>Tribunal:</strong> %s<br><strong>Disponibilização:</strong> %s</p>\n",
		html.EscapeString(intimacao.ProcessNumber),
		html.EscapeString(intimacao.Tribunal),
		html.EscapeString(intimacao.AvailabilityDate))
	b.WriteString(bluemonday.UGCPolicy().Sanitize(textToHTML(body)))

	return WrapHTMLForPDF(b.String()), nil
}

// textToHTML keeps markup the NLP service already produced and turns plain text
// paragraphs (blank-line separated) into <p> blocks
func textToHTML(text string) string {
	if strings.Contains(text, "</") || strings.Contains(text, "<br") {
		return text
	}
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(lines[i]))
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", strings.Join(lines, "<br>"))
	}
	return b.String()
}

// DocumentFilename is the download name for an intimação document
func DocumentFilename(intimacao *models.Intimacao, kind string) string {
	return fmt.Sprintf("%s_%s.pdf", kind, SafeKeySegment(intimacao.ProcessNumber))
}

// WrapHTMLForPDF wraps document content with the print stylesheet
func WrapHTMLForPDF(content string) string {
	return `<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <style>
        @page {
            margin: 2.5cm;
        }
        body {
            font-family: "Times New Roman", Times, serif;
            font-size: 12pt;
            line-height: 1.5;
            color: #000;
            text-align: justify;
        }
        h1 {
            font-size: 16pt;
            font-weight: bold;
            text-align: center;
            margin-bottom: 24pt;
        }
        h2 {
            font-size: 14pt;
            font-weight: bold;
            margin-top: 18pt;
            margin-bottom: 12pt;
        }
        p {
            margin-bottom: 12pt;
            text-indent: 0.5in;
        }
        p.meta {
            text-indent: 0;
            font-size: 10pt;
            border-bottom: 1px solid #000;
            padding-bottom: 6pt;
        }
        ul, ol {
            margin-left: 0.5in;
            margin-bottom: 12pt;
        }
        li {
            margin-bottom: 6pt;
        }
    </style>
</head>
<body>
` + content + `
</body>
</html>`
}
