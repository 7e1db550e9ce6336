package services

import (
	"bytes"
	"crm_advocacia_go/config"
	"fmt"
	htmltemplate "html/template"
	"log"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"github.com/resend/resend-go/v2"
)

// EmailTemplateDir holds <name>.html and <name>.txt pairs
var EmailTemplateDir = "templates/emails"

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// renderEmailTemplate executes the HTML and text variants of a template.
// The text variant goes through text/template so that it is not HTML-escaped.
func renderEmailTemplate(name string, data interface{}) (string, string, error) {
	read := func(ext string) (string, error) {
		path := filepath.Join(EmailTemplateDir, name+ext)
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read template %s: %w", path, err)
		}
		return string(content), nil
	}

	htmlSrc, err := read(".html")
	if err != nil {
		return "", "", err
	}
	textSrc, err := read(".txt")
	if err != nil {
		return "", "", err
	}

	var htmlBuf, textBuf bytes.Buffer
	htmlTmpl, err := htmltemplate.New(name).Parse(htmlSrc)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s.html: %w", name, err)
	}
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s.html: %w", name, err)
	}

	textTmpl, err := texttemplate.New(name).Parse(textSrc)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s.txt: %w", name, err)
	}
	if err := textTmpl.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s.txt: %w", name, err)
	}

	return htmlBuf.String(), textBuf.String(), nil
}

// SendEmail sends an email using Resend API
func SendEmail(cfg *config.Config, email *Email) error {
	if cfg.EmailTestMode {
		log.Printf("[EMAIL] test mode, not sent: to=%v subject=%q\n%s", email.To, email.Subject, email.TextBody)
		return nil
	}

	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}
	if email.HTMLBody == "" && email.TextBody == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	client := resend.NewClient(cfg.ResendAPIKey)
	sent, err := client.Emails.Send(&resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	})
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	log.Printf("[EMAIL] sent via Resend (ID: %s) to %v", sent.Id, email.To)
	return nil
}

// DeadlineDigestEmailData contains data for the deadline digest template
type DeadlineDigestEmailData struct {
	PractitionerName string
	Alerts           []DeadlineAlert
	AppURL           string
}

// BuildDeadlineDigestEmail lists the practitioner's deadlines ending soon.
// Without templates on disk the body is the plain-text digest.
func BuildDeadlineDigestEmail(toEmail string, data DeadlineDigestEmailData) *Email {
	data.AppURL = strings.TrimSuffix(data.AppURL, "/")
	email := &Email{To: []string{toEmail}}

	if len(data.Alerts) == 1 {
		email.Subject = "1 prazo se encerrando"
	} else {
		email.Subject = fmt.Sprintf("%d prazos se encerrando", len(data.Alerts))
	}

	html, text, err := renderEmailTemplate("deadline_digest", data)
	if err != nil {
		log.Printf("[EMAIL] deadline_digest template unavailable: %v", err)
		email.TextBody = deadlineDigestText(data)
		return email
	}
	email.HTMLBody = html
	email.TextBody = text
	return email
}

func deadlineDigestText(data DeadlineDigestEmailData) string {
	var b strings.Builder
	if data.PractitionerName != "" {
		fmt.Fprintf(&b, "Olá, %s.\n\n", data.PractitionerName)
	}
	b.WriteString("Os seguintes prazos se encerram nos próximos dias:\n\n")
	for _, alert := range data.Alerts {
		fmt.Fprintf(&b, "- %s (vence em %s)\n", alert.Message, alert.DueDate.Format("02/01/2006"))
	}
	if data.AppURL != "" {
		fmt.Fprintf(&b, "\nAcesse %s/intimacoes para mais detalhes.\n", data.AppURL)
	}
	return b.String()
}
