package judicial

import (
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractCards parses every result card on a rendered page.
// A field that cannot be read becomes "N/A"; it never drops the card.
func ExtractCards(html string, sel Selectors, q Query) ([]RawIntimacao, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var cards []RawIntimacao
	doc.Find(sel.Card).Each(func(i int, card *goquery.Selection) {
		raw := extractCard(card, sel)
		raw.Tribunal = q.Tribunal
		raw.QueryOAB = q.OAB

		for _, field := range missingFields(raw) {
			log.Printf("[SCRAPER] Card %d (processo %s): %s not found", i, raw.ProcessNumber, field)
		}
		cards = append(cards, raw)
	})

	return cards, nil
}

func extractCard(card *goquery.Selection, sel Selectors) (raw RawIntimacao) {
	raw = RawIntimacao{
		ProcessNumber:     NotAvailable,
		IssuingBody:       NotAvailable,
		AvailabilityDate:  NotAvailable,
		CommunicationType: NotAvailable,
		Channel:           NotAvailable,
		Teor:              NotAvailable,
		AttorneyOAB:       NotAvailable,
		FullTextLink:      NotAvailable,
		CertificateURL:    NotAvailable,
	}

	// A malformed card keeps whatever was read before the failure
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SCRAPER] Card extraction failed (process %s): %v", raw.ProcessNumber, r)
		}
	}()

	raw.ProcessNumber = textOrNA(card.Find(sel.ProcessNumber).First())
	raw.IssuingBody = labeledText(card, sel.SummaryLabels, sel.IssuingBodyLabel)
	raw.AvailabilityDate = labeledText(card, sel.SummaryLabels, sel.DateLabel)
	raw.CommunicationType = labeledText(card, sel.SummaryLabels, sel.TypeLabel)
	raw.Channel = labeledText(card, sel.SummaryLabels, sel.ChannelLabel)
	raw.FullTextLink = labeledLink(card, sel.SummaryLabels, sel.FullTextLinkLabel)
	raw.AttorneyOAB = textOrNA(card.Find(sel.Attorney).First())
	raw.Teor = textOrNA(card.Find(sel.Teor).First())
	raw.CertificateURL = attrOrNA(card.Find(sel.Certificate).First(), "href")

	return raw
}

// missingFields names the card fields that fell back to N/A
func missingFields(raw RawIntimacao) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"numero_processo", raw.ProcessNumber},
		{"orgao", raw.IssuingBody},
		{"data_disponibilizacao", raw.AvailabilityDate},
		{"tipo_comunicacao", raw.CommunicationType},
		{"meio", raw.Channel},
		{"teor", raw.Teor},
		{"advogado", raw.AttorneyOAB},
		{"link_inteiro_teor", raw.FullTextLink},
		{"certidao", raw.CertificateURL},
	}

	var missing []string
	for _, f := range fields {
		if f.value == NotAvailable {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func textOrNA(s *goquery.Selection) string {
	if s.Length() == 0 {
		return NotAvailable
	}
	if t := strings.TrimSpace(s.Text()); t != "" {
		return t
	}
	return NotAvailable
}

func attrOrNA(s *goquery.Selection, attr string) string {
	if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return NotAvailable
}

// findLabel returns the first <b> whose text contains "label:"
func findLabel(card *goquery.Selection, labels, label string) *goquery.Selection {
	needle := label + ":"
	return card.Find(labels).FilterFunction(func(_ int, b *goquery.Selection) bool {
		return strings.Contains(b.Text(), needle)
	}).First()
}

// labeledText reads the summary block holding a label, minus the label itself
func labeledText(card *goquery.Selection, labels, label string) string {
	b := findLabel(card, labels, label)
	if b.Length() == 0 {
		return NotAvailable
	}
	block := b.Closest("div.info-sumary")
	if block.Length() == 0 {
		return NotAvailable
	}
	text := strings.TrimSpace(strings.Replace(block.Text(), b.Text(), "", 1))
	if text == "" {
		return NotAvailable
	}
	return text
}

func labeledLink(card *goquery.Selection, labels, label string) string {
	b := findLabel(card, labels, label)
	if b.Length() == 0 {
		return NotAvailable
	}
	return attrOrNA(b.Next().Filter("a"), "href")
}
