package judicial

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Selectors names every CSS selector the comunica scraper depends on
type Selectors struct {
	Card              string `yaml:"card"`
	NextPage          string `yaml:"next_page"`
	ProcessNumber     string `yaml:"process_number"`
	SummaryLabels     string `yaml:"summary_labels"`
	Attorney          string `yaml:"attorney"`
	Teor              string `yaml:"teor"`
	Certificate       string `yaml:"certificate"`
	IssuingBodyLabel  string `yaml:"issuing_body_label"`
	DateLabel         string `yaml:"date_label"`
	TypeLabel         string `yaml:"type_label"`
	ChannelLabel      string `yaml:"channel_label"`
	FullTextLinkLabel string `yaml:"full_text_link_label"`
}

// Timeouts for every wait the scraper performs
type Timeouts struct {
	Operation      time.Duration `yaml:"operation"`
	PageIdle       time.Duration `yaml:"page_idle"`
	CardsAfterNext time.Duration `yaml:"cards_after_next"`
	Settle         time.Duration `yaml:"settle"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
}

// Profile is the portal configuration: where to go and what to look for.
// It can be overridden from a YAML file without a rebuild.
type Profile struct {
	BaseURL      string    `yaml:"base_url"`
	UserAgent    string    `yaml:"user_agent"`
	ChromePath   string    `yaml:"chrome_path"`
	MaxPages     int       `yaml:"max_pages"`
	CardAttempts int       `yaml:"card_attempts"`
	Selectors    Selectors `yaml:"selectors"`
	Timeouts     Timeouts  `yaml:"timeouts"`
}

// DefaultProfile targets comunica.pje.jus.br
func DefaultProfile() Profile {
	return Profile{
		BaseURL:      "https://comunica.pje.jus.br",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		MaxPages:     100,
		CardAttempts: 3,
		Selectors: Selectors{
			Card:              "article.card",
			NextPage:          "a.ui-paginator-next:not(.ui-state-disabled)",
			ProcessNumber:     "span.numero-unico-formatado",
			SummaryLabels:     "div.info-sumary b",
			Attorney:          "div.info-sumary div.row div.col-md-10",
			Teor:              "section.content-texto div.tab_panel2",
			Certificate:       `ul.acoes a[title="Imprimir"]`,
			IssuingBodyLabel:  "Órgão",
			DateLabel:         "Data de disponibilização",
			TypeLabel:         "Tipo de comunicação",
			ChannelLabel:      "Meio",
			FullTextLinkLabel: "Inteiro teor",
		},
		Timeouts: Timeouts{
			Operation:      30 * time.Second,
			PageIdle:       45 * time.Second,
			CardsAfterNext: 15 * time.Second,
			Settle:         2 * time.Second,
			RetryBackoff:   5 * time.Second,
		},
	}
}

// LoadProfile reads a YAML profile on top of the defaults.
// Keys missing from the file keep their default values.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read portal profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse portal profile: %w", err)
	}
	if profile.MaxPages <= 0 {
		profile.MaxPages = 100
	}
	if profile.CardAttempts <= 0 {
		profile.CardAttempts = 1
	}
	return profile, nil
}

// WithOverrides applies the environment's portal URL and Chrome binary, when set
func (p Profile) WithOverrides(baseURL, chromePath string) Profile {
	if baseURL != "" {
		p.BaseURL = baseURL
	}
	if chromePath != "" {
		p.ChromePath = chromePath
	}
	return p
}
