package judicial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// NotAvailable is written into any card field the scraper could not read
const NotAvailable = "N/A"

// ErrScrapeTimeout wraps the last wait error after all retries were spent
var ErrScrapeTimeout = errors.New("portal wait timed out")

// Provider defines the interface for every judicial communication portal
type Provider interface {
	// Collect returns every intimação published for the query. On a hard
	// failure it returns nil and the error; partial pages are discarded.
	Collect(ctx context.Context, q Query) ([]RawIntimacao, error)
}

// Query is one collection request for one practitioner
type Query struct {
	OAB      string
	Tribunal string
	DateFrom time.Time
	DateTo   time.Time

	// Portal login, for portals that require it. The public comunica
	// search does not.
	Username string
	Password string
}

// RawIntimacao is one result card as scraped. Never persisted directly.
type RawIntimacao struct {
	ProcessNumber     string `json:"numero_processo"`
	IssuingBody       string `json:"orgao"`                 // Órgão
	AvailabilityDate  string `json:"data_disponibilizacao"` // DD/MM/YYYY as published
	CommunicationType string `json:"tipo_comunicacao"`
	Channel           string `json:"meio"`
	Teor              string `json:"teor"`
	AttorneyOAB       string `json:"advogado"`
	FullTextLink      string `json:"link_inteiro_teor"`
	CertificateURL    string `json:"certidao"`
	Tribunal          string `json:"tribunal"`
	QueryOAB          string `json:"oab_consulta"`
}

// HasTeor reports whether the card carried a usable text body
func (r RawIntimacao) HasTeor() bool {
	t := strings.TrimSpace(r.Teor)
	return t != "" && t != NotAvailable
}

var (
	providersMu sync.RWMutex
	providers   = map[string]Provider{}
)

// RegisterProvider makes a provider available by name. A nil provider removes it.
func RegisterProvider(name string, p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if p == nil {
		delete(providers, name)
		return
	}
	providers[name] = p
}

// GetProvider returns the implementation for a portal name
func GetProvider(portal string) (Provider, error) {
	providersMu.RLock()
	p, ok := providers[portal]
	providersMu.RUnlock()
	if ok {
		return p, nil
	}

	switch portal {
	case "comunica", "COMUNICA", "pje", "PJE":
		return NewComunicaService(DefaultProfile(), nil), nil
	default:
		return nil, fmt.Errorf("judicial provider not implemented for portal: %s", portal)
	}
}
