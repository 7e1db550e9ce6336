package judicial

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
)

// ComunicaService implements Provider for comunica.pje.jus.br
type ComunicaService struct {
	Profile    Profile
	NewSession SessionFactory
}

// NewComunicaService creates a new instance. A nil factory uses headless Chrome.
func NewComunicaService(profile Profile, factory SessionFactory) *ComunicaService {
	if factory == nil {
		factory = NewChromeSession
	}
	return &ComunicaService{
		Profile:    profile,
		NewSession: factory,
	}
}

// QueryURL builds the search URL for one practitioner and date range
func (s *ComunicaService) QueryURL(q Query) string {
	params := url.Values{}
	params.Set("siglaTribunal", q.Tribunal)
	params.Set("dataDisponibilizacaoInicio", q.DateFrom.Format("2006-01-02"))
	params.Set("dataDisponibilizacaoFim", q.DateTo.Format("2006-01-02"))
	params.Set("numeroOab", q.OAB)

	return strings.TrimRight(s.Profile.BaseURL, "/") + "/consulta?" + params.Encode()
}

// Collect walks every result page for the query
func (s *ComunicaService) Collect(ctx context.Context, q Query) ([]RawIntimacao, error) {
	p := s.Profile
	sel := p.Selectors

	session, err := s.NewSession(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("[SCRAPER] Failed to close browser session: %v", err)
		}
	}()

	target := s.QueryURL(q)
	log.Printf("[SCRAPER] Collecting OAB %s (%s) from %s to %s",
		q.OAB, q.Tribunal, q.DateFrom.Format("2006-01-02"), q.DateTo.Format("2006-01-02"))

	if err := session.Navigate(target, p.Timeouts.Operation); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", target, err)
	}

	var all []RawIntimacao
	for page := 1; ; page++ {
		if err := s.waitForCards(ctx, session); err != nil {
			return nil, err
		}

		html, err := session.HTML()
		if err != nil {
			return nil, err
		}
		cards, err := ExtractCards(html, sel, q)
		if err != nil {
			return nil, err
		}
		all = append(all, cards...)
		log.Printf("[SCRAPER] Page %d: %d intimações", page, len(cards))

		hasNext, err := session.Exists(sel.NextPage)
		if err != nil {
			return nil, fmt.Errorf("failed to check pagination: %w", err)
		}
		if !hasNext {
			break
		}
		if page >= p.MaxPages {
			log.Printf("[SCRAPER] WARNING: page limit %d reached for OAB %s, collection may be incomplete", p.MaxPages, q.OAB)
			break
		}

		if err := s.nextPage(ctx, session); err != nil {
			return nil, err
		}
	}

	log.Printf("[SCRAPER] Collection complete for OAB %s: %d intimações", q.OAB, len(all))
	return all, nil
}

// waitForCards retries the card wait with a fixed backoff
func (s *ComunicaService) waitForCards(ctx context.Context, session Session) error {
	p := s.Profile
	var lastErr error

	for attempt := 1; attempt <= p.CardAttempts; attempt++ {
		lastErr = session.WaitVisible(p.Selectors.Card, p.Timeouts.Operation)
		if lastErr == nil {
			return nil
		}
		log.Printf("[SCRAPER] Attempt %d of %d waiting for %q failed: %v",
			attempt, p.CardAttempts, p.Selectors.Card, lastErr)

		if attempt < p.CardAttempts {
			if err := sleep(ctx, p.Timeouts.RetryBackoff); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: %v", ErrScrapeTimeout, lastErr)
}

func (s *ComunicaService) nextPage(ctx context.Context, session Session) error {
	p := s.Profile

	if err := session.Click(p.Selectors.NextPage); err != nil {
		return fmt.Errorf("failed to click next page: %w", err)
	}
	if err := session.WaitNetworkIdle(p.Timeouts.PageIdle); err != nil {
		return fmt.Errorf("%w: %v", ErrScrapeTimeout, err)
	}
	if err := session.WaitVisible(p.Selectors.Card, p.Timeouts.CardsAfterNext); err != nil {
		return fmt.Errorf("%w: %v", ErrScrapeTimeout, err)
	}
	return sleep(ctx, p.Timeouts.Settle)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
