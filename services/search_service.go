package services

import (
	"context"
	"crm_advocacia_go/models"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// SearchResult is one intimação matching a free-text query
type SearchResult struct {
	IntimacaoID      string  `json:"id"`
	ProcessNumber    string  `json:"numero_processo"`
	Tribunal         string  `json:"tribunal"`
	AvailabilityDate string  `json:"data_disponibilizacao"`
	Status           string  `json:"status"`
	WorkflowStatus   string  `json:"status_workflow"`
	Snippet          string  `json:"trecho"`
	Rank             float64 `json:"relevancia"`
}

// SearchService searches teor, summary and notes of a practitioner's intimações.
// It uses the FTS5 index when present and falls back to LIKE otherwise.
type SearchService struct {
	db  *gorm.DB
	fts bool
}

// NewSearchService creates a new search service instance
func NewSearchService(db *gorm.DB) *SearchService {
	var count int64
	db.Raw("SELECT count(*) FROM sqlite_master WHERE type='table' AND name='intimacoes_fts'").Scan(&count)
	return &SearchService{db: db, fts: count > 0}
}

// UsesIndex reports whether queries run against the FTS5 table
func (s *SearchService) UsesIndex() bool {
	return s.fts
}

// Search returns the practitioner's intimações that match query, best first
func (s *SearchService) Search(ctx context.Context, practitionerID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 || limit > MaxSearchLimit {
		limit = DefaultSearchLimit
	}

	words := queryWords(query)
	if len(words) == 0 {
		return []SearchResult{}, nil
	}

	if s.fts {
		return s.searchIndex(ctx, practitionerID, words, limit)
	}
	return s.searchLike(ctx, practitionerID, words, limit)
}

func (s *SearchService) searchIndex(ctx context.Context, practitionerID string, words []string, limit int) ([]SearchResult, error) {
	results := []SearchResult{}

	sql := `
		SELECT
			i.id AS intimacao_id,
			i.process_number,
			COALESCE(i.tribunal, '') AS tribunal,
			COALESCE(i.availability_date, '') AS availability_date,
			i.status,
			i.workflow_status,
			snippet(intimacoes_fts, -1, '<mark>', '</mark>', '...', 24) AS snippet,
			bm25(intimacoes_fts) AS rank
		FROM intimacoes_fts
		INNER JOIN intimacoes i ON i.id = intimacoes_fts.intimacao_id
		WHERE intimacoes_fts MATCH ?
		  AND intimacoes_fts.practitioner_id = ?
		ORDER BY rank
		LIMIT ?
	`

	err := s.db.WithContext(ctx).Raw(sql, ftsQuery(words), practitionerID, limit).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	for i := range results {
		results[i].Snippet = processSnippet(results[i].Snippet)
	}
	return results, nil
}

func (s *SearchService) searchLike(ctx context.Context, practitionerID string, words []string, limit int) ([]SearchResult, error) {
	match := sq.Or{}
	for _, w := range words {
		pattern := "%" + w + "%"
		match = append(match,
			sq.Like{"process_number": pattern},
			sq.Like{"teor": pattern},
			sq.Like{"summary": pattern},
			sq.Like{"practitioner_notes": pattern},
		)
	}
	where, args, err := sq.And{sq.Eq{"practitioner_id": practitionerID}, match}.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search: %w", err)
	}

	var rows []models.Intimacao
	err = s.db.WithContext(ctx).
		Where(where, args...).
		Order("available_on DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		text := r.Teor
		if !containsAny(text, words) {
			text = r.Summary
		}
		if !containsAny(text, words) {
			text = r.PractitionerNotes
		}
		results[i] = SearchResult{
			IntimacaoID:      r.ID,
			ProcessNumber:    r.ProcessNumber,
			Tribunal:         r.Tribunal,
			AvailabilityDate: r.AvailabilityDate,
			Status:           r.Status,
			WorkflowStatus:   r.WorkflowStatus,
			Snippet:          excerpt(text, words, 80),
		}
	}
	return results, nil
}

var ftsSpecialChars = regexp.MustCompile(`[*"():^+]`)

// queryWords splits a query into searchable terms of at least two characters
func queryWords(query string) []string {
	cleaned := ftsSpecialChars.ReplaceAllString(query, " ")

	var words []string
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) >= 2 {
			words = append(words, w)
		}
	}
	return words
}

// ftsQuery builds a prefix OR query; terms are quoted so process numbers keep their punctuation
func ftsQuery(words []string) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = `"` + w + `"*`
	}
	return strings.Join(parts, " OR ")
}

func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// excerpt cuts a window of text around the first matching word and marks it
func excerpt(text string, words []string, width int) string {
	runes := []rune(text)
	lower := lowerRunes(text)

	start, length := -1, 0
	for _, w := range words {
		wr := lowerRunes(w)
		if idx := runeIndex(lower, wr); idx >= 0 && (start < 0 || idx < start) {
			start, length = idx, len(wr)
		}
	}
	if start < 0 {
		if len(runes) > width {
			return html.EscapeString(string(runes[:width])) + "..."
		}
		return html.EscapeString(text)
	}

	from := start - width/2
	if from < 0 {
		from = 0
	}
	to := start + length + width/2
	if to > len(runes) {
		to = len(runes)
	}

	var b strings.Builder
	if from > 0 {
		b.WriteString("...")
	}
	b.WriteString(html.EscapeString(string(runes[from:start])))
	b.WriteString("<mark>")
	b.WriteString(html.EscapeString(string(runes[start : start+length])))
	b.WriteString("</mark>")
	b.WriteString(html.EscapeString(string(runes[start+length : to])))
	if to < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

// lowerRunes keeps one rune per input rune so indexes stay aligned with the original
func lowerRunes(s string) []rune {
	out := []rune(s)
	for i, r := range out {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// processSnippet escapes HTML but preserves mark tags
func processSnippet(snippet string) string {
	escaped := html.EscapeString(snippet)
	escaped = strings.ReplaceAll(escaped, "&lt;mark&gt;", "<mark>")
	escaped = strings.ReplaceAll(escaped, "&lt;/mark&gt;", "</mark>")
	return escaped
}
