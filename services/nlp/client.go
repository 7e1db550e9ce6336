package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one NLP call end to end
const DefaultTimeout = 120 * time.Second

// Deadline is a time limit found in the text
type Deadline struct {
	Days     int    `json:"dias"`
	Context  string `json:"contexto"`
	Position int    `json:"posicao"`
}

// Result is everything the service extracts from one document
type Result struct {
	Summary            string                 `json:"resumo"`
	Entities           map[string]interface{} `json:"entidades"`
	Deadlines          []Deadline             `json:"prazos"`
	DocumentType       string                 `json:"tipo_documento"`
	LegalOpinion       string                 `json:"parecer"`
	RecommendedActions []string               `json:"acoes_recomendadas"`
	DraftResponse      string                 `json:"minuta_resposta"`
	Urgency            string                 `json:"urgencia"`
	Complexity         string                 `json:"complexidade"`
}

type processRequest struct {
	Teor         string  `json:"teor_documento"`
	DocumentType *string `json:"tipo_documento"`
}

// Client talks to the document-understanding service
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a reusable HTTP client. A zero timeout uses DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// Process submits one document. knownType may be nil to let the service classify.
func (c *Client) Process(ctx context.Context, text string, knownType *string) (*Result, error) {
	cleaned := CleanText(text)
	log.Printf("[NLP] Processing document (%d chars)", len(cleaned))

	var result Result
	if err := c.post(ctx, "/processar-documento", processRequest{Teor: cleaned, DocumentType: knownType}, &result); err != nil {
		log.Printf("[NLP] %v", err)
		return nil, err
	}
	return &result, nil
}

// Health reports whether the service answers its health endpoint
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return &ConfigError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ServiceError{StatusCode: resp.StatusCode, Detail: resp.Status}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UnavailableError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &ServiceError{StatusCode: resp.StatusCode, Detail: errorDetail(resp, data)}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &ConfigError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorDetail extracts {"detail": ...}; FastAPI validation errors carry a list there
func errorDetail(resp *http.Response, data []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}
		return string(payload.Detail)
	}
	return resp.Status
}

// IsUnavailable reports whether err means the service could not be reached
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}
