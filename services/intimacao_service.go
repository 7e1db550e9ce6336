package services

import (
	"crm_advocacia_go/models"
	"crm_advocacia_go/services/judicial"
	"crm_advocacia_go/services/nlp"
	"errors"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrIntimacaoNotFound is returned when the intimação does not exist for the practitioner
	ErrIntimacaoNotFound = errors.New("intimação não encontrada")
	// ErrInvalidWorkflowStatus is returned for a status outside the workflow set
	ErrInvalidWorkflowStatus = errors.New("status inválido")
	// ErrNoTeor is returned when an intimação without text is sent for processing
	ErrNoTeor = errors.New("intimação sem teor para processamento")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// IntimacaoFilter narrows a listing
type IntimacaoFilter struct {
	ProcessNumber string
	Status        string
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	Limit         int
}

// Normalize clamps pagination into range
func (f *IntimacaoFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
}

// IntimacaoStats counts intimações per NLP status
type IntimacaoStats struct {
	Total      int64 `json:"total"`
	Processed  int64 `json:"processadas"`
	Pending    int64 `json:"pendentes"`
	WithErrors int64 `json:"comErro"`
	NoText     int64 `json:"semTeor"`
}

// DeadlineAlert is one deadline ending within the alert window
type DeadlineAlert struct {
	IntimacaoID   string    `json:"intimacaoId"`
	ProcessNumber string    `json:"numeroProcesso"`
	Days          int       `json:"prazo"`
	DueDate       time.Time `json:"-"`
	DueDateISO    string    `json:"dataLimite"`
	Urgency       string    `json:"urgencia,omitempty"`
	Message       string    `json:"mensagem"`
}

// IntimacaoService is the persistence boundary for intimações
type IntimacaoService struct {
	DB *gorm.DB
}

func NewIntimacaoService(db *gorm.DB) *IntimacaoService {
	return &IntimacaoService{DB: db}
}

// FindByProcessNumber returns nil, nil when the practitioner has no such intimação
func (s *IntimacaoService) FindByProcessNumber(practitionerID, processNumber string) (*models.Intimacao, error) {
	var intimacao models.Intimacao
	err := s.DB.Where("practitioner_id = ? AND process_number = ?", practitionerID, processNumber).
		First(&intimacao).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up intimação %s: %w", processNumber, err)
	}
	return &intimacao, nil
}

// Create inserts a scraped card. If a concurrent run inserted the same
// (practitioner, process number) first, the existing row is returned with created=false.
func (s *IntimacaoService) Create(practitionerID string, raw judicial.RawIntimacao, status string) (*models.Intimacao, bool, error) {
	intimacao := models.Intimacao{
		PractitionerID:   practitionerID,
		ProcessNumber:    raw.ProcessNumber,
		Teor:             raw.Teor,
		AvailabilityDate: raw.AvailabilityDate,
		AvailableOn:      parseAvailableOn(raw.AvailabilityDate),
		Tribunal:         raw.Tribunal,
		FilePath:         fileReference(raw),
		Status:           status,
	}

	result := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "practitioner_id"}, {Name: "process_number"}},
		DoNothing: true,
	}).Create(&intimacao)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to insert intimação %s: %w", raw.ProcessNumber, result.Error)
	}

	if result.RowsAffected == 0 {
		existing, err := s.FindByProcessNumber(practitionerID, raw.ProcessNumber)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("intimação %s neither inserted nor found", raw.ProcessNumber)
		}
		return existing, false, nil
	}

	return &intimacao, true, nil
}

// UpdateForReprocessing overwrites the portal fields of an existing row and resets its status.
// Stored text is never replaced by a missing one, and a row with text never becomes sem_teor.
func (s *IntimacaoService) UpdateForReprocessing(existing *models.Intimacao, raw judicial.RawIntimacao, status string) (*models.Intimacao, error) {
	updates := map[string]interface{}{
		"tribunal": raw.Tribunal,
	}

	teor := existing.Teor
	if raw.HasTeor() {
		teor = raw.Teor
		updates["teor"] = raw.Teor
	}
	if models.HasText(raw.AvailabilityDate) {
		updates["availability_date"] = raw.AvailabilityDate
		updates["available_on"] = parseAvailableOn(raw.AvailabilityDate)
	}
	if ref := fileReference(raw); models.HasText(ref) {
		updates["file_path"] = ref
	}

	if status == models.IntimacaoStatusNoText && models.HasText(teor) {
		status = models.IntimacaoStatusPending
	}
	updates["status"] = status

	if err := s.DB.Model(&models.Intimacao{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update intimação %s: %w", existing.ID, err)
	}

	return s.findByID(existing.ID)
}

// ApplyNLPResult stores the processing result and marks the row processado_nlp
func (s *IntimacaoService) ApplyNLPResult(id string, result *nlp.Result) error {
	deadlines := make(models.JSONList, 0, len(result.Deadlines))
	for _, d := range result.Deadlines {
		deadlines = append(deadlines, map[string]interface{}{
			"dias":     d.Days,
			"contexto": d.Context,
			"posicao":  d.Position,
		})
	}
	actions := make(models.JSONList, 0, len(result.RecommendedActions))
	for _, a := range result.RecommendedActions {
		actions = append(actions, a)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"summary":             result.Summary,
		"entities":            models.JSONMap(result.Entities),
		"deadlines":           deadlines,
		"document_type":       result.DocumentType,
		"legal_opinion":       result.LegalOpinion,
		"recommended_actions": actions,
		"draft_response":      result.DraftResponse,
		"urgency":             result.Urgency,
		"complexity":          result.Complexity,
		"status":              models.IntimacaoStatusProcessed,
		"processed_at":        &now,
	}

	existing, err := s.findByID(id)
	if err != nil {
		return err
	}
	// A previous failure message would otherwise fail the quality gate forever
	if containsErrorMarker(existing.PractitionerNotes) {
		updates["practitioner_notes"] = ""
	}

	if err := s.DB.Model(&models.Intimacao{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to store NLP result for %s: %w", id, err)
	}
	return nil
}

// MarkNLPError records a processing failure where the practitioner can see it
func (s *IntimacaoService) MarkNLPError(id, message string) error {
	res := s.DB.Model(&models.Intimacao{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":             models.IntimacaoStatusNLPError,
		"practitioner_notes": message,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to mark intimação %s as erro_nlp: %w", id, res.Error)
	}
	return nil
}

// MarkPending resets a row with text to pendente_processamento_nlp for a manual retry
func (s *IntimacaoService) MarkPending(practitionerID, id string) (*models.Intimacao, error) {
	intimacao, err := s.Get(practitionerID, id)
	if err != nil {
		return nil, err
	}
	if !intimacao.HasTeor() {
		return nil, ErrNoTeor
	}

	if err := s.DB.Model(&models.Intimacao{}).Where("id = ?", id).
		Update("status", models.IntimacaoStatusPending).Error; err != nil {
		return nil, fmt.Errorf("failed to requeue intimação %s: %w", id, err)
	}
	intimacao.Status = models.IntimacaoStatusPending
	return intimacao, nil
}

// ListPending returns rows still waiting for NLP, oldest first
func (s *IntimacaoService) ListPending(limit int) ([]models.Intimacao, error) {
	var rows []models.Intimacao
	err := s.DB.Where("status = ?", models.IntimacaoStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending intimações: %w", err)
	}
	return rows, nil
}

// SetArchiveKey links the raw snapshot stored for an intimação
func (s *IntimacaoService) SetArchiveKey(id, key string) error {
	return s.DB.Model(&models.Intimacao{}).Where("id = ?", id).Update("archive_key", key).Error
}

// Get loads one intimação owned by the practitioner
func (s *IntimacaoService) Get(practitionerID, id string) (*models.Intimacao, error) {
	var intimacao models.Intimacao
	err := s.DB.Where("id = ? AND practitioner_id = ?", id, practitionerID).First(&intimacao).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntimacaoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load intimação: %w", err)
	}
	return &intimacao, nil
}

func (s *IntimacaoService) findByID(id string) (*models.Intimacao, error) {
	var intimacao models.Intimacao
	if err := s.DB.First(&intimacao, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntimacaoNotFound
		}
		return nil, fmt.Errorf("failed to load intimação: %w", err)
	}
	return &intimacao, nil
}

// List returns one page of the practitioner's intimações, newest first
func (s *IntimacaoService) List(practitionerID string, filter IntimacaoFilter) ([]models.Intimacao, int64, error) {
	filter.Normalize()

	where, args, err := filterPredicate(practitionerID, filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build filter: %w", err)
	}

	query := func() *gorm.DB {
		return s.DB.Model(&models.Intimacao{}).Where(where, args...)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count intimações: %w", err)
	}

	var intimacoes []models.Intimacao
	err = query().
		Order("available_on DESC").
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&intimacoes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list intimações: %w", err)
	}

	return intimacoes, total, nil
}

func filterPredicate(practitionerID string, filter IntimacaoFilter) sq.And {
	pred := sq.And{sq.Eq{"practitioner_id": practitionerID}}

	if n := NormalizeProcessNumber(filter.ProcessNumber); n != "" {
		pred = append(pred, sq.Like{"process_number": "%" + n + "%"})
	}
	if filter.Status != "" {
		pred = append(pred, sq.Eq{"status": filter.Status})
	}
	if filter.DateFrom != nil {
		pred = append(pred, sq.GtOrEq{"available_on": StartOfDay(filter.DateFrom.UTC())})
	}
	if filter.DateTo != nil {
		pred = append(pred, sq.LtOrEq{"available_on": StartOfDay(filter.DateTo.UTC())})
	}
	return pred
}

// UpdateWorkflowStatus records what the practitioner did about an intimação
func (s *IntimacaoService) UpdateWorkflowStatus(practitionerID, id, status string) error {
	if !models.IsValidWorkflowStatus(status) {
		return ErrInvalidWorkflowStatus
	}
	return s.updateOwned(practitionerID, id, "workflow_status", status)
}

// UpdateNotes replaces the practitioner's notes
func (s *IntimacaoService) UpdateNotes(practitionerID, id, notes string) error {
	return s.updateOwned(practitionerID, id, "practitioner_notes", notes)
}

func (s *IntimacaoService) updateOwned(practitionerID, id, column string, value interface{}) error {
	res := s.DB.Model(&models.Intimacao{}).
		Where("id = ? AND practitioner_id = ?", id, practitionerID).
		Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update intimação: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrIntimacaoNotFound
	}
	return nil
}

// Stats counts the practitioner's intimações by NLP status
func (s *IntimacaoService) Stats(practitionerID string) (IntimacaoStats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.DB.Model(&models.Intimacao{}).
		Select("status, COUNT(*) AS count").
		Where("practitioner_id = ?", practitionerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return IntimacaoStats{}, fmt.Errorf("failed to compute statistics: %w", err)
	}

	var stats IntimacaoStats
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case models.IntimacaoStatusProcessed:
			stats.Processed = r.Count
		case models.IntimacaoStatusPending:
			stats.Pending = r.Count
		case models.IntimacaoStatusNLPError:
			stats.WithErrors = r.Count
		case models.IntimacaoStatusNoText:
			stats.NoText = r.Count
		}
	}
	return stats, nil
}

// UrgentDeadlines returns deadlines, counted in calendar days from the
// availability date, that end after now and within window.
func (s *IntimacaoService) UrgentDeadlines(practitionerID string, now time.Time, window time.Duration) ([]DeadlineAlert, error) {
	var intimacoes []models.Intimacao
	err := s.DB.
		Where("practitioner_id = ?", practitionerID).
		Where("status IN ?", []string{models.IntimacaoStatusPending, models.IntimacaoStatusProcessed}).
		Where("deadlines IS NOT NULL AND deadlines <> '' AND deadlines <> '[]'").
		Order("available_on DESC").
		Find(&intimacoes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load intimações with deadlines: %w", err)
	}

	alerts := []DeadlineAlert{}
	for _, intimacao := range intimacoes {
		published, err := ParseAvailabilityDate(intimacao.AvailabilityDate, now.Location())
		if err != nil {
			log.Printf("[DEADLINE] Skipping %s: %v", intimacao.ID, err)
			continue
		}

		for _, days := range deadlineDays(intimacao.Deadlines) {
			due := published.AddDate(0, 0, days)
			if !due.After(now) || due.Sub(now) > window {
				continue
			}
			alerts = append(alerts, DeadlineAlert{
				IntimacaoID:   intimacao.ID,
				ProcessNumber: intimacao.ProcessNumber,
				Days:          days,
				DueDate:       due,
				DueDateISO:    FormatISODate(due),
				Urgency:       intimacao.Urgency,
				Message:       fmt.Sprintf("Prazo de %d dias se encerrando para o processo %s.", days, intimacao.ProcessNumber),
			})
		}
	}
	return alerts, nil
}

// deadlineDays reads the "dias" of every stored deadline, ignoring malformed entries
func deadlineDays(list models.JSONList) []int {
	var days []int
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		switch v := entry["dias"].(type) {
		case float64:
			days = append(days, int(v))
		case int:
			days = append(days, v)
		}
	}
	return days
}

// ListForExport returns every intimação matching the filter, without pagination
func (s *IntimacaoService) ListForExport(practitionerID string, filter IntimacaoFilter) ([]models.Intimacao, error) {
	where, args, err := filterPredicate(practitionerID, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	var intimacoes []models.Intimacao
	if err := s.DB.Where(where, args...).Order("available_on DESC").Find(&intimacoes).Error; err != nil {
		return nil, fmt.Errorf("failed to export intimações: %w", err)
	}
	return intimacoes, nil
}

// LastSyncAt returns when the most recent collection run started, if any
func (s *IntimacaoService) LastSyncAt() (*time.Time, error) {
	var history models.SyncHistory
	err := s.DB.Order("started_at DESC").First(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync history: %w", err)
	}
	return &history.StartedAt, nil
}

// RecordSync stores the outcome of one collection run
func (s *IntimacaoService) RecordSync(entry *models.SyncHistory) error {
	if err := s.DB.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record sync: %w", err)
	}
	return nil
}

func parseAvailableOn(published string) *time.Time {
	if !models.HasText(published) {
		return nil
	}
	t, err := ParseAvailabilityDate(published, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// fileReference prefers the printable certificate, then the full-text link
func fileReference(raw judicial.RawIntimacao) string {
	if models.HasText(raw.CertificateURL) {
		return raw.CertificateURL
	}
	return raw.FullTextLink
}
