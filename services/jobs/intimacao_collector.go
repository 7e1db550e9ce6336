package jobs

import (
	"context"
	"crm_advocacia_go/models"
	"crm_advocacia_go/services"
	"crm_advocacia_go/services/judicial"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrCredentialsUnavailable is returned when a practitioner's portal password cannot be decrypted
var ErrCredentialsUnavailable = errors.New("portal credentials unavailable")

// CollectorConfig holds the collection defaults
type CollectorConfig struct {
	DefaultLookbackDays   int
	NewLawyerLookbackDays int
	Location              *time.Location
	// Pause between practitioners in a batch
	Pause time.Duration
}

// CollectResult counts what happened to the cards of one collection
type CollectResult struct {
	Collected int
	Inserted  int
	Updated   int
	Skipped   int
	Enqueued  int
}

// ManualCollectResult is reported to the practitioner; failures are described, never returned
type ManualCollectResult struct {
	Success bool   `json:"sucesso"`
	Count   int    `json:"quantidade"`
	Message string `json:"mensagem"`
}

// Status is a snapshot of the collection pipeline
type Status struct {
	QueueDepth   int        `json:"filaProcessamento"`
	IsProcessing bool       `json:"processandoAtualmente"`
	LastRunAt    *time.Time `json:"ultimaColeta"`
	NextRunAt    *time.Time `json:"proximaColeta"`
}

// Collector runs portal collections and feeds the reprocess queue
type Collector struct {
	Credentials   *services.CredentialService
	Intimacoes    *services.IntimacaoService
	Notifications *services.NotificationService
	Archive       *services.IntimacaoArchive
	Queue         *ReprocessQueue
	Provider      judicial.Provider
	Config        CollectorConfig

	Now     func() time.Time
	NextRun func() *time.Time

	// One browser session at a time
	runMu sync.Mutex
}

func NewCollector(
	credentials *services.CredentialService,
	intimacoes *services.IntimacaoService,
	notifications *services.NotificationService,
	archive *services.IntimacaoArchive,
	queue *ReprocessQueue,
	provider judicial.Provider,
	cfg CollectorConfig,
) *Collector {
	if cfg.DefaultLookbackDays <= 0 {
		cfg.DefaultLookbackDays = 1
	}
	if cfg.NewLawyerLookbackDays <= 0 {
		cfg.NewLawyerLookbackDays = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Collector{
		Credentials:   credentials,
		Intimacoes:    intimacoes,
		Notifications: notifications,
		Archive:       archive,
		Queue:         queue,
		Provider:      provider,
		Config:        cfg,
		Now:           time.Now,
	}
}

// DateRange returns the default collection window for a practitioner:
// today back to the lookback, longer until the first successful run.
func (c *Collector) DateRange(p *models.Practitioner) (time.Time, time.Time) {
	to := services.StartOfDay(c.Now().In(c.Config.Location))
	lookback := c.Config.DefaultLookbackDays
	if p.IsNew {
		lookback = c.Config.NewLawyerLookbackDays
	}
	return to.AddDate(0, 0, -lookback), to
}

// CollectForPractitioner scrapes one practitioner's intimações and stores them.
// A store error aborts this practitioner; what was already written stays.
func (c *Collector) CollectForPractitioner(ctx context.Context, p *models.Practitioner, from, to *time.Time) (CollectResult, error) {
	var res CollectResult

	password, err := c.Credentials.PortalPassword(p)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}

	dateFrom, dateTo := c.DateRange(p)
	if from != nil {
		dateFrom = *from
	}
	if to != nil {
		dateTo = *to
	}

	c.runMu.Lock()
	raws, err := c.Provider.Collect(ctx, judicial.Query{
		OAB:      p.OABNumber,
		Tribunal: p.Tribunal,
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Username: p.PortalUsername,
		Password: password,
	})
	c.runMu.Unlock()
	if err != nil {
		return res, fmt.Errorf("portal collection failed: %w", err)
	}
	res.Collected = len(raws)

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := c.storeCard(ctx, p, raw, &res); err != nil {
			return res, err
		}
	}

	if res.Inserted > 0 && c.Notifications != nil {
		if err := c.Notifications.NotifyNewIntimacoes(p.ID, res.Inserted); err != nil {
			log.Printf("[JOB] Failed to notify practitioner %s: %v", p.ID, err)
		}
	}
	if p.IsNew {
		if err := c.Credentials.MarkOnboarded(p.ID); err != nil {
			log.Printf("[JOB] Failed to clear new-practitioner flag for %s: %v", p.ID, err)
		} else {
			p.IsNew = false
		}
	}

	log.Printf("[JOB] Practitioner %s: %d collected, %d inserted, %d updated, %d skipped, %d queued",
		p.ID, res.Collected, res.Inserted, res.Updated, res.Skipped, res.Enqueued)
	return res, nil
}

func (c *Collector) storeCard(ctx context.Context, p *models.Practitioner, raw judicial.RawIntimacao, res *CollectResult) error {
	// Without a process number the card cannot be deduplicated
	if !models.HasText(raw.ProcessNumber) {
		res.Skipped++
		return nil
	}
	if !models.HasText(raw.Tribunal) {
		raw.Tribunal = p.Tribunal
	}

	existing, err := c.Intimacoes.FindByProcessNumber(p.ID, raw.ProcessNumber)
	if err != nil {
		return err
	}

	decision := services.Decide(raw, existing)

	var row *models.Intimacao
	switch decision.Action {
	case services.ActionSkip:
		res.Skipped++
		return nil

	case services.ActionInsert:
		var created bool
		row, created, err = c.Intimacoes.Create(p.ID, raw, decision.Status)
		if err != nil {
			return err
		}
		if !created {
			// Another run inserted it first
			res.Skipped++
			return nil
		}
		res.Inserted++

	case services.ActionUpdateAndRequeue:
		row, err = c.Intimacoes.UpdateForReprocessing(existing, raw, decision.Status)
		if err != nil {
			return err
		}
		res.Updated++
	}

	c.archive(ctx, p.ID, row, raw)

	if row.Status == models.IntimacaoStatusPending && row.HasTeor() && c.Queue != nil {
		if c.Queue.Enqueue(QueueItem{
			IntimacaoID:    row.ID,
			ProcessNumber:  row.ProcessNumber,
			Teor:           row.Teor,
			PractitionerID: p.ID,
		}) {
			res.Enqueued++
		}
	}
	return nil
}

// archive stores the raw card; failures are logged and never block ingestion
func (c *Collector) archive(ctx context.Context, practitionerID string, row *models.Intimacao, raw judicial.RawIntimacao) {
	if c.Archive == nil {
		return
	}
	key, err := c.Archive.Save(ctx, practitionerID, raw)
	if errors.Is(err, services.ErrArchiveUnavailable) {
		return
	}
	if err != nil {
		log.Printf("[JOB] Failed to archive snapshot for %s: %v", row.ProcessNumber, err)
		return
	}
	if err := c.Intimacoes.SetArchiveKey(row.ID, key); err != nil {
		log.Printf("[JOB] Failed to store archive key for %s: %v", row.ID, err)
		return
	}
	row.ArchiveKey = key
}

// CollectForAllPractitioners is the daily sweep. Practitioners run one after another;
// a failure is recorded and the sweep moves on.
func (c *Collector) CollectForAllPractitioners(ctx context.Context) error {
	practitioners, err := c.Credentials.ListActive()
	if err != nil {
		log.Printf("[JOB] Error fetching practitioners for collection: %v", err)
		return err
	}

	log.Printf("[JOB] Found %d practitioners to collect", len(practitioners))

	for i := range practitioners {
		if err := ctx.Err(); err != nil {
			log.Printf("[JOB] Collection sweep interrupted: %v", err)
			return err
		}

		p := &practitioners[i]
		started := c.Now()
		res, err := c.CollectForPractitioner(ctx, p, nil, nil)
		if err != nil {
			log.Printf("[JOB] Error collecting for practitioner %s (OAB %s): %v", p.ID, p.OABNumber, err)
		}
		c.recordRun(p.ID, models.SyncKindScheduled, started, res, err)

		if i < len(practitioners)-1 && c.Config.Pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.Config.Pause):
			}
		}
	}
	return nil
}

// ManualCollect runs a collection on behalf of the practitioner
func (c *Collector) ManualCollect(ctx context.Context, practitionerID string, from, to *time.Time) ManualCollectResult {
	p, err := c.Credentials.GetActive(practitionerID)
	if err != nil {
		log.Printf("[JOB] Manual collection for %s: %v", practitionerID, err)
		msg := err.Error()
		if errors.Is(err, services.ErrPractitionerNotFound) {
			msg = "Advogado não encontrado"
		}
		return ManualCollectResult{Success: false, Count: 0, Message: "Erro na coleta: " + msg}
	}

	started := c.Now()
	res, err := c.CollectForPractitioner(ctx, p, from, to)
	c.recordRun(p.ID, models.SyncKindManual, started, res, err)
	if err != nil {
		log.Printf("[JOB] Manual collection for %s failed: %v", practitionerID, err)
		return ManualCollectResult{Success: false, Count: 0, Message: "Erro na coleta: " + err.Error()}
	}

	return ManualCollectResult{
		Success: true,
		Count:   res.Collected,
		Message: fmt.Sprintf("%d intimações coletadas com sucesso", res.Collected),
	}
}

func (c *Collector) recordRun(practitionerID, kind string, started time.Time, res CollectResult, runErr error) {
	finished := c.Now()
	entry := &models.SyncHistory{
		PractitionerID: practitionerID,
		Kind:           kind,
		Status:         models.SyncStatusSuccess,
		Collected:      res.Collected,
		Message:        fmt.Sprintf("%d inseridas, %d atualizadas, %d ignoradas", res.Inserted, res.Updated, res.Skipped),
		StartedAt:      started,
		FinishedAt:     &finished,
	}
	if runErr != nil {
		entry.Status = models.SyncStatusError
		entry.Message = runErr.Error()
	}
	if err := c.Intimacoes.RecordSync(entry); err != nil {
		log.Printf("[JOB] %v", err)
	}
}

// SyncStatus reports the queue and the last and next collection times
func (c *Collector) SyncStatus(ctx context.Context) (Status, error) {
	var status Status
	if c.Queue != nil {
		status.QueueDepth = c.Queue.Depth()
		status.IsProcessing = c.Queue.IsDraining()
	}

	last, err := c.Intimacoes.LastSyncAt()
	if err != nil {
		return status, err
	}
	status.LastRunAt = last

	if c.NextRun != nil {
		status.NextRunAt = c.NextRun()
	}
	return status, ctx.Err()
}

// RequeuePending feeds the queue with rows left pending by a previous process.
// The queue lives in memory; the pending status in the database is what survives a restart.
func (c *Collector) RequeuePending(limit int) (int, error) {
	if c.Queue == nil {
		return 0, nil
	}
	rows, err := c.Intimacoes.ListPending(limit)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, row := range rows {
		if !row.HasTeor() {
			continue
		}
		if c.Queue.Enqueue(QueueItem{
			IntimacaoID:    row.ID,
			ProcessNumber:  row.ProcessNumber,
			Teor:           row.Teor,
			PractitionerID: row.PractitionerID,
		}) {
			queued++
		}
	}
	if queued > 0 {
		log.Printf("[QUEUE] Requeued %d pending intimações", queued)
	}
	return queued, nil
}

// Reprocess puts one intimação back through the queue
func (c *Collector) Reprocess(practitionerID, intimacaoID string) (*models.Intimacao, bool, error) {
	row, err := c.Intimacoes.MarkPending(practitionerID, intimacaoID)
	if err != nil {
		return nil, false, err
	}
	queued := c.Queue != nil && c.Queue.Enqueue(QueueItem{
		IntimacaoID:    row.ID,
		ProcessNumber:  row.ProcessNumber,
		Teor:           row.Teor,
		PractitionerID: practitionerID,
	})
	return row, queued, nil
}
