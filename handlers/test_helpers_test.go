package handlers

import (
	"context"
	"crm_advocacia_go/config"
	"crm_advocacia_go/db"
	"crm_advocacia_go/middleware"
	"crm_advocacia_go/models"
	"crm_advocacia_go/services"
	"crm_advocacia_go/services/jobs"
	"crm_advocacia_go/services/judicial"
	"crm_advocacia_go/services/nlp"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests while allowing shared cache for the queue worker
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	assert.NoError(t, err)

	err = testDB.AutoMigrate(
		&models.Practitioner{},
		&models.Intimacao{},
		&models.SyncHistory{},
		&models.Notification{},
	)
	assert.NoError(t, err)

	// The queue writes from its own goroutine
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// Set global DB
	db.DB = testDB

	return testDB
}

func setupEcho(method, path string, body io.Reader) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// Add config to context
	c.Set("config", &config.Config{
		Environment: "test",
	})

	return e, c, rec
}

// stubProvider returns fixed cards and remembers the last query
type stubProvider struct {
	mu    sync.Mutex
	cards []judicial.RawIntimacao
	err   error
	last  judicial.Query
	calls int
}

func (s *stubProvider) Collect(_ context.Context, q judicial.Query) ([]judicial.RawIntimacao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = q
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.cards, nil
}

func (s *stubProvider) lastQuery() judicial.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type completeProcessor struct{}

func (completeProcessor) Process(_ context.Context, text string, _ *string) (*nlp.Result, error) {
	return &nlp.Result{
		Summary:       "Resumo: " + text,
		LegalOpinion:  "Parecer completo.",
		DraftResponse: "Minuta completa.",
		Deadlines:     []nlp.Deadline{{Days: 15, Context: "contestação"}},
		Urgency:       "alta",
	}, nil
}

var fixtureNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

type juridicoFixture struct {
	db       *gorm.DB
	e        *echo.Echo
	cfg      *config.Config
	handler  *JuridicoHandler
	provider *stubProvider
	queue    *jobs.ReprocessQueue
	creds    *services.CredentialService
	store    *services.IntimacaoService
	pdfCalls int
}

func newJuridicoFixture(t *testing.T) *juridicoFixture {
	database := setupTestDB(t)
	cfg := &config.Config{
		Environment:    "test",
		Timezone:       "UTC",
		AppURL:         "http://crm.local",
		EmailTestMode:  true,
		DeadlineWindow: 5,
	}

	vault, err := services.NewCredentialVault("handler-test-secret")
	require.NoError(t, err)

	creds := services.NewCredentialService(database, vault)
	store := services.NewIntimacaoService(database)
	notifications := services.NewNotificationService(database)
	archive := services.NewIntimacaoArchive(services.NewLocalStorage(t.TempDir()))

	queue := jobs.NewReprocessQueue(completeProcessor{}, store, 0)
	t.Cleanup(queue.Stop)

	provider := &stubProvider{}
	collector := jobs.NewCollector(creds, store, notifications, archive, queue, provider, jobs.CollectorConfig{
		Location: time.UTC,
	})
	collector.Now = func() time.Time { return fixtureNow }

	alerter := jobs.NewDeadlineAlerter(creds, store, notifications, cfg)
	alerter.Now = func() time.Time { return fixtureNow }

	f := &juridicoFixture{
		db:       database,
		cfg:      cfg,
		provider: provider,
		queue:    queue,
		creds:    creds,
		store:    store,
	}

	f.handler = NewJuridicoHandler(creds, store, notifications, archive, collector, alerter, cfg)
	f.handler.RenderPDF = func(_ context.Context, html string, _ services.PDFOptions) ([]byte, error) {
		f.pdfCalls++
		return []byte("%PDF-1.4 " + html[:10]), nil
	}

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("config", cfg)
			return next(c)
		}
	})
	api := e.Group("/api/juridico", middleware.RequirePractitioner())
	f.handler.Register(api, nil)
	f.e = e

	return f
}

func (f *juridicoFixture) serve(method, path, practitionerID, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if practitionerID != "" {
		req.Header.Set(middleware.HeaderPractitionerID, practitionerID)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *juridicoFixture) practitioner(t *testing.T, oab, email string) *models.Practitioner {
	p, err := f.creds.Configure(uuid.New().String(), services.CredentialInput{
		OABNumber:      oab,
		PortalUsername: "user" + oab,
		PortalPassword: "senha" + oab,
		Email:          email,
	})
	require.NoError(t, err)
	return p
}

func (f *juridicoFixture) intimacao(t *testing.T, practitionerID, number, teor string) *models.Intimacao {
	row, created, err := f.store.Create(practitionerID, rawCard(number, teor), models.StatusForText(teor))
	require.NoError(t, err)
	require.True(t, created)
	return row
}

func rawCard(number, teor string) judicial.RawIntimacao {
	return judicial.RawIntimacao{
		ProcessNumber:    number,
		Teor:             teor,
		AvailabilityDate: "15/03/2024",
		Tribunal:         "TJCE",
		IssuingBody:      "1ª Vara Cível",
	}
}
