package handlers

import (
	"context"
	"crm_advocacia_go/config"
	"crm_advocacia_go/middleware"
	"crm_advocacia_go/services"
	"crm_advocacia_go/services/jobs"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// JuridicoHandler serves the intimação API for the authenticated practitioner
type JuridicoHandler struct {
	Credentials   *services.CredentialService
	Intimacoes    *services.IntimacaoService
	Notifications *services.NotificationService
	Archive       *services.IntimacaoArchive
	Search        *services.SearchService
	Collector     *jobs.Collector
	Alerter       *jobs.DeadlineAlerter
	PDFOptions    services.PDFOptions
	Location      *time.Location

	// RenderPDF defaults to headless Chrome
	RenderPDF func(ctx context.Context, html string, opts services.PDFOptions) ([]byte, error)
}

func NewJuridicoHandler(
	credentials *services.CredentialService,
	intimacoes *services.IntimacaoService,
	notifications *services.NotificationService,
	archive *services.IntimacaoArchive,
	collector *jobs.Collector,
	alerter *jobs.DeadlineAlerter,
	cfg *config.Config,
) *JuridicoHandler {
	pdf := services.DefaultPDFOptions()
	pdf.ChromePath = cfg.ChromePath
	return &JuridicoHandler{
		Credentials:   credentials,
		Intimacoes:    intimacoes,
		Notifications: notifications,
		Archive:       archive,
		Search:        services.NewSearchService(intimacoes.DB),
		Collector:     collector,
		Alerter:       alerter,
		PDFOptions:    pdf,
		Location:      cfg.Location(),
		RenderPDF:     services.GeneratePDF,
	}
}

// Register mounts the routes on a group that already requires a practitioner
func (h *JuridicoHandler) Register(g *echo.Group, collectLimiter *middleware.RateLimiter) {
	g.POST("/configurar-credenciais", h.ConfigureCredentials)
	if collectLimiter != nil {
		g.POST("/atualizar-intimacoes", h.ManualCollect, collectLimiter.Middleware())
	} else {
		g.POST("/atualizar-intimacoes", h.ManualCollect)
	}
	g.GET("/status-sincronizacao", h.SyncStatus)
	g.GET("/verificar-prazos", h.CheckDeadlines)
	g.GET("/estatisticas", h.Statistics)
	g.POST("/reprocessar/:id", h.Reprocess)

	g.GET("/intimacoes", h.List)
	g.GET("/intimacoes/exportar", h.Export)
	g.GET("/intimacoes/busca", h.SearchIntimacoes)
	g.GET("/intimacoes/:id/detalhes", h.Detail)
	g.PUT("/intimacoes/:id/status", h.UpdateStatus)
	g.POST("/intimacoes/:id/notas", h.UpdateNotes)
	g.GET("/intimacoes/:id/download/:tipo", h.Download)
	g.GET("/intimacoes/:id/original", h.Original)
	g.GET("/intimacoes/:id/historico", h.History)

	g.GET("/notificacoes", h.Notificacoes)
	g.POST("/notificacoes/:id/lida", h.MarkNotificationRead)
	g.POST("/notificacoes/lidas", h.MarkAllNotificationsRead)
}

type credentialsRequest struct {
	OABNumber      string `json:"numeroOAB"`
	PortalUsername string `json:"usuarioPJE"`
	PortalPassword string `json:"senhaPJE"`
	Tribunal       string `json:"tribunal"`
	Name           string `json:"nome"`
	Email          string `json:"email"`
}

// ConfigureCredentials stores the practitioner's portal access, encrypted
func (h *JuridicoHandler) ConfigureCredentials(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Dados inválidos", err)
	}
	if strings.TrimSpace(req.OABNumber) == "" || strings.TrimSpace(req.PortalUsername) == "" || req.PortalPassword == "" {
		return respondError(c, http.StatusBadRequest, "numeroOAB, usuarioPJE e senhaPJE são obrigatórios", nil)
	}

	p, err := h.Credentials.Configure(middleware.GetPractitionerID(c), services.CredentialInput{
		OABNumber:      req.OABNumber,
		PortalUsername: req.PortalUsername,
		PortalPassword: req.PortalPassword,
		Tribunal:       req.Tribunal,
		Name:           req.Name,
		Email:          req.Email,
	})
	if err != nil {
		log.Printf("Error configuring credentials: %v", err)
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sucesso":  true,
		"mensagem": "Credenciais configuradas com sucesso",
		"advogado": p,
	})
}

type manualCollectRequest struct {
	DateFrom string `json:"dataInicio"`
	DateTo   string `json:"dataFim"`
}

// ManualCollect runs a collection now. Collection failures are reported in the body.
func (h *JuridicoHandler) ManualCollect(c echo.Context) error {
	var req manualCollectRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Dados inválidos", err)
	}

	from, err := h.parseDate(req.DateFrom)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "dataInicio inválida (use AAAA-MM-DD)", err)
	}
	to, err := h.parseDate(req.DateTo)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "dataFim inválida (use AAAA-MM-DD)", err)
	}
	if from != nil && to != nil && from.After(*to) {
		return respondError(c, http.StatusBadRequest, "dataInicio deve ser anterior a dataFim", nil)
	}

	result := h.Collector.ManualCollect(c.Request().Context(), middleware.GetPractitionerID(c), from, to)
	return c.JSON(http.StatusOK, result)
}

// SyncStatus reports the queue and collection times
func (h *JuridicoHandler) SyncStatus(c echo.Context) error {
	status, err := h.Collector.SyncStatus(c.Request().Context())
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.JSON(http.StatusOK, status)
}

// CheckDeadlines lists deadlines ending within the alert window
func (h *JuridicoHandler) CheckDeadlines(c echo.Context) error {
	alerts, err := h.Alerter.Check(middleware.GetPractitionerID(c))
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"alertas": alerts})
}

func (h *JuridicoHandler) Statistics(c echo.Context) error {
	stats, err := h.Intimacoes.Stats(middleware.GetPractitionerID(c))
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Reprocess sends one intimação back through the NLP queue
func (h *JuridicoHandler) Reprocess(c echo.Context) error {
	row, queued, err := h.Collector.Reprocess(middleware.GetPractitionerID(c), c.Param("id"))
	if err != nil {
		return respondIntimacaoError(c, err)
	}

	msg := "Intimação enviada para reprocessamento"
	if !queued {
		msg = "Intimação já está na fila de processamento"
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"sucesso":  true,
		"mensagem": msg,
		"status":   row.Status,
	})
}

// List returns one page of intimações; the total goes in X-Total-Count
func (h *JuridicoHandler) List(c echo.Context) error {
	filter, err := h.filterFromQuery(c)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Filtros inválidos", err)
	}

	intimacoes, total, err := h.Intimacoes.List(middleware.GetPractitionerID(c), filter)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}

	c.Response().Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	return c.JSON(http.StatusOK, intimacoes)
}

// Export downloads every intimação matching the filters as a spreadsheet
func (h *JuridicoHandler) Export(c echo.Context) error {
	filter, err := h.filterFromQuery(c)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Filtros inválidos", err)
	}

	intimacoes, err := h.Intimacoes.ListForExport(middleware.GetPractitionerID(c), filter)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}

	buf, err := services.ExportIntimacoes(intimacoes)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro ao gerar planilha", err)
	}

	filename := fmt.Sprintf("intimacoes_%s.xlsx", time.Now().In(h.location()).Format("20060102_150405"))
	c.Response().Header().Set("Content-Disposition", "attachment; filename="+filename)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// SearchIntimacoes runs a free-text query over teor, summary and notes
func (h *JuridicoHandler) SearchIntimacoes(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return respondError(c, http.StatusBadRequest, "Parâmetro q é obrigatório", nil)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	results, err := h.Search.Search(c.Request().Context(), middleware.GetPractitionerID(c), query, limit)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"resultados": results})
}

func (h *JuridicoHandler) Detail(c echo.Context) error {
	intimacao, err := h.Intimacoes.Get(middleware.GetPractitionerID(c), c.Param("id"))
	if err != nil {
		return respondIntimacaoError(c, err)
	}
	return c.JSON(http.StatusOK, intimacao)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus records the practitioner's workflow status
func (h *JuridicoHandler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Dados inválidos", err)
	}

	if err := h.Intimacoes.UpdateWorkflowStatus(middleware.GetPractitionerID(c), c.Param("id"), req.Status); err != nil {
		return respondIntimacaoError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sucesso":  true,
		"mensagem": "Status atualizado com sucesso",
	})
}

type notesRequest struct {
	Notes string `json:"notas"`
}

func (h *JuridicoHandler) UpdateNotes(c echo.Context) error {
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Dados inválidos", err)
	}

	if err := h.Intimacoes.UpdateNotes(middleware.GetPractitionerID(c), c.Param("id"), req.Notes); err != nil {
		return respondIntimacaoError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sucesso":  true,
		"mensagem": "Notas atualizadas com sucesso",
	})
}

// Download renders the opinion or the draft response as a PDF
func (h *JuridicoHandler) Download(c echo.Context) error {
	intimacao, err := h.Intimacoes.Get(middleware.GetPractitionerID(c), c.Param("id"))
	if err != nil {
		return respondIntimacaoError(c, err)
	}

	kind := c.Param("tipo")
	html, err := services.RenderIntimacaoDocument(intimacao, kind)
	switch {
	case errors.Is(err, services.ErrUnknownDocument):
		return respondError(c, http.StatusBadRequest, "Tipo de documento inválido", err)
	case errors.Is(err, services.ErrDocumentNotReady):
		return respondError(c, http.StatusNotFound, "Arquivo não encontrado", err)
	case err != nil:
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}

	pdf, err := h.RenderPDF(c.Request().Context(), html, h.PDFOptions)
	if err != nil {
		log.Printf("Error generating PDF for %s: %v", intimacao.ID, err)
		return respondError(c, http.StatusInternalServerError, "Erro ao gerar PDF", err)
	}

	c.Response().Header().Set("Content-Disposition", "attachment; filename=\""+services.DocumentFilename(intimacao, kind)+"\"")
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// Original returns the archived portal card; ?versao= picks an older collection
func (h *JuridicoHandler) Original(c echo.Context) error {
	intimacao, err := h.Intimacoes.Get(middleware.GetPractitionerID(c), c.Param("id"))
	if err != nil {
		return respondIntimacaoError(c, err)
	}

	var snap *services.Snapshot
	if version := c.QueryParam("versao"); version != "" {
		snap, err = h.Archive.LoadVersion(c.Request().Context(), intimacao.PractitionerID, intimacao.ProcessNumber, version)
	} else {
		if intimacao.ArchiveKey == "" {
			return respondError(c, http.StatusNotFound, "Arquivo não encontrado", nil)
		}
		snap, err = h.Archive.Load(c.Request().Context(), intimacao.ArchiveKey)
	}
	if errors.Is(err, services.ErrArchiveUnavailable) || errors.Is(err, services.ErrSnapshotNotFound) {
		return respondError(c, http.StatusNotFound, "Arquivo não encontrado", err)
	}
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.JSON(http.StatusOK, snap)
}

// History lists the archived versions of an intimação
func (h *JuridicoHandler) History(c echo.Context) error {
	intimacao, err := h.Intimacoes.Get(middleware.GetPractitionerID(c), c.Param("id"))
	if err != nil {
		return respondIntimacaoError(c, err)
	}

	versions, err := h.Archive.History(c.Request().Context(), intimacao.PractitionerID, intimacao.ProcessNumber)
	if errors.Is(err, services.ErrArchiveUnavailable) {
		versions = []string{}
	} else if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"versoes": versions})
}

func (h *JuridicoHandler) Notificacoes(c echo.Context) error {
	id := middleware.GetPractitionerID(c)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	notifications, err := h.Notifications.GetUnreadNotifications(id, limit)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	count, err := h.Notifications.GetNotificationCount(id)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notificacoes": notifications,
		"naoLidas":     count,
	})
}

func (h *JuridicoHandler) MarkNotificationRead(c echo.Context) error {
	if err := h.Notifications.MarkAsRead(c.Param("id"), middleware.GetPractitionerID(c)); err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *JuridicoHandler) MarkAllNotificationsRead(c echo.Context) error {
	if err := h.Notifications.MarkAllAsRead(middleware.GetPractitionerID(c)); err != nil {
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *JuridicoHandler) filterFromQuery(c echo.Context) (services.IntimacaoFilter, error) {
	filter := services.IntimacaoFilter{
		ProcessNumber: c.QueryParam("numeroProcesso"),
		Status:        c.QueryParam("status"),
	}

	var err error
	if filter.DateFrom, err = h.parseDate(c.QueryParam("dataInicio")); err != nil {
		return filter, err
	}
	if filter.DateTo, err = h.parseDate(c.QueryParam("dataFim")); err != nil {
		return filter, err
	}

	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Normalize()
	return filter, nil
}

// parseDate reads an optional YYYY-MM-DD date in the configured timezone
func (h *JuridicoHandler) parseDate(value string) (*time.Time, error) {
	return services.ParseOptionalDate(value, h.location())
}

func (h *JuridicoHandler) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// respondIntimacaoError maps store errors for a single intimação
func respondIntimacaoError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrIntimacaoNotFound):
		return respondError(c, http.StatusNotFound, "Intimação não encontrada", nil)
	case errors.Is(err, services.ErrInvalidWorkflowStatus):
		return respondError(c, http.StatusBadRequest, "Status inválido", nil)
	case errors.Is(err, services.ErrNoTeor):
		return respondError(c, http.StatusUnprocessableEntity, "Intimação sem teor para processamento", nil)
	default:
		return respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
}

// respondError writes {erro, detalhes}; detalhes is left out in production
func respondError(c echo.Context, status int, message string, err error) error {
	body := map[string]interface{}{"erro": message}
	if err != nil && !isProduction(c) {
		body["detalhes"] = err.Error()
	}
	return c.JSON(status, body)
}

func isProduction(c echo.Context) bool {
	cfg, ok := c.Get("config").(*config.Config)
	return ok && cfg.IsProduction()
}
