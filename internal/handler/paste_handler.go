package handler

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/SergeiKhy/pastebin/internal/middleware"
	"github.com/SergeiKhy/pastebin/internal/models"
	"github.com/SergeiKhy/pastebin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Тексты ошибок API
const (
	msgInvalidJSON     = "Invalid JSON body"
	msgInvalidContent  = "content is required and must be a non-empty string"
	msgInvalidTTL      = "ttl_seconds must be an integer >= 1"
	msgInvalidMaxViews = "max_views must be an integer >= 1"
	msgBodyTooLarge    = "Request body too large"
	msgNotFound        = "Paste not found"
	msgInternal        = "Internal server error"
)

const defaultMaxBodyBytes = 1 << 20

type PasteHandler struct {
	service       service.PasteService
	viewProcessor service.ViewProcessor
	logger        *zap.Logger
	baseURL       string
	maxBodyBytes  int64
}

func NewPasteHandler(
	pasteService service.PasteService,
	viewProcessor service.ViewProcessor,
	logger *zap.Logger,
	baseURL string,
	maxBodyBytes int64,
) *PasteHandler {
	if viewProcessor == nil {
		viewProcessor = service.NopViewProcessor{}
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &PasteHandler{
		service:       pasteService,
		viewProcessor: viewProcessor,
		logger:        logger,
		baseURL:       strings.TrimRight(baseURL, "/"),
		maxBodyBytes:  maxBodyBytes,
	}
}

// CreatePasteRequest тело запроса на создание пасты.
// Поля разбираются вручную, чтобы отличать отсутствие, null и значение неверного типа.
type CreatePasteRequest struct {
	Content    json.RawMessage `json:"content"`
	TTLSeconds json.RawMessage `json:"ttl_seconds,omitempty"`
	MaxViews   json.RawMessage `json:"max_views,omitempty"`
}

type CreatePasteResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreatePaste godoc
// @Summary Create a paste
// @Description Store text with optional time-to-live and view limit
// @Tags pastes
// @Accept json
// @Produce json
// @Param request body CreatePasteRequest true "Paste creation request"
// @Success 201 {object} CreatePasteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /pastes [post]
func (h *PasteHandler) CreatePaste(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: msgBodyTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidJSON})
		return
	}

	input, msg := parseCreatePaste(body)
	if msg != "" {
		h.logger.Debug("Invalid create request", zap.String("reason", msg))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
		return
	}

	paste, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("Failed to create paste", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
		return
	}

	c.JSON(http.StatusCreated, CreatePasteResponse{
		ID:  paste.ID,
		URL: h.pasteURL(c, paste.ID),
	})
}

// GetPaste godoc
// @Summary Read a paste
// @Description Consume one view and return the paste. Missing, expired and exhausted pastes are indistinguishable.
// @Tags pastes
// @Produce json
// @Param id path string true "Paste ID"
// @Param x-test-now-ms header int false "Logical request time in ms (test mode only)"
// @Success 200 {object} models.PasteResult
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /pastes/{id} [get]
func (h *PasteHandler) GetPaste(c *gin.Context) {
	paste, err := h.consume(c)
	if err != nil {
		if errors.Is(err, service.ErrPasteNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: msgNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
		return
	}

	c.JSON(http.StatusOK, paste.ToPublicResult())
}

type pastePage struct {
	ID             string
	Content        string
	ViewLimited    bool
	RemainingViews int
	Expires        string
}

// ViewPastePage godoc
// @Summary Paste HTML page
// @Description Same semantics as GET /pastes/{id}, rendered as HTML
// @Tags pages
// @Produce html
// @Param id path string true "Paste ID"
// @Success 200 {string} string "HTML page"
// @Failure 404 {string} string "HTML page"
// @Router /p/{id} [get]
func (h *PasteHandler) ViewPastePage(c *gin.Context) {
	paste, err := h.consume(c)
	if err != nil {
		if errors.Is(err, service.ErrPasteNotFound) {
			c.HTML(http.StatusNotFound, "not_found.tmpl", nil)
			return
		}
		c.String(http.StatusInternalServerError, msgInternal)
		return
	}

	result := paste.ToPublicResult()
	page := pastePage{ID: paste.ID, Content: result.Content}
	if result.RemainingViews != nil {
		page.ViewLimited = true
		page.RemainingViews = *result.RemainingViews
	}
	if result.ExpiresAt != nil {
		// 2006-01-02T15:04:05.000Z -> 2006-01-02 15:04:05
		page.Expires = strings.Replace((*result.ExpiresAt)[:19], "T", " ", 1)
	}

	c.HTML(http.StatusOK, "paste.tmpl", page)
}

// Index godoc
// @Summary Paste creation form
// @Tags pages
// @Produce html
// @Success 200 {string} string "HTML page"
// @Router / [get]
func (h *PasteHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", nil)
}

// consume расходует просмотр в логический момент запроса и ставит событие в журнал
func (h *PasteHandler) consume(c *gin.Context) (*models.Paste, error) {
	id := c.Param("id")
	now := middleware.RequestTimeFromContext(c)

	paste, err := h.service.ConsumeView(c.Request.Context(), id, now)
	if err != nil {
		if !errors.Is(err, service.ErrPasteNotFound) {
			h.logger.Error("Failed to consume view", zap.String("paste_id", id), zap.Error(err))
		}
		return nil, err
	}

	event := &models.ViewEvent{
		PasteID:   paste.ID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
		ViewedAt:  now,
	}
	if err := h.viewProcessor.RecordView(c.Request.Context(), event); err != nil {
		h.logger.Debug("Failed to record view (non-blocking)", zap.Error(err))
	}

	return paste, nil
}

// pasteURL строит ссылку на HTML-страницу пасты
func (h *PasteHandler) pasteURL(c *gin.Context, id string) string {
	if h.baseURL != "" {
		return h.baseURL + "/p/" + id
	}

	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
	}
	host := c.Request.Host
	if host == "" {
		host = "localhost"
	}
	return proto + "://" + host + "/p/" + id
}

// parseCreatePaste проверяет тело запроса; при ошибке возвращает текст для клиента
func parseCreatePaste(body []byte) (*models.CreatePasteInput, string) {
	if !json.Valid(body) {
		return nil, msgInvalidJSON
	}

	var req CreatePasteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		// Валидный JSON, но не объект
		return nil, msgInvalidContent
	}

	var content string
	if isAbsent(req.Content) || json.Unmarshal(req.Content, &content) != nil || strings.TrimSpace(content) == "" {
		return nil, msgInvalidContent
	}

	input := &models.CreatePasteInput{Content: content}

	ttl, ok := parsePositiveInt(req.TTLSeconds)
	if !ok {
		return nil, msgInvalidTTL
	}
	input.TTLSeconds = ttl

	maxViews, ok := parsePositiveInt(req.MaxViews)
	if !ok {
		return nil, msgInvalidMaxViews
	}
	input.MaxViews = maxViews

	return input, ""
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// parsePositiveInt разбирает необязательное целое >= 1.
// Отсутствие и null дают (nil, true); 5.0 считается целым, "5" и 5.5 нет.
func parsePositiveInt(raw json.RawMessage) (*int, bool) {
	if isAbsent(raw) {
		return nil, true
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	if f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return nil, false
	}

	v := int(f)
	return &v, true
}
