package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/middleware"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/service"
	"github.com/noah-isme/love-timeline-api/internal/session"
	"github.com/noah-isme/love-timeline-api/internal/timeline"
	"github.com/noah-isme/love-timeline-api/internal/upload"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
	"github.com/noah-isme/love-timeline-api/pkg/response"
)

type sessionProvider interface {
	Get(ctx context.Context, viewer *models.JWTClaims) (*session.Session, error)
	Lookup(viewerID string) (*session.Session, bool)
}

type timelineExporter interface {
	Export(buckets []timeline.DateBucket, format string) (*service.ExportResult, error)
}

// TimelineHandler serves a viewer's optimistic working set and its projections.
type TimelineHandler struct {
	sessions  sessionProvider
	exporter  timelineExporter
	validator *validator.Validate
}

// NewTimelineHandler constructs the handler.
func NewTimelineHandler(sessions sessionProvider, exporter timelineExporter, validate *validator.Validate) *TimelineHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TimelineHandler{sessions: sessions, exporter: exporter, validator: validate}
}

func (h *TimelineHandler) session(c *gin.Context) (*session.Session, bool) {
	claims, ok := requireClaims(c)
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, sessionError(err))
		return nil, false
	}
	return s, true
}

// Projection godoc
// @Summary Projected timeline
// @Description Date buckets newest first, photo batches merged, comments attached
// @Tags Timeline
// @Produce json
// @Param date query string false "Only this date"
// @Success 200 {object} response.Envelope
// @Router /timeline [get]
func (h *TimelineHandler) Projection(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var query dto.ProjectionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid date"))
		return
	}

	buckets := s.Store().Project()
	if query.Date != "" {
		filtered := make([]timeline.DateBucket, 0, 1)
		for _, b := range buckets {
			if b.Date == query.Date {
				filtered = append(filtered, b)
			}
		}
		buckets = filtered
	}
	middleware.SetMeta(c, "active_date", s.Store().ActiveDate())
	middleware.SetMeta(c, "pending_jobs", s.Queue().Active())
	response.JSON(c, http.StatusOK, buckets, nil, middleware.ExtractMeta(c))
}

// State godoc
// @Summary Raw working set
// @Tags Timeline
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timeline/state [get]
func (h *TimelineHandler) State(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, s.Store().Snapshot(), nil)
}

// Refresh godoc
// @Summary Reload the working set from the database
// @Tags Timeline
// @Success 204
// @Router /timeline/refresh [post]
func (h *TimelineHandler) Refresh(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Store().Refresh(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Tree godoc
// @Summary Year/month/day navigator
// @Tags Timeline
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timeline/tree [get]
func (h *TimelineHandler) Tree(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, timeline.Tree(s.Store().Project()), nil)
}

// Contributions godoc
// @Summary Per-day item counts for a year
// @Tags Timeline
// @Produce json
// @Param year query int false "Year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /timeline/contributions [get]
func (h *TimelineHandler) Contributions(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a positive integer"))
			return
		}
		year = parsed
	}
	response.JSON(c, http.StatusOK, timeline.Contribution(s.Store().Project(), year), nil)
}

// SetActiveDate godoc
// @Summary Switch the browsed date
// @Tags Timeline
// @Accept json
// @Param payload body dto.ActiveDateRequest true "Date"
// @Success 200 {object} response.Envelope
// @Router /timeline/active-date [put]
func (h *TimelineHandler) SetActiveDate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.ActiveDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "date must be YYYY-MM-DD"))
		return
	}
	s.Store().SetActiveDate(req.Date)
	response.JSON(c, http.StatusOK, gin.H{"active_date": req.Date}, nil)
}

// Delete godoc
// @Summary Remove a memory from the timeline
// @Description Applied locally at once; the server delete runs in the background
// @Tags Timeline
// @Param id path string true "Record or placeholder ID"
// @Success 202
// @Failure 404 {object} response.Envelope
// @Router /timeline/memories/{id} [delete]
func (h *TimelineHandler) Delete(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Store().DeleteOptimistic(c.Param("id")); err != nil {
		response.Error(c, sessionError(err))
		return
	}
	c.Status(http.StatusAccepted)
}

// Like godoc
// @Summary Like a memory
// @Description Counter changes at once; the server call is debounced
// @Tags Timeline
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /timeline/memories/{id}/like [post]
func (h *TimelineHandler) Like(c *gin.Context) {
	h.toggle(c, true)
}

// Unlike godoc
// @Summary Unlike a memory
// @Tags Timeline
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /timeline/memories/{id}/like [delete]
func (h *TimelineHandler) Unlike(c *gin.Context) {
	h.toggle(c, false)
}

func (h *TimelineHandler) toggle(c *gin.Context, like bool) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	var (
		likes int
		err   error
	)
	if like {
		likes, err = s.Store().LikeOptimistic(id)
	} else {
		likes, err = s.Store().UnlikeOptimistic(id)
	}
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id, "likes": likes, "liked": like}, nil)
}

// Export godoc
// @Summary Export the timeline
// @Tags Timeline
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /timeline/export [get]
func (h *TimelineHandler) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export unavailable"))
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	res, err := h.exporter.Export(s.Store().Project(), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+res.Filename+"\"")
	c.Data(http.StatusOK, res.ContentType, res.Payload)
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidMemory), errors.Is(err, session.ErrFilesRequired):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	case errors.Is(err, timeline.ErrRecordNotFound), errors.Is(err, upload.ErrItemNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, err.Error())
	case errors.Is(err, upload.ErrNotDismissable), errors.Is(err, upload.ErrDuplicateItem):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
	case errors.Is(err, session.ErrClosed), errors.Is(err, upload.ErrQueueStopped):
		return appErrors.Wrap(err, "UNAVAILABLE", http.StatusServiceUnavailable, "timeline session unavailable")
	default:
		return err
	}
}
