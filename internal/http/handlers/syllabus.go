package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/http/response"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/faq"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/media"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/session"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/observability"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

type SyllabusHandler struct {
	log      *logger.Logger
	sessions *session.Registry
	cfg      config.Config
	images   *media.Filler
	faqs     *faq.Service
	metrics  *observability.Metrics
}

func NewSyllabusHandler(
	log *logger.Logger,
	sessions *session.Registry,
	cfg config.Config,
	images *media.Filler,
	faqs *faq.Service,
	metrics *observability.Metrics,
) *SyllabusHandler {
	return &SyllabusHandler{
		log:      log.With("handler", "SyllabusHandler"),
		sessions: sessions,
		cfg:      cfg,
		images:   images,
		faqs:     faqs,
		metrics:  metrics,
	}
}

type classCountBounds struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

type sessionResponse struct {
	Session    session.Snapshot `json:"session"`
	ClassCount classCountBounds `json:"classCount"`
}

func (h *SyllabusHandler) bounds() classCountBounds {
	return classCountBounds{
		Min:     h.cfg.Generation.ClassCountMin,
		Max:     h.cfg.Generation.ClassCountMax,
		Default: h.cfg.Generation.ClassCountDefault,
	}
}

func (h *SyllabusHandler) lookup(c *gin.Context) (*session.Generator, bool) {
	id := strings.TrimSpace(c.Param("id"))
	g, ok := h.sessions.Get(id)
	if !ok {
		response.RespondAPIError(c, apiError(fmt.Errorf("%w: %q", errSessionNotFound, id)))
		return nil, false
	}
	return g, true
}

// POST /api/syllabus/sessions
func (h *SyllabusHandler) CreateSession(c *gin.Context) {
	g := h.sessions.Create()
	h.metrics.SetSessions(h.sessions.Len())
	response.RespondCreated(c, sessionResponse{Session: g.Snapshot(), ClassCount: h.bounds()})
}

// GET /api/syllabus/sessions/:id
func (h *SyllabusHandler) GetSession(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	response.RespondOK(c, sessionResponse{Session: g.Snapshot(), ClassCount: h.bounds()})
}

// DELETE /api/syllabus/sessions/:id
func (h *SyllabusHandler) DeleteSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if !h.sessions.Delete(id) {
		response.RespondAPIError(c, apiError(fmt.Errorf("%w: %q", errSessionNotFound, id)))
		return
	}
	h.metrics.SetSessions(h.sessions.Len())
	c.Status(http.StatusNoContent)
}

// POST /api/syllabus/sessions/:id/generate
//
// Multipart form: "file" (optional when regenerating) and "classCount"
// (defaults to the configured value).
func (h *SyllabusHandler) Generate(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	doc, err := readUpload(c, h.cfg.Upload)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	classCount := h.cfg.Generation.ClassCountDefault
	if raw := strings.TrimSpace(c.PostForm("classCount")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_class_count", fmt.Errorf("classCount must be an integer, got %q", raw))
			return
		}
		classCount = n
	}
	runID, err := g.Start(c.Request.Context(), session.Request{Document: doc, ClassCount: classCount})
	if err != nil {
		response.RespondAPIError(c, apiError(err))
		return
	}
	response.RespondAccepted(c, gin.H{"runId": runID, "session": g.Snapshot()})
}

// GET /api/syllabus/sessions/:id/modules
func (h *SyllabusHandler) ListModules(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	mods, err := g.Modules()
	if err != nil {
		response.RespondAPIError(c, apiError(err))
		return
	}
	response.RespondOK(c, gin.H{"modules": structure.Views(mods)})
}

// GET /api/syllabus/sessions/:id/lessons
func (h *SyllabusHandler) ListLessons(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	mods, err := g.Modules()
	if err != nil {
		response.RespondAPIError(c, apiError(err))
		return
	}
	response.RespondOK(c, gin.H{"lessons": structure.AllLessons(mods)})
}

// PATCH /api/syllabus/sessions/:id/modules/:moduleId
func (h *SyllabusHandler) PatchModule(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	var patch structure.ModulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	m, err := g.UpdateModule(c.Param("moduleId"), patch)
	if err != nil {
		response.RespondAPIError(c, apiError(err))
		return
	}
	response.RespondOK(c, gin.H{"module": structure.Views([]syllabus.Module{m})[0]})
}

// PATCH /api/syllabus/sessions/:id/classes/:classId
func (h *SyllabusHandler) PatchClass(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	var patch structure.ClassPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	class, err := g.UpdateClass(c.Param("classId"), patch)
	if err != nil {
		response.RespondAPIError(c, apiError(err))
		return
	}
	response.RespondOK(c, gin.H{"class": class})
}

// POST /api/syllabus/sessions/:id/classes/:classId/faqs
func (h *SyllabusHandler) FetchFAQs(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	classID := c.Param("classId")
	faqs, err := h.faqs.Fetch(c.Request.Context(), g, classID)
	if err != nil {
		h.log.Warn("FAQ fetch failed", "session_id", g.ID(), "class_id", classID, "error", err)
		response.RespondAPIError(c, apiError(err))
		return
	}
	response.RespondOK(c, gin.H{"classId": classID, "faqs": faqs})
}

type fillImagesRequest struct {
	ClassID   string `json:"classId"`
	Overwrite bool   `json:"overwrite"`
}

// POST /api/syllabus/sessions/:id/images
//
// Optional JSON body limits the fill to one class or regenerates existing
// images.
func (h *SyllabusHandler) FillImages(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}
	var req fillImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.images.Fill(c.Request.Context(), g, media.Options{ClassID: req.ClassID, Overwrite: req.Overwrite})
	if err != nil {
		response.RespondAPIError(c, apiError(err))
		return
	}
	h.metrics.ObserveSlideImages(res.Applied, len(res.Failed))
	if res.Skipped {
		response.RespondError(c, http.StatusServiceUnavailable, "provider_unavailable", errors.New(media.UnavailableNotice))
		return
	}
	response.RespondOK(c, res)
}
