package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/http/response"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/observability"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

type TextExtractor interface {
	Extract(ctx context.Context, doc *syllabus.Document) (extractor.Result, error)
}

type DocumentHandler struct {
	log       *logger.Logger
	extractor TextExtractor
	upload    config.Upload
	metrics   *observability.Metrics
}

func NewDocumentHandler(log *logger.Logger, ex TextExtractor, upload config.Upload, metrics *observability.Metrics) *DocumentHandler {
	return &DocumentHandler{
		log:       log.With("handler", "DocumentHandler"),
		extractor: ex,
		upload:    upload,
		metrics:   metrics,
	}
}

type extractResponse struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Chars    int    `json:"chars"`
	extractor.Result
}

// POST /api/documents/extract
func (h *DocumentHandler) Extract(c *gin.Context) {
	doc, err := readUpload(c, h.upload)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if doc == nil {
		response.RespondError(c, http.StatusBadRequest, "no_file", errors.New(`multipart field "file" is required`))
		return
	}
	res, err := h.extractor.Extract(c.Request.Context(), doc)
	if err != nil {
		h.metrics.ObserveExtraction("unknown", "error")
		h.log.Warn("Text extraction failed", "file", doc.Name, "mime", doc.MimeType, "error", err)
		response.RespondAPIError(c, apiError(err))
		return
	}
	h.metrics.ObserveExtraction(string(res.Format), "ok")
	response.RespondOK(c, extractResponse{
		FileName: doc.Name,
		MimeType: doc.MimeType,
		Size:     doc.Size,
		Chars:    len([]rune(res.Text)),
		Result:   res,
	})
}
