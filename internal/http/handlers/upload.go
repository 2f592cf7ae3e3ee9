package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/platform/apierr"
)

const (
	uploadField = "file"
	// Room for multipart headers and the other form fields.
	formOverhead = 1 << 20
)

// readUpload returns the document in the "file" part, or nil when the
// request carries none. Oversized and unaccepted files are rejected before
// anything reaches the pipeline.
func readUpload(c *gin.Context, cfg config.Upload) (*syllabus.Document, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBytes+formOverhead)
	fh, err := c.FormFile(uploadField)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, nil
	case errors.As(err, &tooLarge):
		return nil, fileTooLarge(cfg.MaxBytes)
	case err != nil:
		return nil, apierr.BadRequest("invalid_multipart_form", err)
	}
	if fh.Size > cfg.MaxBytes {
		return nil, fileTooLarge(cfg.MaxBytes)
	}

	mimeType := extractor.ResolveMimeType(fh.Filename, fh.Header.Get("Content-Type"))
	if !cfg.Accepts(mimeType) {
		return nil, apierr.New(http.StatusUnsupportedMediaType, "unsupported_type",
			fmt.Errorf("file type %q is not accepted", mimeType))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apierr.BadRequest("extract_read", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, cfg.MaxBytes+1))
	if err != nil {
		return nil, apierr.BadRequest("extract_read", err)
	}
	if int64(len(data)) > cfg.MaxBytes {
		return nil, fileTooLarge(cfg.MaxBytes)
	}
	return syllabus.BytesDocument(filepath.Base(fh.Filename), mimeType, data), nil
}

func fileTooLarge(limit int64) error {
	return apierr.New(http.StatusRequestEntityTooLarge, "file_too_large",
		fmt.Errorf("file exceeds the %d MB upload limit", limit>>20))
}
