package handlers

import (
	"errors"
	"net/http"

	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/faq"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/session"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/platform/apierr"
)

var errSessionNotFound = errors.New("workspace session not found")

// apiError maps domain errors onto HTTP statuses and stable codes.
func apiError(err error) error {
	switch {
	case errors.Is(err, session.ErrNoFile):
		return apierr.BadRequest("no_file", err)
	case errors.Is(err, session.ErrClassCountOutOfRange):
		return apierr.BadRequest("class_count_out_of_range", err)
	case errors.Is(err, session.ErrInFlight):
		return apierr.Conflict("generation_in_progress", err)
	case errors.Is(err, session.ErrNoResult):
		return apierr.Conflict("no_result", err)
	case errors.Is(err, session.ErrClosed):
		return apierr.New(http.StatusGone, "session_closed", err)
	case errors.Is(err, errSessionNotFound):
		return apierr.NotFound("session_not_found", err)
	case errors.Is(err, structure.ErrNotFound):
		return apierr.NotFound("not_found", err)
	case errors.Is(err, faq.ErrUnavailable):
		return apierr.New(http.StatusServiceUnavailable, "provider_unavailable", err)
	case errors.Is(err, faq.ErrEmpty):
		return apierr.New(http.StatusBadGateway, "provider_empty", err)
	case errors.Is(err, extractor.ErrUnsupportedType):
		return apierr.New(http.StatusUnsupportedMediaType, "unsupported_type", err)
	case errors.Is(err, extractor.ErrPDFParse), errors.Is(err, extractor.ErrOfficeParse):
		return apierr.New(http.StatusUnprocessableEntity, "extract_failed", err)
	case errors.Is(err, extractor.ErrRead):
		return apierr.BadRequest("extract_read", err)
	default:
		return err
	}
}
