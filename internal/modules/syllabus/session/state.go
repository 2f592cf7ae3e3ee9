package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/platform/syllabusapi"
)

type State string

const (
	StateIdle      State = "idle"
	StateAnalyzing State = "analyzing"
	StateComplete  State = "complete"
	StateError     State = "error"
)

// Stage labels the part of an analyzing run in progress. It never drives
// a transition.
type Stage string

const (
	StageNone       Stage = ""
	StageExtracting Stage = "extracting"
	StageGenerating Stage = "generating"
)

var (
	ErrNoFile               = errors.New("no document selected")
	ErrClassCountOutOfRange = errors.New("class count out of range")
	ErrInFlight             = errors.New("generation already in progress")
	ErrClosed               = errors.New("session closed")
	ErrNoResult             = errors.New("no generated syllabus yet")
)

// Snapshot is a point-in-time copy of a generator's status. Seq increases
// with every change so consumers can drop stale pushes.
type Snapshot struct {
	SessionID      string    `json:"sessionId"`
	Seq            uint64    `json:"seq"`
	RunID          string    `json:"runId,omitempty"`
	State          State     `json:"state"`
	Stage          Stage     `json:"stage,omitempty"`
	Progress       int       `json:"progress"`
	Error          string    `json:"error,omitempty"`
	ErrorCode      string    `json:"errorCode,omitempty"`
	Notices        []string  `json:"notices"`
	FileName       string    `json:"fileName,omitempty"`
	ClassCount     int       `json:"classCount,omitempty"`
	ExtractedChars int       `json:"extractedChars"`
	ModuleCount    int       `json:"moduleCount"`
	HasResult      bool      `json:"hasResult"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Config struct {
	ClassCountMin     int
	ClassCountMax     int
	ClassCountDefault int
	TickInterval      time.Duration
	TickCap           int
	MaxIncrement      int
	RequestTimeout    time.Duration
}

func ConfigFrom(c config.Config) Config {
	return Config{
		ClassCountMin:     c.Generation.ClassCountMin,
		ClassCountMax:     c.Generation.ClassCountMax,
		ClassCountDefault: c.Generation.ClassCountDefault,
		TickInterval:      c.Ticker.Interval,
		TickCap:           c.Ticker.Cap,
		MaxIncrement:      c.Ticker.MaxIncrement,
		RequestTimeout:    c.Generation.RequestTimeout,
	}
}

// userMessage maps a failure to the text shown in the workspace, plus a
// stable code.
func userMessage(err error) (string, string) {
	var se *syllabusapi.StatusError
	switch {
	case errors.Is(err, ErrNoFile):
		return "Please upload a document before generating a syllabus.", "no_file"
	case errors.Is(err, ErrClassCountOutOfRange):
		return err.Error(), "class_count_out_of_range"
	case errors.Is(err, extractor.ErrRead):
		return "The document could not be read. Please upload it again.", "extract_read"
	case errors.Is(err, extractor.ErrPDFParse):
		return "The PDF could not be parsed. Please check the file and try again.", "extract_pdf"
	case errors.Is(err, extractor.ErrOfficeParse):
		return "The document could not be parsed. Please check the file and try again.", "extract_office"
	case errors.Is(err, extractor.ErrUnsupportedType):
		return "This file type is not supported.", "unsupported_type"
	case errors.Is(err, context.DeadlineExceeded):
		return "Syllabus generation timed out. Please try again.", "timeout"
	case errors.As(err, &se):
		return fmt.Sprintf("Syllabus generation failed (HTTP %d). Please try again.", se.StatusCode), "generation_status"
	case errors.Is(err, syllabusapi.ErrMalformed), errors.Is(err, structure.ErrInvalidPayload):
		return "The generation service returned an unexpected response. Please try again.", "generation_malformed"
	default:
		return "Syllabus generation failed. Please try again.", "generation_failed"
	}
}
