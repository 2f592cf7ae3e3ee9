package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/syllabus-studio/internal/platform/gcp"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/platform/openai"
	"github.com/yungbote/syllabus-studio/internal/platform/syllabusapi"
	"github.com/yungbote/syllabus-studio/internal/realtime/bus"
)

// Clients are the outbound integrations. Every field except SyllabusAPI may
// be nil when its environment is not configured.
type Clients struct {
	SyllabusAPI syllabusapi.Client
	OpenAI      openai.Client
	ImageBucket gcp.ImageBucket
	DocumentOCR *gcp.DocumentOCR
	SSEBus      bus.Bus
}

func wireClients(ctx context.Context, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	api, err := syllabusapi.NewClientFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init syllabus api client: %w", err)
	}
	out.SyllabusAPI = api

	// Redis
	b, err := bus.NewRedisBusFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
	}
	out.SSEBus = b

	// Openai
	oc, err := openai.NewClientFromEnv(log)
	switch {
	case errors.Is(err, openai.ErrMissingAPIKey):
		log.Warn("OPENAI_API_KEY not set; slide images and FAQs are disabled")
	case err != nil:
		out.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	default:
		out.OpenAI = oc
	}

	// Gcs
	bucket, err := gcp.NewImageBucketFromEnv(ctx, log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init slide image bucket: %w", err)
	}
	out.ImageBucket = bucket

	// Document AI
	ocr, err := gcp.NewDocumentOCRFromEnv(ctx, log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init document ocr: %w", err)
	}
	out.DocumentOCR = ocr

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.ImageBucket != nil {
		_ = c.ImageBucket.Close()
	}
	if c.DocumentOCR != nil {
		_ = c.DocumentOCR.Close()
	}
}
