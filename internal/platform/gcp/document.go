package gcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/yungbote/syllabus-studio/internal/platform/ctxutil"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

var ErrOCRNotConfigured = errors.New("document ai processor not configured")

type DocumentOCRConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

// ProcessorName returns the fully qualified processor resource name, or "" if
// a component is missing.
func (c DocumentOCRConfig) ProcessorName() string {
	project := strings.TrimSpace(c.ProjectID)
	location := strings.TrimSpace(c.Location)
	processorID := strings.TrimSpace(c.ProcessorID)
	if project == "" || location == "" || processorID == "" {
		return ""
	}
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if v := strings.TrimSpace(c.ProcessorVersion); v != "" {
		name += "/processorVersions/" + v
	}
	return name
}

func DocumentOCRConfigFromEnv() (DocumentOCRConfig, error) {
	cfg := DocumentOCRConfig{
		ProjectID:        strings.TrimSpace(os.Getenv("GCP_PROJECT_ID")),
		Location:         strings.TrimSpace(os.Getenv("DOCUMENTAI_LOCATION")),
		ProcessorID:      strings.TrimSpace(os.Getenv("DOCUMENTAI_PROCESSOR_ID")),
		ProcessorVersion: strings.TrimSpace(os.Getenv("DOCUMENTAI_PROCESSOR_VERSION")),
		Timeout:          3 * time.Minute,
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.ProcessorName() == "" {
		return cfg, ErrOCRNotConfigured
	}
	return cfg, nil
}

// DocumentOCR sends raw document bytes to a Document AI OCR processor.
type DocumentOCR struct {
	log    *logger.Logger
	client *documentai.DocumentProcessorClient
	cfg    DocumentOCRConfig
	name   string
}

func NewDocumentOCR(ctx context.Context, log *logger.Logger, cfg DocumentOCRConfig) (*DocumentOCR, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	name := cfg.ProcessorName()
	if name == "" {
		return nil, ErrOCRNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	slog := log.With("service", "gcp.DocumentOCR")
	slog.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return &DocumentOCR{log: slog, client: c, cfg: cfg, name: name}, nil
}

// NewDocumentOCRFromEnv returns (nil, nil) when no processor is configured.
func NewDocumentOCRFromEnv(ctx context.Context, log *logger.Logger) (*DocumentOCR, error) {
	cfg, err := DocumentOCRConfigFromEnv()
	if errors.Is(err, ErrOCRNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return NewDocumentOCR(ctx, log, cfg)
}

func (o *DocumentOCR) RecognizeText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: o.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	})
	if err != nil {
		return "", fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	text := DocumentText(resp.GetDocument())
	o.log.Debug("Document AI OCR complete",
		"bytes", len(data),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (o *DocumentOCR) Close() error {
	if o == nil || o.client == nil {
		return nil
	}
	return o.client.Close()
}

// DocumentText rebuilds text page by page from paragraph anchors, one line per
// page with whitespace collapsed. Documents without paragraph layout fall back
// to the processor's full text.
func DocumentText(doc *documentaipb.Document) string {
	if doc == nil {
		return ""
	}
	pages := append([]*documentaipb.Document_Page(nil), doc.GetPages()...)
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].GetPageNumber() < pages[j].GetPageNumber()
	})
	lines := make([]string, 0, len(pages))
	for _, p := range pages {
		parts := make([]string, 0, len(p.GetParagraphs()))
		for _, para := range p.GetParagraphs() {
			t := strings.TrimSpace(textFromAnchor(doc.GetText(), para.GetLayout().GetTextAnchor()))
			if t != "" {
				parts = append(parts, t)
			}
		}
		if line := collapseWhitespace(strings.Join(parts, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return collapseWhitespace(doc.GetText())
	}
	return strings.Join(lines, "\n")
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start := int(seg.GetStartIndex())
		end := int(seg.GetEndIndex())
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
