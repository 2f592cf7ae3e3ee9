package syllabusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/platform/ctxutil"
	"github.com/yungbote/syllabus-studio/internal/platform/envutil"
	"github.com/yungbote/syllabus-studio/internal/platform/httpx"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

const DefaultGeneratePath = "/api/syllabus/generate"

var (
	// ErrRequest covers transport failures, including timeouts.
	ErrRequest = errors.New("syllabus request failed")
	// ErrStatus is matched by *StatusError for non-2xx responses.
	ErrStatus = errors.New("syllabus endpoint returned an error status")
	// ErrMalformed means a 2xx body was not a generation response.
	ErrMalformed = errors.New("malformed syllabus response")
)

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("syllabus endpoint http %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Client sends a document and class count to the generation endpoint. One
// call is one HTTP request; there is no retry.
type Client interface {
	RequestSyllabus(ctx context.Context, doc *syllabus.Document, classCount int) (*syllabus.RawGenerationResponse, error)
}

type Config struct {
	BaseURL      string
	GeneratePath string
	HTTPClient   *http.Client
}

type client struct {
	log        *logger.Logger
	endpoint   string
	httpClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("syllabus api base url required")
	}
	path := strings.TrimSpace(cfg.GeneratePath)
	if path == "" {
		path = DefaultGeneratePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// Deadlines come from the caller's context.
		hc = &http.Client{}
	}
	return &client{
		log:        log.With("client", "SyllabusAPI"),
		endpoint:   base + path,
		httpClient: hc,
	}, nil
}

// NewClientFromEnv reads SYLLABUS_API_BASE_URL and SYLLABUS_GENERATE_PATH.
func NewClientFromEnv(log *logger.Logger) (Client, error) {
	return NewClient(log, Config{
		BaseURL:      envutil.String("SYLLABUS_API_BASE_URL", "", log),
		GeneratePath: envutil.String("SYLLABUS_GENERATE_PATH", DefaultGeneratePath, log),
	})
}

func (c *client) RequestSyllabus(ctx context.Context, doc *syllabus.Document, classCount int) (*syllabus.RawGenerationResponse, error) {
	ctx = ctxutil.Default(ctx)
	ctx, span := otel.Tracer("syllabus-studio/syllabusapi").Start(ctx, "syllabusapi.RequestSyllabus")
	defer span.End()
	span.SetAttributes(attribute.Int("syllabus.class_count", classCount))

	out, err := c.requestSyllabus(ctx, doc, classCount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (c *client) requestSyllabus(ctx context.Context, doc *syllabus.Document, classCount int) (*syllabus.RawGenerationResponse, error) {
	if doc == nil || doc.Open == nil {
		return nil, fmt.Errorf("%w: no document", ErrRequest)
	}
	payload, contentType, err := buildMultipart(doc, classCount)
	if err != nil {
		return nil, fmt.Errorf("%w: build body: %v", ErrRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		req.Header.Set("X-Request-ID", td.RequestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Syllabus request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRequest, readErr)
	}

	c.log.Info("Syllabus endpoint responded",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"class_count", classCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: httpx.Excerpt(raw, 512)}
	}

	var out syllabus.RawGenerationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v; body=%s", ErrMalformed, err, httpx.Excerpt(raw, 256))
	}
	return &out, nil
}

func buildMultipart(doc *syllabus.Document, classCount int) ([]byte, string, error) {
	rc, err := doc.Open()
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(doc)))
	ct := strings.TrimSpace(doc.MimeType)
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("classCount", strconv.Itoa(classCount)); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}

func fileName(doc *syllabus.Document) string {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return "document"
	}
	return name
}
