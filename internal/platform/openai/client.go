package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/syllabus-studio/internal/platform/ctxutil"
	"github.com/yungbote/syllabus-studio/internal/platform/envutil"
	"github.com/yungbote/syllabus-studio/internal/platform/httpx"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/platform/promptstyle"
)

// ErrMissingAPIKey is returned by NewClientFromEnv when OPENAI_API_KEY is
// unset. Callers treat it as "feature unavailable", not a startup failure.
var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")

type ImageGeneration struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

// Client covers the two provider calls the studio makes: slide images and
// schema-constrained JSON (FAQs).
type Client interface {
	GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error)
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	ImageSize  string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	imageModel string
	imageSize  string
	httpClient *http.Client
	maxRetries int
	sleep      func(time.Duration)
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gpt-image-1"
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = "1024x1024"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{
		log:        log.With("client", "OpenAI"),
		baseURL:    base,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		imageSize:  cfg.ImageSize,
		httpClient: hc,
		maxRetries: cfg.MaxRetries,
		sleep:      time.Sleep,
	}, nil
}

func NewClientFromEnv(log *logger.Logger) (Client, error) {
	return NewClient(log, Config{
		APIKey:     envutil.String("OPENAI_API_KEY", "", nil),
		BaseURL:    envutil.String("OPENAI_BASE_URL", "https://api.openai.com", log),
		Model:      envutil.String("OPENAI_MODEL", "gpt-4.1-mini", log),
		ImageModel: envutil.String("OPENAI_IMAGE_MODEL", "gpt-image-1", log),
		ImageSize:  envutil.String("OPENAI_IMAGE_SIZE", "1024x1024", log),
		Timeout:    envutil.Duration("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 4, log),
	})
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: httpx.Excerpt(raw, 512)}
	}
	return resp, raw, nil
}

// do retries transient failures with exponential backoff, honouring
// Retry-After.
func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	ctx, span := otel.Tracer("syllabus-studio/openai").Start(ctx, "openai "+path)
	defer span.End()

	backoff := time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("openai.attempt", attempt+1))

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, httpx.Excerpt(raw, 256))
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			span.RecordError(err)
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		c.sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

// -------------------- Images --------------------

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error) {
	var out ImageGeneration
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}

	req := imagesGenerationRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   c.imageSize,
	}
	// gpt-image models always return base64 and reject response_format.
	if !strings.HasPrefix(strings.ToLower(c.imageModel), "gpt-image-") {
		req.ResponseFormat = "b64_json"
	}

	var resp imagesGenerationResponse
	if err := c.do(ctx, http.MethodPost, "/v1/images/generations", req, &resp); err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)

	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) == 0 {
			return out, fmt.Errorf("decode image base64: %w", err)
		}
		out.Bytes = raw
		out.MimeType = "image/png"
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		b, ct, err := c.downloadBytes(ctx, u)
		if err != nil {
			return out, fmt.Errorf("download generated image: %w", err)
		}
		out.Bytes = b
		out.MimeType = strings.TrimSpace(strings.Split(ct, ";")[0])
		if out.MimeType == "" {
			out.MimeType = "image/png"
		}
		return out, nil
	}
	return out, errors.New("image response missing b64_json and url")
}

func (c *client) downloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	// Signed blob URLs break if an unrelated Authorization header is sent.
	if sameHost(c.baseURL, rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &httpError{StatusCode: resp.StatusCode, Body: httpx.Excerpt(raw, 256)}
	}
	return raw, resp.Header.Get("Content-Type"), nil
}

func sameHost(baseURL, rawURL string) bool {
	bu, err1 := url.Parse(baseURL)
	u, err2 := url.Parse(rawURL)
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(bu.Hostname(), u.Hostname())
}

// -------------------- Responses (structured JSON) --------------------

type responsesInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model string           `json:"model"`
	Input []responsesInput `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				out.WriteString(c.Text)
			}
		}
	}
	return out.String()
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	req := responsesRequest{
		Model: c.model,
		Input: []responsesInput{
			{Role: "system", Content: promptstyle.ApplySystem(system, "json")},
			{Role: "user", Content: user},
		},
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/responses", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no output_text found in response")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, httpx.Excerpt([]byte(text), 256))
	}
	return obj, nil
}
