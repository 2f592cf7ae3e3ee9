package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

var ErrBucketNotConfigured = errors.New("slide image bucket not configured")

// ImageBucket stores generated slide images and hands back URLs the browser
// can load directly.
type ImageBucket interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	PublicURL(key string) string
	Close() error
}

type ImageBucketConfig struct {
	Bucket        string
	CDNDomain     string
	Prefix        string
	UploadTimeout time.Duration
	Storage       StorageConfig
}

// ImageBucketConfigFromEnv returns ErrBucketNotConfigured when
// SLIDE_IMAGE_GCS_BUCKET is unset.
func ImageBucketConfigFromEnv() (ImageBucketConfig, error) {
	cfg := ImageBucketConfig{
		Bucket:        strings.TrimSpace(os.Getenv("SLIDE_IMAGE_GCS_BUCKET")),
		CDNDomain:     strings.Trim(strings.TrimSpace(os.Getenv("SLIDE_IMAGE_CDN_DOMAIN")), "/"),
		Prefix:        strings.Trim(strings.TrimSpace(os.Getenv("SLIDE_IMAGE_PREFIX")), "/"),
		UploadTimeout: 2 * time.Minute,
	}
	if cfg.Bucket == "" {
		return cfg, ErrBucketNotConfigured
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "slides"
	}
	st, err := StorageConfigFromEnv()
	if err != nil {
		return cfg, fmt.Errorf("resolve object storage config: %w", err)
	}
	cfg.Storage = st
	return cfg, nil
}

type imageBucket struct {
	log    *logger.Logger
	client *storage.Client
	cfg    ImageBucketConfig
}

func NewImageBucket(ctx context.Context, log *logger.Logger, cfg ImageBucketConfig) (ImageBucket, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Bucket == "" {
		return nil, ErrBucketNotConfigured
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClient(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 2 * time.Minute
	}
	slog := log.With("service", "gcp.ImageBucket")
	slog.Info("Slide image bucket initialized",
		"bucket", cfg.Bucket,
		"mode", cfg.Storage.Mode,
		"cdn_domain", cfg.CDNDomain,
		"emulator_host", cfg.Storage.EmulatorHost,
	)
	return &imageBucket{log: slog, client: client, cfg: cfg}, nil
}

// NewImageBucketFromEnv returns (nil, nil) when no bucket is configured so
// callers can fall back to inline images.
func NewImageBucketFromEnv(ctx context.Context, log *logger.Logger) (ImageBucket, error) {
	cfg, err := ImageBucketConfigFromEnv()
	if errors.Is(err, ErrBucketNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return NewImageBucket(ctx, log, cfg)
}

func newStorageClient(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	if cfg.IsEmulator() {
		// The storage client reads the emulator host from the environment.
		if err := os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost); err != nil {
			return nil, err
		}
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (b *imageBucket) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key = b.objectKey(key)
	if key == "" {
		return "", fmt.Errorf("object key required")
	}
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.UploadTimeout)
	defer cancel()

	w := b.client.Bucket(b.cfg.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer %s: %w", key, err)
	}
	b.log.Debug("Stored slide image", "key", key, "bytes", len(data))
	return b.publicURL(key), nil
}

func (b *imageBucket) PublicURL(key string) string {
	return b.publicURL(b.objectKey(key))
}

func (b *imageBucket) Close() error { return b.client.Close() }

func (b *imageBucket) objectKey(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return ""
	}
	if b.cfg.Prefix == "" || strings.HasPrefix(key, b.cfg.Prefix+"/") {
		return key
	}
	return path.Join(b.cfg.Prefix, key)
}

func (b *imageBucket) publicURL(key string) string {
	return PublicObjectURL(b.cfg, key)
}

// PublicObjectURL prefers the CDN domain, then the emulator media endpoint,
// then an explicit public base URL, then storage.googleapis.com.
func PublicObjectURL(cfg ImageBucketConfig, key string) string {
	key = strings.TrimLeft(key, "/")
	if cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", cfg.CDNDomain, key)
	}
	if cfg.Storage.IsEmulator() {
		base := cfg.Storage.PublicBaseURL
		if base == "" {
			base = cfg.Storage.EmulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(cfg.Bucket), url.PathEscape(key))
	}
	if cfg.Storage.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", cfg.Storage.PublicBaseURL, cfg.Bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.Bucket, key)
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch path.Ext(s) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
