package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/platform/openai"
)

const UnavailableNotice = "Slide images were skipped because no image provider key is configured."

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (openai.ImageGeneration, error)
}

// Store persists image bytes and returns a browser-loadable URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Target is the workspace whose slides get images.
type Target interface {
	ID() string
	Modules() ([]syllabus.Module, error)
	ApplySlideImages(urls map[string]string) (int, error)
	Notify(msg string)
}

type Options struct {
	ClassID   string
	Overwrite bool
}

type SlideFailure struct {
	SlideID string `json:"slideId"`
	Error   string `json:"error"`
}

type Result struct {
	Skipped   bool           `json:"skipped"`
	Requested int            `json:"requested"`
	Generated int            `json:"generated"`
	Applied   int            `json:"applied"`
	Failed    []SlideFailure `json:"failed"`
	Duration  int64          `json:"durationMs"`
}

type Filler struct {
	log         *logger.Logger
	images      ImageGenerator
	store       Store
	concurrency int
}

// NewFiller accepts a nil images generator (feature disabled) and a nil store
// (images are inlined as data URLs).
func NewFiller(log *logger.Logger, images ImageGenerator, store Store, concurrency int) *Filler {
	if log == nil {
		log = logger.Nop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Filler{
		log:         log.With("service", "SlideImageFiller"),
		images:      images,
		store:       store,
		concurrency: concurrency,
	}
}

func (f *Filler) Available() bool { return f.images != nil }

type job struct {
	slideID string
	prompt  string
}

// Fill generates one image per slide from its visual prompt. Slides that
// already have an image are skipped unless Overwrite is set. Per-slide
// failures are collected, not returned.
func (f *Filler) Fill(ctx context.Context, target Target, opts Options) (Result, error) {
	start := time.Now()
	var res Result
	if f.images == nil {
		target.Notify(UnavailableNotice)
		res.Skipped = true
		return res, nil
	}
	mods, err := target.Modules()
	if err != nil {
		return res, err
	}
	jobs, err := collect(mods, opts)
	if err != nil {
		return res, err
	}
	res.Requested = len(jobs)
	if len(jobs) == 0 {
		return res, nil
	}

	var (
		mu   sync.Mutex
		urls = make(map[string]string, len(jobs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			url, err := f.one(gctx, target.ID(), j)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				res.Failed = append(res.Failed, SlideFailure{SlideID: j.slideID, Error: err.Error()})
				return nil
			}
			urls[j.slideID] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Generated = len(urls)

	applied, err := target.ApplySlideImages(urls)
	if err != nil {
		return res, err
	}
	res.Applied = applied
	res.Duration = time.Since(start).Milliseconds()

	if n := len(res.Failed); n > 0 {
		target.Notify(fmt.Sprintf("%d of %d slide images could not be generated.", n, res.Requested))
		f.log.Warn("Slide image fill finished with failures", "session_id", target.ID(), "failed", n, "requested", res.Requested)
	} else {
		f.log.Info("Slide image fill complete", "session_id", target.ID(), "applied", applied, "duration_ms", res.Duration)
	}
	return res, nil
}

func (f *Filler) one(ctx context.Context, sessionID string, j job) (string, error) {
	img, err := f.images.GenerateImage(ctx, j.prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	if f.store == nil {
		return DataURL(mime, img.Bytes), nil
	}
	key := fmt.Sprintf("%s/%s%s", sessionID, j.slideID, extensionFor(mime))
	url, err := f.store.Put(ctx, key, mime, img.Bytes)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return url, nil
}

func collect(mods []syllabus.Module, opts Options) ([]job, error) {
	var jobs []job
	found := opts.ClassID == ""
	for _, m := range mods {
		for ci, c := range m.Classes {
			if opts.ClassID != "" && c.ID != opts.ClassID {
				continue
			}
			found = true
			if ci >= len(m.Slides) {
				continue
			}
			for _, s := range m.Slides[ci] {
				if s.ImageURL != nil && !opts.Overwrite {
					continue
				}
				prompt := strings.TrimSpace(s.VisualPrompt)
				if prompt == "" {
					continue
				}
				jobs = append(jobs, job{slideID: s.ID, prompt: prompt})
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: class %q", structure.ErrNotFound, opts.ClassID)
	}
	return jobs, nil
}

func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
