package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

const overrideEnv = "SYLLABUS_CONFIG_YAML"

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Version      int          `yaml:"version"`
	Upload       Upload       `yaml:"upload"`
	Generation   Generation   `yaml:"generation"`
	Ticker       Ticker       `yaml:"ticker"`
	LiveProgress LiveProgress `yaml:"live_progress"`
	Media        Media        `yaml:"media"`
}

type Upload struct {
	MaxBytes          int64    `yaml:"max_bytes"`
	AcceptedMimeTypes []string `yaml:"accepted_mime_types"`
}

type Generation struct {
	ClassCountMin     int           `yaml:"class_count_min"`
	ClassCountMax     int           `yaml:"class_count_max"`
	ClassCountDefault int           `yaml:"class_count_default"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

type Ticker struct {
	Interval     time.Duration `yaml:"interval"`
	Cap          int           `yaml:"cap"`
	MaxIncrement int           `yaml:"max_increment"`
}

type LiveProgress struct {
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
}

type Media struct {
	ImageConcurrency int `yaml:"image_concurrency"`
	FAQCount         int `yaml:"faq_count"`
}

// Defaults returns the embedded configuration. It panics only if the embedded
// document is broken, which the package tests guard.
func Defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("syllabus config: embedded defaults: %v", err))
	}
	return cfg
}

// Load returns the embedded defaults overlaid with $SYLLABUS_CONFIG_YAML.
func Load(log *logger.Logger) (Config, error) {
	cfg := Defaults()
	path := strings.TrimSpace(os.Getenv(overrideEnv))
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", overrideEnv, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate %s: %w", path, err)
	}
	if log != nil {
		log.Info("Syllabus config override applied", "path", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	if c.Generation.ClassCountMin < 1 || c.Generation.ClassCountMax < c.Generation.ClassCountMin {
		errs = append(errs, fmt.Errorf("class count bounds invalid: [%d,%d]", c.Generation.ClassCountMin, c.Generation.ClassCountMax))
	}
	if d := c.Generation.ClassCountDefault; d < c.Generation.ClassCountMin || d > c.Generation.ClassCountMax {
		errs = append(errs, fmt.Errorf("class_count_default %d outside bounds", d))
	}
	if c.Ticker.Interval <= 0 {
		errs = append(errs, errors.New("ticker.interval must be positive"))
	}
	if c.Ticker.Cap <= 0 || c.Ticker.Cap >= 100 {
		errs = append(errs, fmt.Errorf("ticker.cap must be in (0,100), got %d", c.Ticker.Cap))
	}
	if c.Ticker.MaxIncrement <= 0 {
		errs = append(errs, errors.New("ticker.max_increment must be positive"))
	}
	if c.LiveProgress.ReconnectAttempts < 0 {
		errs = append(errs, errors.New("live_progress.reconnect_attempts must be >= 0"))
	}
	if c.Media.ImageConcurrency <= 0 {
		errs = append(errs, errors.New("media.image_concurrency must be positive"))
	}
	if c.Media.FAQCount <= 0 {
		errs = append(errs, errors.New("media.faq_count must be positive"))
	}
	return errors.Join(errs...)
}

// Accepts reports whether mimeType is an accepted upload type. Parameters
// such as "; charset=utf-8" are ignored.
func (u Upload) Accepts(mimeType string) bool {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	for _, a := range u.AcceptedMimeTypes {
		if strings.EqualFold(a, m) {
			return true
		}
	}
	return false
}

// ClassCountInRange reports whether n is within the configured bounds.
func (g Generation) ClassCountInRange(n int) bool {
	return n >= g.ClassCountMin && n <= g.ClassCountMax
}
