package app

import (
	"time"

	httpMW "github.com/yungbote/syllabus-studio/internal/http/middleware"
	"github.com/yungbote/syllabus-studio/internal/platform/envutil"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

// Config holds the process-level settings. Pipeline tunables live in the
// syllabus config package.
type Config struct {
	ServiceName     string
	Environment     string
	Version         string
	AllowedOrigins  []string
	ProgressURL     string
	ShutdownTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		ServiceName:     envutil.String("OTEL_SERVICE_NAME", "syllabus-studio", log),
		Environment:     envutil.String("APP_ENV", "development", log),
		Version:         envutil.String("APP_VERSION", "", log),
		AllowedOrigins:  envutil.List("CORS_ALLOWED_ORIGINS", httpMW.DefaultAllowedOrigins),
		ProgressURL:     envutil.String("PROGRESS_SOCKET_URL", "", log),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
	}
}
