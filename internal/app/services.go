package app

import (
	"context"

	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/faq"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/media"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/session"
	"github.com/yungbote/syllabus-studio/internal/observability"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/realtime"
	"github.com/yungbote/syllabus-studio/internal/realtime/progress"
)

type Services struct {
	Extractor *extractor.Extractor
	Sessions  *session.Registry
	Images    *media.Filler
	FAQs      *faq.Service
	// Progress is nil when PROGRESS_SOCKET_URL is unset.
	Progress *progress.Channel
}

func wireServices(log *logger.Logger, cfg Config, sc config.Config, clients Clients, emitter *realtime.Emitter, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	var exOpts []extractor.Option
	if clients.DocumentOCR != nil {
		exOpts = append(exOpts, extractor.WithOCR(clients.DocumentOCR))
	}
	ex := extractor.New(log, exOpts...)

	genCfg := session.ConfigFrom(sc)
	sessions := session.NewRegistry(log, func() *session.Generator {
		return session.NewGenerator(genCfg, session.Deps{
			Log:       log,
			Extractor: ex,
			Requester: clients.SyllabusAPI,
			Recorder:  metrics,
			Observer: func(s session.Snapshot) {
				emitter.Emit(context.Background(), realtime.SSEMessage{
					Channel: realtime.SessionChannel(s.SessionID),
					Event:   realtime.SSEEventSyllabusSessionUpdated,
					Data:    s,
				})
			},
		})
	})

	var images media.ImageGenerator
	var llm faq.JSONGenerator
	if clients.OpenAI != nil {
		images = clients.OpenAI
		llm = clients.OpenAI
	}
	var store media.Store
	if clients.ImageBucket != nil {
		store = clients.ImageBucket
	}

	return Services{
		Extractor: ex,
		Sessions:  sessions,
		Images:    media.NewFiller(log, images, store, sc.Media.ImageConcurrency),
		FAQs:      faq.NewService(log, llm, sc.Media.FAQCount),
		Progress:  wireProgress(log, cfg, sc, emitter, metrics),
	}
}

// wireProgress builds the Live Progress Channel and forwards its pushes to
// every SSE client as toasts.
func wireProgress(log *logger.Logger, cfg Config, sc config.Config, emitter *realtime.Emitter, metrics *observability.Metrics) *progress.Channel {
	if cfg.ProgressURL == "" {
		log.Info("PROGRESS_SOCKET_URL not set; live progress disabled")
		return nil
	}
	ch := progress.New(log, progress.Config{
		URL:               cfg.ProgressURL,
		ReconnectAttempts: sc.LiveProgress.ReconnectAttempts,
		ReconnectDelay:    sc.LiveProgress.ReconnectDelay,
	})
	ch.OnEvent(func(ev progress.Event, snap progress.Snapshot) {
		metrics.ObserveProgressEvent(string(ev.Status))
		emitter.Emit(context.Background(), realtime.SSEMessage{
			Channel: realtime.ToastChannel,
			Event:   realtime.SSEEventProgressToast,
			Data:    snap,
		})
	})
	ch.OnStatus(func(snap progress.Snapshot) {
		emitter.Emit(context.Background(), realtime.SSEMessage{
			Channel: realtime.ToastChannel,
			Event:   realtime.SSEEventProgressChannelStatus,
			Data:    snap,
		})
	})
	return ch
}
