package app

import (
	"context"
	"reflect"
	"testing"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/session"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/realtime"
)

type fakeAPI struct{}

func (fakeAPI) RequestSyllabus(ctx context.Context, doc *syllabus.Document, classCount int) (*syllabus.RawGenerationResponse, error) {
	return &syllabus.RawGenerationResponse{Syllabus: []syllabus.RawGeneratedClass{
		{ClassNo: 1, ClassTitle: "Intro", Slides: []syllabus.RawSlide{{Title: "Hello"}}},
	}}, nil
}

func TestLoadConfigOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://studio.example.com, ,https://admin.example.com")
	t.Setenv("PROGRESS_SOCKET_URL", "")
	cfg := LoadConfig(logger.Nop())
	want := []string{"https://studio.example.com", "https://admin.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Fatalf("origins: want=%v got=%v", want, cfg.AllowedOrigins)
	}
	if cfg.ProgressURL != "" {
		t.Fatalf("progress url: want empty got=%q", cfg.ProgressURL)
	}
}

func TestWireServicesPushesSessionSnapshots(t *testing.T) {
	log := logger.Nop()
	hub := realtime.NewSSEHub(log)
	emitter := realtime.NewEmitter(log, hub, nil)
	sc := config.Defaults()
	sc.Ticker.Interval = 0

	svc := wireServices(log, Config{}, sc, Clients{SyllabusAPI: fakeAPI{}}, emitter, nil)
	if svc.Progress != nil {
		t.Fatal("progress channel should be nil without a url")
	}
	if svc.Images.Available() {
		t.Fatal("image filler should be unavailable without a provider")
	}

	g := svc.Sessions.Create()
	defer svc.Sessions.CloseAll()
	client := hub.NewSSEClient()
	hub.AddChannel(client, realtime.SessionChannel(g.ID()))

	snap, err := g.Run(context.Background(), textRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.ModuleCount != 1 {
		t.Fatalf("module count: want=1 got=%d", snap.ModuleCount)
	}

	var last realtime.SSEMessage
	for drained := false; !drained; {
		select {
		case msg := <-client.Outbound:
			last = msg
		default:
			drained = true
		}
	}
	if last.Event != realtime.SSEEventSyllabusSessionUpdated {
		t.Fatalf("event: want=%q got=%q", realtime.SSEEventSyllabusSessionUpdated, last.Event)
	}
}

func TestWireProgressWhenConfigured(t *testing.T) {
	log := logger.Nop()
	ch := wireProgress(log, Config{ProgressURL: "http://localhost:4000"}, config.Defaults(), realtime.NewEmitter(log, nil, nil), nil)
	if ch == nil {
		t.Fatal("expected a progress channel")
	}
	if ch.Snapshot().Connected {
		t.Fatal("channel must not connect before Start")
	}
}

func textRequest() session.Request {
	return session.Request{
		Document:   syllabus.BytesDocument("notes.txt", "text/plain", []byte("intro")),
		ClassCount: 1,
	}
}
