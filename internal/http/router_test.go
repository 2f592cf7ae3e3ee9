package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	httpH "github.com/yungbote/syllabus-studio/internal/http/handlers"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/faq"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/media"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/session"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/realtime"
)

type stubAPI struct{}

func (stubAPI) RequestSyllabus(ctx context.Context, doc *syllabus.Document, classCount int) (*syllabus.RawGenerationResponse, error) {
	out := &syllabus.RawGenerationResponse{}
	for i := classCount; i >= 1; i-- {
		out.Syllabus = append(out.Syllabus, syllabus.RawGeneratedClass{
			ClassNo:    i,
			ClassTitle: "Cells: part",
			Slides:     []syllabus.RawSlide{{Title: "Slide", Content: "Body", VisualPrompt: "a cell"}},
		})
	}
	return out, nil
}

type harness struct {
	router   *gin.Engine
	sessions *session.Registry
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	log := logger.Nop()
	ex := extractor.New(log)
	scfg := session.ConfigFrom(cfg)
	scfg.TickInterval = 0
	sessions := session.NewRegistry(log, func() *session.Generator {
		return session.NewGenerator(scfg, session.Deps{Log: log, Extractor: ex, Requester: stubAPI{}})
	})
	t.Cleanup(sessions.CloseAll)

	router := NewRouter(RouterConfig{
		Log:             log,
		HealthHandler:   httpH.NewHealthHandler("test", sessions),
		DocumentHandler: httpH.NewDocumentHandler(log, ex, cfg.Upload, nil),
		SyllabusHandler: httpH.NewSyllabusHandler(log, sessions, cfg, media.NewFiller(log, nil, nil, 2), faq.NewService(log, nil, 3), nil),
		ProgressHandler: httpH.NewProgressHandler(nil),
		RealtimeHandler: httpH.NewRealtimeHandler(log, realtime.NewSSEHub(log), sessions, nil),
	})
	return &harness{router: router, sessions: sessions}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		hdr := make(map[string][]string)
		hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
		hdr["Content-Type"] = []string{contentType}
		part, err := w.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		_, _ = part.Write(data)
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type sessionBody struct {
	Session session.Snapshot `json:"session"`
}

func (h *harness) createSession(t *testing.T) string {
	t.Helper()
	rec := h.do(t, httptest.NewRequest(http.MethodPost, "/api/syllabus/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status: want=%d got=%d body=%s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	body := decode[sessionBody](t, rec)
	if body.Session.State != session.StateIdle {
		t.Fatalf("initial state: want=%q got=%q", session.StateIdle, body.Session.State)
	}
	return body.Session.SessionID
}

func (h *harness) generate(t *testing.T, id, filename, contentType string, data []byte, classCount string) *httptest.ResponseRecorder {
	t.Helper()
	fields := map[string]string{}
	if classCount != "" {
		fields["classCount"] = classCount
	}
	body, ct := multipartBody(t, filename, contentType, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/syllabus/sessions/"+id+"/generate", body)
	req.Header.Set("Content-Type", ct)
	return h.do(t, req)
}

func (h *harness) wait(t *testing.T, id string) {
	t.Helper()
	g, ok := h.sessions.Get(id)
	if !ok {
		t.Fatalf("session %s missing", id)
	}
	g.Wait()
}

func TestHealthcheck(t *testing.T) {
	h := newHarness(t, nil)
	h.createSession(t)
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: code=%d body=%q", rec.Code, rec.Body.String())
	}
	var body struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Version != "test" || body.Sessions != 1 {
		t.Fatalf("healthcheck body: got=%+v", body)
	}
}

func TestGenerateThenReadModulesAndLessons(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createSession(t)

	rec := h.generate(t, id, "notes.txt", "text/plain", []byte("photosynthesis notes"), "5")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status: want=%d got=%d body=%s", http.StatusAccepted, rec.Code, rec.Body.String())
	}
	h.wait(t, id)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/syllabus/sessions/"+id, nil))
	snap := decode[sessionBody](t, rec).Session
	if snap.State != session.StateComplete || snap.Progress != 100 || snap.ModuleCount != 2 {
		t.Fatalf("snapshot: state=%q progress=%d modules=%d", snap.State, snap.Progress, snap.ModuleCount)
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/syllabus/sessions/"+id+"/modules", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("modules status: got=%d", rec.Code)
	}
	mods := decode[struct {
		Modules []struct {
			ID      string            `json:"id"`
			Title   string            `json:"title"`
			Classes []syllabus.Class  `json:"classes"`
			Lessons []syllabus.Lesson `json:"lessons"`
		} `json:"modules"`
	}](t, rec).Modules
	if len(mods) != 2 || len(mods[0].Classes) != 4 || len(mods[1].Classes) != 1 {
		t.Fatalf("module shape: %+v", mods)
	}
	if mods[0].Title != "Module 1: Cells" {
		t.Fatalf("module title: want=%q got=%q", "Module 1: Cells", mods[0].Title)
	}
	if len(mods[0].Lessons) != 4 {
		t.Fatalf("derived lessons: want=4 got=%d", len(mods[0].Lessons))
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/syllabus/sessions/"+id+"/lessons", nil))
	lessons := decode[struct {
		Lessons []syllabus.Lesson `json:"lessons"`
	}](t, rec).Lessons
	if len(lessons) != 5 {
		t.Fatalf("lessons: want=5 got=%d", len(lessons))
	}

	patch := strings.NewReader(`{"title":"Renamed"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/syllabus/sessions/"+id+"/modules/"+mods[0].ID, patch)
	req.Header.Set("Content-Type", "application/json")
	rec = h.do(t, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"title":"Renamed"`) {
		t.Fatalf("patch module: code=%d body=%s", rec.Code, rec.Body.String())
	}

	classID := mods[1].Classes[0].ID
	req = httptest.NewRequest(http.MethodPatch, "/api/syllabus/sessions/"+id+"/classes/"+classID, strings.NewReader(`{"description":"Wrap up"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = h.do(t, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"description":"Wrap up"`) {
		t.Fatalf("patch class: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGenerateRejections(t *testing.T) {
	cases := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		classCount  string
		wantStatus  int
		wantCode    string
	}{
		{name: "no file", classCount: "3", wantStatus: http.StatusBadRequest, wantCode: "no_file"},
		{name: "class count too high", filename: "a.txt", contentType: "text/plain", data: []byte("x"), classCount: "51", wantStatus: http.StatusBadRequest, wantCode: "class_count_out_of_range"},
		{name: "class count zero", filename: "a.txt", contentType: "text/plain", data: []byte("x"), classCount: "0", wantStatus: http.StatusBadRequest, wantCode: "class_count_out_of_range"},
		{name: "class count not a number", filename: "a.txt", contentType: "text/plain", data: []byte("x"), classCount: "ten", wantStatus: http.StatusBadRequest, wantCode: "invalid_class_count"},
		{name: "unaccepted type", filename: "a.exe", contentType: "application/x-msdownload", data: []byte("MZ"), classCount: "3", wantStatus: http.StatusUnsupportedMediaType, wantCode: "unsupported_type"},
		{name: "too large", filename: "a.txt", contentType: "text/plain", data: bytes.Repeat([]byte("x"), 64), classCount: "3", wantStatus: http.StatusRequestEntityTooLarge, wantCode: "file_too_large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(c *config.Config) { c.Upload.MaxBytes = 32 })
			id := h.createSession(t)
			rec := h.generate(t, id, tc.filename, tc.contentType, tc.data, tc.classCount)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status: want=%d got=%d body=%s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if got := decode[errorBody](t, rec).Error.Code; got != tc.wantCode {
				t.Fatalf("code: want=%q got=%q", tc.wantCode, got)
			}
		})
	}
}

func TestSessionLifecycleAndMissingResult(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createSession(t)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/syllabus/sessions/"+id+"/modules", nil))
	if rec.Code != http.StatusConflict || decode[errorBody](t, rec).Error.Code != "no_result" {
		t.Fatalf("modules before result: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, httptest.NewRequest(http.MethodDelete, "/api/syllabus/sessions/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: want=%d got=%d", http.StatusNoContent, rec.Code)
	}
	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/syllabus/sessions/"+id, nil))
	if rec.Code != http.StatusNotFound || decode[errorBody](t, rec).Error.Code != "session_not_found" {
		t.Fatalf("get after delete: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestProvidersUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createSession(t)
	if rec := h.generate(t, id, "n.txt", "text/plain", []byte("notes"), "1"); rec.Code != http.StatusAccepted {
		t.Fatalf("generate: code=%d body=%s", rec.Code, rec.Body.String())
	}
	h.wait(t, id)

	rec := h.do(t, httptest.NewRequest(http.MethodPost, "/api/syllabus/sessions/"+id+"/images", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("images: want=%d got=%d", http.StatusServiceUnavailable, rec.Code)
	}

	g, _ := h.sessions.Get(id)
	mods, err := g.Modules()
	if err != nil {
		t.Fatalf("Modules: %v", err)
	}
	rec = h.do(t, httptest.NewRequest(http.MethodPost, "/api/syllabus/sessions/"+id+"/classes/"+mods[0].Classes[0].ID+"/faqs", nil))
	if rec.Code != http.StatusServiceUnavailable || decode[errorBody](t, rec).Error.Code != "provider_unavailable" {
		t.Fatalf("faqs: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if notices := g.Snapshot().Notices; len(notices) != 2 {
		t.Fatalf("notices: want=2 got=%v", notices)
	}
}

func TestExtractEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	body, ct := multipartBody(t, "slides.ppt", "application/vnd.ms-powerpoint", []byte{0xd0, 0xcf}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/extract", body)
	req.Header.Set("Content-Type", ct)
	rec := h.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("extract: code=%d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		FileName    string `json:"fileName"`
		Format      string `json:"format"`
		Unsupported bool   `json:"unsupported"`
		Text        string `json:"text"`
	}](t, rec)
	if got.FileName != "slides.ppt" || got.Format != "legacy" || !got.Unsupported || !strings.Contains(got.Text, "legacy PPT") {
		t.Fatalf("extract result: %+v", got)
	}

	rec = h.do(t, httptest.NewRequest(http.MethodPost, "/api/documents/extract", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("extract without file: want=%d got=%d", http.StatusBadRequest, rec.Code)
	}
}

func TestProgressWithoutChannel(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/progress", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"configured":false`) {
		t.Fatalf("progress: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSSEStreamUnknownSession(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/sse/stream?session=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("sse unknown session: want=%d got=%d", http.StatusNotFound, rec.Code)
	}
}
