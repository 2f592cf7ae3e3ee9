package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/platform/syllabusapi"
)

type fakeExtractor struct {
	res extractor.Result
	err error
}

func (f fakeExtractor) Extract(ctx context.Context, doc *syllabus.Document) (extractor.Result, error) {
	return f.res, f.err
}

type fakeAPI struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context) (*syllabus.RawGenerationResponse, error)
}

func (f *fakeAPI) RequestSyllabus(ctx context.Context, doc *syllabus.Document, classCount int) (*syllabus.RawGenerationResponse, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func payload(n int) *syllabus.RawGenerationResponse {
	out := &syllabus.RawGenerationResponse{Syllabus: []syllabus.RawGeneratedClass{}}
	for i := n; i >= 1; i-- {
		out.Syllabus = append(out.Syllabus, syllabus.RawGeneratedClass{
			ClassNo:    i,
			ClassTitle: "Topic: part",
			Slides:     []syllabus.RawSlide{{Title: "s"}},
		})
	}
	return out
}

func returning(resp *syllabus.RawGenerationResponse, err error) func(context.Context) (*syllabus.RawGenerationResponse, error) {
	return func(context.Context) (*syllabus.RawGenerationResponse, error) { return resp, err }
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot{}, r.snaps...)
}

func testConfig() Config {
	return Config{
		ClassCountMin:     1,
		ClassCountMax:     50,
		ClassCountDefault: 10,
		TickInterval:      time.Millisecond,
		TickCap:           90,
		MaxIncrement:      10,
		RequestTimeout:    5 * time.Second,
	}
}

func newTestGenerator(t *testing.T, cfg Config, ex Extractor, api Requester, rec *recorder) *Generator {
	t.Helper()
	deps := Deps{Extractor: ex, Requester: api}
	if rec != nil {
		deps.Observer = rec.observe
	}
	return NewGenerator(cfg, deps)
}

func doc() *syllabus.Document {
	return syllabus.BytesDocument("notes.txt", "text/plain", []byte("content"))
}

func TestStartWithoutFileStaysIdle(t *testing.T) {
	api := &fakeAPI{fn: returning(payload(1), nil)}
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, api, nil)

	if _, err := g.Start(context.Background(), Request{ClassCount: 5}); !errors.Is(err, ErrNoFile) {
		t.Fatalf("want ErrNoFile, got %v", err)
	}
	s := g.Snapshot()
	if s.State != StateIdle || s.Error == "" || s.ErrorCode != "no_file" {
		t.Fatalf("snapshot: %+v", s)
	}
	if api.Calls() != 0 {
		t.Fatalf("no request expected")
	}
}

func TestClassCountOutOfRange(t *testing.T) {
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, &fakeAPI{fn: returning(payload(1), nil)}, nil)
	for _, n := range []int{0, 51} {
		if _, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: n}); !errors.Is(err, ErrClassCountOutOfRange) {
			t.Fatalf("n=%d: want ErrClassCountOutOfRange, got %v", n, err)
		}
		if s := g.Snapshot(); s.State != StateIdle || !strings.Contains(s.Error, "between 1 and 50") {
			t.Fatalf("n=%d: snapshot %+v", n, s)
		}
	}
}

func TestRunSuccess(t *testing.T) {
	g := newTestGenerator(t, testConfig(), fakeExtractor{res: extractor.Result{Text: "abc"}}, &fakeAPI{fn: returning(payload(6), nil)}, nil)
	s, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 6})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.State != StateComplete || s.Progress != 100 || !s.HasResult || s.ModuleCount != 2 || s.ExtractedChars != 3 {
		t.Fatalf("snapshot: %+v", s)
	}
	mods, err := g.Modules()
	if err != nil || len(mods) != 2 {
		t.Fatalf("Modules: len=%d err=%v", len(mods), err)
	}
	if mods[0].Classes[0].ClassNo != 1 {
		t.Fatalf("result not sorted")
	}
}

func TestProgressTickerCapsBelowHundred(t *testing.T) {
	rec := &recorder{}
	capped := make(chan struct{})
	var once sync.Once
	observer := func(s Snapshot) {
		rec.observe(s)
		if s.State == StateAnalyzing && s.Progress >= 90 {
			once.Do(func() { close(capped) })
		}
	}
	api := &fakeAPI{fn: func(ctx context.Context) (*syllabus.RawGenerationResponse, error) {
		select {
		case <-capped:
		case <-time.After(3 * time.Second):
			return nil, errors.New("ticker never reached cap")
		}
		// Let a few more ticks hit the cap.
		time.Sleep(10 * time.Millisecond)
		return payload(1), nil
	}}
	g := NewGenerator(testConfig(), Deps{Extractor: fakeExtractor{}, Requester: api, Observer: observer})
	g.increment = func(int) int { return 7 }

	s, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Progress != 100 || s.State != StateComplete {
		t.Fatalf("final: %+v", s)
	}

	snaps := rec.all()
	maxSeen := 0
	for i, snap := range snaps {
		if snap.State == StateAnalyzing {
			if snap.Progress >= 100 {
				t.Fatalf("progress reached %d while analyzing", snap.Progress)
			}
			if snap.Progress > maxSeen {
				maxSeen = snap.Progress
			}
		}
		if snap.State == StateComplete && i != len(snaps)-1 {
			t.Fatalf("snapshot after completion: %+v", snaps[i+1])
		}
	}
	if maxSeen != 90 {
		t.Fatalf("cap: want=90 got=%d", maxSeen)
	}
}

func TestFailureKeepsPreviousResult(t *testing.T) {
	api := &fakeAPI{fn: returning(payload(2), nil)}
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, api, nil)
	if _, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 2}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before, _ := g.Modules()

	api.mu.Lock()
	api.fn = returning(nil, &syllabusapi.StatusError{StatusCode: 500, Body: "down"})
	api.mu.Unlock()

	s, err := g.Run(context.Background(), Request{ClassCount: 2})
	if !errors.Is(err, syllabusapi.ErrStatus) {
		t.Fatalf("want ErrStatus, got %v", err)
	}
	if s.State != StateError || !strings.Contains(s.Error, "HTTP 500") || !s.HasResult {
		t.Fatalf("snapshot: %+v", s)
	}
	after, err := g.Modules()
	if err != nil || len(after) != len(before) || after[0].ID != before[0].ID {
		t.Fatalf("previous result must survive a failure")
	}
}

func TestExtractionFailureSkipsRequest(t *testing.T) {
	api := &fakeAPI{fn: returning(payload(1), nil)}
	g := newTestGenerator(t, testConfig(), fakeExtractor{err: extractor.ErrPDFParse}, api, nil)
	s, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 1})
	if !errors.Is(err, extractor.ErrPDFParse) {
		t.Fatalf("want ErrPDFParse, got %v", err)
	}
	if api.Calls() != 0 {
		t.Fatalf("request must not be sent after extraction failure")
	}
	if s.State != StateError || s.ErrorCode != "extract_pdf" {
		t.Fatalf("snapshot: %+v", s)
	}
}

func TestUnsupportedFormatIsANotice(t *testing.T) {
	ex := fakeExtractor{res: extractor.Result{Text: "legacy placeholder", Unsupported: true}}
	api := &fakeAPI{fn: returning(payload(1), nil)}
	g := newTestGenerator(t, testConfig(), ex, api, nil)
	s, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if api.Calls() != 1 || s.State != StateComplete {
		t.Fatalf("soft degradation should still generate: calls=%d state=%s", api.Calls(), s.State)
	}
	if len(s.Notices) != 1 || s.Notices[0] != "legacy placeholder" {
		t.Fatalf("notices: %v", s.Notices)
	}
}

func TestRegenerationReplacesResult(t *testing.T) {
	api := &fakeAPI{fn: returning(payload(8), nil)}
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, api, nil)
	if _, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 8}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	first, _ := g.Modules()

	api.mu.Lock()
	api.fn = returning(payload(3), nil)
	api.mu.Unlock()
	if _, err := g.Run(context.Background(), Request{ClassCount: 3}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, _ := g.Modules()
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("want 2 then 1 modules, got %d then %d", len(first), len(second))
	}
	if second[0].ID == first[0].ID {
		t.Fatalf("regeneration must not reuse ids")
	}
}

func TestSecondStartWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{fn: func(ctx context.Context) (*syllabus.RawGenerationResponse, error) {
		<-release
		return payload(1), nil
	}}
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, api, nil)
	if _, err := g.Start(context.Background(), Request{Document: doc(), ClassCount: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := g.Start(context.Background(), Request{Document: doc(), ClassCount: 1}); !errors.Is(err, ErrInFlight) {
		t.Fatalf("want ErrInFlight, got %v", err)
	}
	close(release)
	g.Wait()
	if s := g.Snapshot(); s.State != StateComplete {
		t.Fatalf("state: %s", s.State)
	}
}

func TestCloseDropsLateResult(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	rec := &recorder{}
	api := &fakeAPI{fn: func(ctx context.Context) (*syllabus.RawGenerationResponse, error) {
		close(entered)
		<-release
		return payload(1), nil
	}}
	cfg := testConfig()
	cfg.TickInterval = 0
	g := newTestGenerator(t, cfg, fakeExtractor{}, api, rec)
	if _, err := g.Start(context.Background(), Request{Document: doc(), ClassCount: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered
	g.Close()
	seen := len(rec.all())
	close(release)
	g.Wait()

	if s := g.Snapshot(); s.State == StateComplete || s.HasResult {
		t.Fatalf("late result applied after Close: %+v", s)
	}
	if got := len(rec.all()); got != seen {
		t.Fatalf("observer called after Close: before=%d after=%d", seen, got)
	}
	if _, err := g.Start(context.Background(), Request{Document: doc(), ClassCount: 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestAbsentSyllabusCompletesEmpty(t *testing.T) {
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, &fakeAPI{fn: returning(&syllabus.RawGenerationResponse{}, nil)}, nil)
	s, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	mods, err := g.Modules()
	if err != nil || len(mods) != 0 || s.State != StateComplete || len(s.Notices) != 1 {
		t.Fatalf("snapshot=%+v modules=%d err=%v", s, len(mods), err)
	}
}

func TestRequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	api := &fakeAPI{fn: func(ctx context.Context) (*syllabus.RawGenerationResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := newTestGenerator(t, cfg, fakeExtractor{}, api, nil)
	s, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline, got %v", err)
	}
	if s.State != StateError || s.ErrorCode != "timeout" {
		t.Fatalf("snapshot: %+v", s)
	}
}

func TestInvalidPayloadIsAGenerationError(t *testing.T) {
	bad := &syllabus.RawGenerationResponse{Syllabus: []syllabus.RawGeneratedClass{{ClassNo: 1, ClassTitle: "x"}}}
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, &fakeAPI{fn: returning(bad, nil)}, nil)
	s, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 1})
	if !errors.Is(err, structure.ErrInvalidPayload) {
		t.Fatalf("want ErrInvalidPayload, got %v", err)
	}
	if s.State != StateError || s.ErrorCode != "generation_malformed" {
		t.Fatalf("snapshot: %+v", s)
	}
}

func TestEditsRequireResult(t *testing.T) {
	g := newTestGenerator(t, testConfig(), fakeExtractor{}, &fakeAPI{fn: returning(payload(4), nil)}, nil)
	title := "Renamed"
	if _, err := g.UpdateModule("module-1-x", structure.ModulePatch{Title: &title}); !errors.Is(err, ErrNoResult) {
		t.Fatalf("want ErrNoResult, got %v", err)
	}
	if _, err := g.Run(context.Background(), Request{Document: doc(), ClassCount: 4}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	mods, _ := g.Modules()
	m, err := g.UpdateModule(mods[0].ID, structure.ModulePatch{Title: &title})
	if err != nil || m.Title != "Renamed" {
		t.Fatalf("UpdateModule: %+v %v", m, err)
	}
	c, err := g.UpdateClass(mods[0].Classes[1].ID, structure.ClassPatch{Title: &title})
	if err != nil || c.Title != "Renamed" {
		t.Fatalf("UpdateClass: %+v %v", c, err)
	}
	if _, err := g.UpdateClass("nope", structure.ClassPatch{Title: &title}); !errors.Is(err, structure.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	n, err := g.ApplySlideImages(map[string]string{mods[0].Slides[0][0].ID: "data:image/png;base64,AA=="})
	if err != nil || n != 1 {
		t.Fatalf("ApplySlideImages: n=%d err=%v", n, err)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(nil, func() *Generator {
		return newTestGenerator(t, testConfig(), fakeExtractor{}, &fakeAPI{fn: returning(payload(1), nil)}, nil)
	})
	g := r.Create()
	if got, ok := r.Get(g.ID()); !ok || got != g {
		t.Fatalf("Get after Create failed")
	}
	if !r.Delete(g.ID()) || !g.Closed() {
		t.Fatalf("Delete should close the generator")
	}
	if r.Delete(g.ID()) || r.Len() != 0 {
		t.Fatalf("second Delete should report missing")
	}
}
