package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/platform/ctxutil"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

type Extractor interface {
	Extract(ctx context.Context, doc *syllabus.Document) (extractor.Result, error)
}

type Requester interface {
	RequestSyllabus(ctx context.Context, doc *syllabus.Document, classCount int) (*syllabus.RawGenerationResponse, error)
}

type Structurer interface {
	Build(raw []syllabus.RawGeneratedClass) ([]syllabus.Module, error)
}

// Request starts a run. A nil Document reuses the last accepted one.
type Request struct {
	Document   *syllabus.Document
	ClassCount int
}

// Recorder receives one observation per settled run.
type Recorder interface {
	ObserveGeneration(status, step string, dur time.Duration)
}

type Deps struct {
	Log       *logger.Logger
	Extractor Extractor
	Requester Requester
	Builder   Structurer
	Recorder  Recorder
	// Observer receives a snapshot after every change. It is called without
	// the generator's lock held.
	Observer func(Snapshot)
}

// Generator runs the extract → request → structure pipeline for one
// workspace and owns its latest result. Runs cannot be cancelled; after
// Close, late results are discarded.
type Generator struct {
	id       string
	log      *logger.Logger
	cfg      Config
	extract  Extractor
	api      Requester
	builder  Structurer
	recorder Recorder
	observer func(Snapshot)

	increment func(max int) int
	newTicker func(d time.Duration) (<-chan time.Time, func())

	runs sync.WaitGroup

	mu         sync.Mutex
	seq        uint64
	state      State
	stage      Stage
	progress   int
	errMsg     string
	errCode    string
	notices    []string
	doc        *syllabus.Document
	classCount int
	extracted  int
	runID      string
	modules    []syllabus.Module
	hasResult  bool
	closed     bool
	updatedAt  time.Time
}

func NewGenerator(cfg Config, deps Deps) *Generator {
	id := newID()
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	builder := deps.Builder
	if builder == nil {
		builder = structure.NewBuilder()
	}
	return &Generator{
		id:        id,
		log:       log.With("component", "SyllabusGenerator", "session_id", id),
		cfg:       cfg,
		extract:   deps.Extractor,
		api:       deps.Requester,
		builder:   builder,
		recorder:  deps.Recorder,
		observer:  deps.Observer,
		increment: func(max int) int { return 1 + rand.IntN(max) },
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		state:     StateIdle,
		notices:   []string{},
		updatedAt: time.Now(),
	}
}

func (g *Generator) ID() string { return g.id }

func (g *Generator) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Generator) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:      g.id,
		Seq:            g.seq,
		RunID:          g.runID,
		State:          g.state,
		Stage:          g.stage,
		Progress:       g.progress,
		Error:          g.errMsg,
		ErrorCode:      g.errCode,
		Notices:        append([]string{}, g.notices...),
		ClassCount:     g.classCount,
		ExtractedChars: g.extracted,
		ModuleCount:    len(g.modules),
		HasResult:      g.hasResult,
		UpdatedAt:      g.updatedAt,
	}
	if g.doc != nil {
		s.FileName = g.doc.Name
	}
	return s
}

// changedLocked bumps the sequence and returns the snapshot to publish.
func (g *Generator) changedLocked() Snapshot {
	g.seq++
	g.updatedAt = time.Now()
	return g.snapshotLocked()
}

func (g *Generator) publish(s Snapshot) {
	g.mu.Lock()
	obs := g.observer
	g.mu.Unlock()
	if obs != nil {
		obs(s)
	}
}

// Start validates req synchronously, enters analyzing and runs the
// pipeline in the background. The run outlives ctx's cancellation but
// keeps its values.
func (g *Generator) Start(ctx context.Context, req Request) (string, error) {
	run, err := g.begin(req)
	if err != nil {
		return "", err
	}
	runCtx := context.WithoutCancel(ctxutil.Default(ctx))
	g.runs.Add(1)
	go func() {
		defer g.runs.Done()
		_ = g.execute(runCtx, run)
	}()
	return run.id, nil
}

// Run is Start without the goroutine: it returns once the run settles.
func (g *Generator) Run(ctx context.Context, req Request) (Snapshot, error) {
	run, err := g.begin(req)
	if err != nil {
		return g.Snapshot(), err
	}
	g.runs.Add(1)
	defer g.runs.Done()
	err = g.execute(ctxutil.Default(ctx), run)
	return g.Snapshot(), err
}

// Wait blocks until every started run has settled.
func (g *Generator) Wait() { g.runs.Wait() }

type runSpec struct {
	id         string
	doc        *syllabus.Document
	classCount int
}

func (g *Generator) begin(req Request) (runSpec, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return runSpec{}, ErrClosed
	}
	if g.state == StateAnalyzing {
		g.mu.Unlock()
		return runSpec{}, ErrInFlight
	}

	doc := req.Document
	if doc == nil {
		doc = g.doc
	}
	var rejected error
	switch {
	case doc == nil:
		rejected = ErrNoFile
	case req.ClassCount < g.cfg.ClassCountMin || req.ClassCount > g.cfg.ClassCountMax:
		rejected = fmt.Errorf("%w: class count must be between %d and %d", ErrClassCountOutOfRange, g.cfg.ClassCountMin, g.cfg.ClassCountMax)
	}
	if rejected != nil {
		g.errMsg, g.errCode = userMessage(rejected)
		snap := g.changedLocked()
		g.mu.Unlock()
		g.publish(snap)
		return runSpec{}, rejected
	}

	run := runSpec{id: newID(), doc: doc, classCount: req.ClassCount}
	g.doc = doc
	g.classCount = req.ClassCount
	g.runID = run.id
	g.state = StateAnalyzing
	g.stage = StageExtracting
	g.progress = 0
	g.errMsg, g.errCode = "", ""
	g.notices = []string{}
	g.extracted = 0
	snap := g.changedLocked()
	g.mu.Unlock()

	g.log.Info("Syllabus generation started", "run_id", run.id, "file", doc.Name, "class_count", run.classCount)
	g.publish(snap)
	return run, nil
}

func (g *Generator) execute(ctx context.Context, run runSpec) error {
	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	stopTicker := g.startTicker(run.id)
	defer stopTicker()

	res, err := g.extract.Extract(ctx, run.doc)
	if err != nil {
		stopTicker()
		g.fail(run.id, "extract", err)
		g.record("error", "extract", start)
		return err
	}
	g.extractedText(run.id, res)

	raw, err := g.api.RequestSyllabus(ctx, run.doc, run.classCount)
	stopTicker()
	if err != nil {
		g.fail(run.id, "request", err)
		g.record("error", "request", start)
		return err
	}

	var classes []syllabus.RawGeneratedClass
	var notice string
	if raw == nil || raw.Syllabus == nil {
		notice = "The generation service returned no syllabus for this document."
	} else {
		classes = raw.Syllabus
	}
	mods, err := g.builder.Build(classes)
	if err != nil {
		g.fail(run.id, "structure", err)
		g.record("error", "structure", start)
		return err
	}
	g.succeed(run.id, mods, notice)
	g.record("complete", "", start)
	return nil
}

func (g *Generator) record(status, step string, start time.Time) {
	if g.recorder != nil {
		g.recorder.ObserveGeneration(status, step, time.Since(start))
	}
}

// startTicker advances the displayed progress until stopped. The returned
// stop function is idempotent and returns only after the ticker goroutine
// has exited, so no tick can land after the run settles.
func (g *Generator) startTicker(runID string) func() {
	if g.cfg.TickInterval <= 0 {
		return func() {}
	}
	ticks, stopTick := g.newTicker(g.cfg.TickInterval)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case <-ticks:
				g.tick(runID)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			stopTick()
			close(done)
			<-exited
		})
	}
}

func (g *Generator) tick(runID string) {
	g.mu.Lock()
	if g.closed || g.runID != runID || g.state != StateAnalyzing || g.progress >= g.cfg.TickCap {
		g.mu.Unlock()
		return
	}
	maxInc := g.cfg.MaxIncrement
	if maxInc <= 0 {
		maxInc = 1
	}
	next := g.progress + g.increment(maxInc)
	if next > g.cfg.TickCap {
		next = g.cfg.TickCap
	}
	g.progress = next
	snap := g.changedLocked()
	g.mu.Unlock()
	g.publish(snap)
}

func (g *Generator) extractedText(runID string, res extractor.Result) {
	g.mu.Lock()
	if g.closed || g.runID != runID {
		g.mu.Unlock()
		return
	}
	g.stage = StageGenerating
	g.extracted = len(res.Text)
	if res.Unsupported {
		g.notices = append(g.notices, res.Text)
	}
	for _, w := range res.Warnings {
		g.notices = append(g.notices, w)
	}
	snap := g.changedLocked()
	g.mu.Unlock()
	g.publish(snap)
}

func (g *Generator) fail(runID, step string, err error) {
	g.mu.Lock()
	if g.closed || g.runID != runID {
		g.mu.Unlock()
		g.log.Debug("Dropping late failure", "run_id", runID, "error", err)
		return
	}
	g.state = StateError
	g.stage = StageNone
	g.errMsg, g.errCode = userMessage(err)
	snap := g.changedLocked()
	g.mu.Unlock()

	g.log.Warn("Syllabus generation failed", "run_id", runID, "step", step, "error", err)
	g.publish(snap)
}

func (g *Generator) succeed(runID string, mods []syllabus.Module, notice string) {
	g.mu.Lock()
	if g.closed || g.runID != runID {
		g.mu.Unlock()
		g.log.Debug("Dropping late result", "run_id", runID)
		return
	}
	g.state = StateComplete
	g.stage = StageNone
	g.progress = 100
	g.modules = mods
	g.hasResult = true
	if notice != "" {
		g.notices = append(g.notices, notice)
	}
	snap := g.changedLocked()
	g.mu.Unlock()

	g.log.Info("Syllabus generation complete", "run_id", runID, "modules", len(mods))
	g.publish(snap)
}

// Close marks the generator defunct. In-flight runs finish in the
// background and their outcome is dropped.
func (g *Generator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.observer = nil
}

func (g *Generator) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
