package structure

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
)

// ClassesPerModule is the fixed partition size.
const ClassesPerModule = 4

var (
	// ErrInvalidPayload means a raw class is missing required fields.
	ErrInvalidPayload = errors.New("invalid syllabus payload")
	// ErrNotFound means an edit targeted an id that does not exist.
	ErrNotFound = errors.New("syllabus item not found")
)

type Builder struct {
	ids      IDGenerator
	now      func() time.Time
	validate *validator.Validate
}

type Option func(*Builder)

func WithIDGenerator(g IDGenerator) Option {
	return func(b *Builder) {
		if g != nil {
			b.ids = g
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		ids:      DefaultIDs(),
		now:      time.Now,
		validate: validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Structure builds modules with the default builder.
func Structure(raw []syllabus.RawGeneratedClass) ([]syllabus.Module, error) {
	return NewBuilder().Build(raw)
}

// Build sorts raw by classNo (stable), partitions it into groups of
// ClassesPerModule and returns the nested module graph. The input is not
// modified. Empty input yields an empty, non-nil slice.
func (b *Builder) Build(raw []syllabus.RawGeneratedClass) ([]syllabus.Module, error) {
	if err := b.Validate(raw); err != nil {
		return nil, err
	}

	sorted := make([]syllabus.RawGeneratedClass, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ClassNo < sorted[j].ClassNo
	})

	ids := newRunIDs(b.ids)
	now := b.now()
	modules := make([]syllabus.Module, 0, (len(sorted)+ClassesPerModule-1)/ClassesPerModule)

	for start := 0; start < len(sorted); start += ClassesPerModule {
		end := start + ClassesPerModule
		if end > len(sorted) {
			end = len(sorted)
		}
		modules = append(modules, buildModule(len(modules)+1, sorted[start:end], ids, now))
	}
	return modules, nil
}

// Validate reports every raw class that lacks a title, a positive classNo
// or a slides array. Duplicate class numbers are accepted.
func (b *Builder) Validate(raw []syllabus.RawGeneratedClass) error {
	var problems []string
	for i := range raw {
		err := b.validate.Struct(&raw[i])
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: class[%d]: %v", ErrInvalidPayload, i, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("class[%d].%s failed %q", i, fe.Field(), fe.Tag()))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
	}
	return nil
}

func buildModule(index int, group []syllabus.RawGeneratedClass, ids *runIDs, now time.Time) syllabus.Module {
	m := syllabus.Module{
		ID:      ids.prefixed("module-" + strconv.Itoa(index) + "-"),
		Title:   ModuleTitle(index, group[0].ClassTitle),
		Classes: make([]syllabus.Class, 0, len(group)),
		Slides:  make([][]syllabus.Slide, 0, len(group)),
		FAQs:    make([][]syllabus.FAQ, 0, len(group)),
	}
	for _, rc := range group {
		classID := ids.prefixed("class-" + strconv.Itoa(rc.ClassNo) + "-")

		slides := make([]syllabus.Slide, 0, len(rc.Slides))
		for i, rs := range rc.Slides {
			slides = append(slides, syllabus.Slide{
				ID:              ids.slide(),
				Title:           rs.Title,
				SlideNo:         i + 1,
				Content:         rs.Content,
				VisualPrompt:    rs.VisualPrompt,
				VoiceoverScript: rs.VoiceoverScript,
				ClassID:         classID,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}

		m.Classes = append(m.Classes, syllabus.Class{
			ID:         classID,
			ClassNo:    rc.ClassNo,
			Title:      rc.ClassTitle,
			CorePoints: append([]string{}, rc.CoreConcepts...),
			SlideCount: len(rc.Slides),
			FAQs:       []syllabus.FAQ{},
		})
		m.Slides = append(m.Slides, slides)
		m.FAQs = append(m.FAQs, []syllabus.FAQ{})
	}
	return m
}

// ModuleTitle returns "Module <index>: <prefix>" where prefix is the class
// title up to its first colon, kept verbatim.
func ModuleTitle(index int, firstClassTitle string) string {
	head, _, _ := strings.Cut(firstClassTitle, ":")
	return "Module " + strconv.Itoa(index) + ": " + head
}
