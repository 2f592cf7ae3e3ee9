package faq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

var (
	ErrUnavailable = errors.New("faq provider not configured")
	ErrEmpty       = errors.New("provider returned no faqs")
)

const UnavailableNotice = "FAQs were skipped because no provider key is configured."

type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

type Target interface {
	Modules() ([]syllabus.Module, error)
	SetClassFAQs(classID string, faqs []syllabus.FAQ) error
	Notify(msg string)
}

type Service struct {
	log   *logger.Logger
	llm   JSONGenerator
	count int
}

func NewService(log *logger.Logger, llm JSONGenerator, count int) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if count <= 0 {
		count = 5
	}
	return &Service{log: log.With("service", "FAQService"), llm: llm, count: count}
}

const systemPrompt = "You write concise study FAQs for one class of a course. " +
	"Answer from the class material only. Keep answers under 80 words."

// Fetch asks the provider for question/answer pairs about one class and
// stores them on the class and its module.
func (s *Service) Fetch(ctx context.Context, target Target, classID string) ([]syllabus.FAQ, error) {
	if s.llm == nil {
		target.Notify(UnavailableNotice)
		return nil, ErrUnavailable
	}
	mods, err := target.Modules()
	if err != nil {
		return nil, err
	}
	mi, ci, ok := structure.FindClass(mods, classID)
	if !ok {
		return nil, fmt.Errorf("%w: class %q", structure.ErrNotFound, classID)
	}
	prompt := userPrompt(mods[mi], ci, s.count)

	obj, err := s.llm.GenerateJSON(ctx, systemPrompt, prompt, "class_faqs", schema(s.count))
	if err != nil {
		return nil, fmt.Errorf("generate faqs: %w", err)
	}
	faqs, err := decode(obj)
	if err != nil {
		return nil, err
	}
	if err := target.SetClassFAQs(classID, faqs); err != nil {
		return nil, err
	}
	s.log.Info("Class FAQs generated", "class_id", classID, "count", len(faqs))
	return faqs, nil
}

func userPrompt(m syllabus.Module, ci int, count int) string {
	c := m.Classes[ci]
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n", m.Title)
	fmt.Fprintf(&b, "Class %d: %s\n", c.ClassNo, c.Title)
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
	}
	if len(c.CorePoints) > 0 {
		fmt.Fprintf(&b, "Core concepts: %s\n", strings.Join(c.CorePoints, "; "))
	}
	if ci < len(m.Slides) {
		b.WriteString("Slides:\n")
		for _, sl := range m.Slides[ci] {
			fmt.Fprintf(&b, "- %s: %s\n", sl.Title, sl.Content)
		}
	}
	fmt.Fprintf(&b, "\nWrite exactly %d FAQs a student would ask about this class.", count)
	return b.String()
}

func schema(count int) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"faqs"},
		"properties": map[string]any{
			"faqs": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": count,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"question", "answer"},
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
						"answer":   map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func decode(obj map[string]any) ([]syllabus.FAQ, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var out struct {
		FAQs []syllabus.FAQ `json:"faqs"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode faqs: %w", err)
	}
	faqs := make([]syllabus.FAQ, 0, len(out.FAQs))
	for _, f := range out.FAQs {
		q := strings.TrimSpace(f.Question)
		a := strings.TrimSpace(f.Answer)
		if q == "" || a == "" {
			continue
		}
		faqs = append(faqs, syllabus.FAQ{Question: q, Answer: a})
	}
	if len(faqs) == 0 {
		return nil, ErrEmpty
	}
	return faqs, nil
}
