package faq

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
)

type fakeTarget struct {
	mods    []syllabus.Module
	notices []string
}

func (t *fakeTarget) Modules() ([]syllabus.Module, error) { return t.mods, nil }

func (t *fakeTarget) SetClassFAQs(classID string, faqs []syllabus.FAQ) error {
	next, err := structure.SetClassFAQs(t.mods, classID, faqs)
	if err != nil {
		return err
	}
	t.mods = next
	return nil
}

func (t *fakeTarget) Notify(msg string) { t.notices = append(t.notices, msg) }

type fakeLLM struct {
	user string
	out  map[string]any
	err  error
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.user = user
	return f.out, f.err
}

func target(t *testing.T) *fakeTarget {
	t.Helper()
	mods, err := structure.NewBuilder().Build([]syllabus.RawGeneratedClass{
		{ClassNo: 1, ClassTitle: "Intro: basics", CoreConcepts: []string{"atoms"}, Slides: []syllabus.RawSlide{{Title: "What", Content: "stuff"}}},
		{ClassNo: 2, ClassTitle: "Next", Slides: []syllabus.RawSlide{}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return &fakeTarget{mods: mods}
}

func TestFetchStoresOnClassAndModule(t *testing.T) {
	tg := target(t)
	classID := tg.mods[0].Classes[1].ID
	llm := &fakeLLM{out: map[string]any{"faqs": []any{
		map[string]any{"question": " Why? ", "answer": "Because."},
		map[string]any{"question": "", "answer": "dropped"},
	}}}
	got, err := NewService(nil, llm, 3).Fetch(context.Background(), tg, classID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := syllabus.FAQ{Question: "Why?", Answer: "Because."}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("faqs: want=%v got=%v", want, got)
	}
	if c := tg.mods[0].Classes[1]; len(c.FAQs) != 1 || c.FAQs[0] != want {
		t.Fatalf("class faqs: got=%v", c.FAQs)
	}
	if f := tg.mods[0].FAQs[1]; len(f) != 1 || f[0] != want {
		t.Fatalf("module faqs: got=%v", f)
	}
	if len(tg.mods[0].FAQs[0]) != 0 {
		t.Fatalf("other class faqs changed: %v", tg.mods[0].FAQs[0])
	}
	if !strings.Contains(llm.user, "Class 2: Next") || !strings.Contains(llm.user, "exactly 3 FAQs") {
		t.Fatalf("prompt: %q", llm.user)
	}
}

func TestFetchUnavailable(t *testing.T) {
	tg := target(t)
	_, err := NewService(nil, nil, 3).Fetch(context.Background(), tg, tg.mods[0].Classes[0].ID)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want=%v got=%v", ErrUnavailable, err)
	}
	if len(tg.notices) != 1 {
		t.Fatalf("notices: want=1 got=%d", len(tg.notices))
	}
}

func TestFetchUnknownClass(t *testing.T) {
	tg := target(t)
	_, err := NewService(nil, &fakeLLM{}, 3).Fetch(context.Background(), tg, "class-9-x")
	if !errors.Is(err, structure.ErrNotFound) {
		t.Fatalf("want=%v got=%v", structure.ErrNotFound, err)
	}
}

func TestFetchEmptyAnswer(t *testing.T) {
	tg := target(t)
	llm := &fakeLLM{out: map[string]any{"faqs": []any{}}}
	_, err := NewService(nil, llm, 3).Fetch(context.Background(), tg, tg.mods[0].Classes[0].ID)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("want=%v got=%v", ErrEmpty, err)
	}
}
