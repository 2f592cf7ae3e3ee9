package structure

import (
	"strconv"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
)

// Lessons flattens a module into one legacy lesson per slide, in class then
// slide order. It is derived on every call and never stored.
func Lessons(m syllabus.Module) []syllabus.Lesson {
	out := []syllabus.Lesson{}
	for i, class := range m.Classes {
		if i >= len(m.Slides) {
			break
		}
		for _, s := range m.Slides[i] {
			out = append(out, syllabus.Lesson{
				ID:          s.ID,
				Title:       "Class " + strconv.Itoa(class.ClassNo) + " - " + s.Title,
				Description: lessonDescription(s),
			})
		}
	}
	return out
}

// AllLessons flattens every module in order.
func AllLessons(mods []syllabus.Module) []syllabus.Lesson {
	out := []syllabus.Lesson{}
	for _, m := range mods {
		out = append(out, Lessons(m)...)
	}
	return out
}

func lessonDescription(s syllabus.Slide) string {
	return s.Content + "\n\nVisual Prompt: " + s.VisualPrompt + "\n\nVoiceover Script: " + s.VoiceoverScript
}

// ModuleView is a module as served to clients, with the derived lessons.
type ModuleView struct {
	syllabus.Module
	Lessons []syllabus.Lesson `json:"lessons"`
}

func Views(mods []syllabus.Module) []ModuleView {
	out := make([]ModuleView, 0, len(mods))
	for _, m := range mods {
		out = append(out, ModuleView{Module: m, Lessons: Lessons(m)})
	}
	return out
}
