package structure

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
)

// ModulePatch and ClassPatch carry optional field replacements. Nil fields
// are left unchanged.
type ModulePatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type ClassPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (p ModulePatch) Empty() bool { return p.Title == nil && p.Description == nil }
func (p ClassPatch) Empty() bool  { return p.Title == nil && p.Description == nil }

// UpdateModule returns a copy of mods with the module's title/description
// replaced. mods itself is not modified.
func UpdateModule(mods []syllabus.Module, moduleID string, patch ModulePatch) ([]syllabus.Module, error) {
	mi := -1
	for i := range mods {
		if mods[i].ID == moduleID {
			mi = i
			break
		}
	}
	if mi < 0 {
		return nil, fmt.Errorf("%w: module %q", ErrNotFound, moduleID)
	}
	out := cloneModules(mods)
	if patch.Title != nil {
		out[mi].Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		out[mi].Description = *patch.Description
	}
	return out, nil
}

// UpdateClass returns a copy of mods with the class's title/description
// replaced.
func UpdateClass(mods []syllabus.Module, classID string, patch ClassPatch) ([]syllabus.Module, error) {
	mi, ci, ok := FindClass(mods, classID)
	if !ok {
		return nil, fmt.Errorf("%w: class %q", ErrNotFound, classID)
	}
	out := cloneModules(mods)
	if patch.Title != nil {
		out[mi].Classes[ci].Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		out[mi].Classes[ci].Description = *patch.Description
	}
	return out, nil
}

// SetClassFAQs stores faqs both on the class and in the module's aligned
// faqs slot.
func SetClassFAQs(mods []syllabus.Module, classID string, faqs []syllabus.FAQ) ([]syllabus.Module, error) {
	mi, ci, ok := FindClass(mods, classID)
	if !ok {
		return nil, fmt.Errorf("%w: class %q", ErrNotFound, classID)
	}
	out := cloneModules(mods)
	out[mi].Classes[ci].FAQs = append([]syllabus.FAQ{}, faqs...)
	out[mi].FAQs[ci] = append([]syllabus.FAQ{}, faqs...)
	return out, nil
}

// SetSlideImages applies image URLs keyed by slide id. Unknown ids are
// ignored; the number of slides updated is returned.
func SetSlideImages(mods []syllabus.Module, urls map[string]string, now time.Time) ([]syllabus.Module, int) {
	out := cloneModules(mods)
	updated := 0
	for mi := range out {
		for ci := range out[mi].Slides {
			for si := range out[mi].Slides[ci] {
				s := &out[mi].Slides[ci][si]
				u, ok := urls[s.ID]
				if !ok {
					continue
				}
				url := u
				s.ImageURL = &url
				s.UpdatedAt = now
				updated++
			}
		}
	}
	return out, updated
}

// FindClass locates a class by id.
func FindClass(mods []syllabus.Module, classID string) (moduleIdx, classIdx int, ok bool) {
	for mi := range mods {
		for ci := range mods[mi].Classes {
			if mods[mi].Classes[ci].ID == classID {
				return mi, ci, true
			}
		}
	}
	return -1, -1, false
}

func cloneModules(mods []syllabus.Module) []syllabus.Module {
	out := make([]syllabus.Module, len(mods))
	for i, m := range mods {
		out[i] = cloneModule(m)
	}
	return out
}

func cloneModule(m syllabus.Module) syllabus.Module {
	c := m
	c.Classes = make([]syllabus.Class, len(m.Classes))
	for i, cl := range m.Classes {
		cl.CorePoints = append([]string{}, cl.CorePoints...)
		cl.FAQs = append([]syllabus.FAQ{}, cl.FAQs...)
		c.Classes[i] = cl
	}
	c.Slides = make([][]syllabus.Slide, len(m.Slides))
	for i, ss := range m.Slides {
		c.Slides[i] = append([]syllabus.Slide{}, ss...)
	}
	c.FAQs = make([][]syllabus.FAQ, len(m.FAQs))
	for i, fs := range m.FAQs {
		c.FAQs[i] = append([]syllabus.FAQ{}, fs...)
	}
	return c
}
