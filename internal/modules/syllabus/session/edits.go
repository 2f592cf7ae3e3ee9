package session

import (
	"time"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
)

// Modules returns the latest successful result. The slice must be treated
// as read-only; edits go through the Update methods.
func (g *Generator) Modules() ([]syllabus.Module, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.hasResult {
		return nil, ErrNoResult
	}
	return g.modules, nil
}

func (g *Generator) UpdateModule(moduleID string, patch structure.ModulePatch) (syllabus.Module, error) {
	var out syllabus.Module
	err := g.edit(func(mods []syllabus.Module) ([]syllabus.Module, error) {
		next, err := structure.UpdateModule(mods, moduleID, patch)
		if err != nil {
			return nil, err
		}
		for _, m := range next {
			if m.ID == moduleID {
				out = m
			}
		}
		return next, nil
	})
	return out, err
}

func (g *Generator) UpdateClass(classID string, patch structure.ClassPatch) (syllabus.Class, error) {
	var out syllabus.Class
	err := g.edit(func(mods []syllabus.Module) ([]syllabus.Module, error) {
		next, err := structure.UpdateClass(mods, classID, patch)
		if err != nil {
			return nil, err
		}
		mi, ci, _ := structure.FindClass(next, classID)
		out = next[mi].Classes[ci]
		return next, nil
	})
	return out, err
}

func (g *Generator) SetClassFAQs(classID string, faqs []syllabus.FAQ) error {
	return g.edit(func(mods []syllabus.Module) ([]syllabus.Module, error) {
		return structure.SetClassFAQs(mods, classID, faqs)
	})
}

// ApplySlideImages stores image URLs by slide id and returns how many
// slides were updated. Ids from a replaced result are ignored.
func (g *Generator) ApplySlideImages(urls map[string]string) (int, error) {
	var n int
	err := g.edit(func(mods []syllabus.Module) ([]syllabus.Module, error) {
		var next []syllabus.Module
		next, n = structure.SetSlideImages(mods, urls, time.Now())
		return next, nil
	})
	return n, err
}

func (g *Generator) edit(fn func([]syllabus.Module) ([]syllabus.Module, error)) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if !g.hasResult {
		g.mu.Unlock()
		return ErrNoResult
	}
	next, err := fn(g.modules)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	g.modules = next
	snap := g.changedLocked()
	g.mu.Unlock()
	g.publish(snap)
	return nil
}

// Notify appends a user-visible notice, e.g. from image or FAQ helpers.
func (g *Generator) Notify(msg string) {
	g.mu.Lock()
	if g.closed || msg == "" {
		g.mu.Unlock()
		return
	}
	g.notices = append(g.notices, msg)
	snap := g.changedLocked()
	g.mu.Unlock()
	g.publish(snap)
}
