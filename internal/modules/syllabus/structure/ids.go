package structure

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLength   = 9
)

// IDGenerator supplies the random parts of synthesized identifiers.
type IDGenerator interface {
	// Suffix returns a short random token for module and class ids.
	Suffix() string
	// SlideID returns a full slide identifier.
	SlideID() string
}

type randomIDs struct{}

func (randomIDs) Suffix() string {
	s, err := gonanoid.Generate(suffixAlphabet, suffixLength)
	if err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
	}
	return s
}

func (randomIDs) SlideID() string { return uuid.NewString() }

// DefaultIDs returns the nanoid/uuid backed generator.
func DefaultIDs() IDGenerator { return randomIDs{} }

// runIDs guarantees no id repeats within one Build call, whatever the
// underlying generator returns.
type runIDs struct {
	gen  IDGenerator
	used map[string]struct{}
}

func newRunIDs(gen IDGenerator) *runIDs {
	return &runIDs{gen: gen, used: make(map[string]struct{})}
}

const maxIDAttempts = 8

func (r *runIDs) claim(next func() string) string {
	var id string
	for i := 0; i < maxIDAttempts; i++ {
		id = next()
		if _, taken := r.used[id]; !taken {
			r.used[id] = struct{}{}
			return id
		}
	}
	base := id
	for n := 2; ; n++ {
		id = base + "-" + strconv.Itoa(n)
		if _, taken := r.used[id]; !taken {
			r.used[id] = struct{}{}
			return id
		}
	}
}

func (r *runIDs) prefixed(prefix string) string {
	return r.claim(func() string { return prefix + r.gen.Suffix() })
}

func (r *runIDs) slide() string {
	return r.claim(r.gen.SlideID)
}
