package syllabus

import (
	"bytes"
	"io"
	"time"
)

// RawSlide is one slide as returned by the generation endpoint.
type RawSlide struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	VisualPrompt    string `json:"visualPrompt"`
	VoiceoverScript string `json:"voiceoverScript"`
}

// RawGeneratedClass is one class as returned by the generation endpoint.
// Order in the payload is not trusted; ClassNo is the display order.
type RawGeneratedClass struct {
	ClassNo      int        `json:"classNo" validate:"gte=1"`
	ClassTitle   string     `json:"classTitle" validate:"required"`
	CoreConcepts []string   `json:"coreConcepts"`
	Slides       []RawSlide `json:"slides" validate:"required"`
}

// RawGenerationResponse is the body of a successful generation call.
// Syllabus is nil when the field is absent.
type RawGenerationResponse struct {
	Syllabus []RawGeneratedClass `json:"syllabus"`
}

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Slide struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SlideNo         int       `json:"slideNo"`
	Content         string    `json:"content"`
	VisualPrompt    string    `json:"visualPrompt"`
	VoiceoverScript string    `json:"voiceoverScript"`
	ImageURL        *string   `json:"imageUrl"`
	ClassID         string    `json:"classId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Class struct {
	ID          string   `json:"id"`
	ClassNo     int      `json:"classNo"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CorePoints  []string `json:"corePoints"`
	SlideCount  int      `json:"slideCount"`
	FAQs        []FAQ    `json:"faqs"`
}

// Module groups up to four consecutive classes. Slides and FAQs are
// positionally aligned with Classes.
type Module struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Classes     []Class   `json:"classes"`
	Slides      [][]Slide `json:"slides"`
	FAQs        [][]FAQ   `json:"faqs"`
}

// Lesson is the flattened legacy projection of one slide.
type Lesson struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Document is an uploaded file handed to the pipeline. Open may be called
// more than once; each call returns a fresh reader.
type Document struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// BytesDocument wraps an in-memory payload.
func BytesDocument(name, mimeType string, data []byte) *Document {
	return &Document{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
