package gcp

import (
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

func anchor(start, end int64) *documentaipb.Document_Page_Layout {
	return &documentaipb.Document_Page_Layout{
		TextAnchor: &documentaipb.Document_TextAnchor{
			TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
		},
	}
}

func TestDocumentTextOrdersPages(t *testing.T) {
	full := "Intro  text\nSecond page"
	doc := &documentaipb.Document{
		Text: full,
		Pages: []*documentaipb.Document_Page{
			{PageNumber: 2, Paragraphs: []*documentaipb.Document_Page_Paragraph{{Layout: anchor(12, 23)}}},
			{PageNumber: 1, Paragraphs: []*documentaipb.Document_Page_Paragraph{{Layout: anchor(0, 11)}}},
		},
	}
	got := DocumentText(doc)
	want := "Intro text\nSecond page"
	if got != want {
		t.Fatalf("text: want=%q got=%q", want, got)
	}
}

func TestDocumentTextFallsBackToFullText(t *testing.T) {
	doc := &documentaipb.Document{Text: "  only\n\nfull   text "}
	if got := DocumentText(doc); got != "only full text" {
		t.Fatalf("text: want=%q got=%q", "only full text", got)
	}
	if got := DocumentText(nil); got != "" {
		t.Fatalf("nil doc: want empty got=%q", got)
	}
}

func TestTextFromAnchorClampsBounds(t *testing.T) {
	a := &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: 3, EndIndex: 99}},
	}
	if got := textFromAnchor("abcdef", a); got != "def" {
		t.Fatalf("anchor: want=%q got=%q", "def", got)
	}
}

func TestProcessorName(t *testing.T) {
	cfg := DocumentOCRConfig{ProjectID: "p", Location: "eu", ProcessorID: "abc"}
	if got := cfg.ProcessorName(); got != "projects/p/locations/eu/processors/abc" {
		t.Fatalf("name: got=%q", got)
	}
	cfg.ProcessorVersion = "v2"
	if got := cfg.ProcessorName(); got != "projects/p/locations/eu/processors/abc/processorVersions/v2" {
		t.Fatalf("versioned name: got=%q", got)
	}
	if got := (DocumentOCRConfig{Location: "us"}).ProcessorName(); got != "" {
		t.Fatalf("incomplete: want empty got=%q", got)
	}
}

func TestDocumentOCRConfigFromEnv(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "")
	t.Setenv("DOCUMENTAI_LOCATION", "")
	t.Setenv("DOCUMENTAI_PROCESSOR_ID", "")
	if _, err := DocumentOCRConfigFromEnv(); !errors.Is(err, ErrOCRNotConfigured) {
		t.Fatalf("unconfigured: want=%v got=%v", ErrOCRNotConfigured, err)
	}

	t.Setenv("GCP_PROJECT_ID", "proj")
	t.Setenv("DOCUMENTAI_PROCESSOR_ID", "ocr1")
	cfg, err := DocumentOCRConfigFromEnv()
	if err != nil {
		t.Fatalf("DocumentOCRConfigFromEnv: %v", err)
	}
	if cfg.Location != "us" {
		t.Fatalf("location default: want=%q got=%q", "us", cfg.Location)
	}
}
