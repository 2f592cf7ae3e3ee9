package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/platform/ctxutil"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

const (
	MimePDF     = "application/pdf"
	MimeDOC     = "application/msword"
	MimeDOCX    = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPT     = "application/vnd.ms-powerpoint"
	MimePPTX    = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeText    = "text/plain"
	mimeUnknown = "application/octet-stream"
)

var (
	// ErrRead means the document stream could not be read.
	ErrRead = errors.New("document could not be read")
	// ErrPDFParse means the bytes are not a PDF this extractor can parse.
	ErrPDFParse = errors.New("pdf could not be parsed")
	// ErrOfficeParse means a DOCX/PPTX container is corrupt.
	ErrOfficeParse = errors.New("office document could not be parsed")
	// ErrUnsupportedType means the MIME type has no extraction path at all.
	ErrUnsupportedType = errors.New("unsupported document type")
)

// Format names the extraction path taken for a document.
type Format string

const (
	FormatText   Format = "text"
	FormatPDF    Format = "pdf"
	FormatDOCX   Format = "docx"
	FormatPPTX   Format = "pptx"
	FormatLegacy Format = "legacy"
)

type Result struct {
	Text   string `json:"text"`
	Format Format `json:"format"`
	// Unsupported is set when Text is the legacy-format placeholder rather
	// than the document's content.
	Unsupported bool `json:"unsupported"`
	// OCR is set when the text came from the OCR fallback.
	OCR      bool     `json:"ocr"`
	Warnings []string `json:"warnings,omitempty"`
}

// OCR recognizes text in documents that carry no text layer.
type OCR interface {
	RecognizeText(ctx context.Context, data []byte, mimeType string) (string, error)
}

type Extractor struct {
	log *logger.Logger
	ocr OCR
}

type Option func(*Extractor)

// WithOCR enables the OCR fallback for PDFs with no extractable text.
func WithOCR(ocr OCR) Option {
	return func(e *Extractor) { e.ocr = ocr }
}

func New(log *logger.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	e := &Extractor{log: log.With("component", "DocumentExtractor")}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Extract converts doc into plain text. Read and parse failures are hard
// errors; legacy DOC/PPT return a placeholder with Unsupported set.
func (e *Extractor) Extract(ctx context.Context, doc *syllabus.Document) (Result, error) {
	ctx = ctxutil.Default(ctx)
	if doc == nil || doc.Open == nil {
		return Result{}, fmt.Errorf("%w: no document", ErrRead)
	}
	mimeType := ResolveMimeType(doc.Name, doc.MimeType)

	if placeholder, ok := legacyPlaceholder(mimeType); ok {
		e.log.Warn("Legacy office format, returning placeholder", "name", doc.Name, "mime", mimeType)
		return Result{Text: placeholder, Format: FormatLegacy, Unsupported: true}, nil
	}

	data, err := readAll(doc)
	if err != nil {
		return Result{}, err
	}

	switch {
	case isTextMime(mimeType):
		return Result{Text: decodeText(data), Format: FormatText}, nil
	case mimeType == MimePDF:
		return e.extractPDF(ctx, doc.Name, data)
	case mimeType == MimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, Format: FormatDOCX}, nil
	case mimeType == MimePPTX:
		text, err := extractPPTX(data)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, Format: FormatPPTX}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, name string, data []byte) (Result, error) {
	text, pages, err := extractPDFText(data)
	if err != nil {
		e.log.Warn("PDF parse failed", "name", name, "error", err)
		return Result{}, err
	}
	res := Result{Text: text, Format: FormatPDF}
	if text != "" || e.ocr == nil {
		return res, nil
	}

	e.log.Info("PDF has no text layer, trying OCR", "name", name, "pages", pages)
	ocrText, err := e.ocr.RecognizeText(ctx, data, MimePDF)
	if err != nil {
		e.log.Warn("OCR fallback failed", "name", name, "error", err)
		res.Warnings = append(res.Warnings, "OCR fallback failed: "+err.Error())
		return res, nil
	}
	res.Text = strings.TrimSpace(ocrText)
	res.OCR = res.Text != ""
	return res, nil
}

func readAll(doc *syllabus.Document) ([]byte, error) {
	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrRead, doc.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrRead, doc.Name, err)
	}
	return data, nil
}

func legacyPlaceholder(mimeType string) (string, bool) {
	var kind string
	switch mimeType {
	case MimeDOC:
		kind = "DOC"
	case MimePPT:
		kind = "PPT"
	default:
		return "", false
	}
	return fmt.Sprintf("Text extraction is not supported for legacy %s files. Please convert the document to PDF, DOCX, PPTX or plain text.", kind), true
}

func isTextMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

// ResolveMimeType normalizes a declared MIME type, falling back to the file
// extension when the declaration is empty or generic.
func ResolveMimeType(name, declared string) string {
	m := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m != "" && m != mimeUnknown {
		return m
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return MimePDF
	case ".doc":
		return MimeDOC
	case ".docx":
		return MimeDOCX
	case ".ppt":
		return MimePPT
	case ".pptx":
		return MimePPTX
	case ".txt", ".md", ".text":
		return MimeText
	}
	if m == "" {
		return mimeUnknown
	}
	return m
}
