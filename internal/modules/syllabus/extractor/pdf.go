package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDFText walks pages 1..N in order. Fragments within a page are
// joined by single spaces, pages by newlines. Any page failure fails the
// whole document.
func extractPDFText(data []byte) (text string, pages int, err error) {
	if len(data) == 0 {
		return "", 0, fmt.Errorf("%w: empty file", ErrPDFParse)
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrPDFParse, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrPDFParse, err)
	}

	pages = r.NumPage()
	out := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			out = append(out, "")
			continue
		}
		rows, perr := page.GetTextByRow()
		if perr != nil {
			return "", pages, fmt.Errorf("%w: page %d: %v", ErrPDFParse, i, perr)
		}
		out = append(out, pageText(rows))
	}
	return strings.TrimSpace(strings.Join(out, "\n")), pages, nil
}

// pageText joins every text-show fragment on a page, top row first, with a
// single space. Whitespace inside a fragment is collapsed.
func pageText(rows pdf.Rows) string {
	var frags []string
	for _, row := range rows {
		if row == nil {
			continue
		}
		for _, t := range row.Content {
			if s := strings.Join(strings.Fields(t.S), " "); s != "" {
				frags = append(frags, s)
			}
		}
	}
	return strings.Join(frags, " ")
}
