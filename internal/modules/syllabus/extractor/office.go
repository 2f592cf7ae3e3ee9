package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

func openZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOfficeParse, err)
	}
	return zr, nil
}

// extractDOCX returns the non-empty paragraphs of word/document.xml, one
// per line.
func extractDOCX(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}
	body, err := readZipFile(zr.File, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOfficeParse, err)
	}
	paras, err := xmlParagraphs(body)
	if err != nil {
		return "", fmt.Errorf("%w: word/document.xml: %v", ErrOfficeParse, err)
	}
	return strings.Join(paras, "\n"), nil
}

// extractPPTX returns one line per slide in slide-number order.
func extractPPTX(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}
	names := findZipFiles(zr.File, "ppt/slides/slide", ".xml")
	sort.SliceStable(names, func(i, j int) bool {
		return slideNumber(names[i]) < slideNumber(names[j])
	})

	lines := make([]string, 0, len(names))
	for _, name := range names {
		raw, err := readZipFile(zr.File, name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrOfficeParse, err)
		}
		paras, err := xmlParagraphs(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrOfficeParse, name, err)
		}
		if line := strings.Join(paras, " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func slideNumber(name string) int {
	base := strings.TrimSuffix(strings.ToLower(name[strings.LastIndex(name, "/")+1:]), ".xml")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "slide"))
	if err != nil {
		return 1 << 30
	}
	return n
}

func readZipFile(files []*zip.File, target string) ([]byte, error) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Name), target) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("file not found: %s", target)
}

func findZipFiles(files []*zip.File, prefix, suffix string) []string {
	var out []string
	for _, f := range files {
		if f == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			out = append(out, strings.TrimSpace(f.Name))
		}
	}
	return out
}

// xmlParagraphs collects the <t> runs of every <p> element (w:p in
// WordprocessingML, a:p in DrawingML) and returns the trimmed non-empty
// paragraphs in document order.
func xmlParagraphs(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		inText bool
		cur    strings.Builder
		out    []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				cur.Reset()
			case "t":
				inText = true
			case "tab":
				cur.WriteByte(' ')
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					out = append(out, s)
				}
				cur.Reset()
			}
		}
	}
	return out, nil
}
