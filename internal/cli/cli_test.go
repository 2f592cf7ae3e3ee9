package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/syllabus-studio/internal/platform/syllabusapi"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--log-mode", "production"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const rawClasses = `[
  {"classNo": 2, "classTitle": "Cells: membranes", "slides": [{"title": "Lipids", "content": "Bilayer"}]},
  {"classNo": 1, "classTitle": "Cells: intro", "slides": [{"title": "What is a cell", "content": "Units of life"}]}
]`

type moduleOut struct {
	Title   string `json:"title"`
	Classes []struct {
		ClassNo int    `json:"classNo"`
		Title   string `json:"title"`
	} `json:"classes"`
	Lessons []struct {
		Title string `json:"title"`
	} `json:"lessons"`
}

func TestStructureAcceptsArrayAndObject(t *testing.T) {
	cases := map[string]string{
		"array":  rawClasses,
		"object": `{"syllabus": ` + rawClasses + `}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			out, _, err := execute(t, "structure", writeFile(t, "raw.json", body))
			if err != nil {
				t.Fatalf("structure: %v", err)
			}
			var mods []moduleOut
			if err := json.Unmarshal([]byte(out), &mods); err != nil {
				t.Fatalf("decode output %q: %v", out, err)
			}
			if len(mods) != 1 || mods[0].Title != "Module 1: Cells" {
				t.Fatalf("modules: %+v", mods)
			}
			if got := mods[0].Classes[0].ClassNo; got != 1 {
				t.Fatalf("first class: want=1 got=%d", got)
			}
			if len(mods[0].Lessons) != 2 || mods[0].Lessons[0].Title != "Class 1 - What is a cell" {
				t.Fatalf("lessons: %+v", mods[0].Lessons)
			}
		})
	}
}

func TestStructureTextOutline(t *testing.T) {
	out, _, err := execute(t, "--format", "text", "structure", writeFile(t, "raw.json", rawClasses))
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	want := "Module 1: Cells\n  1. Cells: intro (1 slides)\n  2. Cells: membranes (1 slides)\n"
	if out != want {
		t.Fatalf("outline: want=%q got=%q", want, out)
	}
}

func TestStructureRejectsInvalidPayload(t *testing.T) {
	_, _, err := execute(t, "structure", writeFile(t, "raw.json", `[{"classNo": 1, "slides": []}]`))
	if err == nil {
		t.Fatal("expected error for class without title")
	}
}

func TestExtractPlainText(t *testing.T) {
	out, _, err := execute(t, "--format", "text", "extract", writeFile(t, "notes.txt", "Mitochondria make ATP."))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.TrimSpace(out) != "Mitochondria make ATP." {
		t.Fatalf("text: got=%q", out)
	}
}

func TestExtractLegacyPlaceholderJSON(t *testing.T) {
	out, _, err := execute(t, "extract", writeFile(t, "old.doc", "\xd0\xcf\x11\xe0"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var res struct {
		Format      string `json:"format"`
		Unsupported bool   `json:"unsupported"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Format != "legacy" || !res.Unsupported {
		t.Fatalf("result: %+v", res)
	}
}

func TestGenerateRunsPipeline(t *testing.T) {
	var gotClassCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != syllabusapi.DefaultGeneratePath {
			http.NotFound(w, r)
			return
		}
		gotClassCount = r.FormValue("classCount")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"syllabus": ` + rawClasses + `}`))
	}))
	defer srv.Close()
	t.Setenv("SYLLABUS_API_BASE_URL", srv.URL)

	out, _, err := execute(t, "--format", "text", "generate", "-n", "2", writeFile(t, "notes.txt", "cells"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotClassCount != "2" {
		t.Fatalf("classCount sent: want=%q got=%q", "2", gotClassCount)
	}
	if !strings.HasPrefix(out, "Module 1: Cells\n") {
		t.Fatalf("outline: got=%q", out)
	}
}

func TestGenerateReportsEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, _, err := execute(t, "generate", "--api-base-url", srv.URL, writeFile(t, "notes.txt", "cells"))
	if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
		t.Fatalf("want HTTP 502 failure, got %v", err)
	}
}

func TestGenerateRequiresEndpoint(t *testing.T) {
	t.Setenv("SYLLABUS_API_BASE_URL", "")
	_, _, err := execute(t, "generate", writeFile(t, "notes.txt", "cells"))
	if err == nil || !strings.Contains(err.Error(), "SYLLABUS_API_BASE_URL") {
		t.Fatalf("want missing endpoint error, got %v", err)
	}
}

func TestWatchRequiresURL(t *testing.T) {
	t.Setenv("SYLLABUS_PROGRESS_URL", "")
	t.Setenv("PROGRESS_SOCKET_URL", "")
	_, _, err := execute(t, "watch")
	if err == nil || !strings.Contains(err.Error(), "progress url") {
		t.Fatalf("want missing url error, got %v", err)
	}
}
