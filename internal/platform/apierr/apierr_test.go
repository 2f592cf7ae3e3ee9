package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromUnwrapsNestedError(t *testing.T) {
	base := errors.New("boom")
	wrapped := fmt.Errorf("handler: %w", NotFound("session_not_found", base))

	got := From(wrapped)
	if got.Status != http.StatusNotFound {
		t.Fatalf("status: want=%d got=%d", http.StatusNotFound, got.Status)
	}
	if got.Code != "session_not_found" {
		t.Fatalf("code: got=%q", got.Code)
	}
	if !errors.Is(got, base) {
		t.Fatalf("expected errors.Is to reach base error")
	}
}

func TestFromDefaultsToInternal(t *testing.T) {
	got := From(errors.New("plain"))
	if got.Status != http.StatusInternalServerError || got.Code != "internal_error" {
		t.Fatalf("want 500/internal_error got=%d/%s", got.Status, got.Code)
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	if msg := New(http.StatusConflict, "in_flight", nil).Error(); msg != "in_flight" {
		t.Fatalf("code fallback: got=%q", msg)
	}
	if msg := New(http.StatusTeapot, "", nil).Error(); msg != "api error (418)" {
		t.Fatalf("status fallback: got=%q", msg)
	}
}
