package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondErrorUsesDetailField(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusInternalServerError, "boom")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := rec.Body.String(); got != "{\"detail\":\"boom\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}
