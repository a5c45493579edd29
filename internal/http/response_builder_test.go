package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finviz/internal/core"
)

func TestResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusAccepted).
		JSON(map[string]string{"status": "ok"}).
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"status":"ok"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should not be set without triggers")
	}
}

func TestResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d with body %q", w.Code, w.Body.String())
	}
}

func TestResponseBuilder_TriggerChanged(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Header("Location", "/transactions/abc").
		TriggerChanged(core.OpCreated, "abc").
		Write(w)

	var triggers map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger not JSON: %v", err)
	}
	got := triggers[TriggerTransactionsChanged]
	if got["op"] != string(core.OpCreated) || got["id"] != "abc" {
		t.Errorf("trigger payload = %v", got)
	}
	if w.Header().Get("Location") != "/transactions/abc" {
		t.Errorf("Location = %q", w.Header().Get("Location"))
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ResponseBuilder
		wantCode int
		wantMsg  string
	}{
		{"bad request", BadRequestError("nope"), http.StatusBadRequest, "nope"},
		{"not found", NotFoundError("transaction not found"), http.StatusNotFound, "transaction not found"},
		{"internal", InternalServerError(), http.StatusInternalServerError, "internal error"},
		{"rate limited", TooManyRequestsError(), http.StatusTooManyRequests, "rate limit exceeded"},
		{"validation", ValidationErrorResponse(map[string]string{"amount": "Amount is required"}), http.StatusUnprocessableEntity, "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}
