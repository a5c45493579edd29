package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeStrict(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
	}{
		{"valid", "application/json", `{"amount":1,"description":"x","date":"2024-01-01"}`, false},
		{"charset suffix", "application/json; charset=utf-8", `{"amount":"1"}`, false},
		{"no content type", "", `{"date":"2024-01-01"}`, false},
		{"form encoded", "application/x-www-form-urlencoded", `amount=1`, true},
		{"empty body", "application/json", ``, true},
		{"unknown field", "application/json", `{"amount":1,"note":"x"}`, true},
		{"trailing object", "application/json", `{"amount":1}{"amount":2}`, true},
		{"trailing garbage", "application/json", `{"amount":1} x`, true},
		{"array", "application/json", `[{"amount":1}]`, true},
		{"wrong type", "application/json", `{"date":20240101}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			var dst transactionRequest
			err := decodeStrict(httptest.NewRecorder(), req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeStrict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errMalformedBody) {
				t.Errorf("error %v does not wrap errMalformedBody", err)
			}
		})
	}
}

func TestAmountString(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantOK  bool
		wantErr bool
	}{
		{``, "", false, false},
		{`null`, "", false, false},
		{`12.50`, "12.50", true, false},
		{`-5`, "-5", true, false},
		{`"20"`, "20", true, false},
		{`" 3.5 "`, " 3.5 ", true, false},
		{`""`, "", true, false},
		{`true`, "", false, true},
		{`{"v":1}`, "", false, true},
	}

	for _, tt := range tests {
		got, ok, err := amountString(json.RawMessage(tt.raw))
		if (err != nil) != tt.wantErr {
			t.Errorf("amountString(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("amountString(%s) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPatchRequestInput(t *testing.T) {
	var req patchRequest
	if err := json.Unmarshal([]byte(`{"amount":null,"description":"new\u0000 name"}`), &req); err != nil {
		t.Fatal(err)
	}
	in, err := req.Input()
	if err != nil {
		t.Fatal(err)
	}
	if in.Amount != nil {
		t.Errorf("null amount should stay unchanged, got %q", *in.Amount)
	}
	if in.Description == nil || *in.Description != "new name" {
		t.Errorf("description = %v, want sanitized value", in.Description)
	}
	if in.Date != nil {
		t.Errorf("absent date should stay unchanged")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"tab\there", "tab\there"},
		{"bell\a", "bell"},
		{"del\x7f", "del"},
		{"line\nbreak", "line\nbreak"},
		{"caffè ☕", "caffè ☕"},
		{"\x00\x01lead", "lead"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
