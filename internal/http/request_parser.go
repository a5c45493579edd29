// Package http provides HTTP server and handler implementations.
//
// This file implements strict decoding of JSON request bodies into the raw
// string inputs the form validator expects.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"finviz/internal/form"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

// errMalformedBody marks request bodies rejected before validation.
var errMalformedBody = errors.New("malformed request body")

// transactionRequest is the body of POST /transactions. Amount accepts a
// JSON number or a numeric string.
type transactionRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description *string         `json:"description"`
	Date        *string         `json:"date"`
}

// patchRequest is the body of PUT /transactions/{id}. Absent or null
// fields are left unchanged.
type patchRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description *string         `json:"description"`
	Date        *string         `json:"date"`
}

// decodeStrict decodes a single JSON object into dst. Unknown fields,
// trailing data and bodies over maxBodyBytes are errors wrapping
// errMalformedBody.
func decodeStrict(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return fmt.Errorf("%w: content type must be application/json", errMalformedBody)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", errMalformedBody, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: body is empty", errMalformedBody)
		case errors.As(err, &typeErr):
			return fmt.Errorf("%w: field %q has the wrong type", errMalformedBody, typeErr.Field)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("%w: %s", errMalformedBody, strings.TrimPrefix(err.Error(), "json: "))
		default:
			return fmt.Errorf("%w: %v", errMalformedBody, err)
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errMalformedBody)
	}
	return nil
}

// amountString renders a raw JSON amount as the string the validator
// parses. ok is false for null or absent values.
func amountString(raw json.RawMessage) (s string, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}

	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, fmt.Errorf("%w: field \"amount\" is not a valid string", errMalformedBody)
		}
		return s, true, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false, fmt.Errorf("%w: field \"amount\" is not a valid number", errMalformedBody)
		}
		return n.String(), true, nil
	default:
		return "", false, fmt.Errorf("%w: field \"amount\" must be a number or numeric string", errMalformedBody)
	}
}

// Input converts a create body for form.Validate.
func (req transactionRequest) Input() (form.Input, error) {
	amount, _, err := amountString(req.Amount)
	if err != nil {
		return form.Input{}, err
	}
	in := form.Input{Amount: amount}
	if req.Description != nil {
		in.Description = sanitizeInput(*req.Description)
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	return in, nil
}

// Input converts an update body for form.ValidatePatch.
func (req patchRequest) Input() (form.PatchInput, error) {
	amount, ok, err := amountString(req.Amount)
	if err != nil {
		return form.PatchInput{}, err
	}
	var in form.PatchInput
	if ok {
		in.Amount = &amount
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		in.Description = &desc
	}
	in.Date = req.Date
	return in, nil
}

// sanitizeInput removes control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}
