package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/invoicely/pkg/validator"
)

// JSONResponse is the envelope for every JSON body.
type JSONResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets a custom HTTP status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// JSON wraps v in the data envelope with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err in the error envelope.
//
// ValidationErrors become 422 with per-field details, HTTPError uses its own
// code and message, and anything else becomes a generic 500 so internal
// error text never reaches the client.
func JSONError(err error, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusInternalServerError}
	r.body.Error = errorDetail(err, &r.status)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func errorDetail(err error, status *int) *ErrorDetail {
	if ve := validator.Extract(err); ve != nil {
		*status = http.StatusUnprocessableEntity
		return &ErrorDetail{Code: "validation_error", Message: "Validation failed", Details: ve.Fields()}
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		*status = httpErr.Code
		msg := httpErr.Message
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		return &ErrorDetail{Code: httpErr.Key, Message: msg}
	}

	return &ErrorDetail{Code: ErrInternalServerError.Key, Message: "An error occurred processing your request"}
}
