package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicely/handler"
	"github.com/dmitrymomot/invoicely/pkg/binder"
	"github.com/dmitrymomot/invoicely/pkg/validator"
)

type echoRequest struct {
	Name string `json:"name"`
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var got handler.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestWrap(t *testing.T) {
	t.Parallel()

	echo := handler.Wrap(func(ctx handler.Context, req echoRequest) handler.Response {
		if req.Name == "" {
			return handler.JSONError(validator.Apply(validator.Required("name", req.Name)))
		}
		return handler.JSON(map[string]string{"name": req.Name}, handler.WithJSONStatus(http.StatusCreated))
	}, handler.WithBinders(binder.JSON()))

	t.Run("binds and renders", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"acme"}`))
		r.Header.Set("Content-Type", "application/json")

		echo(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, map[string]any{"name": "acme"}, decodeBody(t, w).Data)
	})

	t.Run("binding failure is a bad request", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		r.Header.Set("Content-Type", "application/json")

		echo(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeBody(t, w).Error.Code)
	})

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
		r.Header.Set("Content-Type", "application/json")

		echo(w, r)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, []string{"field is required"}, body.Error.Details["name"])
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(handler.Context, struct{}) handler.Response { return nil })
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("custom error handler", func(t *testing.T) {
		t.Parallel()
		var seen error
		h := handler.Wrap(func(handler.Context, echoRequest) handler.Response { return handler.NoContent() },
			handler.WithBinders(func(*http.Request, any) error { return errors.New("boom") }),
			handler.WithErrorHandler(func(ctx handler.Context, err error) {
				seen = err
				ctx.ResponseWriter().WriteHeader(http.StatusTeapot)
			}),
		)
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.ErrorContains(t, seen, "boom")
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    int
		key     string
		message string
	}{
		{
			name:    "http error with message",
			err:     handler.ErrConflict.WithMessage("Invoice is already paid"),
			code:    http.StatusConflict,
			key:     "conflict",
			message: "Invoice is already paid",
		},
		{
			name:    "wrapped http error",
			err:     fmt.Errorf("ctx: %w", handler.ErrNotFound),
			code:    http.StatusNotFound,
			key:     "not_found",
			message: "Not Found",
		},
		{
			name:    "internal error is hidden",
			err:     errors.New("pq: connection refused"),
			code:    http.StatusInternalServerError,
			key:     "internal_error",
			message: "An error occurred processing your request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			require.NoError(t, handler.JSONError(tt.err).Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))

			assert.Equal(t, tt.code, w.Code)
			body := decodeBody(t, w)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.key, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func TestHTTPError(t *testing.T) {
	t.Parallel()
	cause := errors.New("root")
	err := handler.ErrBadGateway.WithCause(cause).WithMessage("Payment provider unavailable")

	assert.Equal(t, "Payment provider unavailable", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad_gateway", handler.ErrBadGateway.Error())
}

func TestBlob(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	require.NoError(t, handler.Blob("image/png", []byte{1, 2, 3}, 60).Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))

	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.Equal(t, []byte{1, 2, 3}, w.Body.Bytes())
}

func TestNoContent(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	require.NoError(t, handler.NoContent().Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
