package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicely/pkg/binder"
)

type createRequest struct {
	ID         uuid.UUID `path:"id"`
	Slug       string    `path:"slug"`
	ClientName string    `json:"client_name"`
}

func TestJSON(t *testing.T) {
	t.Parallel()

	bind := binder.JSON()

	newReq := func(body, ct string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if ct != "" {
			r.Header.Set("Content-Type", ct)
		}
		return r
	}

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		require.NoError(t, bind(newReq(`{"client_name":"Acme"}`, "application/json; charset=utf-8"), &req))
		assert.Equal(t, "Acme", req.ClientName)
	})

	t.Run("empty body is skipped", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		assert.NoError(t, bind(httptest.NewRequest(http.MethodGet, "/", nil), &req))
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		err := bind(newReq(`{"nope":1}`, "application/json"), &req)
		assert.ErrorIs(t, err, binder.ErrFailedToParseJSON)
	})

	t.Run("trailing data", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		err := bind(newReq(`{"client_name":"a"}{"client_name":"b"}`, "application/json"), &req)
		assert.ErrorIs(t, err, binder.ErrFailedToParseJSON)
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		assert.ErrorIs(t, bind(newReq(`{}`, ""), &req), binder.ErrMissingContentType)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		assert.ErrorIs(t, bind(newReq(`a=b`, "application/x-www-form-urlencoded"), &req), binder.ErrUnsupportedMediaType)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		body := `{"client_name":"` + strings.Repeat("a", binder.DefaultMaxJSONSize) + `"}`
		assert.ErrorIs(t, bind(newReq(body, "application/json"), &req), binder.ErrBodyTooLarge)
	})
}

func TestPath(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	params := map[string]string{"id": id.String(), "slug": "ab12cd34"}
	bind := binder.Path(func(_ *http.Request, name string) string { return params[name] })

	t.Run("string and text unmarshaler", func(t *testing.T) {
		t.Parallel()
		var req createRequest
		require.NoError(t, bind(httptest.NewRequest(http.MethodGet, "/", nil), &req))
		assert.Equal(t, id, req.ID)
		assert.Equal(t, "ab12cd34", req.Slug)
	})

	t.Run("invalid uuid", func(t *testing.T) {
		t.Parallel()
		bad := binder.Path(func(_ *http.Request, name string) string {
			if name == "id" {
				return "not-a-uuid"
			}
			return ""
		})
		var req createRequest
		assert.ErrorIs(t, bad(httptest.NewRequest(http.MethodGet, "/", nil), &req), binder.ErrFailedToParsePath)
	})

	t.Run("non struct target", func(t *testing.T) {
		t.Parallel()
		var s string
		assert.ErrorIs(t, bind(httptest.NewRequest(http.MethodGet, "/", nil), &s), binder.ErrFailedToParsePath)
	})
}
