package handler

import (
	"net/http"
	"strconv"
)

type noContent struct{}

func (noContent) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// NoContent responds with 204 and an empty body.
func NoContent() Response { return noContent{} }

type blob struct {
	contentType string
	data        []byte
	maxAge      int
}

func (b blob) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", b.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.data)))
	if b.maxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(b.maxAge))
	}
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(b.data)
	return err
}

// Blob responds with raw bytes, cacheable for maxAge seconds when positive.
func Blob(contentType string, data []byte, maxAge int) Response {
	return blob{contentType: contentType, data: data, maxAge: maxAge}
}
