package binder

import (
	"encoding"
	"fmt"
	"net/http"
	"reflect"
)

// Path fills struct fields tagged `path:"name"` using extractor, typically
// chi.URLParam. Supported field types are string and any type implementing
// encoding.TextUnmarshaler (uuid.UUID, for instance).
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a pointer to struct", ErrFailedToParsePath)
		}
		rv = rv.Elem()
		rt := rv.Type()

		for i := range rt.NumField() {
			field := rt.Field(i)
			name := field.Tag.Get("path")
			if name == "" || name == "-" || !field.IsExported() {
				continue
			}
			raw := extractor(r, name)
			if raw == "" {
				continue
			}

			fv := rv.Field(i)
			if u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler); ok {
				if err := u.UnmarshalText([]byte(raw)); err != nil {
					return fmt.Errorf("%w: %s: %v", ErrFailedToParsePath, name, err)
				}
				continue
			}
			if fv.Kind() == reflect.String {
				fv.SetString(raw)
				continue
			}
			return fmt.Errorf("%w: unsupported field type %s for %s", ErrFailedToParsePath, fv.Type(), name)
		}
		return nil
	}
}
