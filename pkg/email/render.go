package email

import (
	"bytes"
	"context"
	"errors"

	"github.com/a-h/templ"
)

// Render renders a templ component to an HTML string suitable for BodyHTML.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", errors.Join(ErrFailedToRender, err)
	}
	return buf.String(), nil
}
