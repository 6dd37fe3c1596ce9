package qrcode_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicely/pkg/qrcode"
)

func TestPNG(t *testing.T) {
	t.Parallel()

	t.Run("encodes link", func(t *testing.T) {
		t.Parallel()
		data, err := qrcode.PNG("https://invoicely.test/invoice/ab12cd34", 128)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 128, img.Bounds().Dx())
	})

	t.Run("default and capped sizes", func(t *testing.T) {
		t.Parallel()
		data, err := qrcode.PNG("x", 0)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, qrcode.DefaultSize, img.Bounds().Dx())

		data, err = qrcode.PNG("x", 5000)
		require.NoError(t, err)
		img, err = png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, qrcode.MaxSize, img.Bounds().Dx())
	})

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := qrcode.PNG("   ", 128)
		assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
	})
}
