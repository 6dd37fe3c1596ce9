// Package qrcode renders PNG QR codes for payment links.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent     = errors.New("content cannot be empty")
	ErrFailedToGenerate = errors.New("failed to generate QR code")
)

const (
	DefaultSize = 256
	MaxSize     = 1024
)

// PNG encodes content as a square PNG of size pixels with medium error
// correction. Non-positive sizes use DefaultSize; sizes above MaxSize are capped.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	switch {
	case size <= 0:
		size = DefaultSize
	case size > MaxSize:
		size = MaxSize
	}

	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return png, nil
}
