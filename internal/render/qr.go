// Package render draws scannable labels for items.
package render

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/erazemk/evidenca/internal/model"
)

// MinQRSize is the smallest accepted image side in pixels.
const MinQRSize = 64

// QR encodes payload as a square PNG QR code of size pixels, medium error
// correction.
func QR(payload string, size int) ([]byte, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("%w: empty QR payload", model.ErrValidation)
	}
	if size < MinQRSize {
		return nil, fmt.Errorf("%w: QR size %d below %d", model.ErrValidation, size, MinQRSize)
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding QR code: %w", err)
	}
	return png, nil
}
