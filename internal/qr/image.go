package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderPNG encodes an identity payload into a QR code PNG of the given
// pixel size.
func RenderPNG(uid, username, name string, size int) ([]byte, error) {
	payload, err := Encode(uid, username, name)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}
