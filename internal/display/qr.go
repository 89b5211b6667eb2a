package display

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRCode renders content as a QR code drawn with block characters, for
// showing a UPI payment link in a terminal.
func QRCode(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr code failed: %w", err)
	}
	return qr.ToSmallString(false), nil
}

// QRCodePNG renders content as a PNG image of size pixels square.
func QRCodePNG(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code failed: %w", err)
	}
	return png, nil
}
