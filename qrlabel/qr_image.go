package qrlabel

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const qrImageSize = 512

// renderQRPNG encodes the locator payload as a QR PNG. Medium error
// correction matches what consumer phone cameras handle on printed
// produce labels.
func renderQRPNG(payload string) ([]byte, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	scaled, err := barcode.Scale(code, qrImageSize, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
