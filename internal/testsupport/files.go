package testsupport

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// TinyPNG returns a valid 1x1 PNG as raw bytes.
func TinyPNG(t testing.TB) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 0x66, G: 0x33, B: 0x99, A: 0xff})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode tiny png: %v", err)
	}
	return buf.Bytes()
}

// TinyPNGBase64 returns a valid 1x1 PNG as a bare base64 string.
func TinyPNGBase64(t testing.TB) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(TinyPNG(t))
}
