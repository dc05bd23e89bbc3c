// Package ocr normalises raster images and hands them to a text recognizer.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ImageExtensions lists the raster formats routed to OCR.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif"}

// Recognizer turns a PNG-encoded image into text.
type Recognizer interface {
	Recognize(pngImage []byte) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(pngImage []byte) (string, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(pngImage []byte) (string, error) { return f(pngImage) }

// Normalize decodes a JPEG, PNG, BMP or TIFF image and re-encodes it as PNG.
func Normalize(raw []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "png" {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s as png: %w", format, err)
	}
	return buf.Bytes(), nil
}

// RecognizeFile reads the image at path, normalises it and returns the recognized text
// with surrounding whitespace trimmed.
func RecognizeFile(r Recognizer, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	img, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	text, err := r.Recognize(img)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}
