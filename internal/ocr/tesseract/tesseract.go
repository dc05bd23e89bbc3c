// Package tesseract provides an OCR Recognizer backed by Tesseract through gosseract.
package tesseract

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Language is the single trained model used for recognition.
const Language = "eng"

// Recognizer runs Tesseract with a fixed tessdata directory. A client is created and
// closed for every image.
type Recognizer struct {
	dataPath string
}

// New returns a Recognizer reading trained data from dataPath. An empty dataPath
// leaves Tesseract's default location in place.
func New(dataPath string) *Recognizer {
	return &Recognizer{dataPath: dataPath}
}

// Recognize returns the text Tesseract finds in pngImage.
func (r *Recognizer) Recognize(pngImage []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if r.dataPath != "" {
		if err := client.SetTessdataPrefix(r.dataPath); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := client.SetImageFromBytes(pngImage); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}
