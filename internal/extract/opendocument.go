package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lu4p/cat"
)

// odfContentPath is the path to the main content inside OpenDocument packages.
const odfContentPath = "content.xml"

// paragraphTexts returns one string per text:p or text:h element, including nested spans.
func paragraphTexts(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var out []string
	var cur *strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" || t.Name.Local == "h" {
				if depth == 0 {
					cur = &strings.Builder{}
				}
				depth++
			}
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "h") && depth > 0 {
				depth--
				if depth == 0 {
					if s := strings.TrimSpace(cur.String()); s != "" {
						out = append(out, s)
					}
					cur = nil
				}
			}
		case xml.CharData:
			if cur != nil {
				cur.Write(t)
			}
		}
	}
}

func extractOpenDocument(path, kind string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	defer zr.Close()

	contentXML, err := readZipMember(&zr.Reader, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	paras, err := paragraphTexts(contentXML)
	if err != nil {
		return "", fmt.Errorf("extract %s: parse %s: %w", kind, odfContentPath, err)
	}
	return strings.Join(paras, "\n"), nil
}

// extractODS returns cell paragraphs of an OpenDocument spreadsheet, one per line.
func extractODS(path string) (string, error) {
	return extractOpenDocument(path, "ODS")
}

// extractODP returns text paragraphs of an OpenDocument presentation, one per line.
func extractODP(path string) (string, error) {
	return extractOpenDocument(path, "ODP")
}

// extractCat handles .odt and .rtf through lu4p/cat.
func extractCat(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	return text, nil
}
