package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// readZipMember returns the content of the named member, or nil if it is absent.
func readZipMember(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	content, err := readZipMember(zr, contentTypesPath)
	if err != nil || content == nil {
		return ""
	}
	// Try both attribute orders
	if matches := partNameRe.FindSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(string(matches[1]), "/")
	}
	if matches := partNameRe2.FindSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(string(matches[1]), "/")
	}
	return ""
}

// bodyLeaf reports whether an element under w:body holds inner text, including deleted runs.
func bodyLeaf(local string) bool {
	return local == "t" || local == "delText" || local == "instrText"
}

// bodyText concatenates the character data of every text leaf under w:body, with no separator.
func bodyText(docXML []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))
	var b strings.Builder
	inBody := false
	inText := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "body":
				inBody = true
			case inBody && bodyLeaf(t.Name.Local):
				inText++
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == "body":
				inBody = false
			case inBody && bodyLeaf(t.Name.Local) && inText > 0:
				inText--
			}
		case xml.CharData:
			if inBody && inText > 0 {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// extractDOCX returns the inner text of the main document body in document order.
func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	defer zr.Close()

	// Find main document path from [Content_Types].xml, fall back to default
	docPath := findDocxMainDocumentPath(&zr.Reader)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipMember(&zr.Reader, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	text, err := bodyText(docXML)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	return text, nil
}
