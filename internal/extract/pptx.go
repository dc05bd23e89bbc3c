package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePathRe matches slide parts and captures the slide number.
var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

const (
	presentationPath     = "ppt/presentation.xml"
	presentationRelsPath = "ppt/_rels/presentation.xml.rels"
)

type slidePart struct {
	num  int
	file *zip.File
}

// slideRelIDs returns the relationship IDs of p:sldIdLst in deck order.
func slideRelIDs(presXML []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(presXML))
	var ids []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		// the bare id attribute is the numeric slide ID; r:id names the part
		for _, a := range se.Attr {
			if a.Name.Local == "id" && a.Name.Space != "" {
				ids = append(ids, a.Value)
			}
		}
	}
}

type relationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// relTargets maps relationship IDs to part names inside the package.
func relTargets(relsXML []byte) (map[string]string, error) {
	var rels relationships
	if err := xml.Unmarshal(relsXML, &rels); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Rels))
	for _, r := range rels.Rels {
		if strings.HasPrefix(r.Target, "/") {
			targets[r.ID] = strings.TrimPrefix(r.Target, "/")
		} else {
			targets[r.ID] = path.Join("ppt", r.Target)
		}
	}
	return targets, nil
}

// deckOrder returns the slide parts listed by the presentation, in that order.
// It returns nil when the presentation or its relationships are missing or unreadable.
func deckOrder(zr *zip.Reader) []*zip.File {
	presXML, err := readZipMember(zr, presentationPath)
	if err != nil || presXML == nil {
		return nil
	}
	relsXML, err := readZipMember(zr, presentationRelsPath)
	if err != nil || relsXML == nil {
		return nil
	}
	ids, err := slideRelIDs(presXML)
	if err != nil {
		return nil
	}
	targets, err := relTargets(relsXML)
	if err != nil {
		return nil
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	var files []*zip.File
	for _, id := range ids {
		if f, ok := parts[targets[id]]; ok {
			files = append(files, f)
		}
	}
	return files
}

// numericOrder returns every ppt/slides/slideN.xml part sorted by N.
func numericOrder(zr *zip.Reader) []*zip.File {
	var slides []slidePart
	for _, f := range zr.File {
		m := slidePathRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slidePart{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	files := make([]*zip.File, len(slides))
	for i, s := range slides {
		files[i] = s.file
	}
	return files
}

// slideTexts returns the character data of each a:t element in document order.
func slideTexts(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var texts []string
	var cur *strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return texts, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				cur = &strings.Builder{}
			}
		case xml.EndElement:
			if t.Name.Local == "t" && cur != nil {
				texts = append(texts, cur.String())
				cur = nil
			}
		case xml.CharData:
			if cur != nil {
				cur.Write(t)
			}
		}
	}
}

// extractPPTX collects every drawing-text node of every slide, slides in presentation order,
// and joins them with newlines. Slides follow p:sldIdLst; the slide number in the part name
// is used only when the presentation part or its relationships are missing.
func extractPPTX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	defer zr.Close()

	slides := deckOrder(&zr.Reader)
	if len(slides) == 0 {
		slides = numericOrder(&zr.Reader)
	}

	var all []string
	for _, f := range slides {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract PPTX: open %s: %w", f.Name, err)
		}
		var slideBuf bytes.Buffer
		_, err = slideBuf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract PPTX: read %s: %w", f.Name, err)
		}
		texts, err := slideTexts(&slideBuf)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: parse %s: %w", f.Name, err)
		}
		all = append(all, texts...)
	}
	return strings.Join(all, "\n"), nil
}
