package extract

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	wordStreamName       = "WordDocument"
	powerPointStreamName = "PowerPoint Document"

	// maxOLEStream caps how much of a single stream is read.
	maxOLEStream = 64 << 20

	// minSalvageRun is the shortest printable run kept when salvaging legacy Word text.
	minSalvageRun = 4

	pptRecordHeaderLen = 8
	pptContainerVer    = 0x0F
	pptTextCharsAtom   = 0x0FA0
	pptTextBytesAtom   = 0x0FA8
)

// readOLEStream returns the named stream of the compound file at path, or nil if absent.
func readOLEStream(path, name string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}
	for entry, err := doc.Next(); ; entry, err = doc.Next() {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read compound file: %w", err)
		}
		if entry.Name != name {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(entry, maxOLEStream))
		if err != nil {
			return nil, fmt.Errorf("read %s stream: %w", name, err)
		}
		return data, nil
	}
}

// extractDOC salvages body text from the WordDocument stream of a legacy .doc file.
// A file with no recoverable text yields an empty string, not an error.
func extractDOC(path string) (string, error) {
	data, err := readOLEStream(path, wordStreamName)
	if err != nil {
		return "", fmt.Errorf("extract DOC: %w", err)
	}
	if data == nil {
		return "", fmt.Errorf("extract DOC: %s stream not found", wordStreamName)
	}
	return salvageText(data), nil
}

// salvageText decodes data both as UTF-16LE and as 8-bit text and keeps whichever
// yields more ASCII alphanumerics inside printable runs.
func salvageText(data []byte) string {
	wide := printableRuns(decodeUTF16LE(data))
	narrow := printableRuns(decodeLatin1(data))
	if asciiAlnum(wide) >= asciiAlnum(narrow) {
		return wide
	}
	return narrow
}

func decodeUTF16LE(data []byte) string {
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return string(out)
}

func decodeLatin1(data []byte) string {
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return string(out)
}

// printableRuns keeps runs of printable characters at least minSalvageRun long, one per line.
func printableRuns(s string) string {
	var runs []string
	var cur []rune
	flush := func() {
		if run := strings.TrimSpace(string(cur)); len([]rune(run)) >= minSalvageRun {
			runs = append(runs, run)
		}
		cur = cur[:0]
	}
	for _, r := range s {
		if isSalvageable(r) {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(runs, "\n")
}

func isSalvageable(r rune) bool {
	switch {
	case r == '\t':
		return true
	case r < 0x20 || r == 0x7f || r == 0xfffd:
		return false
	case r >= 0xd800 && r <= 0xf8ff:
		return false
	default:
		return r < 0x2500
	}
}

func asciiAlnum(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			n++
		}
	}
	return n
}

// extractPPT collects text atoms from the PowerPoint Document stream in stream order.
func extractPPT(path string) (string, error) {
	data, err := readOLEStream(path, powerPointStreamName)
	if err != nil {
		return "", fmt.Errorf("extract PPT: %w", err)
	}
	if data == nil {
		return "", fmt.Errorf("extract PPT: %s stream not found", powerPointStreamName)
	}
	var texts []string
	walkPPTRecords(data, func(recType uint16, body []byte) {
		switch recType {
		case pptTextCharsAtom:
			texts = append(texts, decodeUTF16LE(body))
		case pptTextBytesAtom:
			texts = append(texts, decodeLatin1(body))
		}
	})
	return strings.Join(texts, "\n"), nil
}

// walkPPTRecords visits every atom record, descending into containers.
// Truncated records end the walk at that level.
func walkPPTRecords(data []byte, visit func(recType uint16, body []byte)) {
	for len(data) >= pptRecordHeaderLen {
		verInstance := binary.LittleEndian.Uint16(data[0:2])
		recType := binary.LittleEndian.Uint16(data[2:4])
		recLen := binary.LittleEndian.Uint32(data[4:8])
		data = data[pptRecordHeaderLen:]
		if uint64(recLen) > uint64(len(data)) {
			return
		}
		body := data[:recLen]
		data = data[recLen:]
		if verInstance&0x000F == pptContainerVer {
			walkPPTRecords(body, visit)
			continue
		}
		visit(recType, body)
	}
}
