// Package extract provides text extraction from various document formats.
package extract

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/internal/ocr"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for extensions with no registered strategy.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ExtractionError describes why text could not be produced for a file.
type ExtractionError struct {
	Path string
	Ext  string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for path %s, reason %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Strategy turns the file at path into plain text. Implementations open and release
// their own handles.
type Strategy func(path string) (string, error)

// Dispatcher routes files to a strategy by lower-cased extension.
type Dispatcher struct {
	strategies map[string]Strategy
	recognizer ocr.Recognizer
	logger     *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for extraction failures.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRecognizer sets the OCR engine used for raster images. Without one, images fail to extract.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(d *Dispatcher) {
		d.recognizer = r
	}
}

// WithStrategy registers or replaces the strategy for ext (including the leading dot).
func WithStrategy(ext string, s Strategy) Option {
	return func(d *Dispatcher) {
		d.strategies[ext] = s
	}
}

// NewDispatcher returns a Dispatcher with the built-in strategy table.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		strategies: make(map[string]Strategy),
		logger:     zap.NewNop(),
	}
	for _, ext := range []string{".txt", ".log", ".csv", ".err"} {
		d.strategies[ext] = extractPlain
	}
	d.strategies[".pdf"] = extractPDF
	d.strategies[".docx"] = extractDOCX
	d.strategies[".doc"] = extractDOC
	d.strategies[".xlsx"] = extractExcel
	d.strategies[".xls"] = extractExcel
	d.strategies[".pptx"] = extractPPTX
	d.strategies[".ppt"] = extractPPT
	d.strategies[".odt"] = extractCat
	d.strategies[".rtf"] = extractCat
	d.strategies[".ods"] = extractODS
	d.strategies[".odp"] = extractODP
	for _, ext := range ocr.ImageExtensions {
		d.strategies[ext] = d.extractImage
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Extensions returns the registered extensions in sorted order.
func (d *Dispatcher) Extensions() []string {
	exts := make([]string, 0, len(d.strategies))
	for ext := range d.strategies {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether ext has a registered strategy.
func (d *Dispatcher) Supports(ext string) bool {
	_, ok := d.strategies[ext]
	return ok
}

// Extract reads the file at path and returns its text content.
// It never panics and never returns an error directly: failures are logged and carried in
// the returned document's Err with an empty Text.
func (d *Dispatcher) Extract(path string) models.ExtractedDocument {
	target := models.NewScanTarget(path)
	text, err := d.run(target)
	if err != nil {
		xerr := &ExtractionError{Path: target.Path, Ext: target.Ext, Err: err}
		d.logger.Error("extraction failed",
			zap.String("path", target.Path),
			zap.String("ext", target.Ext),
			zap.Error(err))
		return models.ExtractedDocument{Target: target, Err: xerr}
	}
	return models.ExtractedDocument{Target: target, Text: text}
}

func (d *Dispatcher) run(target models.ScanTarget) (text string, err error) {
	strategy, ok := d.strategies[target.Ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, target.Ext)
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return strategy(target.Path)
}

func (d *Dispatcher) extractImage(path string) (string, error) {
	if d.recognizer == nil {
		return "", errors.New("no OCR recognizer configured")
	}
	return ocr.RecognizeFile(d.recognizer, path)
}
