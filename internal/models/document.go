// Package models defines core data structures for scan targets, search rules, matches, and run outcomes.
package models

import (
	"path/filepath"
	"strings"
)

// ScanTarget is a discovered file queued for extraction.
// Ext is the lower-cased extension including the leading dot, used to pick an extraction strategy.
type ScanTarget struct {
	Path string `json:"path"`
	Ext  string `json:"ext"`
}

// NewScanTarget returns a target for path. Relative paths are made absolute when possible.
func NewScanTarget(path string) ScanTarget {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return ScanTarget{
		Path: path,
		Ext:  strings.ToLower(filepath.Ext(path)),
	}
}

// ExtractedDocument is the plain text produced for one target. It is consumed by the
// match engine and never persisted. Text is empty whenever Err is set.
type ExtractedDocument struct {
	Target ScanTarget
	Text   string
	Err    error
}

// Failed reports whether extraction failed for the document.
func (d ExtractedDocument) Failed() bool {
	return d.Err != nil
}
