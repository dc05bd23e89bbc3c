package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/docscan/internal/config"
	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/internal/scanner"
)

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestUploadPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want scanner.UploadPolicy
	}{
		{config.OnFailureAbort, scanner.AbortOnUploadError},
		{config.OnFailureContinue, scanner.ContinueOnUploadError},
		{"", scanner.ContinueOnUploadError},
	}
	for _, tt := range tests {
		if got := uploadPolicy(tt.in); got != tt.want {
			t.Errorf("uploadPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    models.FileStatus
		wantErr bool
	}{
		{"", "", false},
		{"all", "", false},
		{"ERROR", models.StatusError, false},
		{"match_found", models.StatusMatchFound, false},
		{"no_match", models.StatusNoMatch, false},
		{"pending", "", true},
	}
	for _, tt := range tests {
		got, err := parseStatusFilter(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseStatusFilter(%q) = %q, %v", tt.in, got, err)
		}
	}
}

// scanFixture writes a document tree and a config pointing at it, returning the config path.
func scanFixture(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	docs := filepath.Join(base, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"memo.txt":    "Internal: CONFIDENTIAL. SSN 123-45-6789",
		"menu.txt":    "soup of the day",
		"broken.xlsx": "not a workbook",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(docs, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfgPath := filepath.Join(base, "config.yaml")
	content := `
scan:
  directory: "./docs"
  extensions: [".txt", ".xlsx"]
search:
  mode: both
  keywords: ["confidential"]
  regex_patterns:
    - pattern: '\d{3}-\d{2}-\d{4}'
      description: "SSN"
report:
  log_directory: "./logs"
  database_path: "./data/results.db"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return cfgPath, base
}

func TestRunScan_endToEnd(t *testing.T) {
	cfgPath, base := scanFixture(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), "scan", []string{"-config", cfgPath, "-output", "json"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("scan exit %d: %s", code, stderr.String())
	}
	var summary models.RunSummary
	if err := json.Unmarshal(stdout.Bytes(), &summary); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, stdout.String())
	}
	if summary.Files != 3 || summary.Matched != 1 || summary.NoMatch != 1 || summary.Errors != 1 || summary.Matches != 2 {
		t.Errorf("summary = %+v", summary)
	}

	logs, err := filepath.Glob(filepath.Join(base, "logs", "DocCentrikLog_*.csv"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one daily log, got %v (%v)", logs, err)
	}
	reports, _ := filepath.Glob(filepath.Join(base, "logs", "DocCentrikMatchReport_*.csv"))
	if len(reports) != 1 {
		t.Fatalf("expected one match report, got %v", reports)
	}
	data, err := os.ReadFile(reports[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "123-45-6789") {
		t.Errorf("match report missing SSN hit:\n%s", data)
	}

	// the stored run is readable through the report command
	stdout.Reset()
	stderr.Reset()
	code = run(context.Background(), "report", []string{"-config", cfgPath, "-run", summary.RunID, "-files", "error", "-output", "json"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("report exit %d: %s", code, stderr.String())
	}
	dec := json.NewDecoder(&stdout)
	var stored models.RunSummary
	if err := dec.Decode(&stored); err != nil {
		t.Fatal(err)
	}
	if stored.RunID != summary.RunID || stored.Errors != 1 || stored.FinishedAt.IsZero() {
		t.Errorf("stored run = %+v", stored)
	}
	var outcomes []models.FileOutcome
	if err := dec.Decode(&outcomes); err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || filepath.Base(outcomes[0].Path) != "broken.xlsx" || outcomes[0].Reason == "" {
		t.Errorf("error outcomes = %+v", outcomes)
	}
}

func TestRunScan_invalidRegexAbortsBeforeScanning(t *testing.T) {
	cfgPath, base := scanFixture(t)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	bad := strings.Replace(string(data), `'\d{3}-\d{2}-\d{4}'`, `'(unclosed'`, 1)
	if err := os.WriteFile(cfgPath, []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), "scan", []string{"-config", cfgPath}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "search.regex_patterns[0]") {
		t.Errorf("stderr should name the bad rule: %s", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(base, "logs")); !os.IsNotExist(err) {
		t.Error("no report should be written when the config is invalid")
	}
}

func TestRunReport_noRuns(t *testing.T) {
	cfgPath, _ := scanFixture(t)
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), "report", []string{"-config", cfgPath}, &stdout, &stderr); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "No matching run") {
		t.Errorf("stderr = %s", stderr.String())
	}
}

func TestRunInit_writesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), "init", []string{"-config", path, "-dir", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("init exit %d: %s", code, stderr.String())
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.Directory != dir || len(cfg.Scan.Extensions) != len(config.DefaultExtensions) {
		t.Errorf("loaded config = %+v", cfg.Scan)
	}
	if code := run(context.Background(), "init", []string{"-config", path}, &stdout, &stderr); code != 1 {
		t.Error("init should refuse to overwrite without -force")
	}
}

func TestRun_versionAndUnknown(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), "version", nil, &stdout, &stderr); code != 0 || !strings.Contains(stdout.String(), "docscan version") {
		t.Errorf("version: code=%d out=%q", code, stdout.String())
	}
	if code := run(context.Background(), "frobnicate", nil, &stdout, &stderr); code != 1 {
		t.Errorf("unknown command exit = %d, want 1", code)
	}
}
