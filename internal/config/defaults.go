package config

import (
	"strings"

	"github.com/hyperjump/docscan/internal/models"
)

// DefaultExtensions is every extension the extraction dispatcher handles.
var DefaultExtensions = []string{
	".txt", ".log", ".csv", ".err",
	".pdf",
	".docx", ".doc", ".odt", ".rtf",
	".xlsx", ".xls", ".ods",
	".pptx", ".ppt", ".odp",
	".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Scan.Extensions == nil {
		cfg.Scan.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, ext := range cfg.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Scan.Extensions[i] = ext
	}
	if cfg.Search.Mode == "" {
		cfg.Search.Mode = string(models.ModeBoth)
	}
	if cfg.OCR.DataPath == "" {
		cfg.OCR.DataPath = "./tessdata"
	}
	if cfg.Report.LogDirectory == "" {
		cfg.Report.LogDirectory = "/usr/local/var/docscan/logs"
	}
	if cfg.Report.DatabasePath == "" {
		cfg.Report.DatabasePath = "/usr/local/var/docscan/data/db/results.db"
	}
	if cfg.Upload.Backend == "" {
		cfg.Upload.Backend = BackendSFTP
	}
	if cfg.Upload.OnFailure == "" {
		cfg.Upload.OnFailure = OnFailureContinue
	}
	if cfg.Upload.SFTP.Port == 0 {
		cfg.Upload.SFTP.Port = 22
	}
	if cfg.Upload.SFTP.RemoteDir == "" {
		cfg.Upload.SFTP.RemoteDir = "."
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}
