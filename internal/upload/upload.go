// Package upload transfers matched files to a remote destination.
package upload

import (
	"context"
	"fmt"

	"github.com/hyperjump/docscan/internal/config"
	"go.uber.org/zap"
)

// Uploader transfers one local file. Failures are returned as *TransferError.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// TransferError reports a file that could not be transferred.
type TransferError struct {
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// New returns the Uploader for the configured backend.
func New(ctx context.Context, cfg config.UploadConfig, logger *zap.Logger) (Uploader, error) {
	switch cfg.Backend {
	case config.BackendSFTP:
		return NewSFTPUploader(cfg.SFTP, logger)
	case config.BackendS3:
		return NewS3Uploader(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Backend)
	}
}
