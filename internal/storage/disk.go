package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of scan results.
type Usage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	ReportBytes   int64 `json:"report_bytes"`
}

// ResultUsage measures the result database (with its WAL side files) and the report directory.
// Missing paths count as zero.
func ResultUsage(dbPath, reportDir string) (Usage, error) {
	var u Usage
	var err error
	if u.DatabaseBytes, err = DiskUsageBytes(dbPath, dbPath+"-wal", dbPath+"-shm"); err != nil {
		return u, err
	}
	if u.ReportBytes, err = DiskUsageBytes(reportDir); err != nil {
		return u, err
	}
	return u, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; other errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
