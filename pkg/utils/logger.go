package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
// outputPaths replaces the default stderr sink when given; zap accepts file paths as well
// as "stdout" and "stderr".
func NewLogger(debug bool, outputPaths ...string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if len(outputPaths) > 0 {
		cfg.OutputPaths = outputPaths
	}
	return cfg.Build()
}
