// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/jobhunter/internal/config"
)

// New builds a zap.Logger configured for development or production at the
// configured level.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Development {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := zcfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = false
	zcfg.EncoderConfig.TimeKey = "ts"
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a config string onto a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown logging.level %q", level)
	}
}
