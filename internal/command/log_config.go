package command

import (
	"fmt"

	"github.com/joeycumines/mendax/internal/config"
	"github.com/joeycumines/mendax/internal/logging"
)

// resolveLogConfig resolves log configuration from flags and config defaults.
// Flag values take precedence; config values (including their environment
// overrides) are used when a flag is empty.
func resolveLogConfig(flagPath, flagLevel string, cfg *config.Config) (logging.Config, error) {
	schema := config.DefaultSchema()
	var lc logging.Config

	// Resolve log level: flag → config → "info".
	levelStr := flagLevel
	if levelStr == "" {
		levelStr = schema.Resolve(cfg, config.KeyLogLevel)
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return lc, err
	}
	lc.Level = level

	// Resolve log path: flag → config → "".
	lc.File = flagPath
	if lc.File == "" {
		lc.File = schema.Resolve(cfg, config.KeyLogFile)
	}

	if lc.MaxSizeMB, err = schema.ResolveInt(cfg, config.KeyLogMaxSizeMB); err != nil {
		return lc, err
	}
	if lc.MaxSizeMB <= 0 {
		lc.MaxSizeMB = logging.DefaultMaxSizeMB
	}
	// Zero maxFiles is valid (no backups, just truncate on rotate).
	if lc.MaxFiles, err = schema.ResolveInt(cfg, config.KeyLogMaxFiles); err != nil {
		return lc, err
	}
	if lc.MaxFiles < 0 {
		return lc, fmt.Errorf("option %s: must not be negative", config.KeyLogMaxFiles)
	}

	// Resolve buffer size: config → 1000.
	if lc.RingLength, err = schema.ResolveInt(cfg, config.KeyLogBufferSize); err != nil {
		return lc, err
	}
	if lc.RingLength <= 0 {
		lc.RingLength = logging.DefaultRingLength
	}

	return lc, nil
}
