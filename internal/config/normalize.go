package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMatching()
	c.normalizeImport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMatching() {
	if c.Matching.CandidateLimit <= 0 {
		c.Matching.CandidateLimit = defaultCandidateLimit
	}
	if c.Matching.StrongMatchThreshold <= 0 {
		c.Matching.StrongMatchThreshold = defaultStrongMatchThreshold
	}
	if c.Matching.NewIdentityConfidence <= 0 {
		c.Matching.NewIdentityConfidence = defaultNewIdentityConfidence
	}
	if c.Matching.MaxAgeDiffYears <= 0 {
		c.Matching.MaxAgeDiffYears = defaultMaxAgeDiffYears
	}
}

func (c *Config) normalizeImport() {
	if c.Import.Workers <= 0 {
		c.Import.Workers = defaultImportWorkers
	}
	if c.Import.MinFreeMB <= 0 {
		c.Import.MinFreeMB = defaultMinFreeMB
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
