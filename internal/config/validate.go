package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	for name, value := range map[string]int{
		"matching.auto_accept_threshold":   m.AutoAcceptThreshold,
		"matching.review_threshold":        m.ReviewThreshold,
		"matching.strong_match_threshold":  m.StrongMatchThreshold,
		"matching.new_identity_confidence": m.NewIdentityConfidence,
	} {
		if value < 0 || value > 100 {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}
	if m.ReviewThreshold >= m.AutoAcceptThreshold {
		return errors.New("matching.review_threshold must be below matching.auto_accept_threshold")
	}
	if m.TieBand < 0 || m.TieBand > 100 {
		return errors.New("matching.tie_band must be between 0 and 100")
	}
	if m.MaxAgeDiffYears < 1 {
		return errors.New("matching.max_age_diff_years must be at least 1")
	}
	if m.CandidateLimit < 1 {
		return errors.New("matching.candidate_limit must be at least 1")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.Workers < 1 {
		return errors.New("import.workers must be at least 1")
	}
	if c.Import.MinFreeMB < 0 {
		return errors.New("import.min_free_mb must be >= 0")
	}
	return nil
}
