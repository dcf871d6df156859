// Package config loads, normalizes, and validates stride configuration.
//
// Configuration lives in a TOML file (default ~/.config/stride/config.toml)
// split into sections per subsystem: paths, matching thresholds, import
// behavior, and logging. Load applies defaults first, then the file, so a
// missing file still yields a usable configuration.
//
// Matching thresholds are deliberately configuration rather than constants;
// the shipped defaults are starting points meant to be tuned against real
// provider data.
package config
