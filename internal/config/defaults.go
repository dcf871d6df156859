package config

const (
	defaultDataDir = "~/.local/share/stride/data"
	defaultLogDir  = "~/.local/share/stride/logs"

	defaultAutoAcceptThreshold   = 90
	defaultReviewThreshold       = 40
	defaultTieBand               = 10
	defaultMaxAgeDiffYears       = 3
	defaultCandidateLimit        = 50
	defaultStrongMatchThreshold  = 70
	defaultNewIdentityConfidence = 70

	defaultImportWorkers = 4
	defaultMinFreeMB     = 100

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Matching: Matching{
			AutoAcceptThreshold:   defaultAutoAcceptThreshold,
			ReviewThreshold:       defaultReviewThreshold,
			TieBand:               defaultTieBand,
			MaxAgeDiffYears:       defaultMaxAgeDiffYears,
			CandidateLimit:        defaultCandidateLimit,
			StrongMatchThreshold:  defaultStrongMatchThreshold,
			NewIdentityConfidence: defaultNewIdentityConfidence,
		},
		Import: Import{
			Workers:   defaultImportWorkers,
			MinFreeMB: defaultMinFreeMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
