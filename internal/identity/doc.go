// Package identity canonicalizes raw runner fields into comparable forms.
//
// Provider data is noisy: names carry punctuation, suffixes, diacritics, and
// initials; locations mix "City, ST" with full state names; ages are
// self-reported or derived from birth dates. Normalize degrades gracefully:
// missing fields produce zero values that downstream scoring treats as
// neutral rather than as mismatches, and normalization itself never fails.
package identity
