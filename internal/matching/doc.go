// Package matching implements the identity resolution engine: candidate
// scoring against stored runner identities, the acceptance policy that
// splits records into auto-matches, review entries, and new identities, and
// the per-key serialization that keeps concurrent imports from creating
// duplicate identities.
package matching
