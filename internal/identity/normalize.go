package identity

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// selfReportedAgeTolerance is the error margin applied to raw ages. Race
// registrations frequently carry the age at registration time rather than
// race day, so a one-year window is inherent to the data.
const selfReportedAgeTolerance = 1

// ageBucketYears groups age estimates for identity-key serialization.
const ageBucketYears = 5

// Raw carries the unprocessed identity fields of one imported result.
type Raw struct {
	Name      string
	Location  string
	Age       int       // 0 means unknown
	BirthDate time.Time // zero means unknown
	Gender    string
	RaceDate  time.Time // used to derive age from BirthDate
}

// Normalized is the comparable form of a runner identity.
type Normalized struct {
	// FullName is the lowercased, suffix- and punctuation-stripped name.
	FullName   string
	FirstToken string
	LastToken  string
	Tokens     []string

	City  string // lowercased
	State string // two-letter upper form when recognized, raw otherwise

	Gender Gender

	// AgeEstimate is zero when no age information is available.
	AgeEstimate int
	// AgeTolerance is the +/- window in years the estimate carries; zero for
	// ages derived from a birth date.
	AgeTolerance int
}

// Gender is the normalized gender marker.
type Gender string

const (
	GenderFemale  Gender = "F"
	GenderMale    Gender = "M"
	GenderUnknown Gender = ""
)

// HasAge reports whether any age information was present.
func (n Normalized) HasAge() bool { return n.AgeEstimate > 0 }

// HasLocation reports whether any location information was present.
func (n Normalized) HasLocation() bool { return n.City != "" || n.State != "" }

// Key returns the serialization key for identity creation: records that
// could describe the same new person (same last-name token, state, and age
// bucket) must not create identities concurrently.
func (n Normalized) Key() string {
	bucket := "x"
	if n.HasAge() {
		bucket = fmt.Sprintf("%d", n.AgeEstimate/ageBucketYears)
	}
	return n.LastToken + "|" + n.State + "|" + bucket
}

// Normalize canonicalizes raw identity fields. It never fails; missing
// fields yield zero values the scorer treats as neutral.
func Normalize(raw Raw) Normalized {
	full, tokens := NormalizeName(raw.Name)
	city, state := NormalizeLocation(raw.Location)

	n := Normalized{
		FullName: full,
		Tokens:   tokens,
		City:     city,
		State:    state,
		Gender:   NormalizeGender(raw.Gender),
	}
	if len(tokens) > 0 {
		n.FirstToken = tokens[0]
		n.LastToken = tokens[len(tokens)-1]
	}

	switch {
	case !raw.BirthDate.IsZero() && !raw.RaceDate.IsZero():
		n.AgeEstimate = ageAt(raw.BirthDate, raw.RaceDate)
		n.AgeTolerance = 0
	case raw.Age > 0:
		n.AgeEstimate = raw.Age
		n.AgeTolerance = selfReportedAgeTolerance
	}
	return n
}

// nameSuffixes are generational suffixes stripped from names before
// comparison. Only dropped when at least two tokens remain, so a bare
// surname such as "Jr" survives.
var nameSuffixes = map[string]struct{}{
	"jr":  {},
	"sr":  {},
	"ii":  {},
	"iii": {},
	"iv":  {},
}

// NormalizeName lowercases, folds diacritics, strips punctuation and
// generational suffixes, and returns the collapsed full form plus its
// ordered, deduplicated tokens.
func NormalizeName(raw string) (string, []string) {
	folded := foldDiacritics(strings.ToLower(strings.TrimSpace(raw)))

	var builder strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		default:
			builder.WriteByte(' ')
		}
	}

	fields := strings.Fields(builder.String())
	tokens := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, tok := range fields {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for len(tokens) > 2 {
		last := tokens[len(tokens)-1]
		if _, ok := nameSuffixes[last]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " "), tokens
}

// NormalizeLocation splits "City, ST" into city and state, normalizing full
// state names to their two-letter form. Unrecognized states pass through
// unchanged rather than failing.
func NormalizeLocation(raw string) (city, state string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ""
	}

	if idx := strings.LastIndex(trimmed, ","); idx >= 0 {
		city = strings.TrimSpace(trimmed[:idx])
		state = strings.TrimSpace(trimmed[idx+1:])
	} else {
		// No comma: a lone recognized state name or code is a state,
		// anything else is a city.
		if code, ok := stateCode(trimmed); ok {
			return "", code
		}
		return strings.ToLower(trimmed), ""
	}

	city = strings.ToLower(city)
	if code, ok := stateCode(state); ok {
		state = code
	}
	return city, state
}

// NormalizeGender maps free-form gender markers onto F/M/unknown.
func NormalizeGender(raw string) Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "f", "female", "w", "woman":
		return GenderFemale
	case "m", "male", "man":
		return GenderMale
	default:
		return GenderUnknown
	}
}

// BirthYearFor derives an approximate birth year from an age estimate at a
// race date. Returns zero when either input is missing.
func BirthYearFor(ageEstimate int, raceDate time.Time) int {
	if ageEstimate <= 0 || raceDate.IsZero() {
		return 0
	}
	return raceDate.Year() - ageEstimate
}

// AgeAtRace computes the age a runner born in birthYear would have been at
// the race date. Returns zero when either input is missing.
func AgeAtRace(birthYear int, raceDate time.Time) int {
	if birthYear <= 0 || raceDate.IsZero() {
		return 0
	}
	age := raceDate.Year() - birthYear
	if age <= 0 {
		return 0
	}
	return age
}

func ageAt(birthDate, raceDate time.Time) int {
	age := raceDate.Year() - birthDate.Year()
	if raceDate.YearDay() < birthDate.YearDay() {
		age--
	}
	if age <= 0 {
		return 0
	}
	return age
}

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

func foldDiacritics(input string) string {
	out, _, err := transform.String(diacriticStripper, input)
	if err != nil {
		return input
	}
	return out
}
