// Package normalize turns loosely-formatted source strings into the
// canonical vocabulary. Every function is pure and total: malformed
// input maps to an explicit unknown (nil, or GenderUnknown), never to a
// guessed concrete value and never to a panic.
package normalize

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/palbase/palbase-sync/internal/petdata"
)

var (
	ageBabyRe   = regexp.MustCompile(`(?i)baby|puppy|kitten|newborn|infant|neo`)
	ageYoungRe  = regexp.MustCompile(`(?i)young|juvenile|adolescent|teen`)
	ageAdultRe  = regexp.MustCompile(`(?i)adult|mature|grown`)
	ageSeniorRe = regexp.MustCompile(`(?i)senior|elder|old|aged`)
	ageYearsRe  = regexp.MustCompile(`(?i)(\d+)\s*(year|yr)`)
	ageMonthsRe = regexp.MustCompile(`(?i)(\d+)\s*(month|mo)`)
)

// Age maps a free-text age to an age class. Life-stage keywords win over
// numeric parsing; numbers fall into the year/month buckets.
func Age(raw string) *petdata.AgeClass {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	switch {
	case ageBabyRe.MatchString(s):
		return petdata.Ptr(petdata.AgeBaby)
	case ageYoungRe.MatchString(s):
		return petdata.Ptr(petdata.AgeYoung)
	case ageAdultRe.MatchString(s):
		return petdata.Ptr(petdata.AgeAdult)
	case ageSeniorRe.MatchString(s):
		return petdata.Ptr(petdata.AgeSenior)
	}
	if m := ageYearsRe.FindStringSubmatch(s); m != nil {
		years, err := strconv.Atoi(m[1])
		if err == nil {
			switch {
			case years < 1:
				return petdata.Ptr(petdata.AgeBaby)
			case years < 3:
				return petdata.Ptr(petdata.AgeYoung)
			case years < 8:
				return petdata.Ptr(petdata.AgeAdult)
			default:
				return petdata.Ptr(petdata.AgeSenior)
			}
		}
	}
	if m := ageMonthsRe.FindStringSubmatch(s); m != nil {
		months, err := strconv.Atoi(m[1])
		if err == nil {
			switch {
			case months < 6:
				return petdata.Ptr(petdata.AgeBaby)
			case months < 24:
				return petdata.Ptr(petdata.AgeYoung)
			default:
				return petdata.Ptr(petdata.AgeAdult)
			}
		}
	}
	return nil
}

var (
	sizeXLargeRe = regexp.MustCompile(`(?i)extra\s*large|xlarge|xl|giant|huge`)
	sizeLargeRe  = regexp.MustCompile(`(?i)large|lg|big`)
	sizeMediumRe = regexp.MustCompile(`(?i)medium|med|md|average`)
	sizeSmallRe  = regexp.MustCompile(`(?i)small|sm|tiny|petite|mini|toy`)
	sizeWeightRe = regexp.MustCompile(`(?i)(\d+)\s*(lb|lbs|pound)`)
)

// Size maps a free-text size to a size class. Keyword classes are
// checked largest-first so "extra large" never matches as "large";
// weights in pounds bucket at 20/50/90.
func Size(raw string) *petdata.SizeClass {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	switch {
	case sizeXLargeRe.MatchString(s):
		return petdata.Ptr(petdata.SizeXLarge)
	case sizeLargeRe.MatchString(s):
		return petdata.Ptr(petdata.SizeLarge)
	case sizeMediumRe.MatchString(s):
		return petdata.Ptr(petdata.SizeMedium)
	case sizeSmallRe.MatchString(s):
		return petdata.Ptr(petdata.SizeSmall)
	}
	if m := sizeWeightRe.FindStringSubmatch(s); m != nil {
		weight, err := strconv.Atoi(m[1])
		if err == nil {
			switch {
			case weight < 20:
				return petdata.Ptr(petdata.SizeSmall)
			case weight < 50:
				return petdata.Ptr(petdata.SizeMedium)
			case weight < 90:
				return petdata.Ptr(petdata.SizeLarge)
			default:
				return petdata.Ptr(petdata.SizeXLarge)
			}
		}
	}
	return nil
}

var (
	genderMaleRe   = regexp.MustCompile(`(?i)male|boy|\bm\b|\bhim\b|\bhe\b`)
	genderFemaleRe = regexp.MustCompile(`(?i)female|girl|\bf\b|\bher\b|\bshe\b`)
)

// Gender detects male/female with word boundaries; "female" must be
// tested before "male" because it contains it. Anything ambiguous is
// unknown.
func Gender(raw string) petdata.Gender {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return petdata.GenderUnknown
	}
	if genderFemaleRe.MatchString(s) {
		return petdata.GenderFemale
	}
	if genderMaleRe.MatchString(s) {
		return petdata.GenderMale
	}
	return petdata.GenderUnknown
}

var speciesPatterns = []struct {
	re      *regexp.Regexp
	species petdata.Species
}{
	{regexp.MustCompile(`(?i)dog|canine|puppy|pup`), petdata.SpeciesDog},
	{regexp.MustCompile(`(?i)cat|feline|kitten|kitty`), petdata.SpeciesCat},
	{regexp.MustCompile(`(?i)rabbit|bunny|hare`), petdata.SpeciesRabbit},
	{regexp.MustCompile(`(?i)bird|avian|parrot|parakeet|cockatiel|finch|canary`), petdata.SpeciesBird},
	{regexp.MustCompile(`(?i)small\s*(animal|pet)|hamster|gerbil|guinea\s*pig|ferret|chinchilla|rat|mouse|hedgehog`), petdata.SpeciesSmallAnimal},
	{regexp.MustCompile(`(?i)horse|equine|pony|mare|stallion|foal`), petdata.SpeciesHorse},
	{regexp.MustCompile(`(?i)reptile|lizard|snake|turtle|tortoise|gecko|iguana`), petdata.SpeciesReptile},
	{regexp.MustCompile(`(?i)fish|aquatic`), petdata.SpeciesFish},
}

// Species maps free text to one of the nine canonical families,
// defaulting to other.
func Species(raw string) petdata.Species {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return petdata.SpeciesOther
	}
	for _, p := range speciesPatterns {
		if p.re.MatchString(s) {
			return p.species
		}
	}
	return petdata.SpeciesOther
}

// Boolean parses a yes/no-ish token into a tri-state. Anything that is
// not clearly affirmative or negative stays nil, never coerced to false.
func Boolean(raw string) *bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1", "y":
		return petdata.Ptr(true)
	case "no", "false", "0", "n":
		return petdata.Ptr(false)
	default:
		return nil
	}
}

var (
	breedLeadingMixRe  = regexp.MustCompile(`(?i)^\s*(mixed|mix)\s*`)
	breedTrailingMixRe = regexp.MustCompile(`(?i)\s*(mixed|mix)\s*$`)
)

// Breed strips leading/trailing mix markers and title-cases each word.
func Breed(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = breedLeadingMixRe.ReplaceAllString(s, "")
	s = breedTrailingMixRe.ReplaceAllString(s, "")
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	out := strings.Join(words, " ")
	if out == "" {
		return nil
	}
	return &out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Description collapses whitespace and unescapes HTML entities. Content
// is never truncated or rewritten.
func Description(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

var feeRe = regexp.MustCompile(`\$?\s*(\d+(?:\.\d{2})?)`)

// AdoptionFee extracts the first currency-like numeric token.
func AdoptionFee(raw string) *float64 {
	m := feeRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

var twoLetterStateRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
	"washington dc": "DC", "washington d.c.": "DC",
}

// State accepts a 2-letter code case-insensitively or a full US state
// name; anything else is nil.
func State(raw string) *string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	if twoLetterStateRe.MatchString(s) {
		return petdata.Ptr(strings.ToUpper(s))
	}
	if code, ok := stateCodes[s]; ok {
		return &code
	}
	return nil
}
