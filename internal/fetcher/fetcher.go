// Package fetcher holds the pieces shared by every source fetcher:
// the identifying user agent, fallback ids, and listing-page helpers.
package fetcher

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// UserAgent identifies the aggregator to upstream sites.
const UserAgent = "Palbase-Bot/1.0 (Pet adoption aggregator; +https://palbase.com/bot)"

// MaxPhotos caps the photo list stored per pet.
const MaxPhotos = 10

// MaxListingLinks caps how many detail pages one listing page may yield.
const MaxListingLinks = 100

// FallbackID synthesizes a source id when a listing exposes none. The
// id is unique within the run but not stable across runs; callers must
// set Pet.FallbackID so the coordinator can count these.
func FallbackID(prefix string) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().UnixMilli(), rand.Intn(10000))
}

// CapPhotos trims the photo list to MaxPhotos, dropping empties.
func CapPhotos(photos []string) []string {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
		if len(out) == MaxPhotos {
			break
		}
	}
	return out
}

// AbsoluteURL resolves href against base. Unresolvable hrefs return "".
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

// LastPathSegment extracts the trailing path segment of a URL, the
// conventional place listing sites put the pet id.
func LastPathSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}
