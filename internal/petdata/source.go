package petdata

import "context"

// SourceError is a structural failure confined to one sub-unit of a
// scrape (one page, one location, one species). It never aborts the
// run; the coordinator turns each into a RunError row.
type SourceError struct {
	Type    string
	Message string
	URL     string
}

// Result is everything one source produced in one run.
type Result struct {
	Pets     []Pet
	Shelters []Shelter
	Errors   []SourceError
}

// Source is the capability contract every upstream implements. Each
// implementation owns its session/browser lifecycle; the coordinator
// guarantees Cleanup runs on every exit path after Initialize.
type Source interface {
	// Name is the stable source key stored on every record.
	Name() string
	// Initialize acquires sessions and fetches the robots policy.
	Initialize(ctx context.Context) error
	// Scrape retrieves and normalizes every reachable listing. Sub-unit
	// failures are reported in Result.Errors, not as the returned error.
	Scrape(ctx context.Context) (Result, error)
	// Cleanup releases sessions. Must be safe after a failed Initialize.
	Cleanup(ctx context.Context) error
}

// ListingParser is the optional single-page capability: sources that can
// enrich or re-parse one listing URL expose it. A nil record with a nil
// error means the page yielded nothing usable (recoverable).
type ListingParser interface {
	ParseListing(ctx context.Context, url string) (*Pet, error)
}
