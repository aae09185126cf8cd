// Package petsmart scrapes the PetSmart Charities find-a-pet search.
// Pagination goes through the page_number query parameter instead of
// driving the in-page next button, which keeps each page render
// independent and retryable.
package petsmart

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/browser"
	"github.com/palbase/palbase-sync/internal/fetcher"
	"github.com/palbase/palbase-sync/internal/normalize"
	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/politeness"
	"github.com/palbase/palbase-sync/internal/robots"
)

// SourceName is the stable key for this fetcher.
const SourceName = "petsmart"

const (
	baseURL   = "https://petsmartcharities.org"
	searchURL = baseURL + "/adopt-a-pet/find-a-pet"
	// partnerShelterName labels pets listed through charity partners;
	// the actual shelter varies per pet and is not exposed on cards.
	partnerShelterName = "PetSmart Charities Partner"
)

var speciesFilters = []struct {
	filter  string
	species petdata.Species
}{
	{"dogs", petdata.SpeciesDog},
	{"cats", petdata.SpeciesCat},
}

// Config controls the scraper.
type Config struct {
	// MaxPages bounds the page_number walk per species.
	MaxPages int
}

var (
	_ petdata.Source        = (*Scraper)(nil)
	_ petdata.ListingParser = (*Scraper)(nil)
)

// Scraper implements petdata.Source and petdata.ListingParser.
type Scraper struct {
	cfg      Config
	renderer browser.Renderer
	policy   robots.Policy
	delayer  *politeness.Delayer
	logger   *zap.Logger
}

// New builds the scraper.
func New(cfg Config, renderer browser.Renderer, policy robots.Policy, delayer *politeness.Delayer, logger *zap.Logger) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Scraper{cfg: cfg, renderer: renderer, policy: policy, delayer: delayer, logger: logger}
}

// Name implements petdata.Source.
func (s *Scraper) Name() string { return SourceName }

// Initialize implements petdata.Source.
func (s *Scraper) Initialize(context.Context) error { return nil }

// Cleanup implements petdata.Source.
func (s *Scraper) Cleanup(context.Context) error { return nil }

// Scrape walks the dog and cat filters page by page, stopping a filter
// early once a page yields nothing new.
func (s *Scraper) Scrape(ctx context.Context) (petdata.Result, error) {
	var result petdata.Result
	seen := politeness.NewSeenSet()

	for _, sf := range speciesFilters {
		for pageNum := 1; pageNum <= s.cfg.MaxPages; pageNum++ {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			listURL := fmt.Sprintf("%s?pet_type=%s&page_number=%d", searchURL, sf.filter, pageNum)
			if !s.policy.Allowed(ctx, listURL) {
				s.logger.Warn("blocked by robots", zap.String("url", listURL))
				break
			}
			if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, listURL)); err != nil {
				return result, err
			}

			page, err := s.renderer.Render(ctx, browser.Request{
				URL:          listURL,
				WaitSelector: `a[href*="/find-a-pet/results/"]`,
				WaitPatience: 15 * time.Second,
			})
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				result.Errors = append(result.Errors, petdata.SourceError{
					Type:    petdata.ErrorTypeFetch,
					Message: err.Error(),
					URL:     listURL,
				})
				break
			}

			added := 0
			for _, pet := range s.petsFromListing(page.HTML, sf.species) {
				if !seen.MarkIfNew(pet.SourceID) {
					continue
				}
				result.Pets = append(result.Pets, pet)
				added++
			}
			s.logger.Debug("petsmart page done",
				zap.String("filter", sf.filter), zap.Int("page", pageNum), zap.Int("pets", added))
			if added == 0 {
				break
			}
		}
	}
	return result, nil
}

var (
	resultIDRe  = regexp.MustCompile(`/results/(\d+)`)
	locationRe  = regexp.MustCompile(`([A-Z][A-Za-z ]+?)[,\s]+([A-Z]{2})\b`)
	allCapsRe   = regexp.MustCompile(`^[A-Z\s!']+$`)
	cityStateRe = regexp.MustCompile(`([^,]+),\s*(\w{2})`)
)

// petsFromListing extracts the sparse card data. Cards expose only
// name, breed, and location; everything else comes from detail pages.
func (s *Scraper) petsFromListing(html string, species petdata.Species) []petdata.Pet {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var pets []petdata.Pet
	seenURLs := politeness.NewSeenSet()
	now := time.Now().UTC()

	doc.Find(`a[href*="/find-a-pet/results/"]`).Each(func(_ int, link *goquery.Selection) {
		if len(pets) >= fetcher.MaxListingLinks {
			return
		}
		href, _ := link.Attr("href")
		petURL := fetcher.AbsoluteURL(baseURL, href)
		if petURL == "" || !seenURLs.MarkIfNew(petURL) {
			return
		}

		card := link.Closest("div")
		if card.Length() == 0 {
			card = link.Parent()
		}
		cardText := card.Text()

		name := strings.TrimSpace(card.Find(`h4, strong, [class*="name"]`).First().Text())
		if name == "" {
			return
		}

		// Cards carry loose text lines under the name: a greeting, the
		// breed, the city and state, a learn-more link. Classify line by
		// line; the first line that survives the filters is the breed.
		breed := ""
		var city, state *string
		for _, line := range strings.Split(cardText, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || line == name {
				continue
			}
			if m := locationRe.FindStringSubmatch(line); m != nil {
				if city == nil {
					city = petdata.StrPtr(strings.TrimSpace(m[1]))
					state = normalize.State(m[2])
				}
				continue
			}
			if breed != "" {
				continue
			}
			lower := strings.ToLower(line)
			if strings.Contains(line, "HI!") || strings.Contains(lower, "learn more") {
				continue
			}
			if allCapsRe.MatchString(line) || len(line) <= 2 || len(line) >= 50 {
				continue
			}
			breed = line
		}

		sourceID := ""
		fallback := false
		if m := resultIDRe.FindStringSubmatch(petURL); m != nil {
			sourceID = m[1]
		} else {
			sourceID = fetcher.FallbackID("ps")
			fallback = true
		}

		pets = append(pets, petdata.Pet{
			Source:        SourceName,
			SourceID:      sourceID,
			SourceURL:     petURL,
			Name:          name,
			Species:       species,
			Breed:         normalize.Breed(breed),
			Gender:        petdata.GenderUnknown,
			LocationCity:  city,
			LocationState: state,
			ShelterName:   petdata.Ptr(partnerShelterName),
			Status:        petdata.StatusActive,
			FirstSeenAt:   now,
			LastSeenAt:    now,
			FallbackID:    fallback,
		})
	})
	return pets
}

// ParseListing renders one result page for the fields the cards omit.
// Implements petdata.ListingParser.
func (s *Scraper) ParseListing(ctx context.Context, petURL string) (*petdata.Pet, error) {
	if !s.policy.Allowed(ctx, petURL) {
		return nil, nil
	}
	if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, petURL)); err != nil {
		return nil, err
	}
	page, err := s.renderer.Render(ctx, browser.Request{
		URL:          petURL,
		WaitSelector: "h1, h2",
		WaitPatience: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", petURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", petURL, err)
	}

	name := firstText(doc, "h1", "h2", `[class*="name"]`)
	if name == "" {
		return nil, nil
	}

	sourceID := ""
	fallback := false
	if m := resultIDRe.FindStringSubmatch(petURL); m != nil {
		sourceID = m[1]
	} else {
		sourceID = fetcher.FallbackID("ps")
		fallback = true
	}

	pageText := strings.ToLower(doc.Text())
	species := petdata.SpeciesDog
	if !strings.Contains(pageText, "dog") && strings.Contains(pageText, "cat") {
		species = petdata.SpeciesCat
	}

	var age string
	switch {
	case strings.Contains(pageText, "puppy"), strings.Contains(pageText, "kitten"):
		age = "Baby"
	case strings.Contains(pageText, "young"):
		age = "Young"
	case strings.Contains(pageText, "adult"):
		age = "Adult"
	case strings.Contains(pageText, "senior"):
		age = "Senior"
	}
	var gender string
	switch {
	case strings.Contains(pageText, "female"):
		gender = "Female"
	case strings.Contains(pageText, "male"):
		gender = "Male"
	}
	var size string
	switch {
	case strings.Contains(pageText, "x-large"), strings.Contains(pageText, "extra large"):
		size = "X-Large"
	case strings.Contains(pageText, "large"):
		size = "Large"
	case strings.Contains(pageText, "medium"):
		size = "Medium"
	case strings.Contains(pageText, "small"):
		size = "Small"
	}

	var photos []string
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" || strings.Contains(src, "logo") || strings.Contains(src, "icon") {
			return
		}
		if strings.Contains(src, "pet") || strings.Contains(src, "animal") || strings.Contains(src, "adopt") {
			photos = append(photos, src)
		}
	})

	var city, state *string
	if locText := firstText(doc, `[class*="location"]`); locText != "" {
		if m := cityStateRe.FindStringSubmatch(locText); m != nil {
			city = petdata.StrPtr(strings.TrimSpace(m[1]))
			state = normalize.State(m[2])
		}
	}

	now := time.Now().UTC()
	return &petdata.Pet{
		Source:        SourceName,
		SourceID:      sourceID,
		SourceURL:     petURL,
		Name:          name,
		Species:       species,
		Breed:         normalize.Breed(firstText(doc, `[class*="breed"]`)),
		Age:           normalize.Age(age),
		Size:          normalize.Size(size),
		Gender:        normalize.Gender(gender),
		Description:   normalize.Description(firstText(doc, `[class*="description"]`, `[class*="about"]`, `[class*="bio"]`)),
		Photos:        fetcher.CapPhotos(photos),
		LocationCity:  city,
		LocationState: state,
		ShelterName:   petdata.Ptr(partnerShelterName),
		Status:        petdata.StatusActive,
		FirstSeenAt:   now,
		LastSeenAt:    now,
		FallbackID:    fallback,
	}, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(doc.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
