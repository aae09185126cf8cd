// Package aspca scrapes the ASPCA NYC adoption center. The ASPCA's
// nationwide search is a redirect into other aggregators; the NYC
// center is their only directly listed inventory, so every pet here
// hangs off one fixed shelter record.
package aspca

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
	"github.com/palbase/palbase-sync/internal/fetchutil"
	"github.com/palbase/palbase-sync/internal/normalize"
	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/politeness"
	"github.com/palbase/palbase-sync/internal/robots"
)

// SourceName is the stable key for this fetcher.
const SourceName = "aspca"

const (
	nycAdoptionURL = "https://www.aspca.org/nyc/aspca-adoption-center"
	// nycShelterID keys the single shelter every ASPCA pet belongs to.
	nycShelterID = "aspca-nyc"
)

// nycShelter is the fixed adoption-center record emitted every run.
var nycShelter = petdata.Shelter{
	Source:   SourceName,
	SourceID: nycShelterID,
	Name:     "ASPCA Adoption Center",
	Phone:    petdata.Ptr("212-876-7700"),
	Website:  petdata.Ptr(nycAdoptionURL),
	Address:  petdata.Ptr("424 E 92nd St"),
	City:     petdata.Ptr("New York"),
	State:    petdata.Ptr("NY"),
	Zip:      petdata.Ptr("10128"),
}

var speciesPaths = []struct {
	path    string
	species petdata.Species
}{
	{"adoptable-dogs", petdata.SpeciesDog},
	{"adoptable-cats", petdata.SpeciesCat},
}

var (
	_ petdata.Source        = (*Scraper)(nil)
	_ petdata.ListingParser = (*Scraper)(nil)
)

// Scraper implements petdata.Source and petdata.ListingParser. Listing
// pages need the renderer; detail pages are static and go through the
// plain HTTP client.
type Scraper struct {
	renderer browser.Renderer
	static   *fetchutil.Client
	policy   robots.Policy
	delayer  *politeness.Delayer
	logger   *zap.Logger
}

// New builds the scraper.
func New(renderer browser.Renderer, static *fetchutil.Client, policy robots.Policy, delayer *politeness.Delayer, logger *zap.Logger) *Scraper {
	return &Scraper{renderer: renderer, static: static, policy: policy, delayer: delayer, logger: logger}
}

// Name implements petdata.Source.
func (s *Scraper) Name() string { return SourceName }

// Initialize implements petdata.Source.
func (s *Scraper) Initialize(context.Context) error { return nil }

// Cleanup implements petdata.Source.
func (s *Scraper) Cleanup(context.Context) error { return nil }

// Scrape walks the two NYC inventory pages. The shelter record is
// emitted even when both pages fail, so it never goes stale.
func (s *Scraper) Scrape(ctx context.Context) (petdata.Result, error) {
	result := petdata.Result{Shelters: []petdata.Shelter{nycShelter}}
	seen := politeness.NewSeenSet()

	for _, sp := range speciesPaths {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		listURL := fmt.Sprintf("%s/%s", nycAdoptionURL, sp.path)
		if !s.policy.Allowed(ctx, listURL) {
			s.logger.Warn("blocked by robots", zap.String("url", listURL))
			continue
		}
		if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, listURL)); err != nil {
			return result, err
		}

		page, err := s.renderer.Render(ctx, browser.Request{
			URL:          listURL,
			WaitSelector: `a[href*="/nyc/adoption/"], [class*="pet"]`,
			WaitPatience: 15 * time.Second,
			ScrollRounds: 5,
			ScrollPause:  1500 * time.Millisecond,
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
			continue
		}

		pets := s.petsFromListing(page.HTML, sp.species, seen)
		result.Pets = append(result.Pets, pets...)
		s.logger.Debug("aspca page done", zap.String("path", sp.path), zap.Int("pets", len(pets)))
	}
	return result, nil
}

var ageTokenRe = regexp.MustCompile(`(?i)(\d+)\s*(year|yr|month|mo|week)`)

func (s *Scraper) petsFromListing(html string, species petdata.Species, seen *politeness.SeenSet) []petdata.Pet {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var pets []petdata.Pet
	now := time.Now().UTC()

	doc.Find(`a[href*="/nyc/adoption/"], a[href*="/adoptable-"]`).Each(func(_ int, link *goquery.Selection) {
		if len(pets) >= fetcher.MaxListingLinks {
			return
		}
		href, _ := link.Attr("href")
		petURL := fetcher.AbsoluteURL(nycAdoptionURL, href)
		if petURL == "" {
			return
		}

		card := link.Closest(`article, .pet-card, .animal-card, div[class*="pet"]`)
		if card.Length() == 0 {
			card = link.Parent()
		}
		cardText := card.Text()

		name := strings.TrimSpace(card.Find(`h2, h3, h4, [class*="name"]`).First().Text())
		if name == "" {
			return
		}

		sourceID := fetcher.LastPathSegment(petURL)
		fallback := false
		if sourceID == "" {
			sourceID = fetcher.FallbackID("aspca")
			fallback = true
		}
		if !seen.MarkIfNew(SourceName + ":" + sourceID) {
			return
		}

		var age string
		if m := ageTokenRe.FindString(cardText); m != "" {
			age = m
		} else {
			lower := strings.ToLower(cardText)
			if strings.Contains(lower, "puppy") || strings.Contains(lower, "kitten") {
				age = "Baby"
			}
		}

		var gender string
		switch {
		case strings.Contains(cardText, "Female"):
			gender = "Female"
		case strings.Contains(cardText, "Male"):
			gender = "Male"
		}

		var photos []string
		if img := card.Find("img").First(); img.Length() > 0 {
			src, ok := img.Attr("src")
			if !ok || src == "" {
				src, _ = img.Attr("data-src")
			}
			if src != "" {
				photos = append(photos, src)
			}
		}

		pets = append(pets, petdata.Pet{
			Source:          SourceName,
			SourceID:        sourceID,
			SourceURL:       petURL,
			ShelterSourceID: nycShelterID,
			Name:            name,
			Species:         species,
			Breed:           normalize.Breed(strings.TrimSpace(card.Find(`[class*="breed"]`).First().Text())),
			Age:             normalize.Age(age),
			Gender:          normalize.Gender(gender),
			Photos:          photos,
			LocationCity:    petdata.Ptr("New York"),
			LocationState:   petdata.Ptr("NY"),
			LocationZip:     petdata.Ptr("10128"),
			ShelterName:     petdata.Ptr(nycShelter.Name),
			ShelterPhone:    nycShelter.Phone,
			Status:          petdata.StatusActive,
			FirstSeenAt:     now,
			LastSeenAt:      now,
			FallbackID:      fallback,
		})
	})
	return pets
}

// ParseListing fetches one detail page over plain HTTP and extracts the
// record. ASPCA detail pages carry their content server-side, so no
// browser is needed here. Implements petdata.ListingParser.
func (s *Scraper) ParseListing(ctx context.Context, petURL string) (*petdata.Pet, error) {
	if !s.policy.Allowed(ctx, petURL) {
		return nil, nil
	}
	if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, petURL)); err != nil {
		return nil, err
	}
	doc, err := s.static.GetDocument(ctx, petURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", petURL, err)
	}

	name := firstText(doc, "h1", `[class*="petName"]`, `[class*="name"]`)
	if name == "" {
		return nil, nil
	}

	sourceID := fetcher.LastPathSegment(petURL)
	fallback := false
	if sourceID == "" {
		sourceID = fetcher.FallbackID("aspca")
		fallback = true
	}

	pageText := strings.ToLower(doc.Text())
	species := petdata.SpeciesDog
	if strings.Contains(petURL, "cat") || strings.Contains(pageText, "cat") {
		species = petdata.SpeciesCat
	}

	var age string
	if m := ageTokenRe.FindString(pageText); m != "" {
		age = m
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
	case strings.Contains(pageText, "large"):
		size = "Large"
	case strings.Contains(pageText, "medium"):
		size = "Medium"
	case strings.Contains(pageText, "small"):
		size = "Small"
	}

	var photos []string
	doc.Find(`.pet-photos img, .gallery img, img[src*="pet"], img[src*="animal"]`).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src != "" && !strings.Contains(src, "logo") {
			photos = append(photos, src)
		}
	})

	now := time.Now().UTC()
	return &petdata.Pet{
		Source:          SourceName,
		SourceID:        sourceID,
		SourceURL:       petURL,
		ShelterSourceID: nycShelterID,
		Name:            name,
		Species:         species,
		Breed:           normalize.Breed(firstText(doc, `[class*="breed"]`)),
		Age:             normalize.Age(age),
		Size:            normalize.Size(size),
		Gender:          normalize.Gender(gender),
		Description:     normalize.Description(firstText(doc, `[class*="description"]`, `[class*="about"]`, `[class*="bio"]`, ".pet-story")),
		Photos:          fetcher.CapPhotos(photos),
		LocationCity:    petdata.Ptr("New York"),
		LocationState:   petdata.Ptr("NY"),
		LocationZip:     petdata.Ptr("10128"),
		ShelterName:     petdata.Ptr(nycShelter.Name),
		ShelterPhone:    nycShelter.Phone,
		Status:          petdata.StatusActive,
		FirstSeenAt:     now,
		LastSeenAt:      now,
		FallbackID:      fallback,
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
