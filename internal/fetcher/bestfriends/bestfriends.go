// Package bestfriends scrapes the Best Friends Animal Sanctuary in
// Kanab, Utah. One listing page of links, then a render per detail
// page; every pet belongs to the sanctuary's fixed shelter record.
package bestfriends

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
const SourceName = "bestfriends"

const (
	baseURL      = "https://bestfriends.org"
	sanctuaryURL = baseURL + "/adopt/adopt-our-sanctuary"
	// sanctuaryShelterID keys the single shelter record.
	sanctuaryShelterID = "bestfriends-sanctuary"
)

var sanctuaryShelter = petdata.Shelter{
	Source:   SourceName,
	SourceID: sanctuaryShelterID,
	Name:     "Best Friends Animal Sanctuary",
	Phone:    petdata.Ptr("435-644-2001"),
	Website:  petdata.Ptr(sanctuaryURL),
	Address:  petdata.Ptr("5001 Angel Canyon Road"),
	City:     petdata.Ptr("Kanab"),
	State:    petdata.Ptr("UT"),
	Zip:      petdata.Ptr("84741"),
}

var (
	_ petdata.Source        = (*Scraper)(nil)
	_ petdata.ListingParser = (*Scraper)(nil)
)

// Scraper implements petdata.Source and petdata.ListingParser.
type Scraper struct {
	renderer browser.Renderer
	policy   robots.Policy
	delayer  *politeness.Delayer
	logger   *zap.Logger
}

// New builds the scraper.
func New(renderer browser.Renderer, policy robots.Policy, delayer *politeness.Delayer, logger *zap.Logger) *Scraper {
	return &Scraper{renderer: renderer, policy: policy, delayer: delayer, logger: logger}
}

// Name implements petdata.Source.
func (s *Scraper) Name() string { return SourceName }

// Initialize implements petdata.Source.
func (s *Scraper) Initialize(context.Context) error { return nil }

// Cleanup implements petdata.Source.
func (s *Scraper) Cleanup(context.Context) error { return nil }

// Scrape renders the sanctuary listing, then each detail page. A
// failed detail page is one Result error; the walk continues.
func (s *Scraper) Scrape(ctx context.Context) (petdata.Result, error) {
	result := petdata.Result{Shelters: []petdata.Shelter{sanctuaryShelter}}

	if !s.policy.Allowed(ctx, sanctuaryURL) {
		s.logger.Warn("blocked by robots", zap.String("url", sanctuaryURL))
		return result, nil
	}
	if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, sanctuaryURL)); err != nil {
		return result, err
	}

	page, err := s.renderer.Render(ctx, browser.Request{
		URL:           sanctuaryURL,
		WaitSelector:  `a[href*="/sanctuary/adopt/"]`,
		WaitPatience:  30 * time.Second,
		ScrollRounds:  10,
		ScrollPause:   1500 * time.Millisecond,
		ClickSelector: `[class*="load-more"]`,
	})
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Errors = append(result.Errors, petdata.SourceError{
			Type:    petdata.ErrorTypeFetch,
			Message: err.Error(),
			URL:     sanctuaryURL,
		})
		return result, nil
	}

	links := petLinks(page.HTML)
	s.logger.Debug("bestfriends listing done", zap.Int("links", len(links)))

	for _, petURL := range links {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		pet, err := s.ParseListing(ctx, petURL)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors = append(result.Errors, petdata.SourceError{
				Type:    petdata.ErrorTypeParse,
				Message: err.Error(),
				URL:     petURL,
			})
			continue
		}
		if pet != nil {
			result.Pets = append(result.Pets, *pet)
		}
	}
	return result, nil
}

// petLinks extracts unique detail-page links, capped.
func petLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	seen := politeness.NewSeenSet()
	var links []string
	doc.Find(`a[href*="/sanctuary/adopt/"]`).Each(func(_ int, link *goquery.Selection) {
		if len(links) >= fetcher.MaxListingLinks {
			return
		}
		href, _ := link.Attr("href")
		petURL := fetcher.AbsoluteURL(baseURL, href)
		if petURL != "" && seen.MarkIfNew(petURL) {
			links = append(links, petURL)
		}
	})
	return links
}

var (
	petURLRe   = regexp.MustCompile(`/sanctuary/adopt/(\d+)/([^/]+)`)
	breedRe    = regexp.MustCompile(`(?i)(?:Breed|Looks like)[:\s]+([A-Za-z\s,]+?)(?:\n|$|\.)`)
	colorRe    = regexp.MustCompile(`(?i)(?:Color|Coat)[:\s]+([A-Za-z\s,/]+?)(?:\n|$|\.)`)
	ageFieldRe = regexp.MustCompile(`(?i)(?:Age|Years?|Months?)[:\s]*(\d+\s*(?:years?|months?|yrs?|mos?))`)
)

// speciesTokens scanned against the page text, most specific first.
var speciesTokens = []string{
	"Guinea Pig", "Dog", "Cat", "Rabbit", "Bird", "Horse", "Pig", "Goat",
	"Hamster", "Turtle", "Snake", "Lizard",
}

// ParseListing renders one sanctuary detail page. Implements
// petdata.ListingParser; a page with no name yields nil, nil.
func (s *Scraper) ParseListing(ctx context.Context, petURL string) (*petdata.Pet, error) {
	if !s.policy.Allowed(ctx, petURL) {
		return nil, nil
	}
	if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, petURL)); err != nil {
		return nil, err
	}
	page, err := s.renderer.Render(ctx, browser.Request{
		URL:          petURL,
		WaitSelector: `h1, [class*="pet-name"], [class*="animal-name"]`,
		WaitPatience: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", petURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", petURL, err)
	}

	sourceID := ""
	nameFromURL := ""
	fallback := false
	if m := petURLRe.FindStringSubmatch(petURL); m != nil {
		sourceID = m[1]
		nameFromURL = titleWords(strings.ReplaceAll(m[2], "-", " "))
	} else {
		sourceID = fetcher.FallbackID("bf")
		fallback = true
	}

	name := firstText(doc, "h1", ".pet-name", ".animal-name", `[class*="pet-name"]`, `[class*="animal-name"]`)
	if name == "" {
		name = nameFromURL
	}
	if name == "" {
		return nil, nil
	}

	pageText := doc.Text()
	lowerText := strings.ToLower(pageText)

	species := petdata.SpeciesOther
	for _, token := range speciesTokens {
		if strings.Contains(lowerText, strings.ToLower(token)) {
			species = normalize.Species(token)
			break
		}
	}

	var breed string
	if m := breedRe.FindStringSubmatch(pageText); m != nil {
		breed = strings.TrimSpace(m[1])
	}
	var color *string
	if m := colorRe.FindStringSubmatch(pageText); m != nil {
		color = petdata.StrPtr(strings.TrimSpace(m[1]))
	}

	age := ""
	if m := ageFieldRe.FindStringSubmatch(pageText); m != nil {
		age = strings.TrimSpace(m[1])
	}
	if age == "" {
		for _, stage := range []string{"Baby", "Young", "Adult", "Senior"} {
			if strings.Contains(pageText, stage) {
				age = stage
				break
			}
		}
	}

	var size string
	switch {
	case strings.Contains(pageText, "X-Large"), strings.Contains(pageText, "Extra Large"):
		size = "X-Large"
	case strings.Contains(pageText, "Large"):
		size = "Large"
	case strings.Contains(pageText, "Medium"):
		size = "Medium"
	case strings.Contains(pageText, "Small"):
		size = "Small"
	}

	var gender string
	switch {
	case strings.Contains(pageText, "Female"):
		gender = "Female"
	case strings.Contains(pageText, "Male"):
		gender = "Male"
	}

	var photos []string
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src != "" && (strings.Contains(src, "animal") || strings.Contains(src, "pet") || strings.Contains(src, "adopt")) {
			photos = append(photos, src)
		}
	})

	now := time.Now().UTC()
	return &petdata.Pet{
		Source:          SourceName,
		SourceID:        sourceID,
		SourceURL:       petURL,
		ShelterSourceID: sanctuaryShelterID,
		Name:            name,
		Species:         species,
		Breed:           normalize.Breed(breed),
		Age:             normalize.Age(age),
		Size:            normalize.Size(size),
		Gender:          normalize.Gender(gender),
		Color:           color,
		Description:     normalize.Description(firstText(doc, `[class*="description"]`, `[class*="bio"]`, `[class*="about"]`, ".body-text", "article p")),
		Photos:          fetcher.CapPhotos(photos),
		LocationCity:    petdata.Ptr("Kanab"),
		LocationState:   petdata.Ptr("UT"),
		LocationZip:     petdata.Ptr("84741"),
		ShelterName:     petdata.Ptr(sanctuaryShelter.Name),
		ShelterPhone:    sanctuaryShelter.Phone,
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

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
