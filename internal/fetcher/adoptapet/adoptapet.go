// Package adoptapet scrapes adoptapet.com search results for a fixed
// set of large metro areas. Listings are JS-rendered cards with loose
// markup, so extraction leans on text heuristics rather than selectors.
package adoptapet

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
const SourceName = "adoptapet"

const baseURL = "https://www.adoptapet.com"

type location struct {
	city      string
	state     string
	stateCode string
}

// locations are the metro areas walked per run.
var locations = []location{
	{"new-york", "new-york", "NY"},
	{"los-angeles", "california", "CA"},
	{"chicago", "illinois", "IL"},
	{"houston", "texas", "TX"},
	{"phoenix", "arizona", "AZ"},
}

var speciesKeys = []struct {
	key     string
	species petdata.Species
}{
	{"dog", petdata.SpeciesDog},
	{"cat", petdata.SpeciesCat},
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

// Scrape walks every species/location pair. A failed location becomes
// one Result error; the rest of the grid still runs. Pets already seen
// in another location this run are dropped.
func (s *Scraper) Scrape(ctx context.Context) (petdata.Result, error) {
	var result petdata.Result
	seen := politeness.NewSeenSet()

	for _, sk := range speciesKeys {
		for _, loc := range locations {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			listURL := fmt.Sprintf("%s/s/adopt-a-%s/%s/%s", baseURL, sk.key, loc.city, loc.state)
			if !s.policy.Allowed(ctx, listURL) {
				s.logger.Warn("blocked by robots", zap.String("url", listURL))
				continue
			}
			if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, listURL)); err != nil {
				return result, err
			}

			page, err := s.renderer.Render(ctx, browser.Request{
				URL:          listURL,
				WaitSelector: `a[href*="/pet/"]`,
				WaitPatience: 20 * time.Second,
				ScrollRounds: 3,
				ScrollPause:  2 * time.Second,
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

			pets := s.petsFromListing(page.HTML, sk.species, loc, seen)
			result.Pets = append(result.Pets, pets...)
			s.logger.Debug("adoptapet location done",
				zap.String("species", sk.key), zap.String("city", loc.city), zap.Int("pets", len(pets)))
		}
	}
	return result, nil
}

var (
	petIDRe    = regexp.MustCompile(`/pet/(\d+)`)
	ageTokenRe = regexp.MustCompile(`(?i)(\d+)\s*(year|yr|month|mo|week|wk)`)

	breedLabelRe = regexp.MustCompile(`(?i)(?:Breed|Mix):\s*([A-Za-z\s&/]+)`)
	breedNameRe  = regexp.MustCompile(`(?i)((?:Labrador|Golden|German|Pit Bull|Chihuahua|Beagle|Bulldog|Poodle|Husky|Boxer|Terrier|Shepherd|Retriever|Spaniel|Collie|Dachshund|Shih Tzu|Yorkshire)[A-Za-z\s&/]*)`)

	cardClassRe = regexp.MustCompile(`(?i)card|pet|item|result`)
)

func (s *Scraper) petsFromListing(html string, species petdata.Species, loc location, seen *politeness.SeenSet) []petdata.Pet {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var pets []petdata.Pet
	seenURLs := politeness.NewSeenSet()
	now := time.Now().UTC()

	doc.Find("a").Each(func(_ int, link *goquery.Selection) {
		if len(pets) >= fetcher.MaxListingLinks {
			return
		}
		href, _ := link.Attr("href")
		if !strings.Contains(href, "/pet/") && !strings.Contains(href, "adopt-a-") {
			return
		}
		if strings.Contains(href, "/s/adopt-a-") {
			return
		}
		petURL := fetcher.AbsoluteURL(baseURL, href)
		if petURL == "" || !seenURLs.MarkIfNew(petURL) {
			return
		}

		card := findCard(link)
		cardText := card.Text()

		name := firstText(card, "h2", "h3", "h4", `[class*="name"]`, `[class*="title"]`)
		if name == "" {
			linkText := strings.TrimSpace(link.Text())
			if len(linkText) > 1 && len(linkText) < 50 &&
				!strings.Contains(linkText, "View") && !strings.Contains(linkText, "More") {
				name = linkText
			}
		}
		if len(name) <= 1 {
			return
		}

		sourceID := ""
		fallback := false
		if m := petIDRe.FindStringSubmatch(petURL); m != nil {
			sourceID = m[1]
		} else {
			sourceID = fetcher.FallbackID("aap")
			fallback = true
		}
		if !seen.MarkIfNew(SourceName + ":" + sourceID) {
			return
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
			Source:        SourceName,
			SourceID:      sourceID,
			SourceURL:     petURL,
			Name:          name,
			Species:       species,
			Breed:         normalize.Breed(breedFromText(cardText)),
			Age:           normalize.Age(ageFromText(cardText)),
			Size:          normalize.Size(sizeFromText(cardText)),
			Gender:        normalize.Gender(genderFromText(cardText)),
			Photos:        photos,
			LocationCity:  petdata.Ptr(titleCity(loc.city)),
			LocationState: petdata.Ptr(loc.stateCode),
			Status:        petdata.StatusActive,
			FirstSeenAt:   now,
			LastSeenAt:    now,
			FallbackID:    fallback,
		})
	})
	return pets
}

// findCard climbs at most five ancestors looking for something that
// names itself like a listing card.
func findCard(link *goquery.Selection) *goquery.Selection {
	card := link
	for i := 0; i < 5; i++ {
		parent := card.Parent()
		if parent.Length() == 0 {
			break
		}
		card = parent
		if class, ok := card.Attr("class"); ok && cardClassRe.MatchString(class) {
			break
		}
	}
	return card
}

func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func breedFromText(text string) string {
	if m := breedLabelRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := breedNameRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func ageFromText(text string) string {
	if m := ageTokenRe.FindString(text); m != "" {
		return m
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "puppy"), strings.Contains(lower, "kitten"):
		return "Baby"
	case strings.Contains(lower, "young"):
		return "Young"
	case strings.Contains(lower, "adult"):
		return "Adult"
	case strings.Contains(lower, "senior"):
		return "Senior"
	}
	return ""
}

func genderFromText(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "female"):
		return "Female"
	case strings.Contains(lower, "male"):
		return "Male"
	}
	return ""
}

func sizeFromText(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "extra large"), strings.Contains(lower, "x-large"), strings.Contains(lower, "xl"):
		return "X-Large"
	case strings.Contains(lower, "large"):
		return "Large"
	case strings.Contains(lower, "medium"):
		return "Medium"
	case strings.Contains(lower, "small"):
		return "Small"
	}
	return ""
}

func titleCity(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseListing renders one detail page and re-extracts the record.
// Implements petdata.ListingParser; returns nil when the page yields
// nothing usable.
func (s *Scraper) ParseListing(ctx context.Context, petURL string) (*petdata.Pet, error) {
	if !s.policy.Allowed(ctx, petURL) {
		return nil, nil
	}
	if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, petURL)); err != nil {
		return nil, err
	}
	page, err := s.renderer.Render(ctx, browser.Request{
		URL:          petURL,
		WaitSelector: "h1",
		WaitPatience: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", petURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", petURL, err)
	}

	name := firstText(doc.Selection, "h1", `[class*="petName"]`, `[class*="name"]`)
	if name == "" {
		return nil, nil
	}

	sourceID := ""
	fallback := false
	if m := petIDRe.FindStringSubmatch(petURL); m != nil {
		sourceID = m[1]
	} else {
		sourceID = fetcher.FallbackID("aap")
		fallback = true
	}

	pageText := strings.ToLower(doc.Text())
	species := petdata.SpeciesOther
	if strings.Contains(pageText, "dog") {
		species = petdata.SpeciesDog
	} else if strings.Contains(pageText, "cat") {
		species = petdata.SpeciesCat
	}

	var photos []string
	doc.Find(`[class*="photo"] img, [class*="gallery"] img, [class*="image"] img`).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src != "" && !strings.Contains(src, "placeholder") && !strings.Contains(src, "logo") {
			photos = append(photos, src)
		}
	})

	var city, state *string
	if locText := firstText(doc.Selection, `[class*="location"]`); locText != "" {
		if m := regexp.MustCompile(`([^,]+),\s*(\w{2})`).FindStringSubmatch(locText); m != nil {
			city = petdata.StrPtr(strings.TrimSpace(m[1]))
			state = normalize.State(m[2])
		}
	}

	now := time.Now().UTC()
	pet := &petdata.Pet{
		Source:         SourceName,
		SourceID:       sourceID,
		SourceURL:      petURL,
		Name:           name,
		Species:        species,
		Breed:          normalize.Breed(firstText(doc.Selection, `[class*="breed"]`)),
		Age:            normalize.Age(ageFromText(pageText)),
		Size:           normalize.Size(sizeFromText(pageText)),
		Gender:         normalize.Gender(genderFromText(pageText)),
		Description:    normalize.Description(firstText(doc.Selection, `[class*="description"]`, `[class*="about"]`, `[class*="bio"]`)),
		Photos:         fetcher.CapPhotos(photos),
		LocationCity:   city,
		LocationState:  state,
		ShelterName:    petdata.StrPtr(firstText(doc.Selection, `[class*="shelter"]`, `[class*="organization"]`)),
		GoodWithKids:   textFlag(pageText, "good with kids", "good with children"),
		GoodWithDogs:   textFlag(pageText, "good with dogs"),
		GoodWithCats:   textFlag(pageText, "good with cats"),
		HouseTrained:   textFlag(pageText, "house trained", "housetrained"),
		SpayedNeutered: textFlag(pageText, "spayed", "neutered"),
		Status:         petdata.StatusActive,
		FirstSeenAt:    now,
		LastSeenAt:     now,
		FallbackID:     fallback,
	}
	return pet, nil
}

// textFlag reports a true tri-state only when a phrase is present;
// absence is unknown, never false.
func textFlag(text string, phrases ...string) *bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return petdata.Ptr(true)
		}
	}
	return nil
}
