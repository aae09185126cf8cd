// Package petfinder scrapes petfinder.com search pages. The site is a
// React app that loads listings over an internal JSON API, so the
// renderer captures those responses and the DOM is only a fallback.
package petfinder

import (
	"context"
	"encoding/json"
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
const SourceName = "petfinder"

const baseURL = "https://www.petfinder.com"

// capturePatterns match the internal listing API.
var capturePatterns = []string{"/v2/animals", "api.petfinder.com"}

// speciesPaths are the search verticals walked per run.
var speciesPaths = []struct {
	path    string
	species petdata.Species
}{
	{"dogs", petdata.SpeciesDog},
	{"cats", petdata.SpeciesCat},
}

// Config controls the scraper.
type Config struct {
	// MaxPages bounds the pagination walk per species.
	MaxPages int
}

// Scraper implements petdata.Source on top of a browser renderer.
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
		cfg.MaxPages = 3
	}
	return &Scraper{cfg: cfg, renderer: renderer, policy: policy, delayer: delayer, logger: logger}
}

// Name implements petdata.Source.
func (s *Scraper) Name() string { return SourceName }

// Initialize implements petdata.Source. The renderer owns the browser.
func (s *Scraper) Initialize(context.Context) error { return nil }

// Cleanup implements petdata.Source. The shared renderer outlives runs.
func (s *Scraper) Cleanup(context.Context) error { return nil }

// Scrape walks the dog and cat search verticals. Page failures become
// Result errors; remaining pages and species still run.
func (s *Scraper) Scrape(ctx context.Context) (petdata.Result, error) {
	var result petdata.Result
	seen := politeness.NewSeenSet()

	for _, sp := range speciesPaths {
		for pageNum := 1; pageNum <= s.cfg.MaxPages; pageNum++ {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			listURL := fmt.Sprintf("%s/search/%s-for-adoption/us/?page=%d", baseURL, sp.path, pageNum)
			if !s.policy.Allowed(ctx, listURL) {
				s.logger.Warn("blocked by robots", zap.String("url", listURL))
				break
			}
			if err := s.delayer.Wait(ctx, s.policy.CrawlDelay(ctx, listURL)); err != nil {
				return result, err
			}

			page, err := s.renderer.Render(ctx, browser.Request{
				URL:             listURL,
				WaitSelector:    `a[href*="/pet/"]`,
				WaitPatience:    15 * time.Second,
				CapturePatterns: capturePatterns,
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

			pagePets := s.petsFromCaptures(page.Captures, sp.species)
			if len(pagePets) == 0 {
				pagePets = s.petsFromDOM(page.HTML, sp.species)
			}

			added := 0
			for _, pet := range pagePets {
				if !seen.MarkIfNew(pet.SourceID) {
					continue
				}
				result.Pets = append(result.Pets, pet)
				added++
			}
			s.logger.Debug("petfinder page done",
				zap.String("species", sp.path), zap.Int("page", pageNum), zap.Int("pets", added))
			if added == 0 {
				break
			}
		}
	}
	return result, nil
}

type pfAnimal struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	URL    string      `json:"url"`
	Age    string      `json:"age"`
	Gender string      `json:"gender"`
	Size   string      `json:"size"`
	Breeds struct {
		Primary   string `json:"primary"`
		Secondary string `json:"secondary"`
	} `json:"breeds"`
	Description string `json:"description"`
	Photos      []struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
		Full   string `json:"full"`
	} `json:"photos"`
	Contact struct {
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Address struct {
			City     string `json:"city"`
			State    string `json:"state"`
			Postcode string `json:"postcode"`
		} `json:"address"`
	} `json:"contact"`
	Environment struct {
		Children *bool `json:"children"`
		Dogs     *bool `json:"dogs"`
		Cats     *bool `json:"cats"`
	} `json:"environment"`
	Attributes struct {
		SpayedNeutered *bool `json:"spayed_neutered"`
		HouseTrained   *bool `json:"house_trained"`
		SpecialNeeds   *bool `json:"special_needs"`
	} `json:"attributes"`
}

// petsFromCaptures decodes intercepted API payloads. Bodies that are
// not the animals response are skipped silently.
func (s *Scraper) petsFromCaptures(captures []browser.Capture, species petdata.Species) []petdata.Pet {
	var pets []petdata.Pet
	for _, capture := range captures {
		var payload struct {
			Animals []pfAnimal `json:"animals"`
		}
		if err := json.Unmarshal(capture.Body, &payload); err != nil || len(payload.Animals) == 0 {
			continue
		}
		for _, animal := range payload.Animals {
			if pet, ok := mapAnimal(animal, species); ok {
				pets = append(pets, pet)
			}
		}
	}
	return pets
}

func mapAnimal(animal pfAnimal, species petdata.Species) (petdata.Pet, bool) {
	id := animal.ID.String()
	if id == "" || id == "0" || animal.Name == "" {
		return petdata.Pet{}, false
	}

	var photos []string
	for _, photo := range animal.Photos {
		for _, u := range []string{photo.Large, photo.Full, photo.Medium, photo.Small} {
			if u != "" {
				photos = append(photos, u)
				break
			}
		}
	}

	sourceURL := animal.URL
	if sourceURL == "" {
		sourceURL = fmt.Sprintf("%s/pet/%s-%s/", baseURL, strings.ToLower(animal.Name), id)
	}

	now := time.Now().UTC()
	return petdata.Pet{
		Source:         SourceName,
		SourceID:       id,
		SourceURL:      sourceURL,
		Name:           animal.Name,
		Species:        species,
		Breed:          normalize.Breed(animal.Breeds.Primary),
		BreedSecondary: petdata.StrPtr(animal.Breeds.Secondary),
		Age:            normalize.Age(animal.Age),
		Size:           normalize.Size(animal.Size),
		Gender:         normalize.Gender(animal.Gender),
		Description:    normalize.Description(animal.Description),
		Photos:         fetcher.CapPhotos(photos),
		LocationCity:   petdata.StrPtr(animal.Contact.Address.City),
		LocationState:  normalize.State(animal.Contact.Address.State),
		LocationZip:    petdata.StrPtr(animal.Contact.Address.Postcode),
		ShelterEmail:   petdata.StrPtr(animal.Contact.Email),
		ShelterPhone:   petdata.StrPtr(animal.Contact.Phone),
		GoodWithKids:   animal.Environment.Children,
		GoodWithDogs:   animal.Environment.Dogs,
		GoodWithCats:   animal.Environment.Cats,
		HouseTrained:   animal.Attributes.HouseTrained,
		SpayedNeutered: animal.Attributes.SpayedNeutered,
		SpecialNeeds:   animal.Attributes.SpecialNeeds,
		Status:         petdata.StatusActive,
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}, true
}

var petIDRe = regexp.MustCompile(`/pet/[^/]+-(\d+)`)

// petsFromDOM is the fallback when no API responses were captured:
// walk the listing cards and keep whatever the markup gives up.
func (s *Scraper) petsFromDOM(html string, species petdata.Species) []petdata.Pet {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var pets []petdata.Pet
	seenURLs := politeness.NewSeenSet()
	now := time.Now().UTC()

	doc.Find(`a[href*="/pet/"]`).Each(func(_ int, link *goquery.Selection) {
		if len(pets) >= fetcher.MaxListingLinks {
			return
		}
		href, _ := link.Attr("href")
		petURL := fetcher.AbsoluteURL(baseURL, href)
		if petURL == "" || !seenURLs.MarkIfNew(petURL) {
			return
		}

		card := link.Closest("article")
		if card.Length() == 0 {
			card = link.Parent().Parent()
		}
		cardText := card.Text()

		name := strings.TrimSpace(card.Find(`[class*="font-bold"], [class*="font-secondary"]`).First().Text())
		if name == "" {
			name = strings.TrimSpace(link.Text())
		}
		if name == "" || name == "Loading..." || len(name) >= 50 {
			return
		}

		var age string
		switch {
		case strings.Contains(cardText, "Adult"):
			age = "Adult"
		case strings.Contains(cardText, "Young"):
			age = "Young"
		case strings.Contains(cardText, "Senior"):
			age = "Senior"
		case strings.Contains(cardText, "Baby"), strings.Contains(cardText, "Puppy"), strings.Contains(cardText, "Kitten"):
			age = "Baby"
		}
		var gender string
		switch {
		case strings.Contains(cardText, "Female"):
			gender = "Female"
		case strings.Contains(cardText, "Male"):
			gender = "Male"
		}

		var photos []string
		if src, ok := card.Find(`img[src*="cloudfront"], img[src*="petfinder"]`).First().Attr("src"); ok && src != "" {
			photos = append(photos, src)
		}

		sourceID := ""
		fallback := false
		if m := petIDRe.FindStringSubmatch(petURL); m != nil {
			sourceID = m[1]
		} else {
			sourceID = fetcher.FallbackID("pf")
			fallback = true
		}

		pets = append(pets, petdata.Pet{
			Source:      SourceName,
			SourceID:    sourceID,
			SourceURL:   petURL,
			Name:        name,
			Species:     species,
			Age:         normalize.Age(age),
			Gender:      normalize.Gender(gender),
			Photos:      photos,
			Status:      petdata.StatusActive,
			FirstSeenAt: now,
			LastSeenAt:  now,
			FallbackID:  fallback,
		})
	})
	return pets
}
