// Package rescuegroups pulls available animals from the RescueGroups v5
// public API. Pure HTTP, no browser involved.
package rescuegroups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/fetcher"
	"github.com/palbase/palbase-sync/internal/normalize"
	"github.com/palbase/palbase-sync/internal/petdata"
)

// SourceName is the stable key for this fetcher.
const SourceName = "rescuegroups"

// ErrMissingAPIKey aborts initialization when no key is configured.
var ErrMissingAPIKey = errors.New("rescuegroups api key is required")

// ErrRateLimited reports that the upstream kept returning 429 past the
// per-page retry budget.
var ErrRateLimited = errors.New("rescuegroups rate limit retries exhausted")

// Config controls the API fetcher.
type Config struct {
	APIKey string
	// BaseURL overrides the production endpoint in tests.
	BaseURL string
	// PageLimit is animals per page; the API caps it at 250.
	PageLimit int
	// MaxPages bounds the pagination walk per species.
	MaxPages int
	// RetryWait is how long to back off after a 429.
	RetryWait time.Duration
	// MaxRetries caps consecutive 429 retries of one page.
	MaxRetries int
}

// Fetcher implements petdata.Source against the JSON:API endpoint.
type Fetcher struct {
	cfg    Config
	client *resty.Client
	logger *zap.Logger
}

// New builds the fetcher with production defaults.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.rescuegroups.org/v5"
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 250
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/vnd.api+json").
		SetHeader("Authorization", cfg.APIKey).
		SetHeader("User-Agent", fetcher.UserAgent).
		SetTimeout(30 * time.Second)
	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// Name implements petdata.Source.
func (f *Fetcher) Name() string { return SourceName }

// Initialize validates the API key. No sessions to acquire.
func (f *Fetcher) Initialize(context.Context) error {
	if f.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Cleanup implements petdata.Source. Pure HTTP, nothing held.
func (f *Fetcher) Cleanup(context.Context) error { return nil }

// speciesViews are the API views walked per run.
var speciesViews = []struct {
	view    string
	species petdata.Species
}{
	{"dogs", petdata.SpeciesDog},
	{"cats", petdata.SpeciesCat},
}

// Scrape walks the available-animal views. A view that fails wholesale
// becomes one Result error; the other views still run.
func (f *Fetcher) Scrape(ctx context.Context) (petdata.Result, error) {
	var result petdata.Result
	for _, sv := range speciesViews {
		pets, err := f.fetchSpecies(ctx, sv.view, sv.species)
		result.Pets = append(result.Pets, pets...)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			f.logger.Warn("rescuegroups view failed",
				zap.String("view", sv.view), zap.Error(err))
			errType := petdata.ErrorTypeFetch
			if errors.Is(err, ErrRateLimited) {
				errType = petdata.ErrorTypeRateLimit
			}
			result.Errors = append(result.Errors, petdata.SourceError{
				Type:    errType,
				Message: err.Error(),
				URL:     fmt.Sprintf("%s/public/animals/search/available/%s/", f.cfg.BaseURL, sv.view),
			})
		}
	}
	return result, nil
}

// fetchSpecies pages through one view. Pets gathered before a mid-walk
// failure are still returned alongside the error.
func (f *Fetcher) fetchSpecies(ctx context.Context, view string, species petdata.Species) ([]petdata.Pet, error) {
	var pets []petdata.Pet
	retries := 0
	for page := 1; page <= f.cfg.MaxPages; {
		doc, status, err := f.fetchPage(ctx, view, page)
		if err != nil {
			return pets, err
		}
		if status == 429 {
			if retries >= f.cfg.MaxRetries {
				return pets, fmt.Errorf("%w: %s page %d after %d attempts",
					ErrRateLimited, view, page, retries+1)
			}
			retries++
			f.logger.Warn("rescuegroups rate limited",
				zap.Int("page", page), zap.Int("retry", retries))
			if err := sleepCtx(ctx, f.cfg.RetryWait); err != nil {
				return pets, err
			}
			continue
		}
		retries = 0
		if len(doc.Data) == 0 {
			break
		}

		included := indexIncluded(doc.Included)
		for _, animal := range doc.Data {
			if pet, ok := mapAnimal(animal, included, species); ok {
				pets = append(pets, pet)
			}
		}

		if doc.Meta.Pages > 0 && page >= doc.Meta.Pages {
			break
		}
		page++
		if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
			return pets, err
		}
	}
	return pets, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, view string, page int) (apiDocument, int, error) {
	var doc apiDocument
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit": fmt.Sprint(f.cfg.PageLimit),
			"page":  fmt.Sprint(page),
			"sort":  "random",
		}).
		Get(fmt.Sprintf("/public/animals/search/available/%s/", view))
	if err != nil {
		return apiDocument{}, 0, fmt.Errorf("fetch %s page %d: %w", view, page, err)
	}
	if resp.StatusCode() == 429 {
		return apiDocument{}, 429, nil
	}
	if resp.IsError() {
		return apiDocument{}, resp.StatusCode(), fmt.Errorf("fetch %s page %d: status %d", view, page, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return apiDocument{}, resp.StatusCode(), fmt.Errorf("decode %s page %d: %w", view, page, err)
	}
	return doc, resp.StatusCode(), nil
}

// JSON:API document shapes. Relationship data arrives as either a
// single ref or an array; refs() tolerates both.

type apiDocument struct {
	Data     []apiAnimal   `json:"data"`
	Included []apiIncluded `json:"included"`
	Meta     struct {
		Pages int `json:"pages"`
	} `json:"meta"`
}

type apiAnimal struct {
	ID            string                     `json:"id"`
	Attributes    apiAnimalAttributes        `json:"attributes"`
	Relationships map[string]apiRelationship `json:"relationships"`
}

type apiAnimalAttributes struct {
	Name               string `json:"name"`
	AgeGroup           string `json:"ageGroup"`
	AgeString          string `json:"ageString"`
	SizeGroup          string `json:"sizeGroup"`
	SizeCurrent        string `json:"sizeCurrent"`
	Sex                string `json:"sex"`
	URL                string `json:"url"`
	DescriptionText    string `json:"descriptionText"`
	Description        string `json:"description"`
	LocationCitystate  string `json:"locationCitystate"`
	LocationState      string `json:"locationState"`
	LocationPostalcode string `json:"locationPostalcode"`
	AdoptionFeeString  string `json:"adoptionFeeString"`
	IsKidsOk           *bool  `json:"isKidsOk"`
	IsDogsOk           *bool  `json:"isDogsOk"`
	IsCatsOk           *bool  `json:"isCatsOk"`
	IsHousetrained     *bool  `json:"isHousetrained"`
	IsAltered          *bool  `json:"isAltered"`
	IsSpecialNeeds     *bool  `json:"isSpecialNeeds"`
}

type apiRelationship struct {
	Data json.RawMessage `json:"data"`
}

type apiRef struct {
	ID string `json:"id"`
}

func (r apiRelationship) refs() []apiRef {
	if len(r.Data) == 0 {
		return nil
	}
	var many []apiRef
	if err := json.Unmarshal(r.Data, &many); err == nil {
		return many
	}
	var one apiRef
	if err := json.Unmarshal(r.Data, &one); err == nil && one.ID != "" {
		return []apiRef{one}
	}
	return nil
}

type apiIncluded struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes struct {
		Name     string      `json:"name"`
		Email    string      `json:"email"`
		Phone    string      `json:"phone"`
		Singular string      `json:"singular"`
		Large    *apiPicture `json:"large"`
		Original *apiPicture `json:"original"`
		Small    *apiPicture `json:"small"`
	} `json:"attributes"`
}

type apiPicture struct {
	URL string `json:"url"`
}

func indexIncluded(items []apiIncluded) map[string]apiIncluded {
	out := make(map[string]apiIncluded, len(items))
	for _, item := range items {
		out[item.Type+"-"+item.ID] = item
	}
	return out
}

func mapAnimal(animal apiAnimal, included map[string]apiIncluded, defaultSpecies petdata.Species) (petdata.Pet, bool) {
	attrs := animal.Attributes
	if attrs.Name == "" {
		return petdata.Pet{}, false
	}

	var breedPrimary, breedSecondary *string
	for i, ref := range animal.Relationships["breeds"].refs() {
		obj, ok := included["breeds-"+ref.ID]
		if !ok || obj.Attributes.Name == "" {
			continue
		}
		switch i {
		case 0:
			breedPrimary = normalize.Breed(obj.Attributes.Name)
		case 1:
			breedSecondary = petdata.StrPtr(obj.Attributes.Name)
		}
	}

	var photos []string
	for _, ref := range animal.Relationships["pictures"].refs() {
		obj, ok := included["pictures-"+ref.ID]
		if !ok {
			continue
		}
		switch {
		case obj.Attributes.Large != nil && obj.Attributes.Large.URL != "":
			photos = append(photos, obj.Attributes.Large.URL)
		case obj.Attributes.Original != nil && obj.Attributes.Original.URL != "":
			photos = append(photos, obj.Attributes.Original.URL)
		case obj.Attributes.Small != nil && obj.Attributes.Small.URL != "":
			photos = append(photos, obj.Attributes.Small.URL)
		}
	}

	var shelterName, shelterEmail, shelterPhone *string
	if refs := animal.Relationships["orgs"].refs(); len(refs) > 0 {
		if obj, ok := included["orgs-"+refs[0].ID]; ok {
			shelterName = petdata.StrPtr(obj.Attributes.Name)
			shelterEmail = petdata.StrPtr(obj.Attributes.Email)
			shelterPhone = petdata.StrPtr(obj.Attributes.Phone)
		}
	}

	species := defaultSpecies
	if refs := animal.Relationships["species"].refs(); len(refs) > 0 {
		if obj, ok := included["species-"+refs[0].ID]; ok && obj.Attributes.Singular != "" {
			species = normalize.Species(obj.Attributes.Singular)
		}
	}

	var color *string
	if refs := animal.Relationships["colors"].refs(); len(refs) > 0 {
		if obj, ok := included["colors-"+refs[0].ID]; ok {
			color = petdata.StrPtr(obj.Attributes.Name)
		}
	}

	sourceURL := attrs.URL
	if sourceURL == "" {
		sourceURL = "https://www.rescuegroups.org/animals/" + animal.ID
	}

	var city, state *string
	if attrs.LocationCitystate != "" {
		parts := strings.SplitN(attrs.LocationCitystate, ",", 2)
		city = petdata.StrPtr(strings.TrimSpace(parts[0]))
		if len(parts) > 1 {
			state = normalize.State(parts[1])
		}
	}
	if state == nil && attrs.LocationState != "" {
		state = normalize.State(attrs.LocationState)
	}

	now := time.Now().UTC()
	return petdata.Pet{
		Source:         SourceName,
		SourceID:       animal.ID,
		SourceURL:      sourceURL,
		Name:           attrs.Name,
		Species:        species,
		Breed:          breedPrimary,
		BreedSecondary: breedSecondary,
		Age:            normalize.Age(firstNonEmpty(attrs.AgeGroup, attrs.AgeString)),
		Size:           normalize.Size(firstNonEmpty(attrs.SizeGroup, attrs.SizeCurrent)),
		Gender:         normalize.Gender(attrs.Sex),
		Color:          color,
		Description:    normalize.Description(firstNonEmpty(attrs.DescriptionText, attrs.Description)),
		Photos:         fetcher.CapPhotos(photos),
		LocationCity:   city,
		LocationState:  state,
		LocationZip:    petdata.StrPtr(attrs.LocationPostalcode),
		ShelterName:    shelterName,
		ShelterEmail:   shelterEmail,
		ShelterPhone:   shelterPhone,
		GoodWithKids:   attrs.IsKidsOk,
		GoodWithDogs:   attrs.IsDogsOk,
		GoodWithCats:   attrs.IsCatsOk,
		HouseTrained:   attrs.IsHousetrained,
		SpayedNeutered: attrs.IsAltered,
		SpecialNeeds:   attrs.IsSpecialNeeds,
		AdoptionFee:    normalize.AdoptionFee(attrs.AdoptionFeeString),
		Status:         petdata.StatusActive,
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
