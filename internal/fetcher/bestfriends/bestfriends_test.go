package bestfriends

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/browser/browsertest"
	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/politeness"
	"github.com/palbase/palbase-sync/internal/robots"
)

const listingHTML = `<html><body>
<a href="/sanctuary/adopt/211446194/mayella">Mayella</a>
<a href="/sanctuary/adopt/211446194/mayella">Mayella again</a>
<a href="/sanctuary/adopt/211446200/ziggy">Ziggy</a>
</body></html>`

const mayellaHTML = `<html><body>
<h1>Mayella</h1>
<p>Dog. Breed: Australian Cattle Dog. Age: 4 years. Female. Medium.</p>
<p>Color: Red, White.</p>
<div class="description">Mayella loves canyon hikes.</div>
<img src="https://cdn.example.org/animal-mayella.jpg"/>
<img src="https://cdn.example.org/sitewide-logo.png"/>
</body></html>`

func newScraper(fake *browsertest.FakeRenderer) *Scraper {
	return New(fake,
		robots.NewEnforcer(false, "test-agent", zap.NewNop()),
		politeness.NewDelayer(0, 0),
		zap.NewNop())
}

func TestScrapeWalksDetailPages(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().
		StubHTML("adopt-our-sanctuary", listingHTML).
		StubHTML("211446194/mayella", mayellaHTML).
		StubErr("211446200/ziggy", errors.New("timeout"))

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Shelters, 1)
	require.Equal(t, "bestfriends-sanctuary", result.Shelters[0].SourceID)

	require.Len(t, result.Pets, 1)
	pet := result.Pets[0]
	require.Equal(t, "bestfriends", pet.Source)
	require.Equal(t, "211446194", pet.SourceID)
	require.Equal(t, "Mayella", pet.Name)
	require.Equal(t, petdata.SpeciesDog, pet.Species)
	require.NotNil(t, pet.Breed)
	require.Equal(t, "Australian Cattle Dog", *pet.Breed)
	require.NotNil(t, pet.Age)
	require.Equal(t, petdata.AgeAdult, *pet.Age)
	require.Equal(t, petdata.GenderFemale, pet.Gender)
	require.NotNil(t, pet.Size)
	require.Equal(t, petdata.SizeMedium, *pet.Size)
	require.NotNil(t, pet.Color)
	require.Equal(t, "Red, White", *pet.Color)
	require.Equal(t, "bestfriends-sanctuary", pet.ShelterSourceID)
	require.Equal(t, []string{"https://cdn.example.org/animal-mayella.jpg"}, pet.Photos)
	require.NotNil(t, pet.LocationCity)
	require.Equal(t, "Kanab", *pet.LocationCity)

	// the detail page that failed is a contained parse error
	require.Len(t, result.Errors, 1)
	require.Equal(t, petdata.ErrorTypeParse, result.Errors[0].Type)
	require.Contains(t, result.Errors[0].URL, "ziggy")
}

func TestScrapeListingFailure(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().StubErr("adopt-our-sanctuary", errors.New("browser crashed"))

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Shelters, 1)
	require.Len(t, result.Errors, 1)
	require.Equal(t, petdata.ErrorTypeFetch, result.Errors[0].Type)
	require.Empty(t, result.Pets)
}

func TestParseListingNameFromURL(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().
		StubHTML("sanctuary/adopt", `<html><body><p>Cat, Young, Male.</p></body></html>`)

	pet, err := newScraper(fake).ParseListing(context.Background(),
		"https://bestfriends.org/sanctuary/adopt/211446201/sir-pounce")
	require.NoError(t, err)
	require.NotNil(t, pet)
	require.Equal(t, "211446201", pet.SourceID)
	require.Equal(t, "Sir Pounce", pet.Name)
	require.Equal(t, petdata.SpeciesCat, pet.Species)
	require.False(t, pet.FallbackID)
}
