package adoptapet

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
<div class="search-results">
  <div class="pet-card">
    <a href="/pet/43045869-new-york-dog"><h3 class="pet-name">Rocky</h3></a>
    Breed: Pit Bull Terrier
    2 years, Male, Large
    <img src="https://cdn.example.org/rocky.jpg"/>
  </div>
  <div class="pet-card">
    <a href="/pet/43045870-new-york-dog"><h3 class="pet-name">Luna</h3></a>
    puppy, Female, small
    <img data-src="https://cdn.example.org/luna.jpg"/>
  </div>
  <a href="/s/adopt-a-dog/brooklyn/new-york">See more dogs</a>
</div>
</body></html>`

func newScraper(fake *browsertest.FakeRenderer) *Scraper {
	return New(fake,
		robots.NewEnforcer(false, "test-agent", zap.NewNop()),
		politeness.NewDelayer(0, 0),
		zap.NewNop())
}

func TestScrapeExtractsCards(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().
		StubHTML("adopt-a-dog/new-york", listingHTML).
		StubHTML("", "<html></html>")

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Pets, 2)

	rocky := result.Pets[0]
	require.Equal(t, "adoptapet", rocky.Source)
	require.Equal(t, "43045869", rocky.SourceID)
	require.Equal(t, "Rocky", rocky.Name)
	require.Equal(t, petdata.SpeciesDog, rocky.Species)
	require.NotNil(t, rocky.Breed)
	require.Equal(t, "Pit Bull Terrier", *rocky.Breed)
	require.NotNil(t, rocky.Age)
	require.Equal(t, petdata.AgeYoung, *rocky.Age)
	require.Equal(t, petdata.GenderMale, rocky.Gender)
	require.NotNil(t, rocky.LocationCity)
	require.Equal(t, "New York", *rocky.LocationCity)
	require.NotNil(t, rocky.LocationState)
	require.Equal(t, "NY", *rocky.LocationState)
	require.Equal(t, []string{"https://cdn.example.org/rocky.jpg"}, rocky.Photos)
	require.False(t, rocky.FallbackID)

	luna := result.Pets[1]
	require.Equal(t, "43045870", luna.SourceID)
	require.NotNil(t, luna.Age)
	require.Equal(t, petdata.AgeBaby, *luna.Age)
	require.Equal(t, petdata.GenderFemale, luna.Gender)
	require.Equal(t, []string{"https://cdn.example.org/luna.jpg"}, luna.Photos)
}

func TestScrapeDeduplicatesAcrossLocations(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().StubHTML("adopt-a-dog", listingHTML).
		StubHTML("adopt-a-cat", "<html></html>")

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	// same two pets served for all five dog locations; kept once
	require.Len(t, result.Pets, 2)
}

func TestScrapeRecordsLocationFailure(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().
		StubErr("adopt-a-dog/chicago", errors.New("browser gone")).
		StubHTML("", "<html></html>")

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	require.Equal(t, petdata.ErrorTypeFetch, result.Errors[0].Type)
	require.Contains(t, result.Errors[0].URL, "chicago")
}

func TestParseListing(t *testing.T) {
	t.Parallel()

	detailHTML := `<html><body>
<h1>Rocky</h1>
<div class="breed-info">Pit Bull Mix</div>
<div class="description">Rocky is a young male dog, house trained and good with kids.</div>
<div class="shelter-name">Brooklyn Animal Care</div>
<div class="location-info">Brooklyn, NY</div>
<div class="gallery"><img src="https://cdn.example.org/rocky-1.jpg"/></div>
</body></html>`

	fake := browsertest.NewFake().StubHTML("/pet/43045869", detailHTML)
	pet, err := newScraper(fake).ParseListing(context.Background(), "https://www.adoptapet.com/pet/43045869-new-york-dog")
	require.NoError(t, err)
	require.NotNil(t, pet)
	require.Equal(t, "43045869", pet.SourceID)
	require.Equal(t, "Rocky", pet.Name)
	require.Equal(t, petdata.SpeciesDog, pet.Species)
	require.NotNil(t, pet.GoodWithKids)
	require.True(t, *pet.GoodWithKids)
	require.NotNil(t, pet.HouseTrained)
	require.True(t, *pet.HouseTrained)
	require.Nil(t, pet.GoodWithCats)
	require.Equal(t, []string{"https://cdn.example.org/rocky-1.jpg"}, pet.Photos)
}

func TestParseListingEmptyPage(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().StubHTML("", "<html><body></body></html>")
	pet, err := newScraper(fake).ParseListing(context.Background(), "https://www.adoptapet.com/pet/999")
	require.NoError(t, err)
	require.Nil(t, pet)
}
