package petfinder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/browser"
	"github.com/palbase/palbase-sync/internal/browser/browsertest"
	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/politeness"
	"github.com/palbase/palbase-sync/internal/robots"
)

const animalsPayload = `{
  "animals": [
    {
      "id": 75310123,
      "name": "Buddy",
      "url": "https://www.petfinder.com/dog/buddy-75310123/",
      "age": "Young",
      "gender": "Male",
      "size": "Medium",
      "breeds": {"primary": "Beagle", "secondary": "Terrier"},
      "description": "A very good boy",
      "photos": [{"large": "https://cdn.example.org/buddy-lg.jpg", "small": "https://cdn.example.org/buddy-sm.jpg"}],
      "contact": {"email": "adopt@shelter.org", "address": {"city": "Brooklyn", "state": "NY", "postcode": "11201"}},
      "environment": {"children": true, "cats": false},
      "attributes": {"house_trained": true}
    },
    {"id": 0, "name": "ghost"}
  ]
}`

const fallbackHTML = `<html><body>
<article>
  <a href="/pet/daisy-88220011/"><span class="font-bold">Daisy</span></a>
  Young Female
  <img src="https://dbw3zep4prcju.cloudfront.net/daisy.jpg"/>
</article>
</body></html>`

func newScraper(fake *browsertest.FakeRenderer) *Scraper {
	return New(
		Config{MaxPages: 2},
		fake,
		robots.NewEnforcer(false, "test-agent", zap.NewNop()),
		politeness.NewDelayer(0, 0),
		zap.NewNop(),
	)
}

func TestScrapeFromCapturedAPI(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().
		Stub("dogs-for-adoption/us/?page=1", browser.Page{
			HTML:     "<html></html>",
			Captures: []browser.Capture{{URL: "https://www.petfinder.com/v2/animals?page=1", Body: []byte(animalsPayload)}},
		}).
		StubHTML("dogs-for-adoption/us/?page=2", "<html></html>").
		StubHTML("cats-for-adoption", "<html></html>")

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Pets, 1)

	pet := result.Pets[0]
	require.Equal(t, "petfinder", pet.Source)
	require.Equal(t, "75310123", pet.SourceID)
	require.Equal(t, "Buddy", pet.Name)
	require.Equal(t, petdata.SpeciesDog, pet.Species)
	require.NotNil(t, pet.Breed)
	require.Equal(t, "Beagle", *pet.Breed)
	require.NotNil(t, pet.Age)
	require.Equal(t, petdata.AgeYoung, *pet.Age)
	require.Equal(t, petdata.GenderMale, pet.Gender)
	require.Equal(t, []string{"https://cdn.example.org/buddy-lg.jpg"}, pet.Photos)
	require.NotNil(t, pet.LocationState)
	require.Equal(t, "NY", *pet.LocationState)

	require.NotNil(t, pet.GoodWithKids)
	require.True(t, *pet.GoodWithKids)
	require.NotNil(t, pet.GoodWithCats)
	require.False(t, *pet.GoodWithCats)
	require.Nil(t, pet.GoodWithDogs)
	require.NotNil(t, pet.HouseTrained)
	require.True(t, *pet.HouseTrained)
	require.Nil(t, pet.SpayedNeutered)

	require.False(t, pet.FallbackID)
}

func TestScrapeDOMFallback(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().
		StubHTML("dogs-for-adoption/us/?page=1", fallbackHTML).
		StubHTML("dogs-for-adoption/us/?page=2", "<html></html>").
		StubHTML("cats-for-adoption", "<html></html>")

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pets, 1)

	pet := result.Pets[0]
	require.Equal(t, "88220011", pet.SourceID)
	require.Equal(t, "Daisy", pet.Name)
	require.NotNil(t, pet.Age)
	require.Equal(t, petdata.AgeYoung, *pet.Age)
	require.Equal(t, petdata.GenderFemale, pet.Gender)
	require.Equal(t, []string{"https://dbw3zep4prcju.cloudfront.net/daisy.jpg"}, pet.Photos)
	require.False(t, pet.FallbackID)
}

func TestScrapeRecordsPageFailure(t *testing.T) {
	t.Parallel()

	fake := browsertest.NewFake().
		StubErr("dogs-for-adoption", errors.New("tab crashed")).
		StubHTML("cats-for-adoption", "<html></html>")

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	for _, se := range result.Errors {
		require.Equal(t, petdata.ErrorTypeFetch, se.Type)
	}
	require.Empty(t, result.Pets)
}

func TestScrapeDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	page := browser.Page{
		HTML:     "<html></html>",
		Captures: []browser.Capture{{URL: "https://www.petfinder.com/v2/animals", Body: []byte(animalsPayload)}},
	}
	fake := browsertest.NewFake().
		Stub("dogs-for-adoption/us/?page=1", page).
		Stub("dogs-for-adoption/us/?page=2", page).
		StubHTML("cats-for-adoption", "<html></html>")

	result, err := newScraper(fake).Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pets, 1)
}

func TestScrapeHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := browsertest.NewFake().StubHTML("", "<html></html>")
	s := New(Config{}, fake, robots.NewEnforcer(false, "a", zap.NewNop()),
		politeness.NewDelayer(time.Millisecond, time.Millisecond), zap.NewNop())

	_, err := s.Scrape(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
