package rescuegroups

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/petdata"
)

const dogsPage = `{
  "data": [
    {
      "id": "9001",
      "attributes": {
        "name": "Rex",
        "ageGroup": "Adult",
        "sizeGroup": "Large",
        "sex": "Male",
        "url": "https://example.org/animals/9001",
        "descriptionText": "Loyal &amp; gentle",
        "locationCitystate": "Austin, TX",
        "locationPostalcode": "78701",
        "adoptionFeeString": "$150",
        "isKidsOk": true,
        "isDogsOk": false
      },
      "relationships": {
        "breeds": {"data": [{"id": "b1"}, {"id": "b2"}]},
        "pictures": {"data": [{"id": "p1"}]},
        "orgs": {"data": {"id": "o1"}}
      }
    },
    {
      "id": "9002",
      "attributes": {"name": ""}
    }
  ],
  "included": [
    {"type": "breeds", "id": "b1", "attributes": {"name": "labrador retriever mix"}},
    {"type": "breeds", "id": "b2", "attributes": {"name": "Collie"}},
    {"type": "pictures", "id": "p1", "attributes": {"large": {"url": "https://cdn.example.org/rex.jpg"}}},
    {"type": "orgs", "id": "o1", "attributes": {"name": "Austin Pets Alive", "email": "adopt@apa.org", "phone": "512-555-0100"}}
  ],
  "meta": {"pages": 1}
}`

func newFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()
	return New(Config{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		MaxPages:  3,
		RetryWait: 10 * time.Millisecond,
	}, zap.NewNop())
}

func TestScrapeMapsAnimals(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/vnd.api+json")
		switch r.URL.Path {
		case "/public/animals/search/available/dogs/":
			fmt.Fprint(w, dogsPage)
		case "/public/animals/search/available/cats/":
			fmt.Fprint(w, `{"data": [], "meta": {"pages": 0}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	require.NoError(t, f.Initialize(context.Background()))

	result, err := f.Scrape(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Pets, 1)

	pet := result.Pets[0]
	require.Equal(t, "rescuegroups", pet.Source)
	require.Equal(t, "9001", pet.SourceID)
	require.Equal(t, "Rex", pet.Name)
	require.Equal(t, petdata.SpeciesDog, pet.Species)
	require.NotNil(t, pet.Breed)
	require.Equal(t, "Labrador Retriever", *pet.Breed)
	require.NotNil(t, pet.BreedSecondary)
	require.Equal(t, "Collie", *pet.BreedSecondary)
	require.NotNil(t, pet.Age)
	require.Equal(t, petdata.AgeAdult, *pet.Age)
	require.NotNil(t, pet.Size)
	require.Equal(t, petdata.SizeLarge, *pet.Size)
	require.Equal(t, petdata.GenderMale, pet.Gender)
	require.NotNil(t, pet.Description)
	require.Equal(t, "Loyal & gentle", *pet.Description)
	require.Equal(t, []string{"https://cdn.example.org/rex.jpg"}, pet.Photos)
	require.NotNil(t, pet.LocationCity)
	require.Equal(t, "Austin", *pet.LocationCity)
	require.NotNil(t, pet.LocationState)
	require.Equal(t, "TX", *pet.LocationState)
	require.NotNil(t, pet.ShelterName)
	require.Equal(t, "Austin Pets Alive", *pet.ShelterName)
	require.NotNil(t, pet.AdoptionFee)
	require.InDelta(t, 150.0, *pet.AdoptionFee, 1e-9)

	// tri-state: stated values survive, unstated stay nil
	require.NotNil(t, pet.GoodWithKids)
	require.True(t, *pet.GoodWithKids)
	require.NotNil(t, pet.GoodWithDogs)
	require.False(t, *pet.GoodWithDogs)
	require.Nil(t, pet.GoodWithCats)
	require.Nil(t, pet.HouseTrained)

	require.Equal(t, petdata.StatusActive, pet.Status)
}

func TestScrapeRetriesOn429(t *testing.T) {
	t.Parallel()

	var dogCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/public/animals/search/available/dogs/" {
			if dogCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, dogsPage)
			return
		}
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	result, err := f.Scrape(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Pets, 1)
	require.Equal(t, int64(2), dogCalls.Load())
}

func TestScrapeGivesUpAfterRetryBudget(t *testing.T) {
	t.Parallel()

	var dogCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/public/animals/search/available/dogs/" {
			dogCalls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	f := New(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxPages:   3,
		RetryWait:  time.Millisecond,
		MaxRetries: 2,
	}, zap.NewNop())

	result, err := f.Scrape(context.Background())
	require.NoError(t, err)
	// initial attempt plus two retries, then the view is abandoned
	require.Equal(t, int64(3), dogCalls.Load())
	require.Len(t, result.Errors, 1)
	require.Equal(t, petdata.ErrorTypeRateLimit, result.Errors[0].Type)
	require.Empty(t, result.Pets)
}

func TestScrapeRecordsViewFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/public/animals/search/available/dogs/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	result, err := f.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	require.Equal(t, petdata.ErrorTypeFetch, result.Errors[0].Type)
	require.Empty(t, result.Pets)
}

func TestInitializeRequiresKey(t *testing.T) {
	t.Parallel()

	f := New(Config{}, zap.NewNop())
	require.ErrorIs(t, f.Initialize(context.Background()), ErrMissingAPIKey)
}
