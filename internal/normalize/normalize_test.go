package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palbase/palbase-sync/internal/petdata"
)

func TestAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want *petdata.AgeClass
	}{
		{"Puppy", petdata.Ptr(petdata.AgeBaby)},
		{"kitten", petdata.Ptr(petdata.AgeBaby)},
		{"Young", petdata.Ptr(petdata.AgeYoung)},
		{"Adolescent", petdata.Ptr(petdata.AgeYoung)},
		{"Adult", petdata.Ptr(petdata.AgeAdult)},
		{"Senior", petdata.Ptr(petdata.AgeSenior)},
		{"elderly", petdata.Ptr(petdata.AgeSenior)},

		// year buckets: <1 baby, <3 young, <8 adult, else senior
		{"0 years", petdata.Ptr(petdata.AgeBaby)},
		{"2 years", petdata.Ptr(petdata.AgeYoung)},
		{"3 years", petdata.Ptr(petdata.AgeAdult)},
		{"7 yrs", petdata.Ptr(petdata.AgeAdult)},
		{"8 years", petdata.Ptr(petdata.AgeSenior)},
		{"12 years old", petdata.Ptr(petdata.AgeSenior)},

		// month buckets: <6 baby, <24 young, else adult
		{"4 months", petdata.Ptr(petdata.AgeBaby)},
		{"5 months", petdata.Ptr(petdata.AgeBaby)},
		{"6 months", petdata.Ptr(petdata.AgeYoung)},
		{"11 months", petdata.Ptr(petdata.AgeYoung)},
		{"23 months", petdata.Ptr(petdata.AgeYoung)},
		{"30 months", petdata.Ptr(petdata.AgeAdult)},

		{"", nil},
		{"   ", nil},
		{"unknown vintage", nil},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got := Age(tc.in)
			if tc.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tc.want, *got)
		})
	}
}

// "11 months" contains the substring "old"-free text but its keyword
// scan must not fire; the numeric month path decides. Meanwhile
// "2 years old" contains "old" and classifies as senior by keyword, so
// the keyword-over-number precedence is load bearing.
func TestAgeKeywordPrecedence(t *testing.T) {
	t.Parallel()

	got := Age("2 years old")
	require.NotNil(t, got)
	require.Equal(t, petdata.AgeSenior, *got)

	got = Age("young adult, 9 years")
	require.NotNil(t, got)
	require.Equal(t, petdata.AgeYoung, *got)
}

func TestSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want *petdata.SizeClass
	}{
		{"Small", petdata.Ptr(petdata.SizeSmall)},
		{"tiny", petdata.Ptr(petdata.SizeSmall)},
		{"Medium", petdata.Ptr(petdata.SizeMedium)},
		{"med", petdata.Ptr(petdata.SizeMedium)},
		{"Large", petdata.Ptr(petdata.SizeLarge)},
		{"Extra Large", petdata.Ptr(petdata.SizeXLarge)},
		{"XL", petdata.Ptr(petdata.SizeXLarge)},
		{"giant", petdata.Ptr(petdata.SizeXLarge)},

		// weight buckets: <20 small, <50 medium, <90 large, else xlarge
		{"19 lbs", petdata.Ptr(petdata.SizeSmall)},
		{"20 lbs", petdata.Ptr(petdata.SizeMedium)},
		{"49 pounds", petdata.Ptr(petdata.SizeMedium)},
		{"50 lbs", petdata.Ptr(petdata.SizeLarge)},
		{"89 lb", petdata.Ptr(petdata.SizeLarge)},
		{"90 lbs", petdata.Ptr(petdata.SizeXLarge)},
		{"120 pounds", petdata.Ptr(petdata.SizeXLarge)},

		{"", nil},
		{"chonky", nil},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got := Size(tc.in)
			if tc.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tc.want, *got)
		})
	}
}

func TestGender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want petdata.Gender
	}{
		{"Male", petdata.GenderMale},
		{"M", petdata.GenderMale},
		{"boy", petdata.GenderMale},
		{"he is sweet", petdata.GenderMale},
		{"Female", petdata.GenderFemale},
		{"F", petdata.GenderFemale},
		{"girl", petdata.GenderFemale},
		{"she loves walks", petdata.GenderFemale},
		{"", petdata.GenderUnknown},
		{"spayed", petdata.GenderUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Gender(tc.in))
		})
	}
}

func TestSpecies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want petdata.Species
	}{
		{"Dog", petdata.SpeciesDog},
		{"canine", petdata.SpeciesDog},
		{"Cat", petdata.SpeciesCat},
		{"Kitty", petdata.SpeciesCat},
		{"Rabbit", petdata.SpeciesRabbit},
		{"bunny", petdata.SpeciesRabbit},
		{"Parakeet", petdata.SpeciesBird},
		{"Guinea Pig", petdata.SpeciesSmallAnimal},
		{"ferret", petdata.SpeciesSmallAnimal},
		{"Pony", petdata.SpeciesHorse},
		{"Bearded Dragon lizard", petdata.SpeciesReptile},
		{"goldfish", petdata.SpeciesFish},
		{"", petdata.SpeciesOther},
		{"alpaca", petdata.SpeciesOther},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Species(tc.in))
		})
	}
}

func TestBoolean(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"yes", "YES", "true", "1", "y", " Y "} {
		got := Boolean(in)
		require.NotNil(t, got, "input %q", in)
		require.True(t, *got, "input %q", in)
	}
	for _, in := range []string{"no", "False", "0", "n"} {
		got := Boolean(in)
		require.NotNil(t, got, "input %q", in)
		require.False(t, *got, "input %q", in)
	}
	// absence of evidence stays nil
	for _, in := range []string{"", "maybe", "ask staff", "2"} {
		require.Nil(t, Boolean(in), "input %q", in)
	}
}

func TestBreed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"labrador retriever", "Labrador Retriever"},
		{"Labrador Retriever Mix", "Labrador Retriever"},
		{"mixed Beagle", "Beagle"},
		{"GERMAN SHEPHERD", "German Shepherd"},
	}
	for _, tc := range tests {
		got := Breed(tc.in)
		require.NotNil(t, got, "input %q", tc.in)
		require.Equal(t, tc.want, *got)
	}

	require.Nil(t, Breed(""))
	require.Nil(t, Breed("Mix"))
	require.Nil(t, Breed("  mixed  "))
}

func TestDescription(t *testing.T) {
	t.Parallel()

	got := Description("  Sweet   boy\n\nloves\tfetch  ")
	require.NotNil(t, got)
	require.Equal(t, "Sweet boy loves fetch", *got)

	got = Description("Tom &amp; Jerry &lt;3&nbsp;&quot;best friends&quot;")
	require.NotNil(t, got)
	require.Equal(t, `Tom & Jerry <3 "best friends"`, *got)

	require.Nil(t, Description("   "))
}

func TestAdoptionFee(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"$150", 150},
		{"$ 75.50", 75.50},
		{"Adoption fee: 200 dollars", 200},
	}
	for _, tc := range tests {
		got := AdoptionFee(tc.in)
		require.NotNil(t, got, "input %q", tc.in)
		require.InDelta(t, tc.want, *got, 1e-9)
	}

	require.Nil(t, AdoptionFee("free to good home"))
	require.Nil(t, AdoptionFee(""))
}

func TestState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"NY", "NY"},
		{"ny", "NY"},
		{"California", "CA"},
		{"new york", "NY"},
		{"District of Columbia", "DC"},
		{"Washington DC", "DC"},
	}
	for _, tc := range tests {
		got := State(tc.in)
		require.NotNil(t, got, "input %q", tc.in)
		require.Equal(t, tc.want, *got)
	}

	require.Nil(t, State(""))
	require.Nil(t, State("Ontario"))
}
