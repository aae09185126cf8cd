// Package petdata defines the canonical records shared across subsystems.
package petdata

import (
	"time"

	"github.com/google/uuid"
)

// Species is the canonical animal family.
type Species string

// Canonical species values.
const (
	SpeciesDog         Species = "dog"
	SpeciesCat         Species = "cat"
	SpeciesRabbit      Species = "rabbit"
	SpeciesBird        Species = "bird"
	SpeciesSmallAnimal Species = "small_animal"
	SpeciesHorse       Species = "horse"
	SpeciesReptile     Species = "reptile"
	SpeciesFish        Species = "fish"
	SpeciesOther       Species = "other"
)

// AgeClass buckets free-text ages into adoption-site vocabulary.
type AgeClass string

// Age classes, youngest to oldest.
const (
	AgeBaby   AgeClass = "baby"
	AgeYoung  AgeClass = "young"
	AgeAdult  AgeClass = "adult"
	AgeSenior AgeClass = "senior"
)

// SizeClass buckets free-text sizes or weights.
type SizeClass string

// Size classes, smallest to largest.
const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
	SizeXLarge SizeClass = "xlarge"
)

// Gender is male/female/unknown; never guessed from ambiguous text.
type Gender string

// Gender values.
const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Status is the lifecycle state of a pet listing.
type Status string

// Lifecycle states. Ingestion only ever sets active and removed;
// adopted is an operator action outside this service.
const (
	StatusActive  Status = "active"
	StatusAdopted Status = "adopted"
	StatusRemoved Status = "removed"
)

// Pet is the normalized listing record keyed by (Source, SourceID).
// Behavioral attributes are tri-state: nil means the upstream never said.
type Pet struct {
	Source    string `json:"source"`
	SourceID  string `json:"source_id"`
	SourceURL string `json:"source_url"`

	ShelterID *uuid.UUID `json:"shelter_id"`
	// ShelterSourceID joins the pet to a shelter upserted in the same
	// run; it is resolved to ShelterID by the coordinator and never
	// persisted itself.
	ShelterSourceID string `json:"-"`

	Name           string     `json:"name"`
	Species        Species    `json:"species"`
	Breed          *string    `json:"breed"`
	BreedSecondary *string    `json:"breed_secondary"`
	Age            *AgeClass  `json:"age"`
	Size           *SizeClass `json:"size"`
	Gender         Gender     `json:"gender"`
	Color          *string    `json:"color"`
	Description    *string    `json:"description"`

	Photos []string `json:"photos"`

	LocationCity  *string `json:"location_city"`
	LocationState *string `json:"location_state"`
	LocationZip   *string `json:"location_zip"`

	ShelterName  *string `json:"shelter_name"`
	ShelterEmail *string `json:"shelter_email"`
	ShelterPhone *string `json:"shelter_phone"`

	GoodWithKids   *bool `json:"good_with_kids"`
	GoodWithDogs   *bool `json:"good_with_dogs"`
	GoodWithCats   *bool `json:"good_with_cats"`
	HouseTrained   *bool `json:"house_trained"`
	SpayedNeutered *bool `json:"spayed_neutered"`
	SpecialNeeds   *bool `json:"special_needs"`

	AdoptionFee *float64 `json:"adoption_fee"`

	Status      Status    `json:"status"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	// FallbackID marks a synthesized source id (timestamp+random). Such
	// ids are not stable across runs; the same listing may reappear as
	// a new row. Counted and logged, but still ingested.
	FallbackID bool `json:"-"`
}

// Shelter is an adoption organization keyed by (Source, SourceID).
type Shelter struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id"`

	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Website *string `json:"website"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
}

// Ptr returns a pointer to v. Keeps record literals readable.
func Ptr[T any](v T) *T { return &v }

// StrPtr returns nil for the empty string, a pointer otherwise.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
