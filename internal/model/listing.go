package model

import (
	"fmt"
	"time"
)

// Kind identifies which community board a listing belongs to.
type Kind string

const (
	KindAdoption Kind = "adoption"
	KindBoard    Kind = "board"
	KindReview   Kind = "review"
	KindDiary    Kind = "diary"
)

// Kinds lists every listing kind in display order.
var Kinds = []Kind{KindAdoption, KindBoard, KindReview, KindDiary}

// kindPaths maps kinds to the plural URL segment used by the HTTP API.
var kindPaths = map[Kind]string{
	KindAdoption: "adoptions",
	KindBoard:    "board",
	KindReview:   "reviews",
	KindDiary:    "diaries",
}

// Path returns the URL segment for k, e.g. "adoptions".
func (k Kind) Path() string {
	return kindPaths[k]
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindPaths[k]
	return ok
}

// ParseKind accepts either the kind name ("review") or its URL segment
// ("reviews").
func ParseKind(s string) (Kind, error) {
	for k, p := range kindPaths {
		if s == string(k) || s == p {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown listing kind %q", s)
}

// Adoption statuses.
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusAdopted   = "adopted"
)

// Accepted values of the adoption enums. Client and server validate against
// the same lists.
var (
	PetGenders       = []string{"male", "female", "unknown"}
	PetSizes         = []string{"small", "medium", "large"}
	AdoptionStatuses = []string{StatusAvailable, StatusReserved, StatusAdopted}
)

// DefaultImage is shown when a listing has no image of its own.
const DefaultImage = "/static/default-pet.png"

// Pet holds the adoption-specific profile of the animal being rehomed.
// Age is in whole years.
type Pet struct {
	Name    string `json:"name"`
	Species string `json:"species"`
	Gender  string `json:"gender"`
	Size    string `json:"size"`
	Age     int    `json:"age"`
}

// Listing is the one canonical shape shared by adoption posts, board posts,
// product reviews and pet diaries. Fields that do not apply to a kind keep
// their zero value.
//
// OwnerID and CreatedAt are set once by the server and never change.
type Listing struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	OwnerID   int64     `json:"ownerId"`
	OwnerName string    `json:"ownerName"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"` // board category, review category, diary mood
	Image     string    `json:"image"`
	Pinned    bool      `json:"pinned"`
	Status    string    `json:"status,omitempty"`
	Rating    int       `json:"rating,omitempty"`
	Pet       *Pet      `json:"pet,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ImageOrDefault returns the listing's image URL, or DefaultImage when unset.
func (l *Listing) ImageOrDefault() string {
	if l.Image == "" {
		return DefaultImage
	}
	return l.Image
}

// ListingInput carries the mutable fields of a listing for create and update.
type ListingInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	Image    string `json:"image"`
	Pinned   bool   `json:"pinned"`
	Rating   int    `json:"rating"`
	Pet      *Pet   `json:"pet,omitempty"`
}
