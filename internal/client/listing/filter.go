package listing

import (
	"strconv"
	"strings"

	"github.com/sakif/petcommunity/internal/model"
)

// All is the filter value that matches everything.
const All = "all"

// Dimension names one filter facet.
type Dimension string

const (
	Species  Dimension = "species"
	Gender   Dimension = "gender"
	Size     Dimension = "size"
	Age      Dimension = "age"
	Status   Dimension = "status"
	Category Dimension = "category"
	Rating   Dimension = "rating"
)

// Age buckets, in whole years.
const (
	AgeYoung  = "young"  // under 2
	AgeAdult  = "adult"  // 2 through 7
	AgeSenior = "senior" // 8 and over
)

var kindDimensions = map[model.Kind][]Dimension{
	model.KindAdoption: {Species, Gender, Size, Age, Status},
	model.KindBoard:    {Category},
	model.KindReview:   {Category, Rating},
	model.KindDiary:    {Category},
}

// Dimensions returns the filter facets offered for kind.
func Dimensions(kind model.Kind) []Dimension {
	return append([]Dimension(nil), kindDimensions[kind]...)
}

// AgeBucket places an age in years into its bucket.
func AgeBucket(years int) string {
	switch {
	case years < 2:
		return AgeYoung
	case years < 8:
		return AgeAdult
	default:
		return AgeSenior
	}
}

// ResetPolicy decides what happens to the other filters when one changes.
type ResetPolicy int

const (
	// Independent leaves other dimensions and the search term alone.
	Independent ResetPolicy = iota
	// Exclusive resets every other dimension and the search term.
	Exclusive
)

// DefaultPolicy returns the reset policy each view uses: reviews are
// Exclusive, the rest Independent.
func DefaultPolicy(kind model.Kind) ResetPolicy {
	if kind == model.KindReview {
		return Exclusive
	}
	return Independent
}

// value returns the listing's value for dim as compared by equality.
func value(l *model.Listing, dim Dimension) string {
	switch dim {
	case Category:
		return l.Category
	case Rating:
		return strconv.Itoa(l.Rating)
	case Status:
		return l.Status
	}
	if l.Pet == nil {
		return ""
	}
	switch dim {
	case Species:
		return l.Pet.Species
	case Gender:
		return l.Pet.Gender
	case Size:
		return l.Pet.Size
	case Age:
		return AgeBucket(l.Pet.Age)
	}
	return ""
}

// searchFields returns the text a search term is matched against.
func searchFields(l *model.Listing) []string {
	fields := []string{l.Title, l.Body}
	switch l.Kind {
	case model.KindAdoption:
		if l.Pet != nil {
			fields = append(fields, l.Pet.Name, l.Pet.Species)
		}
	case model.KindBoard:
		fields = append(fields, l.OwnerName)
	case model.KindReview:
		fields = append(fields, l.Category)
	}
	return fields
}

// matches reports whether l passes every active filter and the search.
// search must already be lower-cased.
func matches(l *model.Listing, filters map[Dimension]string, search string) bool {
	for dim, want := range filters {
		if want != All && value(l, dim) != want {
			return false
		}
	}
	if search == "" {
		return true
	}
	for _, f := range searchFields(l) {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
