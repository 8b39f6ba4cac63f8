package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/model"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

type fakeFetcher struct {
	items []model.Listing
	err   error
	calls int
	block chan struct{} // when set, List waits for it to close
}

func (f *fakeFetcher) List(ctx context.Context, kind model.Kind) ([]model.Listing, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pet(id int64, name, species, gender, size string, age int) model.Listing {
	return model.Listing{
		ID:     id,
		Kind:   model.KindAdoption,
		Title:  name,
		Status: model.StatusAvailable,
		Pet:    &model.Pet{Name: name, Species: species, Gender: gender, Size: size, Age: age},
	}
}

func adoptions() []model.Listing {
	return []model.Listing{
		pet(1, "Bori", "개", "여", "small", 1),
		pet(2, "Nabi", "고양이", "여", "small", 3),
		pet(3, "Dubu", "개", "남", "large", 9),
		pet(4, "Kong", "개", "여", "medium", 5),
		pet(5, "Mimi", "고양이", "남", "small", 8),
	}
}

func ids(ls []model.Listing) []int64 {
	out := make([]int64, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func loaded(t *testing.T, kind model.Kind, items []model.Listing, opts ...Option) *View {
	t.Helper()
	v := New(kind, &fakeFetcher{items: items}, testLogger(), opts...)
	require.NoError(t, v.Load(t.Context()))
	return v
}

func TestLoadStates(t *testing.T) {
	f := &fakeFetcher{items: adoptions()}
	v := New(model.KindAdoption, f, testLogger())

	state, _ := v.State()
	assert.Equal(t, Idle, state)

	require.NoError(t, v.Load(t.Context()))
	state, msg := v.State()
	assert.Equal(t, Ready, state)
	assert.Empty(t, msg)
	assert.Len(t, v.Visible(), 5)
}

func TestLoadFailureAndRetry(t *testing.T) {
	f := &fakeFetcher{err: apperror.Transport(errors.New("dial tcp: connection refused"))}
	v := New(model.KindBoard, f, testLogger())

	err := v.Load(t.Context())
	require.Error(t, err)
	state, msg := v.State()
	assert.Equal(t, Failed, state)
	assert.Equal(t, "server connection failed", msg)
	assert.Empty(t, v.Visible())

	f.err = nil
	f.items = []model.Listing{{ID: 1, Kind: model.KindBoard, Title: "hello"}}
	require.NoError(t, v.Retry(t.Context()))
	state, msg = v.State()
	assert.Equal(t, Ready, state)
	assert.Empty(t, msg)
	assert.Len(t, v.Visible(), 1)
	assert.Equal(t, 2, f.calls)
}

func TestFailedReloadDropsStaleItems(t *testing.T) {
	f := &fakeFetcher{items: boardPosts(12, 3)}
	v := New(model.KindBoard, f, testLogger())
	require.NoError(t, v.Load(t.Context()))
	require.NoError(t, v.SetFilter(Category, "free"))
	require.NotEmpty(t, v.Visible())

	f.err = apperror.Transport(errors.New("connection reset"))
	require.Error(t, v.Load(t.Context()))

	state, _ := v.State()
	assert.Equal(t, Failed, state)
	assert.Empty(t, v.Visible())
	assert.Empty(t, v.Pinned())
	assert.Empty(t, v.Page())
	assert.Equal(t, 1, v.PageCount())
	assert.Equal(t, "free", v.Filters()[Category], "filters kept for the retry")
}

func TestLoadFailureServerMessage(t *testing.T) {
	f := &fakeFetcher{err: apperror.Unauthorized("log in to read your diary")}
	v := New(model.KindDiary, f, testLogger())

	require.Error(t, v.Load(t.Context()))
	_, msg := v.State()
	assert.Equal(t, "log in to read your diary", msg)
}

func TestLoadBusy(t *testing.T) {
	f := &fakeFetcher{items: adoptions(), block: make(chan struct{})}
	v := New(model.KindAdoption, f, testLogger())

	done := make(chan error, 1)
	go func() { done <- v.Load(context.Background()) }()

	require.Eventually(t, func() bool {
		s, _ := v.State()
		return s == Loading
	}, timeout, tick)

	assert.ErrorIs(t, v.Load(t.Context()), ErrBusy)

	close(f.block)
	require.NoError(t, <-done)
	s, _ := v.State()
	assert.Equal(t, Ready, s)
}

func TestFilterComposition(t *testing.T) {
	v := loaded(t, model.KindAdoption, adoptions())

	require.NoError(t, v.SetFilter(Species, "개"))
	assert.Equal(t, []int64{1, 3, 4}, ids(v.Visible()))

	require.NoError(t, v.SetFilter(Gender, "여"))
	assert.Equal(t, []int64{1, 4}, ids(v.Visible()))
	for _, l := range v.Visible() {
		assert.Equal(t, "개", l.Pet.Species)
		assert.Equal(t, "여", l.Pet.Gender)
	}
}

func TestFilterIdempotent(t *testing.T) {
	v := loaded(t, model.KindAdoption, adoptions())

	require.NoError(t, v.SetFilter(Size, "small"))
	once := v.Visible()
	require.NoError(t, v.SetFilter(Size, "small"))
	assert.Equal(t, once, v.Visible())
}

func TestAgeBuckets(t *testing.T) {
	assert.Equal(t, AgeYoung, AgeBucket(0))
	assert.Equal(t, AgeYoung, AgeBucket(1))
	assert.Equal(t, AgeAdult, AgeBucket(2))
	assert.Equal(t, AgeAdult, AgeBucket(7))
	assert.Equal(t, AgeSenior, AgeBucket(8))

	v := loaded(t, model.KindAdoption, adoptions())
	require.NoError(t, v.SetFilter(Age, AgeSenior))
	assert.Equal(t, []int64{3, 5}, ids(v.Visible()))
	require.NoError(t, v.SetFilter(Age, AgeYoung))
	assert.Equal(t, []int64{1}, ids(v.Visible()))
}

func TestSearchCaseInsensitive(t *testing.T) {
	v := loaded(t, model.KindAdoption, adoptions())

	v.SetSearch("  BORI ")
	assert.Equal(t, []int64{1}, ids(v.Visible()))
	assert.Equal(t, "BORI", v.Search())

	v.SetSearch("고양")
	assert.Equal(t, []int64{2, 5}, ids(v.Visible()))
}

func TestResetRestoresCollection(t *testing.T) {
	v := loaded(t, model.KindAdoption, adoptions())
	require.NoError(t, v.SetFilter(Species, "고양이"))
	v.SetSearch("mimi")
	require.Len(t, v.Visible(), 1)

	v.Reset()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(v.Visible()))
	assert.Empty(t, v.Search())
	for _, val := range v.Filters() {
		assert.Equal(t, All, val)
	}
}

func TestEmptyValueMeansAll(t *testing.T) {
	v := loaded(t, model.KindAdoption, adoptions())
	require.NoError(t, v.SetFilter(Species, "개"))
	require.NoError(t, v.SetFilter(Species, ""))
	assert.Len(t, v.Visible(), 5)
}

func TestUnknownDimension(t *testing.T) {
	v := loaded(t, model.KindBoard, nil)
	assert.Error(t, v.SetFilter(Species, "개"))
	assert.Error(t, v.SetFilter("colour", "red"))
}

func TestFiltersSurviveReload(t *testing.T) {
	f := &fakeFetcher{items: adoptions()}
	v := New(model.KindAdoption, f, testLogger())
	require.NoError(t, v.SetFilter(Species, "개"))
	require.NoError(t, v.Load(t.Context()))
	assert.Equal(t, []int64{1, 3, 4}, ids(v.Visible()))
}

func reviews() []model.Listing {
	return []model.Listing{
		{ID: 1, Kind: model.KindReview, Title: "Crunchy kibble", Category: "food", Rating: 5},
		{ID: 2, Kind: model.KindReview, Title: "Rope toy", Category: "toy", Rating: 3},
		{ID: 3, Kind: model.KindReview, Title: "Salmon treats", Category: "food", Rating: 3},
	}
}

func TestReviewFiltersAreExclusive(t *testing.T) {
	v := loaded(t, model.KindReview, reviews())

	require.NoError(t, v.SetFilter(Rating, "3"))
	v.SetSearch("salmon")
	assert.Equal(t, All, v.Filters()[Rating], "search resets the rating filter")
	assert.Equal(t, []int64{3}, ids(v.Visible()))

	require.NoError(t, v.SetFilter(Rating, "3"))
	require.NoError(t, v.SetFilter(Category, "food"))

	filters := v.Filters()
	assert.Equal(t, "food", filters[Category])
	assert.Equal(t, All, filters[Rating])
	assert.Empty(t, v.Search())
	assert.Equal(t, []int64{1, 3}, ids(v.Visible()))
}

func TestAdoptionFiltersAreIndependent(t *testing.T) {
	v := loaded(t, model.KindAdoption, adoptions())
	v.SetSearch("o")
	require.NoError(t, v.SetFilter(Species, "개"))
	require.NoError(t, v.SetFilter(Size, "small"))

	filters := v.Filters()
	assert.Equal(t, "개", filters[Species])
	assert.Equal(t, "small", filters[Size])
	assert.Equal(t, "o", v.Search())
	assert.Equal(t, []int64{1}, ids(v.Visible()))
}

func TestPolicyOverride(t *testing.T) {
	v := loaded(t, model.KindReview, reviews(), WithPolicy(Independent))
	require.NoError(t, v.SetFilter(Rating, "3"))
	require.NoError(t, v.SetFilter(Category, "food"))
	assert.Equal(t, []int64{3}, ids(v.Visible()))
}

func boardPosts(n int, pinned ...int64) []model.Listing {
	isPinned := make(map[int64]bool)
	for _, id := range pinned {
		isPinned[id] = true
	}
	out := make([]model.Listing, 0, n)
	for i := 1; i <= n; i++ {
		id := int64(i)
		cat := "free"
		if i%2 == 0 {
			cat = "lost"
		}
		out = append(out, model.Listing{
			ID:       id,
			Kind:     model.KindBoard,
			Title:    fmt.Sprintf("post %d", i),
			Category: cat,
			Pinned:   isPinned[id],
		})
	}
	return out
}

func TestBoardPagination(t *testing.T) {
	v := loaded(t, model.KindBoard, boardPosts(25, 4, 17))

	assert.Equal(t, []int64{4, 17}, ids(v.Pinned()))
	assert.Equal(t, 3, v.PageCount())
	assert.Equal(t, []int64{1, 2, 3, 5, 6, 7, 8, 9, 10, 11}, ids(v.Page()))

	v.SetPage(3)
	assert.Equal(t, 3, v.CurrentPage())
	assert.Equal(t, []int64{23, 24, 25}, ids(v.Page()))
	assert.Equal(t, []int64{4, 17}, ids(v.Pinned()), "pinned posts lead every page")

	v.SetPage(99)
	assert.Equal(t, 3, v.CurrentPage())
	v.SetPage(0)
	assert.Equal(t, 1, v.CurrentPage())
}

func TestPageResetsOnFilterChange(t *testing.T) {
	v := loaded(t, model.KindBoard, boardPosts(25))
	v.SetPage(2)

	require.NoError(t, v.SetFilter(Category, "lost"))
	assert.Equal(t, 1, v.CurrentPage())
	assert.Equal(t, 2, v.PageCount())

	v.SetPage(2)
	v.SetSearch("post 2")
	assert.Equal(t, 1, v.CurrentPage())
}

func TestPageSizeOption(t *testing.T) {
	v := loaded(t, model.KindBoard, boardPosts(5), WithPageSize(2))
	assert.Equal(t, 3, v.PageCount())

	empty := loaded(t, model.KindBoard, nil)
	assert.Equal(t, 1, empty.PageCount())
	assert.Empty(t, empty.Page())
}

func TestDimensions(t *testing.T) {
	assert.Equal(t, []Dimension{Species, Gender, Size, Age, Status}, Dimensions(model.KindAdoption))
	assert.Equal(t, []Dimension{Category, Rating}, Dimensions(model.KindReview))
	assert.Equal(t, Exclusive, DefaultPolicy(model.KindReview))
	assert.Equal(t, Independent, DefaultPolicy(model.KindBoard))
}
