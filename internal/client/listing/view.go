// Package listing is the view model behind the adoption, board, review and
// diary lists.
//
// A View fetches its whole collection once and then filters, searches and
// paginates it in memory. Filter changes never touch the network.
//
//	idle → loading → ready | error
//	error → loading         (Retry)
//	ready → ready           (SetFilter, SetSearch, Reset, SetPage)
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/model"
)

// DefaultPageSize is the number of regular posts per board page.
const DefaultPageSize = 10

// ErrBusy is returned by Load while a load is already in flight.
var ErrBusy = errors.New("listing: load already in progress")

// State is the view's load state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return "idle"
}

// Fetcher loads a collection. *api.Client satisfies it.
type Fetcher interface {
	List(ctx context.Context, kind model.Kind) ([]model.Listing, error)
}

// View is a filterable list of one listing kind.
type View struct {
	kind     model.Kind
	fetcher  Fetcher
	logger   *slog.Logger
	policy   ResetPolicy
	pageSize int

	mu      sync.Mutex
	state   State
	message string
	items   []model.Listing
	visible []model.Listing
	filters map[Dimension]string
	search  string
	page    int
}

// Option customizes a View.
type Option func(*View)

// WithPolicy overrides DefaultPolicy(kind).
func WithPolicy(p ResetPolicy) Option {
	return func(v *View) { v.policy = p }
}

// WithPageSize overrides DefaultPageSize. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.pageSize = n
		}
	}
}

// New returns an idle View with every filter at All.
func New(kind model.Kind, fetcher Fetcher, logger *slog.Logger, opts ...Option) *View {
	v := &View{
		kind:     kind,
		fetcher:  fetcher,
		logger:   logger,
		policy:   DefaultPolicy(kind),
		pageSize: DefaultPageSize,
		page:     1,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.filters = v.allFilters()
	return v
}

func (v *View) allFilters() map[Dimension]string {
	f := make(map[Dimension]string)
	for _, dim := range kindDimensions[v.kind] {
		f[dim] = All
	}
	return f
}

// Load fetches the collection. Filters survive a reload; a failed load drops
// the previous collection so nothing stale is shown in the error state.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.state == Loading {
		v.mu.Unlock()
		return ErrBusy
	}
	v.state, v.message = Loading, ""
	v.mu.Unlock()

	items, err := v.fetcher.List(ctx, v.kind)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.state = Failed
		v.message = failureMessage(err)
		v.items = nil
		v.recompute()
		v.logger.Warn("loading listings failed",
			slog.String("kind", string(v.kind)),
			slog.String("error", err.Error()),
		)
		return err
	}
	v.items = items
	v.state = Ready
	v.recompute()
	return nil
}

// Retry repeats Load. It is the recovery action offered in the error state.
func (v *View) Retry(ctx context.Context) error {
	return v.Load(ctx)
}

func failureMessage(err error) string {
	if errors.Is(err, apperror.ErrTransport) {
		return apperror.ErrTransport.Error()
	}
	return apperror.Message(err, apperror.ErrTransport.Error())
}

// State returns the load state and, in the error state, its message.
func (v *View) State() (State, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.message
}

// SetFilter sets one dimension. An empty value means All.
func (v *View) SetFilter(dim Dimension, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.filters[dim]; !ok {
		return fmt.Errorf("listing: %s has no %q filter", v.kind, dim)
	}
	if value == "" {
		value = All
	}
	if v.policy == Exclusive {
		v.filters = v.allFilters()
		v.search = ""
	}
	v.filters[dim] = value
	v.recompute()
	return nil
}

// SetSearch sets the free-text search term.
func (v *View) SetSearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.policy == Exclusive {
		v.filters = v.allFilters()
	}
	v.search = strings.TrimSpace(term)
	v.recompute()
}

// Reset puts every dimension back to All and clears the search.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.filters = v.allFilters()
	v.search = ""
	v.recompute()
}

// Filters returns a copy of the filter state.
func (v *View) Filters() map[Dimension]string {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make(map[Dimension]string, len(v.filters))
	for k, val := range v.filters {
		out[k] = val
	}
	return out
}

// Search returns the current search term.
func (v *View) Search() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.search
}

// Visible returns every listing passing the filters, in backend order.
func (v *View) Visible() []model.Listing {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.visible)
}

// recompute rebuilds the visible subset and returns to page 1.
// v.mu must be held.
func (v *View) recompute() {
	search := strings.ToLower(v.search)
	v.visible = v.visible[:0]
	for i := range v.items {
		if matches(&v.items[i], v.filters, search) {
			v.visible = append(v.visible, v.items[i])
		}
	}
	v.page = 1
}
