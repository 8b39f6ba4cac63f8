// Package detail is the view model for a single listing: fetching it,
// deciding whether the viewer owns it, and the owner-only edit, delete and
// status actions.
//
// Ownership here only decides which actions are offered. The server checks
// ownership again on every mutation and its answer wins.
package detail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/client/session"
	"github.com/sakif/petcommunity/internal/model"
)

var (
	// ErrBusy is returned when an action starts while another is in flight.
	ErrBusy = errors.New("detail: another action is in progress")

	// ErrNotLoaded is returned by actions called before a successful fetch.
	ErrNotLoaded = errors.New("detail: no listing loaded")

	// ErrNotOwner is returned locally, before any request, when the viewer
	// does not own the listing.
	ErrNotOwner = apperror.Forbidden("only the author can change this listing")
)

// State is the view's state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	NotFound
	Denied
	Failed
	Removed
)

func (s State) String() string {
	return [...]string{"idle", "loading", "ready", "not found", "denied", "error", "removed"}[s]
}

// Recovery is the action offered to get out of a failure state.
type Recovery int

const (
	NoRecovery Recovery = iota
	Retry
	BackToList
)

// Action is a mutation the viewer may be offered.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionStatus Action = "status"
)

// Uploader stores an image and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Backend is what the view needs from the API. *api.Client satisfies it.
type Backend interface {
	Uploader
	Get(ctx context.Context, kind model.Kind, id int64) (*model.Listing, error)
	Update(ctx context.Context, kind model.Kind, id int64, in model.ListingInput) (*model.Listing, error)
	SetStatus(ctx context.Context, id int64, status string) (*model.Listing, error)
	Delete(ctx context.Context, kind model.Kind, id, userID int64) error
}

// Viewer reports the current session. *session.Store satisfies it.
type Viewer interface {
	Current() (session.User, bool)
}

// IsOwner reports whether user created l. Anonymous users and listings with
// no known owner never match.
func IsOwner(l *model.Listing, user session.User) bool {
	return l != nil && user.ID > 0 && l.OwnerID == user.ID
}

// View shows one listing.
type View struct {
	kind    model.Kind
	backend Backend
	viewer  Viewer
	logger  *slog.Logger

	mu         sync.Mutex
	state      State
	message    string
	lastError  string
	listing    *model.Listing
	submitting bool
}

func New(kind model.Kind, backend Backend, viewer Viewer, logger *slog.Logger) *View {
	return &View{kind: kind, backend: backend, viewer: viewer, logger: logger}
}

// FetchOne loads listing id. A 404 moves to NotFound and a 403 to Denied,
// anything else that fails moves to Failed.
func (v *View) FetchOne(ctx context.Context, id int64) error {
	v.mu.Lock()
	if v.state == Loading || v.submitting {
		v.mu.Unlock()
		return ErrBusy
	}
	v.state, v.message, v.lastError = Loading, "", ""
	v.mu.Unlock()

	l, err := v.backend.Get(ctx, v.kind, id)

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case err == nil:
		v.listing = l
		v.state = Ready
		return nil
	case errors.Is(err, apperror.ErrNotFound):
		v.listing = nil
		v.state = NotFound
		v.message = fmt.Sprintf("%s %d not found", v.kind, id)
	case errors.Is(err, apperror.ErrForbidden):
		v.listing = nil
		v.state = Denied
		v.message = apperror.Message(err, fmt.Sprintf("%s %d is not visible to you", v.kind, id))
	default:
		v.listing = nil
		v.state = Failed
		v.message = failureMessage(err)
	}
	v.logger.Warn("fetching listing failed",
		slog.String("kind", string(v.kind)),
		slog.Int64("id", id),
		slog.String("error", err.Error()),
	)
	return err
}

func failureMessage(err error) string {
	if errors.Is(err, apperror.ErrTransport) {
		return apperror.ErrTransport.Error()
	}
	return apperror.Message(err, apperror.ErrTransport.Error())
}

// State returns the view state and, for NotFound and Failed, its message.
func (v *View) State() (State, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.message
}

// Recovery returns the action to offer in the current state.
func (v *View) Recovery() Recovery {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.state {
	case Failed:
		return Retry
	case NotFound, Denied, Removed:
		return BackToList
	}
	return NoRecovery
}

// Listing returns a copy of the loaded listing, or nil.
func (v *View) Listing() *model.Listing {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listing == nil {
		return nil
	}
	l := *v.listing
	if l.Pet != nil {
		p := *l.Pet
		l.Pet = &p
	}
	return &l
}

// LastError is the message of the most recent failed mutation, or "".
func (v *View) LastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastError
}

// Submitting reports whether a mutation is in flight.
func (v *View) Submitting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submitting
}

// Actions returns the mutations to offer the current viewer: none unless
// they own the loaded listing.
func (v *View) Actions() []Action {
	user, _ := v.viewer.Current()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Ready || !IsOwner(v.listing, user) {
		return nil
	}
	actions := []Action{ActionEdit, ActionDelete}
	if v.kind == model.KindAdoption {
		actions = append(actions, ActionStatus)
	}
	return actions
}

// begin checks ownership and marks a mutation in flight. It returns the
// listing and viewer to act with.
func (v *View) begin() (*model.Listing, session.User, error) {
	user, _ := v.viewer.Current()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.submitting || v.state == Loading {
		return nil, user, ErrBusy
	}
	if v.state != Ready || v.listing == nil {
		return nil, user, ErrNotLoaded
	}
	if !IsOwner(v.listing, user) {
		return nil, user, ErrNotOwner
	}
	v.submitting = true
	v.lastError = ""
	l := *v.listing
	return &l, user, nil
}

// finish records the outcome of a mutation. v.mu must not be held.
func (v *View) finish(action Action, updated *model.Listing, err error) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.submitting = false
	if err != nil {
		v.lastError = failureMessage(err)
		v.logger.Warn("listing action failed",
			slog.String("action", string(action)),
			slog.String("kind", string(v.kind)),
			slog.String("error", err.Error()),
		)
		return err
	}
	if updated != nil {
		v.listing = updated
	}
	return nil
}

// Remove deletes the listing. On success the view moves to Removed and no
// longer holds it.
func (v *View) Remove(ctx context.Context) error {
	l, user, err := v.begin()
	if err != nil {
		return err
	}

	err = v.backend.Delete(ctx, v.kind, l.ID, user.ID)
	if err := v.finish(ActionDelete, nil, err); err != nil {
		return err
	}

	v.mu.Lock()
	v.listing = nil
	v.state = Removed
	v.mu.Unlock()
	return nil
}

// Patch holds the fields an edit changes. Nil fields keep their value.
// On adoptions a title that still equals the pet name follows a rename.
type Patch struct {
	Title    *string
	Body     *string
	Category *string
	Pinned   *bool
	Rating   *int
	Pet      *model.Pet
}

func (p Patch) apply(l *model.Listing) model.ListingInput {
	in := model.ListingInput{
		Title:    l.Title,
		Body:     l.Body,
		Category: l.Category,
		Image:    l.Image,
		Pinned:   l.Pinned,
		Rating:   l.Rating,
		Pet:      l.Pet,
	}
	if p.Title != nil {
		in.Title = strings.TrimSpace(*p.Title)
	}
	if p.Body != nil {
		in.Body = strings.TrimSpace(*p.Body)
	}
	if p.Category != nil {
		in.Category = strings.TrimSpace(*p.Category)
	}
	if p.Pinned != nil {
		in.Pinned = *p.Pinned
	}
	if p.Rating != nil {
		in.Rating = *p.Rating
	}
	if p.Pet != nil {
		pet := *p.Pet
		in.Pet = &pet
		if p.Title == nil && l.Pet != nil && l.Title == l.Pet.Name {
			in.Title = strings.TrimSpace(pet.Name)
		}
	}
	return in
}

// Validate reports missing required fields before anything is sent.
func Validate(kind model.Kind, in model.ListingInput) error {
	if kind == model.KindAdoption {
		return validatePet(in.Pet)
	}
	if strings.TrimSpace(in.Title) == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if (kind == model.KindBoard || kind == model.KindReview) && strings.TrimSpace(in.Category) == "" {
		return apperror.ValidationFailed("category", "category is required")
	}
	if kind == model.KindReview && (in.Rating < 1 || in.Rating > 5) {
		return apperror.ValidationFailed("rating", "rating must be between 1 and 5")
	}
	return nil
}

func validatePet(p *model.Pet) error {
	switch {
	case p == nil || strings.TrimSpace(p.Name) == "":
		return apperror.ValidationFailed("pet.name", "pet name is required")
	case strings.TrimSpace(p.Species) == "":
		return apperror.ValidationFailed("pet.species", "species is required")
	case !slices.Contains(model.PetGenders, strings.ToLower(strings.TrimSpace(p.Gender))):
		return apperror.ValidationFailed("pet.gender",
			fmt.Sprintf("gender must be one of %s", strings.Join(model.PetGenders, ", ")))
	case !slices.Contains(model.PetSizes, strings.ToLower(strings.TrimSpace(p.Size))):
		return apperror.ValidationFailed("pet.size",
			fmt.Sprintf("size must be one of %s", strings.Join(model.PetSizes, ", ")))
	}
	return nil
}

// SubmitEdit merges patch into the listing, resolves the image and sends
// the update. Validation failures never reach the network.
func (v *View) SubmitEdit(ctx context.Context, patch Patch, image ImageInput) error {
	l, _, err := v.begin()
	if err != nil {
		return err
	}

	in := patch.apply(l)
	if err := Validate(v.kind, in); err != nil {
		return v.finish(ActionEdit, nil, err)
	}

	in.Image, err = image.resolve(ctx, l.Image, v.backend)
	if err != nil {
		return v.finish(ActionEdit, nil, fmt.Errorf("uploading image: %w", err))
	}

	updated, err := v.backend.Update(ctx, v.kind, l.ID, in)
	return v.finish(ActionEdit, updated, err)
}

// SetStatus changes an adoption listing's status.
func (v *View) SetStatus(ctx context.Context, status string) error {
	if v.kind != model.KindAdoption {
		return apperror.ValidationFailed("status", "only adoption listings have a status")
	}
	status = strings.TrimSpace(status)
	if !slices.Contains(model.AdoptionStatuses, status) {
		return apperror.ValidationFailed("status",
			fmt.Sprintf("status must be one of %s", strings.Join(model.AdoptionStatuses, ", ")))
	}
	l, _, err := v.begin()
	if err != nil {
		return err
	}
	updated, err := v.backend.SetStatus(ctx, l.ID, status)
	return v.finish(ActionStatus, updated, err)
}

// ParseID parses a listing id argument.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", fmt.Sprintf("invalid listing id %q", s))
	}
	return id, nil
}
