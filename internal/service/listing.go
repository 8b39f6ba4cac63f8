package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/model"
	"github.com/sakif/petcommunity/internal/repository"
)

// Validation limits.
const (
	MaxTitleLength    = 100
	MaxBodyLength     = 10000
	MaxCategoryLength = 30
	MaxPetAge         = 40
	MinRating         = 1
	MaxRating         = 5
)

// ListingService handles the business rules of every listing kind.
//
// OWNERSHIP:
// The client hides edit/delete controls from non-owners, but that is only
// advisory. Every mutation here re-checks listing.OwnerID against the
// authenticated actor and returns apperror.Forbidden on mismatch.
type ListingService struct {
	repo   repository.ListingRepository
	users  repository.UserRepository
	logger *slog.Logger
}

// NewListingService creates a ListingService.
func NewListingService(repo repository.ListingRepository, users repository.UserRepository, logger *slog.Logger) *ListingService {
	return &ListingService{
		repo:   repo,
		users:  users,
		logger: logger,
	}
}

// Create validates input and stores a new listing owned by actorID.
// The owner's nickname is copied onto the listing for display.
func (s *ListingService) Create(ctx context.Context, kind model.Kind, actorID int64, in model.ListingInput) (*model.Listing, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	in, err := normalizeInput(kind, in)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session user no longer exists")
		}
		return nil, fmt.Errorf("service/listing: loading owner %d: %w", actorID, err)
	}

	listing := &model.Listing{
		Kind:      kind,
		OwnerID:   owner.ID,
		OwnerName: owner.Nickname,
	}
	apply(listing, in)
	if kind == model.KindAdoption {
		listing.Status = model.StatusAvailable
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		s.logger.Error("failed to create listing",
			slog.String("kind", string(kind)),
			slog.Int64("ownerID", actorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/listing: creating %s: %w", kind, err)
	}

	s.logger.Info("listing created",
		slog.String("kind", string(kind)),
		slog.Int64("id", listing.ID),
		slog.Int64("ownerID", listing.OwnerID),
	)
	return listing, nil
}

// Get returns one listing. Diaries are private: only their owner may read
// one, everyone else gets Forbidden.
func (s *ListingService) Get(ctx context.Context, kind model.Kind, id, viewerID int64) (*model.Listing, error) {
	if err := validateKindAndID(kind, id); err != nil {
		return nil, err
	}

	listing, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err // already an apperror on NotFound
	}
	if kind == model.KindDiary && listing.OwnerID != viewerID {
		return nil, apperror.Forbidden("diaries are only visible to their owner")
	}
	return listing, nil
}

// List returns the whole collection of a kind in display order. The client
// filters and paginates on its side, so there is no server-side paging here.
// Diaries are scoped to the viewer, and listing them requires a session.
func (s *ListingService) List(ctx context.Context, kind model.Kind, viewerID int64) ([]model.Listing, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown listing kind %q", kind))
	}

	opts := repository.ListOptions{Kind: kind}
	if kind == model.KindDiary {
		if viewerID <= 0 {
			return nil, apperror.Unauthorized("login required to view diaries")
		}
		opts.OwnerID = viewerID
	}

	listings, err := s.repo.List(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list listings",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/listing: listing %s: %w", kind, err)
	}
	return listings, nil
}

// Update replaces the mutable fields of a listing the actor owns.
// An empty Image in the input removes the image.
func (s *ListingService) Update(ctx context.Context, kind model.Kind, id, actorID int64, in model.ListingInput) (*model.Listing, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	listing, err := s.loadOwned(ctx, kind, id, actorID)
	if err != nil {
		return nil, err
	}
	in, err = normalizeInput(kind, in)
	if err != nil {
		return nil, err
	}

	apply(listing, in)
	if err := s.repo.Update(ctx, listing); err != nil {
		s.logger.Error("failed to update listing",
			slog.String("kind", string(kind)),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/listing: updating %s %d: %w", kind, id, err)
	}

	s.logger.Info("listing updated",
		slog.String("kind", string(kind)),
		slog.Int64("id", id),
	)
	return listing, nil
}

// SetStatus changes the status of an adoption listing the actor owns.
func (s *ListingService) SetStatus(ctx context.Context, id, actorID int64, status string) (*model.Listing, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	status = strings.TrimSpace(status)
	if !slices.Contains(model.AdoptionStatuses, status) {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("status must be one of %s", strings.Join(model.AdoptionStatuses, ", ")))
	}

	listing, err := s.loadOwned(ctx, model.KindAdoption, id, actorID)
	if err != nil {
		return nil, err
	}
	if listing.Status == status {
		return listing, nil
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("service/listing: setting status of adoption %d: %w", id, err)
	}
	listing.Status = status

	s.logger.Info("adoption status changed",
		slog.Int64("id", id),
		slog.String("status", status),
	)
	return listing, nil
}

// Delete removes a listing the actor owns.
//
// claimedOwnerID is the user id the client sent along with the request
// (0 when absent). When present it must match the token's subject, which
// catches a client whose session record has drifted from its token.
func (s *ListingService) Delete(ctx context.Context, kind model.Kind, id, actorID, claimedOwnerID int64) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if claimedOwnerID != 0 && claimedOwnerID != actorID {
		return apperror.Forbidden("request user does not match the session")
	}
	if _, err := s.loadOwned(ctx, kind, id, actorID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return err
	}

	s.logger.Info("listing deleted",
		slog.String("kind", string(kind)),
		slog.Int64("id", id),
		slog.Int64("ownerID", actorID),
	)
	return nil
}

func (s *ListingService) loadOwned(ctx context.Context, kind model.Kind, id, actorID int64) (*model.Listing, error) {
	if err := validateKindAndID(kind, id); err != nil {
		return nil, err
	}
	listing, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != actorID {
		s.logger.Warn("ownership check failed",
			slog.String("kind", string(kind)),
			slog.Int64("id", id),
			slog.Int64("ownerID", listing.OwnerID),
			slog.Int64("actorID", actorID),
		)
		return nil, apperror.Forbidden("only the author can modify this listing")
	}
	return listing, nil
}

func requireActor(actorID int64) error {
	if actorID <= 0 {
		return apperror.Unauthorized("login required")
	}
	return nil
}

func validateKindAndID(kind model.Kind, id int64) error {
	if !kind.Valid() {
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown listing kind %q", kind))
	}
	if id <= 0 {
		return apperror.ValidationFailed("id", "listing ID is required")
	}
	return nil
}

// normalizeInput trims the input, applies per-kind defaults and returns the
// first rule it violates.
func normalizeInput(kind model.Kind, in model.ListingInput) (model.ListingInput, error) {
	if !kind.Valid() {
		return in, apperror.ValidationFailed("kind", fmt.Sprintf("unknown listing kind %q", kind))
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)

	if kind == model.KindAdoption {
		if in.Pet == nil {
			return in, apperror.ValidationFailed("pet", "pet details are required")
		}
		pet := *in.Pet
		if err := validatePet(&pet); err != nil {
			return in, err
		}
		in.Pet = &pet
		if in.Title == "" {
			in.Title = pet.Name
		}
	} else {
		in.Pet = nil
	}

	if in.Title == "" {
		return in, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return in, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Body) > MaxBodyLength {
		return in, apperror.ValidationFailed("body",
			fmt.Sprintf("body must be %d characters or less", MaxBodyLength))
	}
	if utf8.RuneCountInString(in.Category) > MaxCategoryLength {
		return in, apperror.ValidationFailed("category",
			fmt.Sprintf("category must be %d characters or less", MaxCategoryLength))
	}

	switch kind {
	case model.KindBoard:
		if in.Category == "" {
			return in, apperror.ValidationFailed("category", "category is required")
		}
	case model.KindReview:
		if in.Category == "" {
			return in, apperror.ValidationFailed("category", "category is required")
		}
		if in.Rating < MinRating || in.Rating > MaxRating {
			return in, apperror.ValidationFailed("rating",
				fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
		}
	}

	// Only board notices can be pinned; ratings only exist on reviews.
	if kind != model.KindBoard {
		in.Pinned = false
	}
	if kind != model.KindReview {
		in.Rating = 0
	}
	return in, nil
}

func validatePet(p *model.Pet) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Species = strings.TrimSpace(p.Species)
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.Size = strings.ToLower(strings.TrimSpace(p.Size))

	switch {
	case p.Name == "":
		return apperror.ValidationFailed("pet.name", "pet name is required")
	case p.Species == "":
		return apperror.ValidationFailed("pet.species", "species is required")
	case !slices.Contains(model.PetGenders, p.Gender):
		return apperror.ValidationFailed("pet.gender",
			fmt.Sprintf("gender must be one of %s", strings.Join(model.PetGenders, ", ")))
	case !slices.Contains(model.PetSizes, p.Size):
		return apperror.ValidationFailed("pet.size",
			fmt.Sprintf("size must be one of %s", strings.Join(model.PetSizes, ", ")))
	case p.Age < 0 || p.Age > MaxPetAge:
		return apperror.ValidationFailed("pet.age",
			fmt.Sprintf("age must be between 0 and %d", MaxPetAge))
	}
	return nil
}

func apply(l *model.Listing, in model.ListingInput) {
	l.Title = in.Title
	l.Body = in.Body
	l.Category = in.Category
	l.Image = in.Image
	l.Pinned = in.Pinned
	l.Rating = in.Rating
	l.Pet = in.Pet
}
