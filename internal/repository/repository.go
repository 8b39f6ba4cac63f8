// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/petcommunity/internal/model"
)

// ListOptions narrows a listing query. Zero values mean "no restriction".
type ListOptions struct {
	Kind    model.Kind
	OwnerID int64 // restrict to one owner's listings (diaries)
	Limit   int
	Offset  int
}

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	GetByID(ctx context.Context, kind model.Kind, id int64) (*model.Listing, error)
	List(ctx context.Context, opts ListOptions) ([]model.Listing, error)
	Update(ctx context.Context, listing *model.Listing) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, kind model.Kind, id int64) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpsertGitHub(ctx context.Context, user *model.User) error
}
