package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/model"
)

func createTestUser(t *testing.T, u *UserDB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Nickname:     "nick-" + username,
		PasswordHash: "$2a$04$hash",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	u := newTestDB(t).Users()

	user := createTestUser(t, u, "abc")

	if user.ID == 0 {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	u := newTestDB(t).Users()
	createTestUser(t, u, "abc")

	err := u.Create(context.Background(), &model.User{Username: "abc", Nickname: "other"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
}

func TestGetUserByID_RoundTrip(t *testing.T) {
	u := newTestDB(t).Users()
	created := createTestUser(t, u, "abc")

	got, err := u.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Username != "abc" || got.Nickname != "nick-abc" {
		t.Errorf("GetUserByID() = %+v", got)
	}
	if got.PasswordHash != "$2a$04$hash" {
		t.Errorf("PasswordHash = %q, not stored", got.PasswordHash)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	u := newTestDB(t).Users()

	_, err := u.GetUserByID(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	u := newTestDB(t).Users()
	created := createTestUser(t, u, "abc")

	got, err := u.GetUserByUsername(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %d, want %d", got.ID, created.ID)
	}

	if _, err := u.GetUserByUsername(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUsername(nobody) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertGitHub_KeepsIDOnSecondSignIn(t *testing.T) {
	u := newTestDB(t).Users()
	ctx := context.Background()

	first := &model.User{GitHubID: 4242, Username: "octo", Nickname: "Octo"}
	if err := u.UpsertGitHub(ctx, first); err != nil {
		t.Fatalf("UpsertGitHub() first error = %v", err)
	}

	second := &model.User{GitHubID: 4242, Username: "octo", Nickname: "Octo Cat"}
	if err := u.UpsertGitHub(ctx, second); err != nil {
		t.Fatalf("UpsertGitHub() second error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID changed between sign-ins: %d → %d", first.ID, second.ID)
	}
	if second.Nickname != "Octo Cat" {
		t.Errorf("Nickname = %q, want refreshed value", second.Nickname)
	}
}

func TestPasswordUsersDoNotCollideOnGitHubID(t *testing.T) {
	u := newTestDB(t).Users()
	// Two password accounts both have GitHubID 0; NULL storage keeps the
	// UNIQUE index from rejecting the second one.
	createTestUser(t, u, "one")
	createTestUser(t, u, "two")
}
