package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/model"
	"github.com/sakif/petcommunity/internal/repository"
)

var _ repository.ListingRepository = (*ListingDB)(nil)

// ListingDB stores every listing kind in one table, discriminated by the
// kind column. Pet columns are only meaningful for adoption rows.
type ListingDB struct {
	conn *sql.DB
}

// Listings returns the listing repository backed by db.
func (db *DB) Listings() *ListingDB {
	return &ListingDB{conn: db.conn}
}

const listingColumns = `id, kind, owner_id, owner_name, title, body, category, image,
	pinned, status, rating, pet_name, pet_species, pet_gender, pet_size, pet_age,
	created_at, updated_at`

// Create inserts a listing and fills in its ID and timestamps.
//
// PARAMETERIZED QUERIES:
// Every value goes through a ? placeholder. Nothing user-supplied is ever
// concatenated into the SQL text.
func (db *ListingDB) Create(ctx context.Context, l *model.Listing) error {
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	pet := petOrZero(l.Pet)
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO listings (kind, owner_id, owner_name, title, body, category, image,
			pinned, status, rating, pet_name, pet_species, pet_gender, pet_size, pet_age,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(l.Kind), l.OwnerID, l.OwnerName, l.Title, l.Body, l.Category, l.Image,
		l.Pinned, l.Status, l.Rating,
		pet.Name, pet.Species, pet.Gender, pet.Size, pet.Age,
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating %s listing: %w", l.Kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading listing id: %w", err)
	}
	l.ID = id
	return nil
}

// GetByID retrieves one listing of the given kind. A listing that exists
// under a different kind is reported as not found.
func (db *ListingDB) GetByID(ctx context.Context, kind model.Kind, id int64) (*model.Listing, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ? AND kind = ?`,
		id, string(kind),
	)
	l, err := scanListing(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(string(kind), strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting %s %d: %w", kind, id, err)
	}
	return l, nil
}

// List returns listings ordered the way the boards display them: pinned
// notices first, then newest first. Limit <= 0 returns every match.
func (db *ListingDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Listing, error) {
	var (
		where []string
		args  []any
	)
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if opts.OwnerID != 0 {
		where = append(where, "owner_id = ?")
		args = append(args, opts.OwnerID)
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY pinned DESC, created_at DESC, id DESC`

	if opts.Limit > 0 {
		offset := opts.Offset
		if offset < 0 {
			offset = 0
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s: %w", opts.Kind, err)
	}
	defer rows.Close()

	listings := make([]model.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning listing row: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating listings: %w", err)
	}
	return listings, nil
}

// Update writes the mutable fields of l. id, kind, owner and created_at
// are never part of the SET clause.
func (db *ListingDB) Update(ctx context.Context, l *model.Listing) error {
	l.UpdatedAt = time.Now().UTC()

	pet := petOrZero(l.Pet)
	result, err := db.conn.ExecContext(ctx,
		`UPDATE listings
		 SET title = ?, body = ?, category = ?, image = ?, pinned = ?, rating = ?,
		     pet_name = ?, pet_species = ?, pet_gender = ?, pet_size = ?, pet_age = ?,
		     updated_at = ?
		 WHERE id = ? AND kind = ?`,
		l.Title, l.Body, l.Category, l.Image, l.Pinned, l.Rating,
		pet.Name, pet.Species, pet.Gender, pet.Size, pet.Age,
		l.UpdatedAt,
		l.ID, string(l.Kind),
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s %d: %w", l.Kind, l.ID, err)
	}
	return requireAffected(result, string(l.Kind), l.ID)
}

// UpdateStatus changes the adoption status of an adoption listing.
func (db *ListingDB) UpdateStatus(ctx context.Context, id int64, status string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ? AND kind = ?`,
		status, time.Now().UTC(), id, string(model.KindAdoption),
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating status of adoption %d: %w", id, err)
	}
	return requireAffected(result, string(model.KindAdoption), id)
}

// Delete removes a listing. There is no soft delete.
func (db *ListingDB) Delete(ctx context.Context, kind model.Kind, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM listings WHERE id = ? AND kind = ?`, id, string(kind))
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %d: %w", kind, id, err)
	}
	return requireAffected(result, string(kind), id)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (*model.Listing, error) {
	var (
		l    model.Listing
		kind string
		pet  model.Pet
	)
	err := s.Scan(
		&l.ID, &kind, &l.OwnerID, &l.OwnerName, &l.Title, &l.Body, &l.Category, &l.Image,
		&l.Pinned, &l.Status, &l.Rating,
		&pet.Name, &pet.Species, &pet.Gender, &pet.Size, &pet.Age,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Kind = model.Kind(kind)
	if l.Kind == model.KindAdoption {
		l.Pet = &pet
	}
	return &l, nil
}

func petOrZero(p *model.Pet) model.Pet {
	if p == nil {
		return model.Pet{}
	}
	return *p
}

func requireAffected(result sql.Result, resource string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, strconv.FormatInt(id, 10))
	}
	return nil
}
