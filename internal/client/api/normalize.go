package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/petcommunity/internal/model"
)

// OwnerResolver maps a legacy username-only owner to a user id. It reports
// false when the username is unknown.
type OwnerResolver func(username string) (int64, bool)

// wireListing accepts the canonical listing shape plus the older field
// names some records were written with. normalize folds both into one
// model.Listing so nothing past this package has to care which were present.
type wireListing struct {
	ID        int64      `json:"id"`
	Kind      model.Kind `json:"kind"`
	OwnerID   int64      `json:"ownerId"`
	OwnerName string     `json:"ownerName"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Category  string     `json:"category"`
	Image     string     `json:"image"`
	Pinned    bool       `json:"pinned"`
	Status    string     `json:"status"`
	Rating    int        `json:"rating"`
	Pet       *model.Pet `json:"pet"`
	CreatedAt flexTime   `json:"createdAt"`
	UpdatedAt flexTime   `json:"updatedAt"`

	// legacy
	UserID      int64    `json:"userId"`
	Author      string   `json:"author"`
	Nickname    string   `json:"nickname"`
	Name        string   `json:"name"`
	ProductName string   `json:"productName"`
	Content     string   `json:"content"`
	Mood        string   `json:"mood"`
	IsNotice    bool     `json:"isNotice"`
	Date        flexTime `json:"date"`
	Species     string   `json:"species"`
	Gender      string   `json:"gender"`
	Size        string   `json:"size"`
	Age         int      `json:"age"`
}

func (w *wireListing) normalize(kind model.Kind, owners OwnerResolver) model.Listing {
	l := model.Listing{
		ID:        w.ID,
		Kind:      w.Kind,
		OwnerID:   firstID(w.OwnerID, w.UserID),
		OwnerName: firstString(w.OwnerName, w.Nickname, w.Author),
		Title:     firstString(w.Title, w.ProductName, w.Name),
		Body:      firstString(w.Body, w.Content),
		Category:  firstString(w.Category, w.Mood),
		Image:     w.Image,
		Pinned:    w.Pinned || w.IsNotice,
		Status:    w.Status,
		Rating:    w.Rating,
		Pet:       w.Pet,
		CreatedAt: firstTime(w.CreatedAt.Time, w.Date.Time),
		UpdatedAt: w.UpdatedAt.Time,
	}
	if l.Kind == "" {
		l.Kind = kind
	}
	if l.OwnerID == 0 && w.Author != "" && owners != nil {
		if id, ok := owners(w.Author); ok {
			l.OwnerID = id
		}
	}
	if l.Kind == model.KindAdoption && l.Pet == nil && (w.Species != "" || w.Name != "") {
		l.Pet = &model.Pet{
			Name:    w.Name,
			Species: w.Species,
			Gender:  w.Gender,
			Size:    w.Size,
			Age:     w.Age,
		}
	}
	if l.Kind == model.KindAdoption && l.Status == "" {
		l.Status = model.StatusAvailable
	}
	return l
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstID(vals ...int64) int64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstTime(vals ...time.Time) time.Time {
	for _, v := range vals {
		if !v.IsZero() {
			return v
		}
	}
	return time.Time{}
}

// flexTime decodes RFC 3339 timestamps as well as the MySQL-style
// "2006-01-02 15:04:05" and bare dates older records carry.
type flexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range flexLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
