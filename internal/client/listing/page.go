package listing

import "github.com/sakif/petcommunity/internal/model"

// Pinned returns the visible pinned posts. They are shown ahead of the
// paginated posts on every page.
func (v *View) Pinned() []model.Listing {
	v.mu.Lock()
	defer v.mu.Unlock()
	pinned, _ := v.partition()
	return pinned
}

// Page returns the regular (non-pinned) posts on the current page.
func (v *View) Page() []model.Listing {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, regular := v.partition()
	start := (v.page - 1) * v.pageSize
	if start >= len(regular) {
		return nil
	}
	end := min(start+v.pageSize, len(regular))
	return regular[start:end]
}

// CurrentPage returns the 1-based page index.
func (v *View) CurrentPage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// PageCount returns the number of pages of regular posts; at least 1.
func (v *View) PageCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pageCount()
}

func (v *View) pageCount() int {
	_, regular := v.partition()
	n := (len(regular) + v.pageSize - 1) / v.pageSize
	return max(n, 1)
}

// SetPage moves to page n, clamped to [1, PageCount].
func (v *View) SetPage(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page = min(max(n, 1), v.pageCount())
}

// partition splits the visible subset into pinned and regular posts, each in
// backend order. v.mu must be held.
func (v *View) partition() (pinned, regular []model.Listing) {
	for _, l := range v.visible {
		if l.Pinned {
			pinned = append(pinned, l)
		} else {
			regular = append(regular, l)
		}
	}
	return pinned, regular
}
