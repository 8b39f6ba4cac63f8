package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/sakif/petcommunity/internal/model"
)

// summary is the one-line kind-specific description shown in lists.
func summary(l *model.Listing) string {
	switch l.Kind {
	case model.KindAdoption:
		if l.Pet == nil {
			return l.Status
		}
		return fmt.Sprintf("%s/%s/%s, %dy, %s", l.Pet.Species, l.Pet.Gender, l.Pet.Size, l.Pet.Age, l.Status)
	case model.KindReview:
		return fmt.Sprintf("%s %s", strings.Repeat("*", l.Rating), l.Category)
	}
	return l.Category
}

func posted(l *model.Listing) string {
	if l.CreatedAt.IsZero() {
		return "-"
	}
	return humanize.Time(l.CreatedAt)
}

func printTable(w io.Writer, ls []model.Listing, pinnedMark bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tINFO\tBY\tPOSTED")
	for i := range ls {
		l := &ls[i]
		title := l.Title
		if pinnedMark && l.Pinned {
			title = "[notice] " + title
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", l.ID, title, summary(l), l.OwnerName, posted(l))
	}
	tw.Flush()
}

func printListing(w io.Writer, l *model.Listing) {
	fmt.Fprintf(w, "#%d %s\n", l.ID, l.Title)
	fmt.Fprintf(w, "%s | by %s | %s\n", summary(l), l.OwnerName, posted(l))
	if l.Pet != nil {
		fmt.Fprintf(w, "pet: %s\n", l.Pet.Name)
	}
	fmt.Fprintf(w, "image: %s\n", l.ImageOrDefault())
	if l.Body != "" {
		fmt.Fprintf(w, "\n%s\n", l.Body)
	}
}
