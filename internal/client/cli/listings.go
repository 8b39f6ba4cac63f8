package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/client/detail"
	"github.com/sakif/petcommunity/internal/client/listing"
	"github.com/sakif/petcommunity/internal/model"
)

func parseKind(s string) (model.Kind, error) {
	k, err := model.ParseKind(s)
	if err != nil {
		return "", apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q (adoptions, board, reviews, diaries)", s))
	}
	return k, nil
}

var filterDims = []listing.Dimension{
	listing.Species, listing.Gender, listing.Size, listing.Age,
	listing.Status, listing.Category, listing.Rating,
}

func (a *App) listCmd() *cobra.Command {
	var (
		search  string
		page    int
		retries int
		filters = make(map[listing.Dimension]*string)
	)
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List adoptions, board posts, reviews or diaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			view := listing.New(kind, a.api, a.logger)
			if err := a.loadWithRetry(cmd.Context(), view, retries); err != nil {
				return err
			}

			var changed []listing.Dimension
			for _, dim := range filterDims {
				if cmd.Flags().Changed(string(dim)) {
					changed = append(changed, dim)
				}
			}
			facets := len(changed)
			if cmd.Flags().Changed("search") {
				facets++
			}
			if listing.DefaultPolicy(kind) == listing.Exclusive && facets > 1 {
				return apperror.ValidationFailed("filter", fmt.Sprintf("%s are filtered by one facet at a time", kind.Path()))
			}

			for _, dim := range changed {
				if err := view.SetFilter(dim, *filters[dim]); err != nil {
					return apperror.ValidationFailed(string(dim), err.Error())
				}
			}
			if search != "" {
				view.SetSearch(search)
			}

			if kind != model.KindBoard {
				printTable(a.out, view.Visible(), false)
				a.printf("%d shown\n", len(view.Visible()))
				return nil
			}
			view.SetPage(page)
			rows := append(view.Pinned(), view.Page()...)
			printTable(a.out, rows, true)
			a.printf("page %d of %d\n", view.CurrentPage(), view.PageCount())
			return nil
		},
	}
	f := cmd.Flags()
	for _, dim := range filterDims {
		filters[dim] = f.String(string(dim), listing.All, "filter by "+string(dim))
	}
	f.StringVarP(&search, "search", "s", "", "case-insensitive text search")
	f.IntVarP(&page, "page", "p", 1, "page (board only)")
	f.IntVar(&retries, "retry", 0, "times to retry after a connection failure")
	return cmd
}

// loadWithRetry loads view, retrying transport failures up to retries times.
func (a *App) loadWithRetry(ctx context.Context, view *listing.View, retries int) error {
	err := view.Load(ctx)
	for i := 0; err != nil && i < retries && errors.Is(err, apperror.ErrTransport); i++ {
		a.logger.Warn("retrying list", slog.Int("attempt", i+1))
		err = view.Retry(ctx)
	}
	if err != nil {
		_, msg := view.State()
		return &apperror.AppError{Err: err, Message: msg}
	}
	return nil
}

// openDetail fetches one listing into a detail view and reports the failure
// states with their recovery hint.
func (a *App) openDetail(ctx context.Context, kindArg, idArg string) (*detail.View, error) {
	kind, err := parseKind(kindArg)
	if err != nil {
		return nil, err
	}
	id, err := detail.ParseID(idArg)
	if err != nil {
		return nil, err
	}
	view := detail.New(kind, a.api, a.store, a.logger)
	if err := view.FetchOne(ctx, id); err != nil {
		state, msg := view.State()
		switch view.Recovery() {
		case detail.BackToList:
			a.printf("%s. Back to the list: petctl list %s\n", msg, kind.Path())
		case detail.Retry:
			a.printf("%s. Try again: petctl show %s %d\n", msg, kind.Path(), id)
		}
		a.logger.Warn("opening listing failed", slog.String("state", state.String()))
		return nil, err
	}
	return view, nil
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show one listing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.openDetail(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printListing(a.out, view.Listing())
			if actions := view.Actions(); len(actions) > 0 {
				a.printf("\nyou can: %v\n", actions)
			}
			return nil
		},
	}
}

// listingFlags are the flags shared by create and edit.
type listingFlags struct {
	title, body, category string
	pinned                bool
	rating                int
	image, upload         string
	removeImage           bool
	pet                   model.Pet
}

func (lf *listingFlags) register(f *pflag.FlagSet) {
	f.StringVarP(&lf.title, "title", "t", "", "title (product name for reviews)")
	f.StringVarP(&lf.body, "body", "b", "", "text")
	f.StringVarP(&lf.category, "category", "c", "", "board category, review category or diary mood")
	f.BoolVar(&lf.pinned, "pinned", false, "show as a notice (board only)")
	f.IntVarP(&lf.rating, "rating", "r", 0, "rating 1-5 (reviews only)")
	f.StringVar(&lf.image, "image", "", "image URL")
	f.StringVar(&lf.upload, "upload", "", "image file to upload")
	f.StringVar(&lf.pet.Name, "pet-name", "", "pet name (adoptions)")
	f.StringVar(&lf.pet.Species, "species", "", "species (adoptions)")
	f.StringVar(&lf.pet.Gender, "gender", "", "male, female or unknown (adoptions)")
	f.StringVar(&lf.pet.Size, "size", "", "small, medium or large (adoptions)")
	f.IntVar(&lf.pet.Age, "age", 0, "age in years (adoptions)")
}

func (lf *listingFlags) input(kind model.Kind) model.ListingInput {
	in := model.ListingInput{
		Title:    lf.title,
		Body:     lf.body,
		Category: lf.category,
		Image:    lf.image,
		Pinned:   lf.pinned,
		Rating:   lf.rating,
	}
	if kind == model.KindAdoption {
		pet := lf.pet
		in.Pet = &pet
	}
	return in
}

// imageInput picks the one image mode the flags ask for.
func (lf *listingFlags) imageInput(f *pflag.FlagSet) (detail.ImageInput, func(), error) {
	var modes []string
	for _, name := range []string{"image", "upload", "remove-image"} {
		if f.Changed(name) {
			modes = append(modes, name)
		}
	}
	noop := func() {}
	switch {
	case len(modes) > 1:
		return detail.ImageInput{}, noop, apperror.ValidationFailed("image", "use only one of --image, --upload, --remove-image")
	case lf.removeImage:
		return detail.ImageURL(""), noop, nil
	case f.Changed("image"):
		return detail.ImageURL(lf.image), noop, nil
	case lf.upload != "":
		file, err := os.Open(lf.upload)
		if err != nil {
			return detail.ImageInput{}, noop, fmt.Errorf("opening image: %w", err)
		}
		return detail.UploadImage(filepath.Base(lf.upload), file), func() { file.Close() }, nil
	}
	return detail.KeepImage(), noop, nil
}

func (a *App) createCmd() *cobra.Command {
	var lf listingFlags
	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Publish a new listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("image") && lf.upload != "" {
				return apperror.ValidationFailed("image", "use only one of --image, --upload")
			}
			in := lf.input(kind)
			if err := detail.Validate(kind, in); err != nil {
				return err
			}
			if lf.upload != "" {
				url, err := a.uploadFile(cmd.Context(), lf.upload)
				if err != nil {
					return err
				}
				in.Image = url
			}

			l, err := a.api.Create(cmd.Context(), kind, in)
			if err != nil {
				return err
			}
			a.printf("Created %s #%d\n", kind, l.ID)
			return nil
		},
	}
	lf.register(cmd.Flags())
	return cmd
}

func (a *App) editCmd() *cobra.Command {
	var lf listingFlags
	cmd := &cobra.Command{
		Use:   "edit <kind> <id>",
		Short: "Change a listing you own",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.openDetail(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !slices.Contains(view.Actions(), detail.ActionEdit) {
				return detail.ErrNotOwner
			}

			f := cmd.Flags()
			image, closeImage, err := lf.imageInput(f)
			if err != nil {
				return err
			}
			defer closeImage()

			if err := view.SubmitEdit(cmd.Context(), lf.patch(f, view.Listing()), image); err != nil {
				return err
			}
			a.printf("Updated #%d\n", view.Listing().ID)
			return nil
		},
	}
	lf.register(cmd.Flags())
	cmd.Flags().BoolVar(&lf.removeImage, "remove-image", false, "remove the image")
	return cmd
}

// patch builds a detail.Patch from the flags the user actually set.
func (lf *listingFlags) patch(f *pflag.FlagSet, current *model.Listing) detail.Patch {
	var p detail.Patch
	if f.Changed("title") {
		p.Title = &lf.title
	}
	if f.Changed("body") {
		p.Body = &lf.body
	}
	if f.Changed("category") {
		p.Category = &lf.category
	}
	if f.Changed("pinned") {
		p.Pinned = &lf.pinned
	}
	if f.Changed("rating") {
		p.Rating = &lf.rating
	}

	petFlags := []string{"pet-name", "species", "gender", "size", "age"}
	if !slices.ContainsFunc(petFlags, f.Changed) {
		return p
	}
	var pet model.Pet
	if current.Pet != nil {
		pet = *current.Pet
	}
	if f.Changed("pet-name") {
		pet.Name = lf.pet.Name
	}
	if f.Changed("species") {
		pet.Species = lf.pet.Species
	}
	if f.Changed("gender") {
		pet.Gender = lf.pet.Gender
	}
	if f.Changed("size") {
		pet.Size = lf.pet.Size
	}
	if f.Changed("age") {
		pet.Age = lf.pet.Age
	}
	p.Pet = &pet
	return p
}

func (a *App) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a listing you own",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.openDetail(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			id := view.Listing().ID
			if err := view.Remove(cmd.Context()); err != nil {
				return err
			}
			a.printf("Deleted #%d\n", id)
			return nil
		},
	}
}

func (a *App) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <available|reserved|adopted>",
		Short: "Change an adoption listing's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.openDetail(cmd.Context(), model.KindAdoption.Path(), args[0])
			if err != nil {
				return err
			}
			if err := view.SetStatus(cmd.Context(), args[1]); err != nil {
				return err
			}
			a.printf("#%d is now %s\n", view.Listing().ID, view.Listing().Status)
			return nil
		},
	}
}

func (a *App) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := a.uploadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printf("%s\n", url)
			return nil
		},
	}
}

func (a *App) uploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	if limit := a.cfg.Images.MaxBytes; limit > 0 && info.Size() > limit {
		return "", apperror.ValidationFailed("image",
			fmt.Sprintf("%s is %s, the limit is %s", filepath.Base(path),
				humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(limit))))
	}
	return a.api.Upload(ctx, filepath.Base(path), file)
}
