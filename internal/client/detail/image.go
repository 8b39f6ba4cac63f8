package detail

import (
	"context"
	"io"
	"strings"
)

type imageMode int

const (
	imageKeep imageMode = iota
	imageURL
	imageUpload
)

// ImageInput says how an edit changes the listing's image. Exactly one mode
// applies per submission.
type ImageInput struct {
	mode     imageMode
	url      string
	filename string
	body     io.Reader
}

// KeepImage leaves the current image as it is.
func KeepImage() ImageInput {
	return ImageInput{mode: imageKeep}
}

// ImageURL sets the image to url. An empty url removes the image.
func ImageURL(url string) ImageInput {
	return ImageInput{mode: imageURL, url: strings.TrimSpace(url)}
}

// UploadImage uploads body first and uses the returned URL.
func UploadImage(filename string, body io.Reader) ImageInput {
	return ImageInput{mode: imageUpload, filename: filename, body: body}
}

// resolve returns the single image URL to send with the update.
func (in ImageInput) resolve(ctx context.Context, current string, up Uploader) (string, error) {
	switch in.mode {
	case imageURL:
		return in.url, nil
	case imageUpload:
		return up.Upload(ctx, in.filename, in.body)
	}
	return current, nil
}
