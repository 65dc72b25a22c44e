// Package thumbnail derives the preview image stored next to every photo.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/dukerupert/shelflife/internal/model"
)

// Size is the longest edge of a thumbnail in pixels.
const Size = 256

// MaxPhotoBytes bounds an uploaded photo.
const MaxPhotoBytes = 10 << 20

var ErrTooLarge = errors.New("photo too large")

// Make decodes a JPEG, PNG, GIF or WebP photo and returns a JPEG that fits
// within Size x Size. EXIF orientation is applied first.
func Make(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	thumb := img
	if b := img.Bounds(); b.Dx() > Size || b.Dy() > Size {
		thumb = imaging.Fit(img, Size, Size, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Prepare reads a photo upload and pairs it with its thumbnail under a new id.
func Prepare(r io.Reader) (model.PhotoToSave, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return model.PhotoToSave{}, fmt.Errorf("read photo: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return model.PhotoToSave{}, ErrTooLarge
	}
	thumb, err := Make(data)
	if err != nil {
		return model.PhotoToSave{}, err
	}
	return model.PhotoToSave{ID: model.NewPhotoID(), Data: data, Thumbnail: thumb}, nil
}

// Dimensions reports the size of an encoded image without decoding pixels.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
