// Package photo normalizes uploaded inspection photos: bounded size,
// JPEG output, generated file names.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	MaxDimension = 1920
	JPEGQuality  = 85
	MimeType     = "image/jpeg"
)

var ErrNotImage = errors.New("not a supported image")

type Optimized struct {
	Data         []byte
	FileName     string
	Width        int
	Height       int
	OriginalSize int
}

// Optimize decodes data (honoring EXIF orientation), shrinks it to fit
// MaxDimension on both sides without enlarging, and re-encodes it as JPEG.
func Optimize(data []byte, now time.Time) (Optimized, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Optimized{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	img := imaging.Fit(src, MaxDimension, MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return Optimized{}, fmt.Errorf("encode jpeg: %w", err)
	}
	bounds := img.Bounds()
	return Optimized{
		Data:         buf.Bytes(),
		FileName:     FileName(now),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		OriginalSize: len(data),
	}, nil
}

// FileName returns IMG_<unix-ms>_<6 random chars>.jpg.
func FileName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("IMG_%d_%s.jpg", now.UnixMilli(), suffix)
}

// IsImageType reports whether a declared MIME type is an image type.
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
