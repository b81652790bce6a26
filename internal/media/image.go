// Package media prepares images for upload: it checks the format, downsizes
// to a maximum side and re-encodes.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"
	"net/http"
	"strings"

	"socialnet/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxSide = 1024
	JPEGQuality    = 82
	WebPQuality    = 70
	// MaxUploadBytes bounds what Prepare will read.
	MaxUploadBytes = 10 << 20
)

// Output formats.
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// Options controls Prepare. Zero values mean DefaultMaxSide and JPEG.
type Options struct {
	MaxSide int
	Format  string
}

// PrepareImage decodes an image, fits it within maxSide and re-encodes it as JPEG.
func PrepareImage(r io.Reader, maxSide int) (models.Upload, error) {
	return Prepare(r, Options{MaxSide: maxSide})
}

// Prepare decodes a jpeg, png, gif or webp image, fits it within
// opts.MaxSide and re-encodes it in opts.Format.
func Prepare(r io.Reader, opts Options) (models.Upload, error) {
	if opts.MaxSide <= 0 {
		opts.MaxSide = DefaultMaxSide
	}
	if opts.Format == "" {
		opts.Format = FormatJPEG
	}
	if opts.Format != FormatJPEG && opts.Format != FormatWebP {
		return models.Upload{}, models.NewValidationError("Unsupported output format: " + opts.Format)
	}

	content, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return models.Upload{}, fmt.Errorf("read image: %w", err)
	}
	if len(content) == 0 {
		return models.Upload{}, models.NewValidationError("No file uploaded")
	}
	if len(content) > MaxUploadBytes {
		return models.Upload{}, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", MaxUploadBytes>>20))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return models.Upload{}, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return models.Upload{}, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return models.Upload{}, models.NewValidationError("Unsupported image format")
	}

	fitted := resizeToFit(decoded, opts.MaxSide, opts.MaxSide)
	var data []byte
	var contentType, ext string
	switch opts.Format {
	case FormatWebP:
		data, err = encodeWebP(fitted, WebPQuality)
		contentType, ext = "image/webp", ".webp"
	default:
		data, err = encodeJPEG(fitted, JPEGQuality)
		contentType, ext = "image/jpeg", ".jpg"
	}
	if err != nil {
		return models.Upload{}, models.NewInternalError(err)
	}

	return models.Upload{
		Filename:    uuid.NewString() + ext,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(format) {
	case "jpeg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}
