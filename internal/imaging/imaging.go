// Package imaging prepares user photos for upload to the generative backend:
// MIME sniffing, aspect-preserving downscaling, and EXIF context extraction.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultMaxDimension is the maximum width or height sent to the backend.
// Larger photos are downscaled; the backend never needs full resolution to
// plan or apply enhancements.
const DefaultMaxDimension = 1536

// jpegQuality for re-encoded downscaled photos.
const jpegQuality = 85

// SniffMIME detects the MIME type of image bytes from their magic numbers.
func SniffMIME(data []byte) string {
	return http.DetectContentType(data)
}

// Downscale resizes an image so neither dimension exceeds maxDim, preserving
// aspect ratio. Images already within bounds are returned unchanged, original
// bytes and MIME intact. Downscaled output is re-encoded as JPEG.
func Downscale(data []byte, mime string, maxDim int) ([]byte, string, error) {
	var img image.Image
	var err error

	switch mime {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", mime)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW <= maxDim && origH <= maxDim {
		return data, mime, nil
	}

	newW, newH := fitDimensions(origW, origH, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode downscaled image: %w", err)
	}

	log.Debug().
		Int("orig_width", origW).
		Int("orig_height", origH).
		Int("new_width", newW).
		Int("new_height", newH).
		Int("bytes", buf.Len()).
		Msg("Downscaled image for backend upload")

	return buf.Bytes(), "image/jpeg", nil
}

// fitDimensions scales (w, h) down so the larger side equals maxDim.
func fitDimensions(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}
