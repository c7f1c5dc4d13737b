package imaging

import (
	"bytes"
	"fmt"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// Meta holds the EXIF context extracted from a photo. It is attached to the
// understanding prompt so the model can reason about when and where a photo
// was taken.
type Meta struct {
	Taken   time.Time
	HasDate bool

	Latitude  float64
	Longitude float64
	HasGPS    bool
}

// ExtractMeta reads EXIF metadata from image bytes. Photos without usable
// EXIF yield an empty Meta, not an error. Metadata is context, never a
// requirement.
func ExtractMeta(data []byte) Meta {
	var meta Meta

	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata decoded from image")
		return meta
	}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		meta.Latitude = gps.Latitude()
		meta.Longitude = gps.Longitude()
		meta.HasGPS = true
	}

	// Prefer the capture timestamp, then creation, then modification.
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		meta.Taken = exifData.DateTimeOriginal()
		meta.HasDate = true
	case !exifData.CreateDate().IsZero():
		meta.Taken = exifData.CreateDate()
		meta.HasDate = true
	case !exifData.ModifyDate().IsZero():
		meta.Taken = exifData.ModifyDate()
		meta.HasDate = true
	}

	return meta
}

// ContextLine formats the metadata as a single prompt line, or "" when no
// metadata is available.
func (m Meta) ContextLine() string {
	var line string
	if m.HasDate {
		line = "taken " + m.Taken.Format("2006-01-02 15:04")
	}
	if m.HasGPS {
		if line != "" {
			line += ", "
		}
		line += fmt.Sprintf("GPS %.5f, %.5f", m.Latitude, m.Longitude)
	}
	return line
}
