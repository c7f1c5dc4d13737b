package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSniffMIME(t *testing.T) {
	if got := SniffMIME(encodeJPEG(t, 4, 4)); got != "image/jpeg" {
		t.Errorf("SniffMIME jpeg = %q", got)
	}
	if got := SniffMIME(encodePNG(t, 4, 4)); got != "image/png" {
		t.Errorf("SniffMIME png = %q", got)
	}
}

func TestDownscaleWithinBoundsUnchanged(t *testing.T) {
	data := encodeJPEG(t, 100, 50)
	out, mime, err := Downscale(data, "image/jpeg", 1536)
	if err != nil {
		t.Fatalf("Downscale: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("in-bounds image was re-encoded")
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q", mime)
	}
}

func TestDownscaleLargeImage(t *testing.T) {
	data := encodePNG(t, 800, 400)
	out, mime, err := Downscale(data, "image/png", 200)
	if err != nil {
		t.Fatalf("Downscale: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("downscaled mime = %q, want re-encoded JPEG", mime)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("output is %dx%d, want 200x100", b.Dx(), b.Dy())
	}
}

func TestDownscaleUnsupportedFormat(t *testing.T) {
	if _, _, err := Downscale([]byte("GIF89a"), "image/gif", 100); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestFitDimensions(t *testing.T) {
	cases := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{3000, 2000, 1500, 1500, 1000},
		{2000, 3000, 1500, 1000, 1500},
		{4000, 1, 100, 100, 1},
	}
	for _, tc := range cases {
		w, h := fitDimensions(tc.w, tc.h, tc.max)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("fitDimensions(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tc.w, tc.h, tc.max, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestExtractMetaNoEXIF(t *testing.T) {
	meta := ExtractMeta(encodePNG(t, 4, 4))
	if meta.HasDate || meta.HasGPS {
		t.Errorf("meta = %+v, want empty for a bare PNG", meta)
	}
	if meta.ContextLine() != "" {
		t.Errorf("context line = %q, want empty", meta.ContextLine())
	}
}

func TestContextLine(t *testing.T) {
	meta := Meta{HasGPS: true, Latitude: 1.23456, Longitude: 103.98765}
	if got := meta.ContextLine(); got != "GPS 1.23456, 103.98765" {
		t.Errorf("context line = %q", got)
	}
}
