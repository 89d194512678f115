package utils

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func TestScaleToFit(t *testing.T) {
	cases := []struct {
		w, h, maxSide int
		wantW, wantH  int
	}{
		{4000, 3000, 1920, 1920, 1440},
		{3000, 4000, 1920, 1440, 1920},
		{1920, 1080, 1920, 1920, 1080},
		{800, 600, 1920, 800, 600},
		{5000, 2, 1920, 1920, 1},
	}
	for _, tc := range cases {
		gotW, gotH := ScaleToFit(tc.w, tc.h, tc.maxSide)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Fatalf("ScaleToFit(%d, %d, %d) = %dx%d, want %dx%d", tc.w, tc.h, tc.maxSide, gotW, gotH, tc.wantW, tc.wantH)
		}
	}
}

func TestResizeImageDimensions(t *testing.T) {
	out := ResizeImage(solidImage(40, 20), 10, 5)
	if got := out.Bounds().Dx(); got != 10 {
		t.Fatalf("width = %d, want 10", got)
	}
	if got := out.Bounds().Dy(); got != 5 {
		t.Fatalf("height = %d, want 5", got)
	}
}

func TestEncodeDecodeRoundTripFormats(t *testing.T) {
	img := solidImage(16, 8)

	jpg, err := EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if _, format, err := DecodeImage(jpg); err != nil || format != FormatJPEG {
		t.Fatalf("DecodeImage(jpeg) format = %q, err = %v", format, err)
	}

	pngData, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	decoded, format, err := DecodeImage(pngData)
	if err != nil || format != FormatPNG {
		t.Fatalf("DecodeImage(png) format = %q, err = %v", format, err)
	}
	if decoded.Bounds().Dx() != 16 || decoded.Bounds().Dy() != 8 {
		t.Fatalf("decoded bounds = %v, want 16x8", decoded.Bounds())
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestEncodeWebPProducesRIFF(t *testing.T) {
	data, err := EncodeWebP(solidImage(8, 8), 80)
	if err != nil {
		t.Fatalf("EncodeWebP: %v", err)
	}
	if len(data) < 12 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		t.Fatalf("output does not look like WebP: % x", data[:min(12, len(data))])
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	url := DataURL("image/png", payload)
	if url != "data:image/png;base64,iVBORw==" {
		t.Fatalf("DataURL = %q", url)
	}

	mimeType, data, err := ParseDataURL(url)
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if mimeType != "image/png" || !bytes.Equal(data, payload) {
		t.Fatalf("ParseDataURL = %q, %v", mimeType, data)
	}

	for _, bad := range []string{"http://x", "data:image/png;base64", "data:image/png,abc", "data:image/png;base64,@@"} {
		if _, _, err := ParseDataURL(bad); err == nil {
			t.Fatalf("ParseDataURL(%q) expected error", bad)
		}
	}
}

func TestResizeImageSmoothsFineDetail(t *testing.T) {
	// one-pixel black and white columns; point sampling would keep only one colour
	src := image.NewGray(image.Rect(0, 0, 40, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 40; x += 2 {
			src.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out := ResizeImage(src, 20, 2)
	for x := 4; x < 16; x++ {
		r, _, _, _ := out.At(x, 1).RGBA()
		if v := r >> 8; v < 64 || v > 192 {
			t.Fatalf("pixel %d = %d, want a blended grey", x, v)
		}
	}
}

func TestReadImageHeader(t *testing.T) {
	data, err := EncodePNG(solidImage(30, 12))
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	cfg, format, err := ReadImageHeader(data)
	if err != nil {
		t.Fatalf("ReadImageHeader: %v", err)
	}
	if format != FormatPNG || cfg.Width != 30 || cfg.Height != 12 {
		t.Fatalf("ReadImageHeader = %s %dx%d, want png 30x12", format, cfg.Width, cfg.Height)
	}
	if _, _, err := ReadImageHeader([]byte("nope")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}
