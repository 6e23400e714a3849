package imaging

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/basicfont"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#ffffff", color.RGBA{255, 255, 255, 255}, false},
		{"292929", color.RGBA{0x29, 0x29, 0x29, 255}, false},
		{"#f00", color.RGBA{255, 0, 0, 255}, false},
		{"#00000080", color.RGBA{0, 0, 0, 0x80}, false},
		{"#12345", color.RGBA{}, true},
		{"#zzzzzz", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
	if v, _ := HexToInt("#5865F2"); v != 0x5865F2 {
		t.Fatalf("HexToInt = %x", v)
	}
	if c := HexOr("nope", color.RGBA{1, 2, 3, 4}); c != (color.RGBA{1, 2, 3, 4}) {
		t.Fatalf("HexOr fallback = %v", c)
	}
}

func TestFitWithinKeepsAspect(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{"wide", 400, 200, 200, 200, 200, 100},
		{"tall", 100, 400, 200, 200, 50, 200},
		{"upscale", 50, 50, 200, 200, 200, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Solid(tt.w, tt.h, color.White)
			got, err := FitWithin(src, tt.maxW, tt.maxH)
			if err != nil {
				t.Fatal(err)
			}
			if b := got.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
	if _, err := FitWithin(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10, 10); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestPasteCentered(t *testing.T) {
	dst := Solid(100, 100, color.Black)
	red := color.RGBA{255, 0, 0, 255}
	PasteCentered(dst, Solid(20, 10, red), 50, 50)

	if got := dst.RGBAAt(50, 50); got != red {
		t.Fatalf("center pixel = %v", got)
	}
	if got := dst.RGBAAt(40, 45); got != red {
		t.Fatalf("top-left of pasted area = %v", got)
	}
	if got := dst.RGBAAt(39, 45); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("pixel left of pasted area = %v", got)
	}
}

func TestOverlayStretchesToDestination(t *testing.T) {
	dst := Solid(40, 20, color.Black)
	blue := color.RGBA{0, 0, 255, 255}
	Overlay(dst, Solid(4, 2, blue))
	for _, pt := range []image.Point{{0, 0}, {20, 10}, {39, 19}} {
		got := dst.RGBAAt(pt.X, pt.Y)
		if got.B < 250 || got.R > 5 || got.G > 5 {
			t.Fatalf("pixel %v = %v, want blue", pt, got)
		}
	}
}

func TestDrawTextCentered(t *testing.T) {
	dst := Solid(200, 50, color.Black)
	white := color.RGBA{255, 255, 255, 255}
	face := basicfont.Face7x13

	w, h := Measure(face, "VS")
	if w != 14 || h != 13 {
		t.Fatalf("measure = %dx%d", w, h)
	}
	DrawText(dst, face, "VS", 100, 10, white, AlignCenter, AnchorTop)

	minX, maxX := 200, -1
	for y := 0; y < 50; y++ {
		for x := 0; x < 200; x++ {
			if dst.RGBAAt(x, y) != (color.RGBA{0, 0, 0, 255}) {
				minX = min(minX, x)
				maxX = max(maxX, x)
			}
		}
	}
	if maxX < 0 {
		t.Fatal("nothing was drawn")
	}
	if minX < 93 || maxX > 107 {
		t.Fatalf("text not centered on x=100: spans %d..%d", minX, maxX)
	}
}

func TestLoadFontFallback(t *testing.T) {
	dir := t.TempDir()
	f, err := LoadFont(filepath.Join(dir, "missing.ttf"))
	if err == nil || !f.Fallback() {
		t.Fatalf("expected fallback with error, got %v", err)
	}

	empty := filepath.Join(dir, "font.ttf")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err = LoadFont(empty)
	if err == nil || !f.Fallback() {
		t.Fatalf("expected fallback for empty font, got %v", err)
	}
	face, err := f.Face(48)
	if err != nil || face == nil {
		t.Fatalf("fallback face: %v", err)
	}
}

func TestSaveAndLoadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "img.png")
	if err := SavePNG(path, Solid(3, 2, color.White)); err != nil {
		t.Fatal(err)
	}
	img, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("bounds = %v", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}
}

func TestFetcher(t *testing.T) {
	pngData, err := EncodePNG(Solid(8, 8, color.White))
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngData)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewFetcher(srv.Client(), 100, 10)
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/logo.png")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Format != "png" || got.Ext() != "png" || got.Image.Bounds().Dx() != 8 {
		t.Fatalf("unexpected result: %s %v", got.Format, got.Image.Bounds())
	}

	tests := []struct {
		name string
		url  string
		want error
	}{
		{"scheme", "ftp://example.com/a.png", ErrInvalidURL},
		{"no url", "logo", ErrInvalidURL},
		{"status", srv.URL + "/missing", ErrHTTPStatus},
		{"not image", srv.URL + "/text", ErrNotImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Fetch(ctx, tt.url); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	f.maxBytes = 10
	if _, err := f.Fetch(ctx, srv.URL+"/logo.png"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
