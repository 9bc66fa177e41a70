package began

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, fname string, img image.Image) {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ioutil.WriteFile(fname, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	rgb := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgb.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	rgb.SetRGBA(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})
	rgb.SetRGBA(0, 1, color.RGBA{R: 0, G: 0, B: 255, A: 255})
	rgb.SetRGBA(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	writePNG(t, filepath.Join(dir, "b.png"), rgb)

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range gray.Pix {
		gray.Pix[i] = 0
	}
	gray.SetGray(1, 1, color.Gray{Y: 255})
	writePNG(t, filepath.Join(dir, "a.png"), gray)

	if err := ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	shape := ImageShape{Channels: 3, Height: 2, Width: 2}
	ts, err := LoadImages(dir, 0, shape, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ts.DataLength != 2 {
		t.Fatalf("expected 2 images, got %d", ts.DataLength)
	}
	data := ts.TrainData.Data().([]float64)
	// a.png goes first: grayscale replicated into every channel
	wantGray := []float64{
		-1, -1, -1, 1,
		-1, -1, -1, 1,
		-1, -1, -1, 1,
	}
	wantRGB := []float64{
		1, -1, -1, 1,
		-1, 1, -1, 1,
		-1, -1, 1, 1,
	}
	want := append(wantGray, wantRGB...)
	for i := range want {
		if math.Abs(data[i]-want[i]) > 1e-12 {
			t.Fatalf("element %d: expected %v, got %v", i, want[i], data[i])
		}
	}

	limited, err := LoadImages(dir, 1, shape, nil)
	if err != nil {
		t.Fatal(err)
	}
	if limited.DataLength != 1 {
		t.Errorf("expected single image, got %d", limited.DataLength)
	}

	logs := &bytes.Buffer{}
	if _, err := LoadImages(dir, 10, shape, log.New(logs, "", 0)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "found=2") {
		t.Errorf("shortfall hasn't been logged: %q", logs.String())
	}
}

func TestLoadImagesErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadImages(dir, 0, ImageShape{Channels: 3, Height: 2, Width: 2}, nil); err == nil {
		t.Errorf("expected error for empty folder")
	}
	writePNG(t, filepath.Join(dir, "small.png"), image.NewGray(image.Rect(0, 0, 1, 1)))
	_, err := LoadImages(dir, 0, ImageShape{Channels: 3, Height: 2, Width: 2}, nil)
	if err == nil || !strings.Contains(err.Error(), "small.png") {
		t.Errorf("expected error naming wrong-sized file, got %v", err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadImages(dir, 0, ImageShape{Channels: 3, Height: 1, Width: 1}, nil)
	if err == nil || !strings.Contains(err.Error(), "broken.jpg") {
		t.Errorf("expected error naming undecodable file, got %v", err)
	}
	if _, err := LoadImages(filepath.Join(dir, "missing"), 0, ImageShape{Channels: 3, Height: 1, Width: 1}, nil); err == nil {
		t.Errorf("expected error for missing folder")
	}
}

func TestPixelNormalization(t *testing.T) {
	for _, p := range []uint8{0, 1, 127, 128, 254, 255} {
		v := normalizePixel(uint32(p) * 0x101)
		if v < -1 || v > 1 {
			t.Fatalf("pixel %d out of range: %v", p, v)
		}
		if back := denormalizePixel(v); back != p {
			t.Errorf("pixel %d: round trip gives %d", p, back)
		}
	}
	if denormalizePixel(-5) != 0 || denormalizePixel(5) != 255 {
		t.Errorf("out of range values must be clipped")
	}
}
