package began

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// LoadImages Reads up to limit images from dir into TrainSet
//
// dir - folder with .jpg/.jpeg/.png files (not recursive)
// limit - max number of images. Non-positive value means "every image"
// shape - expected shape of each image. Grayscale images are replicated into every channel
// logger - receives warning when folder has fewer images than limit. Could be nil
//
// Images are read in lexicographical order of file names, pixels are normalized to [-1;1].
func LoadImages(dir string, limit int, shape ImageShape, logger *log.Logger) (*TrainSet, error) {
	if shape.Channels != 1 && shape.Channels != 3 {
		return nil, fmt.Errorf("only 1 or 3 channels are supported, but got %d", shape.Channels)
	}
	files, err := listImages(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in '%s'", dir)
	}
	if limit > 0 {
		if len(files) > limit {
			files = files[:limit]
		} else if len(files) < limit && logger != nil {
			logger.Printf("dataset=%s requested=%d found=%d\n", dir, limit, len(files))
		}
	}
	size := shape.Channels * shape.Height * shape.Width
	data := make([]float64, len(files)*size)
	for i, fname := range files {
		img, err := decodeImage(fname)
		if err != nil {
			return nil, err
		}
		if err := fillPixels(data[i*size:(i+1)*size], img, shape); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't use image '%s'", fname))
		}
	}
	return NewTrainSet(tensor.New(tensor.WithShape(shape.Batch(len(files))...), tensor.WithBacking(data)))
}

func listImages(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't read folder '%s'", dir))
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func decodeImage(fname string) (image.Image, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open image '%s'", fname))
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't decode image '%s'", fname))
	}
	return img, nil
}

// fillPixels Writes CHW pixels of img into dst
func fillPixels(dst []float64, img image.Image, shape ImageShape) error {
	bounds := img.Bounds()
	if bounds.Dx() != shape.Width || bounds.Dy() != shape.Height {
		return fmt.Errorf("expected %dx%d image, but got %dx%d", shape.Width, shape.Height, bounds.Dx(), bounds.Dy())
	}
	plane := shape.Height * shape.Width
	for y := 0; y < shape.Height; y++ {
		for x := 0; x < shape.Width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pos := y*shape.Width + x
			if shape.Channels == 1 {
				dst[pos] = normalizePixel((r + g + b) / 3)
				continue
			}
			// Grayscale images give r == g == b, so they are replicated naturally
			dst[pos] = normalizePixel(r)
			dst[plane+pos] = normalizePixel(g)
			dst[2*plane+pos] = normalizePixel(b)
		}
	}
	return nil
}

// normalizePixel Maps 16-bit color component to [-1;1] through 8-bit value: p/255*2-1
func normalizePixel(c uint32) float64 {
	return float64(c>>8)/255.0*2.0 - 1.0
}

// denormalizePixel Maps [-1;1] back to [0;255]
func denormalizePixel(v float64) uint8 {
	p := (v + 1.0) / 2.0 * 255.0
	if p < 0 {
		return 0
	}
	if p > 255 {
		return 255
	}
	return uint8(p + 0.5)
}
