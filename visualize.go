package began

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

const (
	VisualizationGenerator     = "generator"
	VisualizationDiscriminator = "discriminator"
)

// Visualizer Renders batch of images produced during training
type Visualizer interface {
	Render(kind string, images *tensor.Dense, epoch, batch int) error
}

// GridRenderer Tiles up to Rows*Cols images into single PNG file
//
// Dir - output folder
// Rows, Cols - grid size
// Spacing - gap between tiles in pixels
// Size - size of resulting picture
//
type GridRenderer struct {
	Dir     string
	Rows    int
	Cols    int
	Spacing int
	Size    vg.Length
}

// NewGridRenderer 10x10 grid of 8x8 inches, like sample sheets of the training script
func NewGridRenderer(dir string) *GridRenderer {
	return &GridRenderer{
		Dir:     dir,
		Rows:    10,
		Cols:    10,
		Spacing: 2,
		Size:    8 * vg.Inch,
	}
}

// Filename Name of file for given kind of images, epoch and batch
func (gr *GridRenderer) Filename(kind string, epoch, batch int) string {
	return filepath.Join(gr.Dir, fmt.Sprintf("%s_epoch_%04d-%d.png", kind, epoch, batch))
}

// Render Saves images grid
func (gr *GridRenderer) Render(kind string, images *tensor.Dense, epoch, batch int) error {
	grid, err := GridImage(images, gr.Rows, gr.Cols, gr.Spacing)
	if err != nil {
		return errors.Wrap(err, "Can't tile images")
	}
	if err := os.MkdirAll(gr.Dir, 0755); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create folder '%s'", gr.Dir))
	}
	bounds := grid.Bounds()
	p := plot.New()
	p.HideAxes()
	p.Add(plotter.NewImage(grid, 0, 0, float64(bounds.Dx()), float64(bounds.Dy())))
	fname := gr.Filename(kind, epoch, batch)
	if err := p.Save(gr.Size, gr.Size, fname); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't save plot '%s'", fname))
	}
	return nil
}

// GridImage Tiles [N, C, H, W] images with values in [-1;1] into rows x cols grid.
// Images beyond rows*cols are ignored, missing ones leave blank tiles.
func GridImage(images *tensor.Dense, rows, cols, spacing int) (*image.RGBA, error) {
	if images.Dims() != 4 {
		return nil, fmt.Errorf("images must have 4 dimensions [N, C, H, W], but got %v", images.Shape())
	}
	if rows < 1 || cols < 1 || spacing < 0 {
		return nil, fmt.Errorf("bad grid %dx%d with spacing %d", rows, cols, spacing)
	}
	shp := images.Shape()
	n, channels, height, width := shp[0], shp[1], shp[2], shp[3]
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("only 1 or 3 channels could be rendered, but got %d", channels)
	}
	data, err := float64Data(images)
	if err != nil {
		return nil, err
	}
	grid := image.NewRGBA(image.Rect(0, 0, cols*width+(cols-1)*spacing, rows*height+(rows-1)*spacing))
	for i := range grid.Pix {
		grid.Pix[i] = 255
	}
	plane := height * width
	for idx := 0; idx < n && idx < rows*cols; idx++ {
		offsetX := (idx % cols) * (width + spacing)
		offsetY := (idx / cols) * (height + spacing)
		sample := data[idx*channels*plane : (idx+1)*channels*plane]
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pos := y*width + x
				r := denormalizePixel(sample[pos])
				g, b := r, r
				if channels == 3 {
					g = denormalizePixel(sample[plane+pos])
					b = denormalizePixel(sample[2*plane+pos])
				}
				grid.SetRGBA(offsetX+x, offsetY+y, color.RGBA{R: r, G: g, B: b, A: 255})
			}
		}
	}
	return grid, nil
}
