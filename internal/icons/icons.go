// Package icons generates PWA manifest icons.
//
// Every size is rendered as an exact square with Lanczos resampling, so a
// non-square source is stretched, not cropped. All sizes are rendered
// before anything is written.
package icons

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

// ErrSourceNotFound is returned when the source image does not exist
var ErrSourceNotFound = errors.New("source image not found")

// DefaultSizes are the Android/PWA icon sizes
var DefaultSizes = []int{192, 512}

// Icon is a generated file
type Icon struct {
	Size int
	Path string
}

// Generator resizes a source image into square icons
type Generator struct {
	fs     afero.Fs
	filter imaging.ResampleFilter
}

// NewGenerator creates a generator writing through fs
func NewGenerator(fs afero.Fs) *Generator {
	return &Generator{fs: fs, filter: imaging.Lanczos}
}

// Resize scales img to exactly size x size pixels
func (g *Generator) Resize(img image.Image, size int) *image.NRGBA {
	return imaging.Resize(img, size, size, g.filter)
}

// FileName returns the output file name for a size
func FileName(size int) string {
	return fmt.Sprintf("icon-%d.png", size)
}

// Generate decodes source and writes one PNG per size into outDir
func (g *Generator) Generate(source, outDir string, sizes []int) ([]Icon, error) {
	if len(sizes) == 0 {
		return nil, errors.New("no icon sizes configured")
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("invalid icon size %d", s)
		}
	}

	ok, err := afero.Exists(g.fs, source)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", source, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", source, ErrSourceNotFound)
	}

	src, err := g.decode(source)
	if err != nil {
		return nil, err
	}

	rendered := make([]*image.NRGBA, len(sizes))
	for i, s := range sizes {
		rendered[i] = g.Resize(src, s)
	}

	if err := g.fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	icons := make([]Icon, 0, len(sizes))
	for i, s := range sizes {
		path := filepath.Join(outDir, FileName(s))
		if err := g.write(path, rendered[i]); err != nil {
			return icons, err
		}
		icons = append(icons, Icon{Size: s, Path: path})
	}
	return icons, nil
}

func (g *Generator) decode(path string) (image.Image, error) {
	f, err := g.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func (g *Generator) write(path string, img image.Image) error {
	f, err := g.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
