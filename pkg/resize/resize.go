// Package resize scales images to an exact size with a high quality
// Lanczos filter. Several resampling libraries are available behind the
// same Resizer interface; they differ in speed and ringing, not in the
// output size.
package resize

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	nfnt "github.com/nfnt/resize"
)

// Resizer scales img to exactly width x height. The aspect ratio is not
// preserved.
type Resizer interface {
	Resize(img image.Image, width, height int) (image.Image, error)
}

// Default is the name of the resizer used when none is configured
const Default = "imaging"

var resizers = map[string]Resizer{
	"imaging": &Imaging{},
	"gift":    &Gift{},
	"bild":    &Bild{},
	"nfnt":    &Nfnt{},
}

// ByName returns the resizer registered under name
func ByName(name string) (Resizer, error) {
	if name == "" {
		name = Default
	}
	r, ok := resizers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown resizer %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return r, nil
}

// Names lists the registered resizers
func Names() []string {
	names := make([]string, 0, len(resizers))
	for name := range resizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return nil
}

// Imaging uses "github.com/disintegration/imaging"
type Imaging struct{}

// Resize ...
func (r *Imaging) Resize(img image.Image, width, height int) (image.Image, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// Gift uses "github.com/disintegration/gift"
type Gift struct{}

// Resize ...
func (r *Gift) Resize(img image.Image, width, height int) (image.Image, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	m := image.NewNRGBA(image.Rect(0, 0, width, height))
	gift.Resize(width, height, gift.LanczosResampling).Draw(m, img, &gift.Options{Parallelization: true})
	return m, nil
}

// Bild uses "github.com/anthonynsimon/bild/transform"
type Bild struct{}

// Resize ...
func (r *Bild) Resize(img image.Image, width, height int) (image.Image, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	return transform.Resize(img, width, height, transform.Lanczos), nil
}

// Nfnt uses "github.com/nfnt/resize"
type Nfnt struct{}

// Resize ...
func (r *Nfnt) Resize(img image.Image, width, height int) (image.Image, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	return nfnt.Resize(uint(width), uint(height), img, nfnt.Lanczos3), nil
}
