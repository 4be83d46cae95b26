package images

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Backend names the library that performs the resampling.
type Backend string

const (
	// BackendResize resamples with github.com/nfnt/resize.
	BackendResize Backend = "resize"
	// BackendImaging resamples with github.com/disintegration/imaging.
	BackendImaging Backend = "imaging"
	// BackendBild resamples with github.com/anthonynsimon/bild.
	BackendBild Backend = "bild"
	// BackendDraw resamples with golang.org/x/image/draw.
	BackendDraw Backend = "draw"
)

// Filter names the interpolation kernel.
type Filter string

const (
	FilterNearest Filter = "nearest"
	FilterLinear  Filter = "linear"
	FilterCubic   Filter = "cubic"
	FilterLanczos Filter = "lanczos"
)

// Upsampler enlarges a batch of images.
//
// Upsampling changes the pixel grid the detector sees, so annotations recorded
// on the original images must be rescaled with ScaleFactors before evaluation.
type Upsampler interface {
	Upsample(ctx context.Context, imgs []image.Image) ([]image.Image, error)
}

// UpsamplerConfig selects an upsampling technique.
type UpsamplerConfig struct {
	Backend Backend `json:"backend" yaml:"backend"`
	Filter  Filter  `json:"filter"  yaml:"filter"`
	// Factor multiplies both image dimensions. Must be > 0.
	Factor float64 `json:"factor" yaml:"factor"`
}

// DefaultUpsamplerConfig returns a 4x Lanczos upsampler, the factor used by
// common super-resolution networks.
func DefaultUpsamplerConfig() UpsamplerConfig {
	return UpsamplerConfig{
		Backend: BackendResize,
		Filter:  FilterLanczos,
		Factor:  4,
	}
}

type resampleFunc func(img image.Image, width, height int) image.Image

type upsampler struct {
	factor   float64
	resample resampleFunc
}

// NewUpsampler builds the Upsampler described by cfg.
//
// Arguments:
//   - cfg: Backend, filter and scale factor.
//
// Returns:
//   - Upsampler: The configured upsampler.
//   - error: If the factor is invalid or the backend does not support the filter.
func NewUpsampler(cfg UpsamplerConfig) (Upsampler, error) {
	if cfg.Factor <= 0 || math.IsNaN(cfg.Factor) || math.IsInf(cfg.Factor, 0) {
		return nil, fmt.Errorf("invalid upsampling factor %v", cfg.Factor)
	}

	var fn resampleFunc
	var err error
	switch cfg.Backend {
	case BackendResize:
		fn, err = resizeFunc(cfg.Filter)
	case BackendImaging:
		fn, err = imagingFunc(cfg.Filter)
	case BackendBild:
		fn, err = bildFunc(cfg.Filter)
	case BackendDraw:
		fn, err = drawFunc(cfg.Filter)
	default:
		return nil, fmt.Errorf("unsupported upsampling backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "backend %s", cfg.Backend)
	}

	return &upsampler{factor: cfg.Factor, resample: fn}, nil
}

// Upsample resizes every image by the configured factor.
func (u *upsampler) Upsample(ctx context.Context, imgs []image.Image) ([]image.Image, error) {
	out := make([]image.Image, 0, len(imgs))
	for i, img := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if img == nil {
			return nil, fmt.Errorf("image %d is nil", i)
		}
		b := img.Bounds()
		w := int(math.Round(float64(b.Dx()) * u.factor))
		h := int(math.Round(float64(b.Dy()) * u.factor))
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("image %d: target size %dx%d is empty", i, w, h)
		}
		out = append(out, u.resample(img, w, h))
	}
	return out, nil
}

func resizeFunc(f Filter) (resampleFunc, error) {
	var interp resize.InterpolationFunction
	switch f {
	case FilterNearest:
		interp = resize.NearestNeighbor
	case FilterLinear:
		interp = resize.Bilinear
	case FilterCubic:
		interp = resize.Bicubic
	case FilterLanczos:
		interp = resize.Lanczos3
	default:
		return nil, fmt.Errorf("unsupported filter %q", f)
	}
	return func(img image.Image, width, height int) image.Image {
		return resize.Resize(uint(width), uint(height), img, interp)
	}, nil
}

func imagingFunc(f Filter) (resampleFunc, error) {
	var filter imaging.ResampleFilter
	switch f {
	case FilterNearest:
		filter = imaging.NearestNeighbor
	case FilterLinear:
		filter = imaging.Linear
	case FilterCubic:
		filter = imaging.CatmullRom
	case FilterLanczos:
		filter = imaging.Lanczos
	default:
		return nil, fmt.Errorf("unsupported filter %q", f)
	}
	return func(img image.Image, width, height int) image.Image {
		return imaging.Resize(img, width, height, filter)
	}, nil
}

func bildFunc(f Filter) (resampleFunc, error) {
	var filter transform.ResampleFilter
	switch f {
	case FilterNearest:
		filter = transform.NearestNeighbor
	case FilterLinear:
		filter = transform.Linear
	case FilterCubic:
		filter = transform.CatmullRom
	case FilterLanczos:
		filter = transform.Lanczos
	default:
		return nil, fmt.Errorf("unsupported filter %q", f)
	}
	return func(img image.Image, width, height int) image.Image {
		return transform.Resize(img, width, height, filter)
	}, nil
}

func drawFunc(f Filter) (resampleFunc, error) {
	var scaler draw.Scaler
	switch f {
	case FilterNearest:
		scaler = draw.NearestNeighbor
	case FilterLinear:
		scaler = draw.BiLinear
	case FilterCubic:
		scaler = draw.CatmullRom
	default:
		return nil, fmt.Errorf("unsupported filter %q", f)
	}
	return func(img image.Image, width, height int) image.Image {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		return dst
	}, nil
}

// ScaleFactors returns the horizontal and vertical factors that map
// coordinates on src onto dst. These are the x/y scales the evaluator applies
// to ground truth recorded on src when the detector ran on dst.
//
// Arguments:
//   - src: Bounds of the image the annotations were recorded on.
//   - dst: Bounds of the image the detector saw.
//
// Returns:
//   - float64: The x scale.
//   - float64: The y scale.
//   - error: If src is empty.
func ScaleFactors(src, dst image.Rectangle) (float64, float64, error) {
	if src.Dx() <= 0 || src.Dy() <= 0 {
		return 0, 0, fmt.Errorf("source bounds %v are empty", src)
	}
	return float64(dst.Dx()) / float64(src.Dx()), float64(dst.Dy()) / float64(src.Dy()), nil
}
