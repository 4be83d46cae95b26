// Command upsample enlarges a directory of images and prints the x/y scales to
// use when evaluating detections made on the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-eval/images"
	"github.com/nvr-ai/go-eval/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	defaults := images.DefaultUpsamplerConfig()
	var (
		input   = flag.String("input", "", "Directory of source images")
		output  = flag.String("output", "", "Directory the upsampled PNGs are written to")
		backend = flag.String("backend", string(defaults.Backend), "Resampling library: resize, imaging, bild or draw")
		filter  = flag.String("filter", string(defaults.Filter), "Interpolation: nearest, linear, cubic or lanczos")
		factor  = flag.Float64("factor", defaults.Factor, "Scale factor applied to both dimensions")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if *input == "" || *output == "" {
		flag.Usage()
		os.Exit(2)
	}

	up, err := images.NewUpsampler(images.UpsamplerConfig{
		Backend: images.Backend(*backend),
		Filter:  images.Filter(*filter),
		Factor:  *factor,
	})
	if err != nil {
		logger.Fatal("invalid upsampler", zap.Error(err))
	}

	files, err := util.LoadDirectoryImageFiles(*input)
	if err != nil {
		logger.Fatal("failed to read input", zap.Error(err))
	}
	if len(files) == 0 {
		logger.Fatal("no images found", zap.String("input", *input))
	}

	src := make([]image.Image, len(files))
	for i, f := range files {
		if src[i], err = f.Decode(); err != nil {
			logger.Fatal("failed to decode image", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dst, err := up.Upsample(ctx, src)
	if err != nil {
		logger.Fatal("upsampling failed", zap.Error(err))
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}
	for i, img := range dst {
		name := strings.TrimSuffix(filepath.Base(files[i].Path), filepath.Ext(files[i].Path)) + ".png"
		if err := writePNG(filepath.Join(*output, name), img); err != nil {
			logger.Fatal("failed to write image", zap.Error(err))
		}
		logger.Debug("upsampled", zap.String("image", name), zap.Stringer("bounds", img.Bounds()))
	}

	xScale, yScale, err := images.ScaleFactors(src[0].Bounds(), dst[0].Bounds())
	if err != nil {
		logger.Fatal("failed to compute scale", zap.Error(err))
	}
	logger.Info("upsampled images", zap.Int("count", len(dst)), zap.String("output", *output))
	fmt.Printf("x_scale: %g\ny_scale: %g\n", xScale, yScale)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return f.Close()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
