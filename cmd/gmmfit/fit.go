package main

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"colormix/internal/cvutil"
	imgsrc "colormix/internal/image"
	"colormix/internal/modelio"
	"colormix/internal/segment"
	"colormix/pkg/geometry"
)

func fitCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "fit",
		Usage: "fit models to an image from a seed rectangle",
		Flags: fitFlags(),
		Action: func(c *cli.Context) error {
			opts, err := fitOptions(c)
			if err != nil {
				return err
			}
			return runFit(c, log.With().Str("component", "fit").Logger(), opts)
		},
	}
}

func fitFlags() []cli.Flag {
	defaults := segment.DefaultOptions()
	return []cli.Flag{
		&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "input image (png, jpeg, tiff)", Required: true},
		&cli.StringFlag{Name: "rect", Aliases: []string{"r"}, Usage: "seed rectangle x,y,width,height", Required: true},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML options file; flags given explicitly override it"},
		&cli.StringFlag{Name: "init", Usage: "continue from models saved by a previous fit"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output models (.json or .msgpack)", Value: "models.json"},
		&cli.StringFlag{Name: "store", Usage: "also keep the models in this model database"},
		&cli.StringFlag{Name: "name", Usage: "key for --store, defaults to the image file name"},
		&cli.StringFlag{Name: "mask", Usage: "write the final mask as PNG"},
		&cli.IntFlag{Name: "blur", Usage: "Gaussian blur kernel applied before sampling, 0 or odd"},
		&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "assign/learn/relabel rounds", Value: 5},
		&cli.IntFlag{Name: "workers", Usage: "goroutines accumulating statistics", Value: defaults.Workers},
		&cli.IntFlag{Name: "kmeans-attempts", Value: defaults.KMeansAttempts},
		&cli.IntFlag{Name: "kmeans-iterations", Value: defaults.KMeansIterations},
		&cli.Float64Flag{Name: "kmeans-epsilon", Value: defaults.KMeansEpsilon},
	}
}

// fitOptions starts from the --config file, or the defaults, and applies
// the flags that were set. Without a config file every flag applies.
func fitOptions(c *cli.Context) (segment.Options, error) {
	opts := segment.DefaultOptions()
	fromFile := c.IsSet("config")
	if fromFile {
		var err error
		if opts, err = segment.LoadOptions(c.String("config")); err != nil {
			return opts, err
		}
	}
	apply := func(name string) bool { return !fromFile || c.IsSet(name) }

	if apply("iterations") {
		opts.Iterations = c.Int("iterations")
	}
	if apply("workers") {
		opts.Workers = c.Int("workers")
	}
	if apply("kmeans-attempts") {
		opts.KMeansAttempts = c.Int("kmeans-attempts")
	}
	if apply("kmeans-iterations") {
		opts.KMeansIterations = c.Int("kmeans-iterations")
	}
	if apply("kmeans-epsilon") {
		opts.KMeansEpsilon = c.Float64("kmeans-epsilon")
	}
	return opts, opts.Validate()
}

func storeModels(path, name string, seg *segment.Segmenter) error {
	store, err := modelio.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Put(name, seg.Foreground(), seg.Background())
}

func runFit(c *cli.Context, log zerolog.Logger, opts segment.Options) error {
	start := time.Now()

	src, err := imgsrc.Load(c.String("image"))
	if err != nil {
		return err
	}
	w, h := src.Width(), src.Height()
	log.Info().Str("path", src.Path).Str("format", src.Format).Int("width", w).Int("height", h).Msg("image loaded")

	rect, err := geometry.ParseRect(c.String("rect"))
	if err != nil {
		return err
	}
	clipped := rect.Clip(float64(w), float64(h))
	if clipped.Empty() {
		return cli.Exit("seed rectangle "+rect.String()+" lies outside the image", 2)
	}
	if clipped != rect {
		log.Warn().Str("rect", rect.String()).Str("clipped", clipped.String()).Msg("seed rectangle clipped to image")
	}

	samples := src.Samples()
	if blur := c.Int("blur"); blur > 0 {
		if samples, err = cvutil.ImageSamples(src.Image, blur); err != nil {
			return err
		}
	}
	mask := segment.MaskFromRect(w, h, clipped)

	cluster := cvutil.KMeans(cvutil.KMeansOptions{
		Attempts:   opts.KMeansAttempts,
		Iterations: opts.KMeansIterations,
		Epsilon:    opts.KMeansEpsilon,
	})

	var seg *segment.Segmenter
	if path := c.String("init"); path != "" {
		fg, bg, err := modelio.LoadPair(path)
		if err != nil {
			return err
		}
		if seg, err = segment.NewFromModels(fg, bg, opts, cluster, log); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("continuing from saved models")
	} else {
		if seg, err = segment.New(opts, cluster, log); err != nil {
			return err
		}
		if err := seg.Init(samples, mask); err != nil {
			return err
		}
	}

	if err := seg.Iterate(c.Context, samples, mask, opts.Iterations); err != nil {
		return err
	}

	if err := modelio.SavePair(c.String("out"), seg.Foreground(), seg.Background()); err != nil {
		return err
	}
	if path := c.String("store"); path != "" {
		name := c.String("name")
		if name == "" {
			name = filepath.Base(src.Path)
		}
		if err := storeModels(path, name, seg); err != nil {
			return err
		}
		log.Info().Str("store", path).Str("name", name).Msg("models stored")
	}
	if path := c.String("mask"); path != "" {
		if err := imgsrc.WriteMask(path, w, h, mask); err != nil {
			return err
		}
	}

	fgPixels, bgPixels := mask.Counts()
	log.Info().
		Str("out", c.String("out")).
		Int("fg_pixels", fgPixels).
		Int("bg_pixels", bgPixels).
		Int("fg_components", seg.Foreground().ActiveComponents()).
		Int("bg_components", seg.Background().ActiveComponents()).
		Dur("elapsed", time.Since(start)).
		Msg("models written")
	return nil
}
