// Command gmmfit fits foreground and background colour mixture models to an
// image, seeded from a rectangle around the object of interest.
//
// Usage:
//
//	gmmfit fit --image board.png --rect 40,30,200,120 [--out models.json] [--mask mask.png]
//	gmmfit inspect models.json
//	gmmfit export --which fg models.json fg.bin
//	gmmfit import --fg fg.bin --bg bg.json --out models.json
//	gmmfit list --store models.db
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"colormix/internal/logging"
	"colormix/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var log zerolog.Logger
	app := &cli.App{
		Name:    "gmmfit",
		Usage:   "fit Gaussian colour mixture models for foreground/background segmentation",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "log every segmentation round"},
			&cli.BoolFlag{Name: "json", Usage: "log as JSON instead of console text"},
		},
		Before: func(c *cli.Context) error {
			log = logging.New(os.Stderr, logging.Level(c.Bool("debug")), !c.Bool("json"))
			return nil
		},
		Commands: []*cli.Command{
			fitCommand(&log),
			inspectCommand(&log),
			exportCommand(&log),
			importCommand(&log),
			listCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
