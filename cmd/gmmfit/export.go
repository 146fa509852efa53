package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"colormix/internal/gmm"
	"colormix/internal/modelio"
)

func exportCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "write one model as JSON (.json) or as a raw little-endian float64 parameter buffer",
		ArgsUsage: "<models file | name with --store> <output.bin | output.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "which", Usage: "fg or bg", Value: "fg"},
			&cli.StringFlag{Name: "store", Usage: "look the name up in this model database"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("export takes a models file and an output path", 2)
			}
			fg, bg, err := loadModels(c.String("store"), c.Args().Get(0))
			if err != nil {
				return err
			}

			var m *gmm.Model
			switch c.String("which") {
			case "fg":
				m = fg
			case "bg":
				m = bg
			default:
				return cli.Exit(fmt.Sprintf("unknown model %q, want fg or bg", c.String("which")), 2)
			}

			path := c.Args().Get(1)
			if err := exportModel(path, m); err != nil {
				return err
			}

			log.Info().Str("model", c.String("which")).Str("path", path).
				Int("values", gmm.ParamsLen(m.Components())).Msg("parameters exported")
			return nil
		},
	}
}

// exportModel writes m as a single-model JSON document when path ends in
// .json and as a raw parameter buffer otherwise.
func exportModel(path string, m *gmm.Model) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return modelio.SaveJSON(path, m)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := modelio.WriteBinary(f, m); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
