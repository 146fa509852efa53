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

func importCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "combine two single-model files written by export into a models file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fg", Usage: "foreground model (.json or raw .bin)", Required: true},
			&cli.StringFlag{Name: "bg", Usage: "background model (.json or raw .bin)", Required: true},
			&cli.IntFlag{Name: "components", Usage: "component count of raw buffers", Value: gmm.ComponentCount},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output models (.json or .msgpack)", Value: "models.json"},
			&cli.StringFlag{Name: "store", Usage: "write to this model database instead of --out"},
			&cli.StringFlag{Name: "name", Usage: "key for --store"},
		},
		Action: func(c *cli.Context) error {
			k := c.Int("components")
			fg, err := importModel(c.String("fg"), k)
			if err != nil {
				return fmt.Errorf("foreground: %w", err)
			}
			bg, err := importModel(c.String("bg"), k)
			if err != nil {
				return fmt.Errorf("background: %w", err)
			}

			if path := c.String("store"); path != "" {
				name := c.String("name")
				if name == "" {
					return cli.Exit("--store needs --name", 2)
				}
				store, err := modelio.OpenStore(path)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Put(name, fg, bg); err != nil {
					return err
				}
				log.Info().Str("store", path).Str("name", name).Msg("models imported")
				return nil
			}

			if err := modelio.SavePair(c.String("out"), fg, bg); err != nil {
				return err
			}
			log.Info().Str("out", c.String("out")).
				Int("fg_components", fg.ActiveComponents()).
				Int("bg_components", bg.ActiveComponents()).
				Msg("models imported")
			return nil
		},
	}
}

// importModel reads a single-model JSON document, or a raw parameter buffer
// of k components for any other extension.
func importModel(path string, k int) (*gmm.Model, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return modelio.LoadJSON(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return modelio.ReadBinary(f, k)
}
