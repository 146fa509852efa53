package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"colormix/internal/gmm"
	"colormix/internal/modelio"
	"colormix/pkg/colorutil"
)

func inspectCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print the components of saved models",
		ArgsUsage: "<models file | name with --store>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "look the name up in this model database"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("inspect takes exactly one models file or name", 2)
			}
			fg, bg, err := loadModels(c.String("store"), c.Args().First())
			if err != nil {
				return err
			}

			out := bufio.NewWriter(os.Stdout)
			printModel(out, "Foreground", fg, *log)
			printModel(out, "Background", bg, *log)
			return out.Flush()
		},
	}
}

// loadModels reads a pair from a file, or by name from a store when one is given.
func loadModels(store, arg string) (fg, bg *gmm.Model, err error) {
	if store == "" {
		return modelio.LoadPair(arg)
	}
	s, err := modelio.OpenStore(store)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()
	return s.Get(arg)
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the names in a model database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "model database", Required: true},
		},
		Action: func(c *cli.Context) error {
			s, err := modelio.OpenStore(c.String("store"))
			if err != nil {
				return err
			}
			defer s.Close()
			names, err := s.Names()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

// hexColor formats a BGR mean as #rrggbb.
func hexColor(bgr gmm.Color) string {
	rgb := colorutil.FromBGR(bgr)
	return fmt.Sprintf("#%02x%02x%02x", rgb.R, rgb.G, rgb.B)
}

func printModel(w *bufio.Writer, name string, m *gmm.Model, log zerolog.Logger) {
	fmt.Fprintf(w, "%s: %d of %d components active\n", name, m.ActiveComponents(), m.Components())
	for c := 0; c < m.Components(); c++ {
		comp := m.Component(c)
		if !(comp.Weight > 0) {
			fmt.Fprintf(w, "  [%d] disabled\n", c)
			continue
		}
		mu := m.Mean(c)
		fmt.Fprintf(w, "  [%d] weight=%.4f mean(B,G,R)=(%.1f, %.1f, %.1f) %s det=%.4g",
			c, comp.Weight, mu[0], mu[1], mu[2], hexColor(mu), m.Determinant(c))
		if n, ok := comp.Normal(); ok {
			fmt.Fprintf(w, " entropy=%.3f", n.Entropy())
		} else {
			log.Warn().Str("model", name).Int("index", c).Msg("covariance is not positive definite")
		}
		fmt.Fprintln(w)
	}
}
