package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"neuroview/pkg/config"
	"neuroview/pkg/export"
	"neuroview/pkg/niftiio"
	"neuroview/pkg/payload"
	"neuroview/pkg/stack"
)

const defaultConfig = "neuroview.yaml"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func main() {
	app := cli.NewApp()

	app.Name = "neuroview"
	app.Usage = "NIfTI volume transcoder for browser-based viewers"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"NEUROVIEW_CONFIG"},
			Value:   defaultConfig,
			Usage:   "path to configuration file",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "encode",
			Usage:       "Transcode a NIfTI volume into a viewer payload",
			Description: "Writes the payload JSON (header plus flat or per-slice data) to stdout or a file.",
			ArgsUsage:   "FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "mode",
					Usage: "transport mode: raw or jpeg",
				},
				&cli.IntFlag{
					Name:  "quality",
					Usage: "JPEG quality for encoded mode (1-100)",
				},
				&cli.StringFlag{
					Name:  "output",
					Usage: "write payload JSON to this file instead of stdout",
				},
			},
			Action: encodeAction,
		},
		{
			Name:        "stacks",
			Usage:       "Validate a triplanar stack manifest and emit base64 stacks",
			Description: "The manifest is a YAML mapping from orientation (sagittal, coronal, axial) to an ordered list of image files.",
			ArgsUsage:   "MANIFEST",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "code",
					Usage: "correlation code included in failure messages",
					Value: "unknown",
				},
				&cli.BoolFlag{
					Name:  "validate-only",
					Usage: "report per-orientation sizes without loading data",
				},
				&cli.StringFlag{
					Name:  "output",
					Usage: "write encoded stacks JSON to this file instead of stdout",
				},
			},
			Action: stacksAction,
		},
		{
			Name:        "slices",
			Usage:       "Export orthogonal slice sequences from a NIfTI volume",
			Description: "Writes one image per slice for each requested orientation, ordered so the output directories form valid stack manifests.",
			ArgsUsage:   "FILE",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "orientation",
					Usage: "orientation to export (repeatable; default all three)",
				},
				&cli.StringFlag{
					Name:  "out-dir",
					Value: "slices",
					Usage: "directory to write slice sequences into",
				},
			},
			Action: slicesAction,
		},
		{
			Name:      "info",
			Usage:     "Print geometry and intensity statistics for a NIfTI volume",
			ArgsUsage: "FILE",
			Action:    infoAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newLogger returns a logger that is silenced unless --verbose is set.
func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadConfig(c.String("config"))
}

// writeOutput sends JSON to the --output file or stdout.
func writeOutput(c *cli.Context, data []byte) error {
	if path := c.String("output"); path != "" {
		return os.WriteFile(path, data, 0644)
	}
	_, err := fmt.Fprintln(c.App.Writer, string(data))
	return err
}

func encodeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	modeName := cfg.Encoding.Mode
	if c.IsSet("mode") {
		modeName = c.String("mode")
	}
	mode, err := payload.ParseMode(modeName)
	if err != nil {
		return cli.Exit(err, 1)
	}

	quality := cfg.Encoding.Quality
	if c.IsSet("quality") {
		quality = c.Int("quality")
	}

	logger := newLogger(c)
	logger.Printf("encoding %s in %s mode", c.Args().First(), mode)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DecodeTimeout())
	defer cancel()

	p, err := payload.Encode(ctx, c.Args().First(), mode, quality)
	if err != nil {
		return cli.Exit(err, 1)
	}

	out, err := p.JSON()
	if err != nil {
		return cli.Exit(err, 1)
	}
	if err := writeOutput(c, out); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func stacksAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	raw, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	var manifest stack.Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return cli.Exit(fmt.Errorf("error parsing manifest: %w", err), 1)
	}

	logger := newLogger(c)

	if c.Bool("validate-only") {
		summaries, err := stack.Validate(manifest)
		if err != nil {
			logger.Printf("validation failed: %v", err)
			return cli.Exit(stack.UserMessage(c.String("code")), 1)
		}
		for orient, s := range summaries {
			fmt.Fprintf(c.App.Writer, "%s: %dx%d, %d slices\n", orient, s.Width, s.Height, s.Slices)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DecodeTimeout())
	defer cancel()

	encoded, err := stack.LoadEncoded(ctx, manifest)
	if err != nil {
		logger.Printf("stack load failed: %v", err)
		return cli.Exit(stack.UserMessage(c.String("code")), 1)
	}

	out, err := json.Marshal(encoded)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if err := writeOutput(c, out); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func slicesAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	orientations := c.StringSlice("orientation")
	if len(orientations) == 0 {
		orientations = stack.Orientations
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DecodeTimeout())
	defer cancel()

	vol, err := niftiio.Load(ctx, c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	logger := newLogger(c)
	exporter := export.NewExporter(vol)
	for _, orient := range orientations {
		dir := filepath.Join(c.String("out-dir"), orient)
		logger.Printf("writing %s slices to %s", orient, dir)
		if err := exporter.SaveSliceSequence(orient, dir, cfg.Export.Format, cfg.Export.Quality); err != nil {
			return cli.Exit(err, 1)
		}
	}
	return nil
}

func infoAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DecodeTimeout())
	defer cancel()

	vol, err := niftiio.Load(ctx, c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	h := vol.Header
	fmt.Fprintf(c.App.Writer, "rank: %d\n", h.NDim)
	fmt.Fprintf(c.App.Writer, "dimensions: %d x %d x %d", h.Nx, h.Ny, h.Nz)
	if h.NDim == 4 {
		fmt.Fprintf(c.App.Writer, " x %d timepoints", h.Nt)
	}
	fmt.Fprintln(c.App.Writer)
	fmt.Fprintf(c.App.Writer, "spacing: %v\n", h.Spacing)
	fmt.Fprintf(c.App.Writer, "origin: %v\n", h.Offset)
	fmt.Fprintf(c.App.Writer, "intensity: min=%g max=%g mean=%g stddev=%g\n",
		floats.Min(vol.Data), floats.Max(vol.Data),
		stat.Mean(vol.Data, nil), stat.StdDev(vol.Data, nil))
	return nil
}
