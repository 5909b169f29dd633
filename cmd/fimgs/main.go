package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	fimgs "github.com/rprtr258/fimgs/pkg"
	"github.com/rprtr258/fimgs/pkg/batch"
	"github.com/rprtr258/fimgs/pkg/bufpool"
	"github.com/rprtr258/fimgs/pkg/imageio"
	"github.com/rprtr258/fimgs/pkg/preset"
	"github.com/rprtr258/fimgs/pkg/workers"
)

const defaultStateFile = ".fimgs-state"

// app holds what every command needs once global flags are parsed.
type app struct {
	stdout io.Writer
	logger *slog.Logger
	pool   *bufpool.Pool
}

func (a *app) registry(rowWorkers int) *fimgs.Registry {
	return fimgs.NewRegistry(fimgs.Env{
		Pool:   a.pool,
		Engine: fimgs.Engine{Workers: rowWorkers},
	})
}

// chainSpecs reads the chain from --preset or from the first argument.
func chainSpecs(c *cli.Context) ([]fimgs.Spec, error) {
	if name := c.String("preset"); name != "" {
		if c.NArg() > 0 {
			return nil, errors.New("give either a chain argument or --preset, not both")
		}
		p, err := preset.Find(c.String("preset-dir"), name)
		if err != nil {
			return nil, err
		}
		return p.Filters, nil
	}
	if c.NArg() != 1 {
		return nil, errors.Errorf("expected one filter chain argument, got %d", c.NArg())
	}
	return preset.ParseChain(c.Args().First())
}

func (a *app) apply(c *cli.Context) error {
	input := c.String("input")
	output := c.String("output")
	if output == "" {
		output = input + ".fimgs.png"
	}

	specs, err := chainSpecs(c)
	if err != nil {
		return err
	}
	chain, err := a.registry(c.Int("workers")).Build(specs)
	if err != nil {
		return err
	}

	codec := imageio.Codec{Quality: c.Int("quality")}
	im, buf, err := codec.Load(input, a.pool)
	if err != nil {
		return err
	}
	defer a.pool.Release(buf)

	a.logger.Debug("applying", "input", input, "chain", chain.String(), "width", im.Width, "height", im.Height)
	if err := chain.Apply(im); err != nil {
		return errors.Wrapf(err, "process %q", input)
	}
	if err := codec.Save(output, im); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, output)
	return nil
}

func (a *app) batch(c *cli.Context) error {
	inputDir := c.String("input-dir")
	outputDir := c.String("output-dir")

	specs, err := chainSpecs(c)
	if err != nil {
		return err
	}
	// files are the unit of parallelism, rows run sequentially
	chain, err := a.registry(1).Build(specs)
	if err != nil {
		return err
	}

	items, err := batch.Discover(inputDir, outputDir, c.Bool("recursive"), c.String("pattern"))
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Chain = chain
	}

	statePath := c.String("state")
	switch {
	case c.Bool("no-resume"):
		statePath = ""
	case statePath == "":
		statePath = filepath.Join(outputDir, defaultStateFile)
	}

	pool := workers.New(c.Int("workers"), workers.WithLogger(a.logger))
	defer pool.Close()

	exec := batch.New(pool,
		batch.WithBufferPool(a.pool),
		batch.WithCodec(imageio.Codec{Quality: c.Int("quality")}),
		batch.WithLogger(a.logger),
		batch.WithCheckpointEvery(c.Int("checkpoint-every")),
		batch.WithOverwrite(c.Bool("overwrite")),
		batch.WithProgress(func(p batch.Progress) {
			a.logger.Info("progress", "done", p.Done, "total", p.Total, "input", p.Input, "ok", p.Err == nil)
		}),
	)
	report := exec.Run(items, statePath)

	fmt.Fprintf(a.stdout, "%s: %d/%d completed, %d processed, %d skipped, %d failed in %s\n",
		report.Status, report.Completed, report.Total, report.Processed, report.Skipped, len(report.Failures), report.Duration)
	for _, f := range report.Failures {
		fmt.Fprintf(a.stdout, "FAIL %s: %v\n", f.Input, f.Err)
	}
	if report.Status != batch.StatusCompleted {
		return errors.Errorf("%d of %d inputs failed", len(report.Failures), report.Total)
	}
	return nil
}

func (a *app) list(c *cli.Context) error {
	reg := a.registry(1)
	for _, name := range reg.Names() {
		usage, _ := reg.Usage(name)
		f, _ := reg.Create(name, nil)
		fmt.Fprintf(a.stdout, "%-16s %s\n", name, f.Describe())
		if usage != "" {
			fmt.Fprintf(a.stdout, "%-16s   %s\n", "", usage)
		}
	}
	return nil
}

func (a *app) presetSave(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: preset save NAME CHAIN")
	}
	specs, err := preset.ParseChain(c.Args().Get(1))
	if err != nil {
		return err
	}
	if _, err := a.registry(1).Build(specs); err != nil {
		return err
	}

	path, err := preset.Save(c.String("preset-dir"), preset.Preset{
		Name:        c.Args().First(),
		Description: c.String("description"),
		Filters:     specs,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func (a *app) presetShow(c *cli.Context) error {
	dir := c.String("preset-dir")
	if c.NArg() == 0 {
		names, err := preset.List(dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, strings.Join(names, "\n"))
		return nil
	}

	p, err := preset.Find(dir, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\t%s\n%s\n", p.Name, p.Description, preset.FormatChain(p.Filters))
	return nil
}

func newApp(stdout, stderr io.Writer) *cli.App {
	a := &app{stdout: stdout, pool: bufpool.New()}
	commonFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "preset",
				Aliases: []string{"p"},
				Usage:   "use filters of preset `NAME` instead of a chain argument",
			},
			&cli.IntFlag{
				Name:    "quality",
				Usage:   "JPEG output quality, 1..100",
				Value:   90,
				EnvVars: []string{"FIMGS_QUALITY"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "number of parallel workers",
				Value:   runtime.GOMAXPROCS(0),
				EnvVars: []string{"FIMGS_WORKERS"},
			},
		}
	}

	return &cli.App{
		Name:      "fimgs",
		Usage:     "image filters tool",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"FIMGS_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				Value:   "text",
				EnvVars: []string{"FIMGS_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "preset-dir",
				Usage:   "directory with preset files",
				Value:   "presets",
				EnvVars: []string{"FIMGS_PRESET_DIR"},
			},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(stderr, c.String("log-level"), c.String("log-format"))
			if err != nil {
				return err
			}
			a.logger = logger
			slog.SetDefault(logger)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "apply",
				Usage:     "apply a filter chain to one image",
				ArgsUsage: "CHAIN",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "source image",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "result image, <input>.fimgs.png by default",
					},
				}, commonFlags()...),
				Action: a.apply,
			},
			{
				Name:      "batch",
				Usage:     "apply a filter chain to every image in a directory",
				ArgsUsage: "CHAIN",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "input-dir", Aliases: []string{"i"}, Required: true},
					&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Required: true},
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}},
					&cli.StringFlag{Name: "pattern", Usage: "only file names matching `GLOB`"},
					&cli.StringFlag{
						Name:    "state",
						Usage:   "resume state file, <output-dir>/" + defaultStateFile + " by default",
						EnvVars: []string{"FIMGS_STATE"},
					},
					&cli.BoolFlag{Name: "no-resume", Usage: "process everything and keep no state"},
					&cli.BoolFlag{Name: "overwrite", Usage: "reprocess inputs whose output already exists"},
					&cli.IntFlag{
						Name:    "checkpoint-every",
						Usage:   "save resume state after every N successes",
						Value:   10,
						EnvVars: []string{"FIMGS_CHECKPOINT_EVERY"},
					},
				}, commonFlags()...),
				Action: a.batch,
			},
			{
				Name:   "list",
				Usage:  "list filters and their parameters",
				Action: a.list,
			},
			{
				Name:  "preset",
				Usage: "manage presets",
				Subcommands: []*cli.Command{
					{
						Name:      "save",
						Usage:     "store a chain under a name",
						ArgsUsage: "NAME CHAIN",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
						},
						Action: a.presetSave,
					},
					{
						Name:      "show",
						Usage:     "print a preset, or list presets without a name",
						ArgsUsage: "[NAME]",
						Action:    a.presetShow,
					},
				},
			},
		},
	}
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "fimgs:", msg)
		}
		os.Exit(1)
	}
}
