package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/geoconvert/internal/combine"
	"github.com/mohammed-shakir/geoconvert/internal/core/router"
	"github.com/mohammed-shakir/geoconvert/internal/explode"
	"github.com/mohammed-shakir/geoconvert/internal/logger"
	"github.com/mohammed-shakir/geoconvert/internal/units"
)

var Version = "dev"

type env struct {
	stdin  io.Reader
	stdout io.Writer
	log    zerolog.Logger
}

type Options struct {
	Verbose bool `short:"v" long:"verbose" description:"Log operation details to stderr"`
}

type IOOptions struct {
	Input  string `short:"i" long:"in" description:"Input GeoJSON file. Reads from stdin if empty"`
	Output string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Indent bool   `long:"indent" description:"Indent the output"`
}

type convertCmd struct {
	env     *env
	Value   float64 `long:"value" description:"Value to convert" required:"true"`
	From    string  `short:"f" long:"from" description:"Unit of value" required:"true"`
	To      string  `short:"t" long:"to" description:"Target unit" default:"kilometers"`
	Degrees bool    `long:"degrees" description:"Convert the length to degrees of arc, ignoring --to"`
}

type combineCmd struct {
	env *env
	IOOptions
}

type explodeCmd struct {
	env *env
	IOOptions
	Properties  bool `short:"p" long:"properties" description:"Copy each feature's properties onto its points"`
	Concurrency int  `short:"c" long:"concurrency" description:"Features exploded in parallel" default:"1"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts Options
	e := &env{stdin: stdin, stdout: stdout, log: zerolog.Nop()}

	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		level := "warn"
		if opts.Verbose {
			level = "debug"
		}
		e.log = logger.Build(logger.Config{Level: level, Console: true, Component: "geoconvert", Version: Version}, stderr)
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	_, _ = parser.AddCommand("convert", "Convert a length between units",
		"Converts --value from --from to --to through the Earth radius factor table.", &convertCmd{env: e})
	_, _ = parser.AddCommand("combine", "Combine a FeatureCollection into one multi-geometry",
		"All features must share a geometry family: Point, LineString or Polygon.", &combineCmd{env: e})
	_, _ = parser.AddCommand("explode", "Explode GeoJSON into one point per vertex",
		"Accepts a Feature, FeatureCollection or bare geometry.", &explodeCmd{env: e})

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(stdout, flagsErr.Message)
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *convertCmd) Execute([]string) error {
	from, err := units.ParseUnit(c.From)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}

	var res float64
	if c.Degrees {
		res, err = units.LengthToDegrees(c.Value, from)
	} else {
		to, perr := units.ParseUnit(c.To)
		if perr != nil {
			return fmt.Errorf("--to: %w", perr)
		}
		res, err = units.ConvertLength(c.Value, from, to)
	}
	if err != nil {
		return err
	}

	c.env.log.Debug().Float64("value", c.Value).Str("from", string(from)).Float64("result", res).Msg("converted")
	_, err = fmt.Fprintln(c.env.stdout, strconv.FormatFloat(res, 'g', -1, 64))
	return err
}

func (c *combineCmd) Execute([]string) error {
	body, err := c.read(c.env)
	if err != nil {
		return err
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return fmt.Errorf("decode FeatureCollection: %w", err)
	}
	out, err := combine.Combine(&fc)
	if err != nil {
		return err
	}
	c.env.log.Debug().Int("features_in", len(fc.Features)).Msg("combined")
	return c.write(c.env, out)
}

func (c *explodeCmd) Execute([]string) error {
	body, err := c.read(c.env)
	if err != nil {
		return err
	}
	out, in, err := router.ExplodeBody(body,
		explode.WithKeepProperties(c.Properties),
		explode.WithConcurrency(c.Concurrency))
	if err != nil {
		return err
	}
	c.env.log.Debug().Int("features_in", in).Int("points", len(out.Features)).Msg("exploded")
	return c.write(c.env, out)
}

func (o IOOptions) read(e *env) ([]byte, error) {
	if o.Input == "" {
		b, err := io.ReadAll(e.stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(o.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}

func (o IOOptions) write(e *env, fc *geojson.FeatureCollection) error {
	var (
		b   []byte
		err error
	)
	if o.Indent {
		b, err = json.MarshalIndent(fc, "", "  ")
	} else {
		b, err = json.Marshal(fc)
	}
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	b = append(b, '\n')

	if o.Output == "" {
		_, err = e.stdout.Write(b)
		return err
	}
	if err := os.WriteFile(o.Output, b, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
