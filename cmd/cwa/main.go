// Command cwa decodes AX3 binary logs into sample CSV files, each with a
// metadata side-file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/accel-crunch/internal/cwa"
)

type config struct {
	Paths           []string
	OutputDir       string
	Limit           int
	Linux           bool
	StandardGravity bool
	NoHeader        bool
	Verbose         bool
}

func newConfigFromCLI() (*config, error) {
	var c config
	flag.StringVar(&c.OutputDir, "o", "", "Output directory, defaults to the directory of each log")
	flag.IntVar(&c.Limit, "limit", 0, "Stop after this many samples per log, 0 decodes everything")
	flag.BoolVar(&c.Linux, "linux", false, "Terminate lines with \\n instead of \\r\\n")
	flag.BoolVar(&c.StandardGravity, "sg", false, "Write accelerations in m/s² instead of g")
	flag.BoolVar(&c.NoHeader, "noheader", false, "Omit the CSV header line")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] file.cwa...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	c.Paths = flag.Args()

	var err error
	if len(c.Paths) == 0 {
		err = errors.New("at least one log file is required")
	} else if c.Limit < 0 {
		err = fmt.Errorf("invalid sample limit: %d", c.Limit)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return &c, nil
}

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	c, err := newConfigFromCLI()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if c.Verbose {
		logLevel.Set(slog.LevelDebug)
	}

	decoder := cwa.NewDecoder(
		cwa.WithLogger(logger),
		cwa.WithStandardGravity(c.StandardGravity),
		cwa.WithLimit(c.Limit),
	)

	for _, path := range c.Paths {
		csvPath, metadataPath := cwa.OutputPaths(path, c.OutputDir)

		res, err := decoder.DecodeFile(path, csvPath, metadataPath,
			cwa.WithLinuxLineEndings(c.Linux),
			cwa.WithHeader(!c.NoHeader))
		if err != nil {
			logger.Error(err.Error(), slog.String("path", path))
			os.Exit(1)
		}

		logger.Info("decoded log",
			slog.String("path", path),
			slog.String("output", csvPath),
			slog.String("samples", humanize.Comma(int64(res.Samples))),
			slog.Int("rejectedBlocks", res.RejectedBlocks()))
	}
}
