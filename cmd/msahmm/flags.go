package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"msahmm/internal/logger"
	"msahmm/internal/profile"
	"msahmm/internal/seqio"
)

var (
	modelPath string
	inputPath string
	chunks    int64
	workers   int64
	logLevel  string
	logFormat string
)

func commonEngineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to profile set JSON",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "FASTA file to evaluate (- for stdin)",
			Value:       "-",
			Destination: &inputPath,
		},
		&cli.Int64Flag{
			Name:        "chunks",
			Aliases:     []string{"p"},
			Usage:       "parallel chunk count per sequence (1 disables chunking)",
			Value:       1,
			Destination: &chunks,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "max concurrent per-sequence tasks (0 = GOMAXPROCS)",
			Destination: &workers,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
	}
}

func setupLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Text(os.Stderr, level)
}

func loadModel() (*profile.Model, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("--model is required")
	}
	return profile.Load(modelPath)
}

func loadRecords() ([]seqio.Record, error) {
	if inputPath == "" || inputPath == "-" {
		return seqio.ReadFasta(os.Stdin)
	}
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seqio.ReadFasta(f)
}
