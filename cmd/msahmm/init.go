package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"msahmm/internal/profile"
	"msahmm/internal/seqio"
)

func initCmd() *cli.Command {
	var (
		lengths string
		seed    int64
		output  string
	)

	return &cli.Command{
		Name:  "init",
		Usage: "Create a randomly initialized profile set",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "lengths",
				Aliases:     []string{"l"},
				Usage:       "comma-separated match-state counts, one per profile (e.g. 32,48)",
				Destination: &lengths,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "random seed (0 = time-based)",
				Destination: &seed,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output path for the profile set JSON",
				Value:       "profiles.json",
				Destination: &output,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := setupLogger()

			if lengths == "" {
				return fmt.Errorf("--lengths is required")
			}
			var ls []int
			for _, part := range strings.Split(lengths, ",") {
				l, err := strconv.Atoi(strings.TrimSpace(part))
				if err != nil {
					return fmt.Errorf("invalid length %q: %w", part, err)
				}
				ls = append(ls, l)
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			model, err := profile.NewRandom(ls, len(seqio.Alphabet), seed)
			if err != nil {
				return err
			}
			if err := model.Save(output); err != nil {
				return err
			}
			log.Info("wrote profile set", "path", output, "models", len(ls), "seed", seed)
			return nil
		},
	}
}
