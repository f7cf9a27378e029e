package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"msahmm/internal/hmm"
	"msahmm/internal/seqio"
)

func decodeCmd() *cli.Command {
	var modelIndex int64

	return &cli.Command{
		Name:  "decode",
		Usage: "Compute the most likely state path per sequence",
		Flags: append(append(commonEngineFlags(), loggingFlags()...),
			&cli.Int64Flag{
				Name:        "model-index",
				Aliases:     []string{"k"},
				Usage:       "profile to decode against",
				Destination: &modelIndex,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyEngineConfig(cmd, LoadConfig())
			log := setupLogger()

			model, err := loadModel()
			if err != nil {
				return err
			}
			k := int(modelIndex)
			if k < 0 || k >= model.NumModels() {
				return fmt.Errorf("model index %d out of range [0, %d)", k, model.NumModels())
			}
			records, err := loadRecords()
			if err != nil {
				return err
			}
			batch, err := seqio.Encode(records, model.NumModels())
			if err != nil {
				return err
			}

			eng, err := hmm.New(model, hmm.Options{Workers: int(workers)})
			if err != nil {
				return err
			}
			paths, err := eng.Decode(batch, nil)
			if err != nil {
				return err
			}
			log.Info("decoded batch", "sequences", len(records), "model", k)

			for b, rec := range records {
				names := make([]string, len(rec.Seq)+1)
				for i := range names {
					names[i] = model.StateName(k, int(paths.At(k, b, i)))
				}
				fmt.Fprintf(os.Stdout, "%s\t%s\n", rec.ID, strings.Join(names, " "))
			}
			return nil
		},
	}
}
