package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"msahmm/internal/hmm"
	"msahmm/internal/seqio"
)

func posteriorCmd() *cli.Command {
	var modelIndex int64

	return &cli.Command{
		Name:  "posterior",
		Usage: "Compute per-position state posteriors for FASTA sequences",
		Flags: append(append(commonEngineFlags(), loggingFlags()...),
			&cli.Int64Flag{
				Name:        "model-index",
				Aliases:     []string{"k"},
				Usage:       "profile to evaluate against",
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
			batch = seqio.PadTo(batch, int(chunks))

			eng, err := hmm.New(model, hmm.Options{Chunks: int(chunks), Workers: int(workers)})
			if err != nil {
				return err
			}
			post, loglik, err := eng.Posteriors(batch)
			if err != nil {
				return err
			}
			log.Info("computed posteriors", "sequences", len(records), "model", k)

			q := model.StateCount(k)
			names := make([]string, q)
			for i := range names {
				names[i] = model.StateName(k, i)
			}

			type entry struct {
				ID            string      `json:"sequence_id"`
				LogLikelihood float64     `json:"log_likelihood"`
				States        []string    `json:"states"`
				Posteriors    [][]float64 `json:"posteriors"`
			}
			out := make([]entry, len(records))
			for b, rec := range records {
				n := len(rec.Seq) + 1
				rows := make([][]float64, n)
				for i := 0; i < n; i++ {
					row := make([]float64, q)
					copy(row, post.Row(k, b, i)[:q])
					rows[i] = row
				}
				out[b] = entry{
					ID:            rec.ID,
					LogLikelihood: loglik.At(k, b),
					States:        names,
					Posteriors:    rows,
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
