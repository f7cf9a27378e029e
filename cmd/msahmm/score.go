package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"msahmm/internal/hmm"
	"msahmm/internal/seqio"
)

func scoreCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "score",
		Usage: "Compute per-model log-likelihoods for FASTA sequences",
		Flags: append(append(commonEngineFlags(), loggingFlags()...),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit JSON instead of a table",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyEngineConfig(cmd, LoadConfig())
			log := setupLogger()

			model, err := loadModel()
			if err != nil {
				return err
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

			start := time.Now()
			_, loglik, err := eng.Forward(batch)
			if err != nil {
				return err
			}
			log.Info("scored batch",
				"sequences", len(records),
				"models", model.NumModels(),
				"chunks", chunks,
				"elapsed", time.Since(start))
			if means, err := hmm.MeanLogLik(loglik, nil); err == nil {
				log.Debug("mean log-likelihood per model", "means", means)
			}

			type row struct {
				ID             string    `json:"sequence_id"`
				LogLikelihoods []float64 `json:"log_likelihoods"`
				BestModel      int       `json:"best_model"`
			}
			rows := make([]row, len(records))
			for b, rec := range records {
				lls := make([]float64, model.NumModels())
				best := 0
				for k := range lls {
					lls[k] = loglik.At(k, b)
					if lls[k] > lls[best] {
						best = k
					}
				}
				rows[b] = row{ID: rec.ID, LogLikelihoods: lls, BestModel: best}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			header := []string{"sequence"}
			for k := 0; k < model.NumModels(); k++ {
				header = append(header, fmt.Sprintf("model%d", k))
			}
			header = append(header, "best")
			fmt.Fprintln(w, strings.Join(header, "\t"))
			for _, r := range rows {
				cols := []string{r.ID}
				for _, ll := range r.LogLikelihoods {
					cols = append(cols, fmt.Sprintf("%.4f", ll))
				}
				cols = append(cols, fmt.Sprintf("%d", r.BestModel))
				fmt.Fprintln(w, strings.Join(cols, "\t"))
			}
			return w.Flush()
		},
	}
}
