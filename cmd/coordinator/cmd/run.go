package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/coordinator"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
)

func newRunCmd(configPath *string) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Perform one pipeline step",
		Long: `Index one outstanding book if the download ledger is ahead of the index
ledger; otherwise acquire a new book and poll until it is downloaded or the
download timeout expires. A timeout is not an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup(*configPath)
			if err != nil {
				return err
			}
			candidate := catalog.BookID(0)
			if cmd.Flags().Changed("id") {
				candidate = catalog.BookID(bookID)
				if !candidate.Valid() {
					return fmt.Errorf("--id must be a positive integer, got %d", bookID)
				}
			}

			c := coordinator.New(l,
				coordinator.NewAcquisitionClient(cfg.Acquisition.BaseURL, cfg.Acquisition.RequestTimeout),
				coordinator.NewIndexClient(cfg.Indexer.BaseURL, cfg.Indexer.RequestTimeout),
				coordinator.Options{
					PollInterval:    cfg.Coordinator.PollInterval,
					DownloadTimeout: cfg.Coordinator.DownloadTimeout,
					MaxBookID:       cfg.Coordinator.MaxBookID,
					MaxDraws:        cfg.Coordinator.MaxDraws,
					Candidate:       candidate,
					Metrics:         metrics.New(prometheus.NewRegistry()),
				},
			)

			out, err := c.Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"action":     out.Action,
				"book_id":    out.BookID,
				"backlog":    out.Backlog,
				"elapsed_ms": out.Elapsed.Milliseconds(),
			})
		},
	}
	cmd.Flags().Int64Var(&bookID, "id", 0, "acquire this book id instead of drawing one at random")
	return cmd
}
