package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/ledger"
)

type statusInfo struct {
	Counts      map[ledger.Stage]int `json:"counts"`
	Backlog     int                  `json:"backlog"`
	Outstanding []catalog.BookID     `json:"outstanding"`
}

func newStatusCmd(configPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ledger counts and outstanding books",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, l, err := setup(*configPath)
			if err != nil {
				return err
			}
			info, err := collectStatus(cmd.Context(), l)
			if err != nil {
				return fmt.Errorf("failed to collect status: %w", err)
			}
			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			out := cmd.OutOrStdout()
			for _, stage := range ledger.Stages() {
				fmt.Fprintf(out, "%-12s %d\n", string(stage)+":", info.Counts[stage])
			}
			fmt.Fprintf(out, "%-12s %d\n", "backlog:", info.Backlog)
			fmt.Fprintf(out, "%-12s %v\n", "outstanding:", info.Outstanding)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func collectStatus(ctx context.Context, l ledger.Ledger) (statusInfo, error) {
	info := statusInfo{Counts: make(map[ledger.Stage]int)}
	for _, stage := range ledger.Stages() {
		n, err := l.Count(ctx, stage)
		if err != nil {
			return info, err
		}
		info.Counts[stage] = n
	}
	var err error
	if info.Backlog, err = ledger.Backlog(ctx, l); err != nil {
		return info, err
	}
	info.Outstanding, err = ledger.Outstanding(ctx, l)
	return info, err
}
