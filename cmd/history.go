package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/persistence"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generate and edit requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			repo, err := persistence.NewSQLiteStore(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer repo.Close()

			requests, err := repo.ListRequests(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), requests)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func printHistory(w io.Writer, requests []persistence.Request) {
	if len(requests) == 0 {
		fmt.Fprintln(w, "No requests recorded")
		return
	}
	rows := make([][]string, 0, len(requests))
	for _, r := range requests {
		status := string(r.Status)
		if r.Error != "" {
			status += ": " + truncate(r.Error, 40)
		}
		rows = append(rows, []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			string(r.Kind),
			r.Filename,
			r.Artifact,
			strconv.Itoa(r.CaptionCount),
			status,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Created", "Kind", "File", "Subtitles", "Captions", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		isTerminal(w),
	))
}
