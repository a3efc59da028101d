package main

import (
	"context"
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/store"
)

func historyCmd(f *rootFlags) *cobra.Command {
	var limit int
	var runID int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := setup(f.configPath)
			defer cleanup()
			if err != nil {
				return err
			}
			if cfg.Archive.Path == "" {
				return fmt.Errorf("the run archive is disabled; set archive.path or DIGEST_ARCHIVE")
			}

			db, err := store.New(cfg.Archive.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			if runID > 0 {
				return printRunArticles(ctx, db, runID)
			}

			runs, err := db.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No archived runs.")
				return nil
			}
			fmt.Printf("Recent runs (%d):\n", len(runs))
			for _, r := range runs {
				flags := ""
				if r.Sample {
					flags += " [sample]"
				}
				if r.Emailed {
					flags += " [emailed]"
				}
				fmt.Printf("  #%-4d %s  %-9s %3d articles  %2d journals%s\n",
					r.ID, r.Date, r.Source, r.ArticleCount, r.JournalCount, flags)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	cmd.Flags().Int64Var(&runID, "run", 0, "show the articles of one run")
	return cmd
}

func printRunArticles(ctx context.Context, db *store.Store, runID int64) error {
	articles, err := db.RunArticles(ctx, runID)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Printf("Run #%d has no archived articles.\n", runID)
		return nil
	}
	fmt.Printf("Run #%d (%d articles):\n", runID, len(articles))
	for _, a := range articles {
		title := runewidth.Truncate(a.Title, 80, "...")
		fmt.Printf("  %s  %s  %s\n", a.Published, runewidth.FillRight(title, 80), a.Journal)
	}
	return nil
}
