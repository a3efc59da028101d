// ScholarDigest builds a daily digest of recent academic articles.
//
// Usage:
//
//	scholardigest                     # fetch, summarize, render, email and preview
//	scholardigest --test              # self-test with sample data
//	scholardigest schedule add        # install the daily crontab entry
//	scholardigest daemon              # run on schedule in the foreground
//	scholardigest history             # list archived runs
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/config"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/pipeline"
	"github.com/RobinCoderZhao/scholar-digest/pkg/logging"
)

var version = "dev"

type rootFlags struct {
	configPath    string
	test          bool
	noEmail       bool
	noBrowser     bool
	setupSchedule bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, pipeline.ErrNoArticles) {
			fmt.Fprintln(os.Stderr, "No articles found in the last window; no report was generated.")
		}
		slog.Error("scholardigest failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	rootCmd := &cobra.Command{
		Use:           "scholardigest",
		Short:         "Daily academic journal digest",
		Long:          "ScholarDigest collects recent articles from arXiv, PubMed, Crossref and journal pages, summarizes them and delivers an HTML report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(&f)
		},
	}

	rootCmd.PersistentFlags().StringVar(&f.configPath, "config", "", "config file (default ./scholardigest.yaml or ~/.scholardigest.yaml)")
	rootCmd.Flags().BoolVar(&f.test, "test", false, "run the self-test with sample data")
	rootCmd.Flags().BoolVar(&f.noEmail, "no-email", false, "do not send the report by email")
	rootCmd.Flags().BoolVar(&f.noBrowser, "no-browser", false, "do not open the report in a browser")
	rootCmd.Flags().BoolVar(&f.setupSchedule, "setup-schedule", false, "install the daily crontab entry and exit")

	rootCmd.AddCommand(scheduleCmd(&f))
	rootCmd.AddCommand(daemonCmd(&f))
	rootCmd.AddCommand(historyCmd(&f))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scholardigest %s\n", version)
		},
	}
}

// setup loads configuration and installs the default logger. The returned
// cleanup closes the log file.
func setup(configPath string) (config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, func() {}, fmt.Errorf("load config: %w", err)
	}
	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return cfg, func() {}, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, func() { closer.Close() }, nil
}

func runDigest(f *rootFlags) error {
	cfg, cleanup, err := setup(f.configPath)
	defer cleanup()
	if err != nil {
		return err
	}

	if f.setupSchedule {
		return installSchedule(cfg, f.configPath, cfg.Schedule)
	}

	runner, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	// a single run is not cancellable; upstream calls carry their own timeouts
	ctx := context.Background()
	if f.test {
		return runner.SelfTest(ctx)
	}

	_, err = runner.Run(ctx, pipeline.RunOptions{
		SendEmail:   !f.noEmail,
		OpenBrowser: !f.noBrowser,
	})
	return err
}
