package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/config"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/pipeline"
	"github.com/RobinCoderZhao/scholar-digest/internal/digest/scheduler"
)

func scheduleCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the daily crontab entry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [cron expression]",
		Short: "Install or update the crontab entry (default from config, 0 8 * * *)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := setup(f.configPath)
			defer cleanup()
			if err != nil {
				return err
			}
			spec := cfg.Schedule
			if len(args) == 1 {
				spec = args[0]
			}
			return installSchedule(cfg, f.configPath, spec)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove",
		Short: "Remove the crontab entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := crontab(f.configPath)
			if err != nil {
				return err
			}
			if err := ct.Remove(); err != nil {
				return notFoundHint(err)
			}
			fmt.Println("✅ Schedule removed")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the crontab entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := crontab(f.configPath)
			if err != nil {
				return err
			}
			st, err := ct.Status()
			if err != nil {
				return err
			}
			if !st.Installed {
				fmt.Println("No schedule installed. Run `scholardigest schedule add` to install one.")
				return nil
			}
			state := "enabled"
			if !st.Enabled {
				state = "disabled"
			}
			fmt.Printf("Schedule: %s (%s)\n", st.Schedule, state)
			fmt.Printf("Command:  %s\n", st.Command)
			if !st.Next.IsZero() {
				fmt.Printf("Next run: %s\n", st.Next.Format("2006-01-02 15:04 MST"))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Re-enable a disabled entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := crontab(f.configPath)
			if err != nil {
				return err
			}
			if err := ct.Enable(); err != nil {
				return notFoundHint(err)
			}
			fmt.Println("✅ Schedule enabled")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Comment out the entry without removing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := crontab(f.configPath)
			if err != nil {
				return err
			}
			if err := ct.Disable(); err != nil {
				return notFoundHint(err)
			}
			fmt.Println("⏸  Schedule disabled")
			return nil
		},
	})

	return cmd
}

func installSchedule(cfg config.Config, configPath, spec string) error {
	ct, err := crontab(configPath)
	if err != nil {
		return err
	}
	if err := ct.Install(spec); err != nil {
		return err
	}
	next, _ := scheduler.NextRun(spec, time.Now())
	fmt.Printf("✅ Schedule installed: %s\n", spec)
	fmt.Printf("   Next run: %s\n", next.Format("2006-01-02 15:04 MST"))
	fmt.Printf("   Logs:     %s\n", filepath.Join("logs", "cron.log"))
	slog.Info("crontab entry installed", "schedule", spec, "window_days", cfg.WindowDays)
	return nil
}

func notFoundHint(err error) error {
	if errors.Is(err, scheduler.ErrEntryNotFound) {
		return fmt.Errorf("%w; run `scholardigest schedule add` first", err)
	}
	return err
}

// crontab returns a manager whose entry runs this binary from the current
// directory with output appended to logs/cron.log.
func crontab(configPath string) (*scheduler.Crontab, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	args := []string{shellQuote(exe), "--no-browser"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", shellQuote(abs))
	}
	if err := os.MkdirAll(filepath.Join(wd, "logs"), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	command := fmt.Sprintf("cd %s && %s >> %s 2>&1",
		shellQuote(wd), strings.Join(args, " "), shellQuote(filepath.Join(wd, "logs", "cron.log")))
	return scheduler.NewCrontab(scheduler.SystemTable{}, command), nil
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t'\"$`\\;&|<>()*?#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func daemonCmd(f *rootFlags) *cobra.Command {
	var runNow bool
	var noEmail bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the digest on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := setup(f.configPath)
			defer cleanup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.NewScheduler()
			err = sched.Add(scheduler.Job{
				Name:     "daily-digest",
				Schedule: cfg.Schedule,
				Fn: func(ctx context.Context) error {
					// every run builds fresh components
					runner, err := pipeline.New(cfg)
					if err != nil {
						return err
					}
					defer runner.Close()
					_, err = runner.Run(ctx, pipeline.RunOptions{SendEmail: !noEmail})
					return err
				},
			})
			if err != nil {
				return err
			}

			if runNow {
				if err := sched.RunOnce(ctx); err != nil {
					slog.Warn("initial run failed", "error", err)
				}
			}
			return sched.Start(ctx)
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "run once immediately before waiting for the schedule")
	cmd.Flags().BoolVar(&noEmail, "no-email", false, "do not send reports by email")
	return cmd
}
