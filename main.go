// Command hotwatch crawls the Zhihu hot list on a schedule and writes
// periodic analysis reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hotwatch/internal/app"
	"github.com/ibeckermayer/hotwatch/internal/browser"
	"github.com/ibeckermayer/hotwatch/internal/config"
	"github.com/ibeckermayer/hotwatch/internal/logging"
)

var (
	configFile string
	details    bool
	days       int

	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "hotwatch",
	Short:         "Zhihu hot list crawler",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if errors.Is(err, fs.ErrNotExist) {
			// First run: write the defaults so they can be edited
			cfg = config.Default()
			path := configFile
			if path == "" {
				path, err = config.ConfigPath()
				if err != nil {
					return err
				}
			}
			if err := cfg.Save(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "created default config at %s\n", path)
			}
		} else if err != nil {
			return err
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, logCloser, err = logging.New(cfg.Logging, os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to initialise logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the hot list once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			res, err := a.Crawl(ctx, details)
			if err != nil {
				return err
			}
			if res.Path == "" {
				fmt.Println("no new items")
				return nil
			}
			fmt.Printf("%d new items (%d enriched) written to %s\n", res.Accepted, res.Enriched, res.Path)
			return nil
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the configured jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if !a.IsAuthenticated() {
				logger.Warn().Msg("no stored session, crawl jobs will fail until `hotwatch login` succeeds")
			}
			s, err := a.Scheduler()
			if err != nil {
				return err
			}
			return s.Run(ctx)
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in interactively and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			fmt.Println("complete the sign in in the browser window")
			return a.Login(ctx)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Logout()
		})
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the configured jobs and their next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			s, err := a.Scheduler()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSCHEDULE\tGRACE\tNEXT RUN")
			for _, j := range s.Jobs() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s (%s)\n", j.ID, j.Spec, j.Grace,
					j.NextRun.Format(time.DateTime), humanize.Time(j.NextRun))
			}
			return w.Flush()
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <job-id>",
	Short: "Run one configured job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			s, err := a.Scheduler()
			if err != nil {
				return err
			}
			return s.RunNow(ctx, args[0])
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build an analysis report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			r, err := a.Report(ctx, days)
			if err != nil {
				return err
			}
			if r == nil {
				fmt.Printf("no data in the last %d days\n", days)
				return nil
			}
			fmt.Println(r.FilePath)
			return nil
		})
	},
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.New(cfg, logger, browser.Launch)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is the user config dir)")
	runCmd.Flags().BoolVarP(&details, "details", "d", false, "enrich new items from their own pages")
	reportCmd.Flags().IntVar(&days, "days", 7, "number of days to analyse")

	rootCmd.AddCommand(runCmd, scheduleCmd, loginCmd, logoutCmd, jobsCmd, triggerCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
