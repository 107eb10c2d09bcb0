package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/hotwatch/internal/auth"
	"github.com/ibeckermayer/hotwatch/internal/browser"
	"github.com/ibeckermayer/hotwatch/internal/config"
	"github.com/ibeckermayer/hotwatch/internal/dedup"
	"github.com/ibeckermayer/hotwatch/internal/logging"
	"github.com/ibeckermayer/hotwatch/internal/notifier"
	"github.com/ibeckermayer/hotwatch/internal/report"
	"github.com/ibeckermayer/hotwatch/internal/scheduler"
	"github.com/ibeckermayer/hotwatch/internal/store"
)

// App holds the application state.
type App struct {
	config   *config.Config
	log      zerolog.Logger
	sessions *auth.SessionStore
	auth     *auth.Manager
	crawler  *Crawler
	reporter *report.Builder
	notifier *notifier.Notifier // nil when email is disabled
	closers  []io.Closer
}

// New wires every component from cfg. launch starts browsing sessions,
// normally browser.Launch.
func New(cfg *config.Config, logger zerolog.Logger, launch browser.Launcher) (*App, error) {
	a := &App{config: cfg, log: logger}
	st := cfg.Storage

	a.sessions = auth.NewSessionStore(st.SessionPath())
	a.auth = auth.NewManager(a.sessions, launch, cfg.Crawl.SigninURL, cfg.Crawl.SigninMarkers,
		cfg.Crawl.LoginTimeout(), logging.Component(logger, "auth"))

	output := store.NewOutput(st.RawDir(), st.OutputPrefix)
	history := store.NewHistory(st.HistoryPath(), st.HistoryLimit)

	var (
		seen    dedup.Set
		archive Archiver
		source  report.Source = report.ArtifactSource{Output: output, Log: logging.Component(logger, "report")}
	)
	switch st.DedupBackend {
	case config.BackendSQLite:
		db, err := store.Open(st.DatabasePath(), logging.Component(logger, "store"))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db)
		seen, archive = db, db
		source = report.SourceFunc(db.ArchivedItems)
	default:
		seen = store.NewKeyFile(st.KeysPath(), logging.Component(logger, "store"))
	}

	a.crawler = NewCrawler(cfg.Crawl, Deps{
		Credentials: a.sessions,
		Launch:      launch,
		Seen:        seen,
		Output:      output,
		History:     history,
		Archive:     archive,
		Logger:      logging.Component(logger, "crawler"),
	})

	reporter, err := report.New(st.ReportDir(), source, logging.Component(logger, "report"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.reporter = reporter

	n, err := notifier.NewFromConfig(cfg.Email)
	switch {
	case errors.Is(err, notifier.ErrDisabled):
	case err != nil:
		a.Close()
		return nil, err
	default:
		a.notifier = n
	}

	return a, nil
}

// Close releases the database, if any
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// IsAuthenticated checks if a session is stored.
func (a *App) IsAuthenticated() bool {
	return a.auth.IsAuthenticated()
}

// Login starts the interactive login flow.
func (a *App) Login(ctx context.Context) error {
	a.log.Info().Msg("login triggered, opening browser")
	if err := a.auth.Login(ctx); err != nil {
		a.log.Error().Err(err).Msg("login failed")
		return err
	}
	a.log.Info().Msg("login successful, session saved")
	return nil
}

// Logout clears the stored session.
func (a *App) Logout() error {
	if err := a.auth.Logout(); err != nil {
		return err
	}
	a.log.Info().Msg("session cleared")
	return nil
}

// Crawl runs the crawler once
func (a *App) Crawl(ctx context.Context, details bool) (Result, error) {
	return a.crawler.RunOnce(ctx, Options{Details: details})
}

// Report builds the report for the last days and mails it when email is
// configured. A period without data is not an error.
func (a *App) Report(ctx context.Context, days int) (*report.Report, error) {
	r, err := a.reporter.Build(ctx, days)
	if errors.Is(err, report.ErrNoData) {
		a.log.Info().Int("days", days).Msg("no data for report")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if a.notifier != nil {
		if err := a.notifier.SendReport(r); err != nil {
			// the report file is already written
			a.log.Error().Err(err).Str("path", r.FilePath).Msg("failed to email report")
		} else {
			a.log.Info().Str("subject", r.Subject).Msg("report emailed")
		}
	}
	return r, nil
}

// Jobs builds the scheduled jobs declared in the configuration
func (a *App) Jobs() ([]scheduler.Job, error) {
	jobs := make([]scheduler.Job, 0, len(a.config.Schedule.Jobs))
	for _, jc := range a.config.Schedule.Jobs {
		job := scheduler.Job{
			ID:    jc.ID,
			Name:  jc.Name,
			Spec:  jc.Cron,
			Grace: jc.Grace(),
		}

		switch jc.Kind {
		case config.JobKindCrawl:
			details := jc.Details
			job.Handler = func(ctx context.Context) error {
				_, err := a.Crawl(ctx, details)
				return err
			}
		case config.JobKindReport:
			days := jc.Days
			job.Handler = func(ctx context.Context) error {
				_, err := a.Report(ctx, days)
				return err
			}
		default:
			return nil, fmt.Errorf("job %s: unknown kind %q", jc.ID, jc.Kind)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Scheduler returns a scheduler loaded with the configured jobs
func (a *App) Scheduler(opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	base := []scheduler.Option{scheduler.WithLogger(logging.Component(a.log, "scheduler"))}
	if m := a.config.Schedule.JobTimeoutMinutes; m > 0 {
		base = append(base, scheduler.WithJobTimeout(time.Duration(m)*time.Minute))
	}
	opts = append(base, opts...)

	s, err := scheduler.New(a.config.Schedule.Timezone, opts...)
	if err != nil {
		return nil, err
	}

	jobs, err := a.Jobs()
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
