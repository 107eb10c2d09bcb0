package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Job kinds understood by the scheduler wiring
const (
	JobKindCrawl  = "crawl"
	JobKindReport = "report"
)

// Dedup backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version" mapstructure:"version"`
	Crawl    CrawlConfig    `toml:"crawl" mapstructure:"crawl"`
	Storage  StorageConfig  `toml:"storage" mapstructure:"storage"`
	Logging  LoggingConfig  `toml:"logging" mapstructure:"logging"`
	Schedule ScheduleConfig `toml:"schedule" mapstructure:"schedule"`
	Email    EmailConfig    `toml:"email" mapstructure:"email"`
}

type CrawlConfig struct {
	TargetURL          string   `toml:"target_url" mapstructure:"target_url"`
	SigninURL          string   `toml:"signin_url" mapstructure:"signin_url"`
	SigninMarkers      []string `toml:"signin_markers" mapstructure:"signin_markers"`
	MaxCandidates      int      `toml:"max_candidates" mapstructure:"max_candidates"`
	DetailLimit        int      `toml:"detail_limit" mapstructure:"detail_limit"`
	Headless           bool     `toml:"headless" mapstructure:"headless"`
	PageSettleSeconds  int      `toml:"page_settle_seconds" mapstructure:"page_settle_seconds"`
	DetailTimeoutSecs  int      `toml:"detail_timeout_seconds" mapstructure:"detail_timeout_seconds"`
	DetailPauseMillis  int      `toml:"detail_pause_millis" mapstructure:"detail_pause_millis"`
	LoginTimeoutMinute int      `toml:"login_timeout_minutes" mapstructure:"login_timeout_minutes"`
}

// PageSettle is the fixed wait after loading the target page
func (c CrawlConfig) PageSettle() time.Duration {
	return time.Duration(c.PageSettleSeconds) * time.Second
}

// DetailTimeout bounds the readiness wait on a detail page
func (c CrawlConfig) DetailTimeout() time.Duration {
	return time.Duration(c.DetailTimeoutSecs) * time.Second
}

// DetailPause is the delay between two detail page loads
func (c CrawlConfig) DetailPause() time.Duration {
	return time.Duration(c.DetailPauseMillis) * time.Millisecond
}

func (c CrawlConfig) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutMinute) * time.Minute
}

type StorageConfig struct {
	DataDir      string `toml:"data_dir" mapstructure:"data_dir"`
	DedupBackend string `toml:"dedup_backend" mapstructure:"dedup_backend"`
	OutputPrefix string `toml:"output_prefix" mapstructure:"output_prefix"`
	HistoryLimit int    `toml:"history_limit" mapstructure:"history_limit"`
}

// RawDir holds one output artifact per run
func (s StorageConfig) RawDir() string { return filepath.Join(s.DataDir, "raw") }

func (s StorageConfig) ReportDir() string { return filepath.Join(s.DataDir, "reports") }

func (s StorageConfig) HistoryPath() string { return filepath.Join(s.DataDir, "crawl_history.json") }

func (s StorageConfig) KeysPath() string { return filepath.Join(s.DataDir, "question_hashes.json") }

func (s StorageConfig) DatabasePath() string { return filepath.Join(s.DataDir, "hotwatch.db") }

func (s StorageConfig) SessionPath() string { return filepath.Join(s.DataDir, "zhihu_cookies.json") }

type LoggingConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type ScheduleConfig struct {
	Timezone          string      `toml:"timezone" mapstructure:"timezone"`
	JobTimeoutMinutes int         `toml:"job_timeout_minutes" mapstructure:"job_timeout_minutes"`
	Jobs              []JobConfig `toml:"jobs" mapstructure:"jobs"`
}

// JobConfig describes one recurring job. Details applies to crawl jobs,
// Days to report jobs.
type JobConfig struct {
	ID           string `toml:"id" mapstructure:"id"`
	Name         string `toml:"name" mapstructure:"name"`
	Kind         string `toml:"kind" mapstructure:"kind"`
	Cron         string `toml:"cron" mapstructure:"cron"`
	GraceSeconds int    `toml:"grace_seconds" mapstructure:"grace_seconds"`
	Details      bool   `toml:"details" mapstructure:"details"`
	Days         int    `toml:"days" mapstructure:"days"`
}

func (j JobConfig) Grace() time.Duration {
	return time.Duration(j.GraceSeconds) * time.Second
}

type EmailConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	SMTPHost string `toml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort int    `toml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser string `toml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPass string `toml:"smtp_pass" mapstructure:"smtp_pass"`
	FromAddr string `toml:"from_address" mapstructure:"from_address"`
	ToAddr   string `toml:"to_address" mapstructure:"to_address"`
}

// DefaultJobs mirrors the cadence the crawler has always run with
func DefaultJobs() []JobConfig {
	return []JobConfig{
		{ID: "crawl_basic_2h", Name: "basic crawl every 2 hours", Kind: JobKindCrawl, Cron: "0 */2 * * *", GraceSeconds: 300},
		{ID: "crawl_detailed_6h", Name: "detailed crawl every 6 hours", Kind: JobKindCrawl, Cron: "30 */6 * * *", GraceSeconds: 600, Details: true},
		{ID: "weekly_analysis", Name: "daily 7-day report", Kind: JobKindReport, Cron: "0 8 * * *", GraceSeconds: 3600, Days: 7},
		{ID: "monthly_analysis", Name: "weekly 30-day report", Kind: JobKindReport, Cron: "0 9 * * mon", GraceSeconds: 3600, Days: 30},
	}
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Crawl: CrawlConfig{
			TargetURL:          "https://www.zhihu.com/hot",
			SigninURL:          "https://www.zhihu.com/signin",
			SigninMarkers:      []string{"signin", "login"},
			MaxCandidates:      50,
			DetailLimit:        20,
			Headless:           true,
			PageSettleSeconds:  3,
			DetailTimeoutSecs:  10,
			DetailPauseMillis:  1000,
			LoginTimeoutMinute: 5,
		},
		Storage: StorageConfig{
			DataDir:      "data",
			DedupBackend: BackendJSON,
			OutputPrefix: "zhihu_hot",
			HistoryLimit: 100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        filepath.Join("data", "logs"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Schedule: ScheduleConfig{
			Timezone:          "Asia/Shanghai",
			JobTimeoutMinutes: 30,
			Jobs:              DefaultJobs(),
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "hotwatch"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from path, falling back to ConfigPath when path is
// empty. Values missing from the file keep their defaults and any key can
// be overridden with a HOTWATCH_ environment variable, e.g.
// HOTWATCH_CRAWL_HEADLESS=false. A missing file yields an error wrapping
// fs.ErrNotExist.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("HOTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if len(cfg.Schedule.Jobs) == 0 {
		cfg.Schedule.Jobs = DefaultJobs()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("crawl.target_url", d.Crawl.TargetURL)
	v.SetDefault("crawl.signin_url", d.Crawl.SigninURL)
	v.SetDefault("crawl.signin_markers", d.Crawl.SigninMarkers)
	v.SetDefault("crawl.max_candidates", d.Crawl.MaxCandidates)
	v.SetDefault("crawl.detail_limit", d.Crawl.DetailLimit)
	v.SetDefault("crawl.headless", d.Crawl.Headless)
	v.SetDefault("crawl.page_settle_seconds", d.Crawl.PageSettleSeconds)
	v.SetDefault("crawl.detail_timeout_seconds", d.Crawl.DetailTimeoutSecs)
	v.SetDefault("crawl.detail_pause_millis", d.Crawl.DetailPauseMillis)
	v.SetDefault("crawl.login_timeout_minutes", d.Crawl.LoginTimeoutMinute)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.dedup_backend", d.Storage.DedupBackend)
	v.SetDefault("storage.output_prefix", d.Storage.OutputPrefix)
	v.SetDefault("storage.history_limit", d.Storage.HistoryLimit)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("schedule.timezone", d.Schedule.Timezone)
	v.SetDefault("schedule.job_timeout_minutes", d.Schedule.JobTimeoutMinutes)

	v.SetDefault("email.enabled", d.Email.Enabled)
	v.SetDefault("email.smtp_host", d.Email.SMTPHost)
	v.SetDefault("email.smtp_port", d.Email.SMTPPort)
	v.SetDefault("email.smtp_user", d.Email.SMTPUser)
	v.SetDefault("email.smtp_pass", d.Email.SMTPPass)
	v.SetDefault("email.from_address", d.Email.FromAddr)
	v.SetDefault("email.to_address", d.Email.ToAddr)
}

// Validate checks the values the pipeline depends on
func (c *Config) Validate() error {
	u, err := url.Parse(c.Crawl.TargetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid crawl.target_url %q", c.Crawl.TargetURL)
	}
	if c.Crawl.MaxCandidates <= 0 {
		return fmt.Errorf("crawl.max_candidates must be positive, got %d", c.Crawl.MaxCandidates)
	}
	if c.Crawl.DetailLimit < 0 {
		return fmt.Errorf("crawl.detail_limit must not be negative, got %d", c.Crawl.DetailLimit)
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is empty")
	}
	if c.Storage.HistoryLimit <= 0 {
		return fmt.Errorf("storage.history_limit must be positive, got %d", c.Storage.HistoryLimit)
	}
	switch c.Storage.DedupBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage.dedup_backend %q", c.Storage.DedupBackend)
	}

	seen := make(map[string]bool)
	for _, j := range c.Schedule.Jobs {
		if j.ID == "" {
			return errors.New("schedule job without id")
		}
		if seen[j.ID] {
			return fmt.Errorf("duplicate schedule job id %q", j.ID)
		}
		seen[j.ID] = true
		if j.Kind != JobKindCrawl && j.Kind != JobKindReport {
			return fmt.Errorf("job %s: unknown kind %q", j.ID, j.Kind)
		}
		if j.GraceSeconds < 0 {
			return fmt.Errorf("job %s: negative grace_seconds", j.ID)
		}
	}
	return nil
}

// Save writes config to path, or to ConfigPath when path is empty
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
