// Package report summarizes recent crawl output into a markdown report.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/hotwatch/internal/store"
	"github.com/ibeckermayer/hotwatch/internal/types"
)

// ErrNoData means no item was observed in the requested period
var ErrNoData = errors.New("no data to analyze")

// Source provides the items observed since a point in time
type Source interface {
	Items(ctx context.Context, since time.Time) ([]types.HotItem, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, since time.Time) ([]types.HotItem, error)

func (f SourceFunc) Items(ctx context.Context, since time.Time) ([]types.HotItem, error) {
	return f(ctx, since)
}

// Builder creates reports from crawl output
type Builder struct {
	dir      string
	source   Source
	template *template.Template
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a new report builder writing into dir
func New(dir string, source Source, logger zerolog.Logger) (*Builder, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"date":  func(t time.Time) string { return t.Format("2006-01-02") },
		"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
		"inc":   func(i int) int { return i + 1 },
	}).Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		dir:      dir,
		source:   source,
		template: tmpl,
		log:      logger,
		now:      time.Now,
	}, nil
}

// Report is a rendered report written to disk
type Report struct {
	Subject   string
	Body      string
	FilePath  string
	Analysis  Analysis
	CreatedAt time.Time
}

// Build analyzes the last days of items and writes the report file
func (b *Builder) Build(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		return nil, fmt.Errorf("invalid report period of %d days", days)
	}

	now := b.now()
	items, err := b.source.Items(ctx, now.AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoData
	}

	analysis := Analyze(items, days, now)

	var buf bytes.Buffer
	if err := b.template.Execute(&buf, analysis); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	path := filepath.Join(b.dir, fmt.Sprintf("analysis_report_%s.md", now.Format("20060102_150405")))
	if err := store.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	b.log.Info().
		Str("path", path).
		Int("days", days).
		Int("records", analysis.TotalRecords).
		Int("questions", analysis.TotalQuestions).
		Msg("report written")

	return &Report{
		Subject:   fmt.Sprintf("知乎热榜数据分析报告 (最近%d天) - %s", days, now.Format("2006-01-02")),
		Body:      buf.String(),
		FilePath:  path,
		Analysis:  analysis,
		CreatedAt: now,
	}, nil
}

// ArtifactSource reads items back from the per-run output files
type ArtifactSource struct {
	Output *store.Output
	Log    zerolog.Logger
}

// Items returns the items of every artifact observed at or after since.
// Unreadable artifacts are skipped.
func (s ArtifactSource) Items(ctx context.Context, since time.Time) ([]types.HotItem, error) {
	paths, err := s.Output.List()
	if err != nil {
		return nil, err
	}

	var items []types.HotItem
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := store.LoadItems(p)
		if err != nil {
			s.Log.Warn().Err(err).Str("path", p).Msg("skipping unreadable artifact")
			continue
		}
		for _, it := range batch {
			if !it.ObservedAt.Before(since) {
				items = append(items, it)
			}
		}
	}
	return items, nil
}

const defaultTemplate = `# 知乎热榜数据分析报告

**生成时间**: {{stamp .GeneratedAt}}
**分析周期**: 最近{{.Days}}天

## 数据概览

- **总问题数**: {{comma .TotalQuestions}} 个独特问题
- **总记录数**: {{comma .TotalRecords}} 条记录
- **数据时间范围**: {{date .Start}} 至 {{date .End}}
{{if .Daily}}
## 每日活跃度

| 日期 | 问题数量 |
|------|----------|
{{range .Daily}}| {{.Date}} | {{comma .Count}} |
{{end}}{{end}}{{if .PopularTags}}
## 热门标签

{{range .PopularTags}}- **{{.Tag}}**: {{comma .Count}} 次
{{end}}{{end}}{{with .Answers}}
## 回答数据统计

- **统计问题数**: {{comma .Items}}
- **平均回答数**: {{printf "%.2f" .Mean}} 个
- **中位数回答数**: {{printf "%.1f" .Median}} 个
- **最多回答数**: {{comma .Max}} 个
- **最少回答数**: {{comma .Min}} 个
{{end}}{{if .TopAnswered}}
## 回答最多的问题

{{range $i, $it := .TopAnswered}}{{inc $i}}. [{{$it.Title}}]({{$it.URL}}) ({{comma $it.AnswerCount}} 个回答)
{{end}}{{end}}`
