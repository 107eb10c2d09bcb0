package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hotwatch/internal/store"
	"github.com/ibeckermayer/hotwatch/internal/types"
)

var reportNow = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

func item(key string, rank int, at time.Time, answers int, tags ...string) types.HotItem {
	it := types.HotItem{
		Rank:        rank,
		Title:       "Question " + key,
		URL:         "https://www.zhihu.com/question/" + strings.TrimPrefix(key, "q_"),
		IdentityKey: key,
		ObservedAt:  at,
		Detail:      types.Detail{Status: types.DetailNotAttempted},
	}
	if answers > 0 || len(tags) > 0 {
		it.Detail = types.Detail{AnswerCount: answers, Tags: tags, Status: types.DetailPopulated}
	}
	return it
}

func TestAnalyze(t *testing.T) {
	day1 := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	items := []types.HotItem{
		item("q_1", 1, day1, 100, "科技", "互联网"),
		item("q_2", 2, day1, 40, "科技"),
		item("q_3", 3, day1, 0),
		item("q_1", 3, day2, 120, "科技"),
		item("q_4", 1, day2, 10, "体育"),
		item("q_4", 30, day2.Add(time.Hour), 0),
	}

	a := Analyze(items, 7, reportNow)

	assert.Equal(t, 6, a.TotalRecords)
	assert.Equal(t, 4, a.TotalQuestions)
	assert.Equal(t, day1, a.Start)
	assert.Equal(t, day2.Add(time.Hour), a.End)
	assert.Equal(t, []DayCount{{"2025-06-08", 3}, {"2025-06-09", 3}}, a.Daily)
	assert.Equal(t, TagCount{"科技", 3}, a.PopularTags[0])
	assert.Len(t, a.PopularTags, 3)

	require.NotNil(t, a.Answers)
	assert.Equal(t, 4, a.Answers.Items)
	assert.Equal(t, 67.5, a.Answers.Mean)
	assert.Equal(t, 70.0, a.Answers.Median)
	assert.Equal(t, 120, a.Answers.Max)
	assert.Equal(t, 10, a.Answers.Min)

	require.Len(t, a.TopAnswered, 3)
	assert.Equal(t, "q_1", a.TopAnswered[0].IdentityKey)
	assert.Equal(t, 120, a.TopAnswered[0].AnswerCount)
}

func TestAnalyzeWithoutDetails(t *testing.T) {
	a := Analyze([]types.HotItem{item("q_1", 1, reportNow, 0)}, 7, reportNow)
	assert.Nil(t, a.Answers)
	assert.Empty(t, a.TopAnswered)
}

func TestBuildFromArtifacts(t *testing.T) {
	dir := t.TempDir()
	out := store.NewOutput(filepath.Join(dir, "raw"), "zhihu_hot")

	old := reportNow.AddDate(0, 0, -20)
	recent := reportNow.AddDate(0, 0, -1)
	_, err := out.Save([]types.HotItem{item("q_9", 1, old, 5000, "旧闻")}, old)
	require.NoError(t, err)
	_, err = out.Save([]types.HotItem{
		item("q_1", 1, recent, 12345, "科技"),
		item("q_2", 2, recent, 0),
	}, recent)
	require.NoError(t, err)

	b, err := New(filepath.Join(dir, "reports"), ArtifactSource{Output: out, Log: zerolog.Nop()}, zerolog.Nop())
	require.NoError(t, err)
	b.now = func() time.Time { return reportNow }

	r, err := b.Build(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "analysis_report_20250610_080000.md"), r.FilePath)
	assert.Equal(t, 2, r.Analysis.TotalRecords)

	data, err := os.ReadFile(r.FilePath)
	require.NoError(t, err)
	body := string(data)
	assert.Equal(t, r.Body, body)
	assert.Contains(t, body, "最近7天")
	assert.Contains(t, body, "12,345 个回答")
	assert.Contains(t, body, "**科技**: 1 次")
	assert.NotContains(t, body, "旧闻")
	assert.NotContains(t, body, "排名稳定性")
}

func TestBuildWithoutData(t *testing.T) {
	src := SourceFunc(func(ctx context.Context, since time.Time) ([]types.HotItem, error) {
		return nil, nil
	})
	b, err := New(t.TempDir(), src, zerolog.Nop())
	require.NoError(t, err)

	_, err = b.Build(context.Background(), 30)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = b.Build(context.Background(), 0)
	assert.Error(t, err)
}
