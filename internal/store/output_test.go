package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

func TestOutputSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	out := NewOutput(dir, "zhihu_hot")
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	items := []types.HotItem{
		{Rank: 1, Title: "A", URL: "https://www.zhihu.com/question/1", IdentityKey: "q_1", ObservedAt: at,
			Detail: types.Detail{AnswerCount: 12, Tags: []string{"x"}, Status: types.DetailPopulated}},
		{Rank: 2, Title: "B", IdentityKey: "9d5ed678fe57bcca610140957afab571", ObservedAt: at,
			Detail: types.Detail{Status: types.DetailNotAttempted}},
	}

	path, err := out.Save(items, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zhihu_hot_20250304_050607.json"), path)

	loaded, err := LoadItems(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "q_1", loaded[0].IdentityKey)
	assert.Equal(t, 12, loaded[0].AnswerCount)
	assert.Equal(t, types.DetailNotAttempted, loaded[1].Status)
	assert.Empty(t, loaded[1].URL)
}

func TestOutputNeverOverwrites(t *testing.T) {
	out := NewOutput(t.TempDir(), "zhihu_hot")
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	first, err := out.Save([]types.HotItem{{Rank: 1, Title: "A"}}, at)
	require.NoError(t, err)
	second, err := out.Save([]types.HotItem{{Rank: 1, Title: "B"}}, at)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	files, err := out.List()
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, files)

	items, err := LoadItems(first)
	require.NoError(t, err)
	assert.Equal(t, "A", items[0].Title)
}

func TestOutputListMissingDir(t *testing.T) {
	files, err := NewOutput(filepath.Join(t.TempDir(), "none"), "zhihu_hot").List()
	require.NoError(t, err)
	assert.Empty(t, files)
}
