package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		want  string
	}{
		{"question link", "Any title", "https://www.zhihu.com/question/123456", "q_123456"},
		{"relative link", "Any title", "/question/42", "q_42"},
		{"answer link", "Any title", "https://www.zhihu.com/question/77/answer/99", "q_77"},
		{"no id uses title hash", "hello", "https://www.zhihu.com/special/1", "5d41402abc4b2a76b9719d911017c592"},
		{"empty url uses title hash", "hello", "", "5d41402abc4b2a76b9719d911017c592"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identity(tt.title, tt.url))
		})
	}
}

func TestIdentityIgnoresQueryAndTitle(t *testing.T) {
	a := Identity("first title", "https://www.zhihu.com/question/555?utm_source=hot&utm_medium=list")
	b := Identity("edited title", "https://www.zhihu.com/question/555?utm_source=share")
	assert.Equal(t, a, b)
	assert.Equal(t, "q_555", a)
}

func TestIdentityDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, Identity("同一个问题", ""), Identity("同一个问题", ""))
	}
	assert.NotEqual(t, Identity("a", ""), Identity("b", ""))
}

func TestQuestionID(t *testing.T) {
	id, ok := QuestionID("https://www.zhihu.com/question/31/answer/2")
	assert.True(t, ok)
	assert.Equal(t, "31", id)

	_, ok = QuestionID("https://www.zhihu.com/people/someone")
	assert.False(t, ok)
}

func TestMemorySet(t *testing.T) {
	m := NewMemory("q_1")
	assert.True(t, m.Contains("q_1"))

	m.Add("q_2")
	assert.True(t, m.Contains("q_2"))
	assert.Equal(t, 1, m.Pending())

	m.Rollback()
	assert.False(t, m.Contains("q_2"))

	m.Add("q_3")
	assert.NoError(t, m.Flush())
	m.Rollback()
	assert.True(t, m.Contains("q_3"))
	assert.Equal(t, 2, m.Len())
}
