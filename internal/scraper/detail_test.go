package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"423", 423, true},
		{"1,234", 1234, true},
		{"1.2K", 1200, true},
		{"5.7m", 5700000, true},
		{"3.5万", 35000, true},
		{"2 亿", 200000000, true},
		{"", 0, false},
		{"many", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCount(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

const questionPage = `<html><body>
<div class="QuestionHeader">
  <div class="QuestionHeader-tags">
    <div class="Tag">科技</div><div class="Tag">互联网</div><div class="Tag">科技</div>
  </div>
  <div class="NumberBoard">
    <div class="NumberBoard-item"><div class="NumberBoard-itemInner">
      <div class="NumberBoard-itemName">关注者</div><strong class="NumberBoard-itemValue">1,024</strong>
    </div></div>
    <div class="NumberBoard-item"><div class="NumberBoard-itemInner">
      <div class="NumberBoard-itemName">被浏览</div><strong class="NumberBoard-itemValue">3.5万</strong>
    </div></div>
  </div>
  <div class="QuestionHeader-detail">共 12,345 次浏览</div>
</div>
<div class="List-headerText"><span>88 个回答</span></div>
</body></html>`

func TestParseDetail(t *testing.T) {
	d, diags := ParseDetail(mustDoc(t, questionPage))

	assert.Empty(t, diags)
	// the first board value wins the answer selector, as on the live site
	assert.Equal(t, 1024, d.AnswerCount)
	assert.Equal(t, 1024, d.FollowerCount)
	assert.Equal(t, 12345, d.ViewCount)
	assert.Equal(t, []string{"科技", "互联网"}, d.Tags)
	assert.Equal(t, types.DetailStatus(""), d.Status)
}

func TestParseDetailViewFromBoard(t *testing.T) {
	page := `<div class="NumberBoard-itemInner"><span>被浏览</span><strong class="NumberBoard-itemValue">2.1万</strong></div>`
	d, diags := ParseDetail(mustDoc(t, page))

	assert.Equal(t, 21000, d.ViewCount)
	assert.Equal(t, 21000, d.AnswerCount)
	assert.Zero(t, d.FollowerCount)
	assert.NotEmpty(t, diags)
}

func TestParseDetailEmptyPage(t *testing.T) {
	d, diags := ParseDetail(mustDoc(t, `<html><body><p>nothing</p></body></html>`))
	assert.False(t, d.HasData())
	assert.Len(t, diags, 4)
}
