package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis_report_20250610_080000.md")
	require.NoError(t, os.WriteFile(path, []byte("# report"), 0644))

	s := NewSMTPSender("smtp.example.com", 587, "user", "pass", "bot@example.com")
	e, err := s.build("me@example.com", "weekly", "body text", path)
	require.NoError(t, err)

	assert.Equal(t, "bot@example.com", e.From)
	assert.Equal(t, []string{"me@example.com"}, e.To)
	require.Len(t, e.Attachments, 1)
	assert.Equal(t, "analysis_report_20250610_080000.md", e.Attachments[0].Filename)

	raw, err := e.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: weekly")
	assert.Contains(t, string(raw), "body text")
}

func TestBuildMissingAttachment(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "", "", "bot@example.com")
	_, err := s.build("me@example.com", "weekly", "body", filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}
