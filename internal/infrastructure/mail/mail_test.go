package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFallbackChain(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Time{
		"Fri, 05 Jan 2024 10:00:00 +0000":      time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		"2024-01-05 10:00:00":                  time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		"2024-01-05T10:00:00Z":                 time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		"05-Jan-2024":                          time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		"Fri, 5 Jan 2024 10:00:00 +0000 (UTC)": time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got, err := ParseDate(input)
		require.NoError(t, err, input)
		assert.True(t, want.Equal(got), "%s: got %s", input, got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "not a date", "yesterday-ish"} {
		_, err := ParseDate(input)
		assert.ErrorIs(t, err, ErrUnparseableDate, input)
	}
}

func TestAllowlist(t *testing.T) {
	t.Parallel()

	a := NewAllowlist([]string{"News@GolangWeekly.com", "*@substack.com", "@tldr.tech", ""})

	assert.Equal(t, 3, a.Len())
	assert.True(t, a.Allowed("news@golangweekly.com"))
	assert.True(t, a.Allowed("writer@SUBSTACK.com"))
	assert.True(t, a.Allowed("dan@tldr.tech"))
	assert.False(t, a.Allowed("other@golangweekly.com"))
	assert.False(t, a.Allowed("spam@evil.com"))
	assert.False(t, a.Allowed("no-at-sign"))
}

func TestParseMessageMultipart(t *testing.T) {
	t.Parallel()

	raw := strings.ReplaceAll(`From: Go Weekly <news@golangweekly.com>
To: me@example.com
Subject: Issue 500
Date: 2024-01-05 10:00:00
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

Plain body
--b1
Content-Type: text/html; charset=utf-8

<p>Read <a href="https://go.dev/blog">this</a></p>
--b1--
`, "\n", "\r\n")

	msg, err := ParseMessage("7", strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "7", msg.UID)
	assert.Equal(t, "Issue 500", msg.Subject)
	assert.Equal(t, "news@golangweekly.com", msg.From)
	assert.Equal(t, "2024-01-05 10:00:00", msg.DateStr)
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), msg.Date)
	assert.Contains(t, msg.Text, "Plain body")
	assert.Contains(t, msg.HTML, `href="https://go.dev/blog"`)
	assert.Contains(t, msg.Body(), "<a href")
}

func TestParseMessageSinglePart(t *testing.T) {
	t.Parallel()

	raw := "From: a@b.com\r\nSubject: Hi\r\nDate: garbage\r\nContent-Type: text/plain\r\n\r\nhello\r\n"
	msg, err := ParseMessage("1", strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "hello\r\n", msg.Text)
	assert.True(t, msg.Date.IsZero())
}

func TestFirstOfMonth(t *testing.T) {
	t.Parallel()

	got := firstOfMonth(time.Date(2024, 3, 17, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)
}
