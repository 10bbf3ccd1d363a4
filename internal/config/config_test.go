package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  frequency: 15
  timezone: Europe/Berlin
email:
  allowedSenders: ["news@golangweekly.com", "not-an-email"]
  allowedDomains: ["substack.com", "bad_domain"]
search:
  criteria: ["Go, Golang", "AI"]
  minRelevanceScore: 0.6
enrichment:
  timeout: 5s
sanitizer:
  pollInterval: 2m
`)

	cfg := LoadFile(path)

	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval())
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Location().String())
	assert.Equal(t, []string{"news@golangweekly.com"}, cfg.Email.AllowedSenders)
	assert.Equal(t, []string{"substack.com"}, cfg.Email.AllowedDomains)
	assert.Equal(t, []string{"news@golangweekly.com", "*@substack.com"}, cfg.Email.Allowlist())
	assert.Equal(t, []string{"Go, Golang", "AI"}, cfg.Search.Criteria)
	assert.Equal(t, 0.6, cfg.Search.MinRelevanceScore)
	assert.Equal(t, 5*time.Second, cfg.Enrichment.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Sanitizer.PollInterval)

	// untouched sections keep defaults
	assert.Equal(t, 0.95, cfg.Search.DedupThreshold)
	assert.Equal(t, 50, cfg.Sanitizer.ChunkSize)
	assert.Equal(t, "INBOX", cfg.Email.Mailbox)
	assert.Equal(t, 2000, cfg.Enrichment.MaxInputChars)
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Equal(t, time.Hour, cfg.Scheduler.Interval())
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
	assert.Equal(t, 10, cfg.Output.PageSize)
	assert.Equal(t, 60, cfg.LLM.RequestsPerMinute)
}

func TestLoadFileBrokenYAMLUsesDefaults(t *testing.T) {
	cfg := LoadFile(writeConfig(t, "search: [unclosed"))
	assert.Equal(t, 0.5, cfg.Search.MinRelevanceScore)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@db/news")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("IMAP_SERVER", "imap.example.com:1993")
	t.Setenv("EMAIL_ADDRESS", "me@example.com")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")

	cfg := LoadFile(writeConfig(t, "database:\n  driver: postgres\n"))

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@db/news", cfg.Database.DSN)
	assert.Equal(t, "imap.example.com", cfg.Email.Server)
	assert.Equal(t, 1993, cfg.Email.Port)
	assert.Equal(t, "me@example.com", cfg.Email.Address)
	assert.Equal(t, "12345", cfg.Notifications.Telegram.ChatID)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "g-key", cfg.LLM.KeyFor("gemini"))
	assert.Equal(t, "sk-test", cfg.LLM.KeyFor("openai"))
}

func TestLoadUsesConfigPathEnv(t *testing.T) {
	t.Setenv("NEWSDIGEST_CONFIG", writeConfig(t, "http:\n  addr: \":9999\"\n"))
	assert.Equal(t, ":9999", Load().HTTP.Addr)
}

func TestKeyForPrefersGenericKey(t *testing.T) {
	l := LLMConfig{Provider: "claude", APIKey: "generic", AnthropicAPIKey: "specific", OpenAIAPIKey: "oa"}
	assert.Equal(t, "generic", l.KeyFor("claude"))
	assert.Equal(t, "oa", l.KeyFor("openai"))
}
