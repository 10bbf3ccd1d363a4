package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	defaultConfigPath = "config.yaml"

	configPathEnv     = "NEWSDIGEST_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	claudeAPIKeyEnv   = "ANTHROPIC_API_KEY"
	emailAddressEnv   = "EMAIL_ADDRESS"
	emailPasswordEnv  = "EMAIL_PASSWORD"
	imapServerEnv     = "IMAP_SERVER"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	llmProviderEnv    = "LLM_PROVIDER"
	llmModelEnv       = "LLM_MODEL"
)

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	domainPattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Email         EmailConfig        `yaml:"email"`
	Feeds         []FeedConfig       `yaml:"feeds"`
	Search        SearchConfig       `yaml:"search"`
	Output        OutputConfig       `yaml:"output"`
	LLM           LLMConfig          `yaml:"llm"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Sanitizer     SanitizerConfig    `yaml:"sanitizer"`
	ML            MLConfig           `yaml:"ml"`
	Notifications NotificationConfig `yaml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig selects the SQL driver and connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines how often the crawl runs.
type SchedulerConfig struct {
	Frequency int            `yaml:"frequency"`
	Timezone  string         `yaml:"timezone"`
	location  *time.Location `yaml:"-"`
}

// Interval converts the frequency in minutes to a duration.
func (s SchedulerConfig) Interval() time.Duration {
	if s.Frequency <= 0 {
		return time.Hour
	}
	return time.Duration(s.Frequency) * time.Minute
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// EmailConfig describes the IMAP mailbox and the senders it trusts.
type EmailConfig struct {
	Server         string   `yaml:"server"`
	Port           int      `yaml:"port"`
	Address        string   `yaml:"address"`
	Password       string   `yaml:"password"`
	Mailbox        string   `yaml:"mailbox"`
	AllowedSenders []string `yaml:"allowedSenders"`
	AllowedDomains []string `yaml:"allowedDomains"`
}

// Allowlist returns the sender patterns: exact addresses and "*@domain" entries.
func (e EmailConfig) Allowlist() []string {
	out := make([]string, 0, len(e.AllowedSenders)+len(e.AllowedDomains))
	out = append(out, e.AllowedSenders...)
	for _, d := range e.AllowedDomains {
		out = append(out, "*@"+d)
	}
	return out
}

// FeedConfig is an RSS or Atom feed read alongside the mailbox.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SearchConfig holds the criteria and scoring thresholds.
type SearchConfig struct {
	Criteria          []string `yaml:"criteria"`
	MinRelevanceScore float64  `yaml:"minRelevanceScore"`
	DedupThreshold    float64  `yaml:"dedupThreshold"`
}

// OutputConfig bounds digests and listings.
type OutputConfig struct {
	MaxResults int `yaml:"maxResults"`
	PageSize   int `yaml:"pageSize"`
}

// LLMConfig selects chat and embedding providers.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	EmbeddingProvider string  `yaml:"embeddingProvider"`
	EmbeddingModel    string  `yaml:"embeddingModel"`
	APIKey            string  `yaml:"apiKey"`
	OpenAIAPIKey      string  `yaml:"openaiApiKey"`
	GeminiAPIKey      string  `yaml:"geminiApiKey"`
	AnthropicAPIKey   string  `yaml:"anthropicApiKey"`
	BaseURL           string  `yaml:"baseUrl"`
	RequestsPerMinute int     `yaml:"requestsPerMinute"`
	Temperature       float32 `yaml:"temperature"`
	Workers           int     `yaml:"workers"`
}

// KeyFor returns the API key for a provider, preferring the generic apiKey
// when it belongs to the chat provider.
func (l LLMConfig) KeyFor(provider string) string {
	provider = strings.ToLower(provider)
	if l.APIKey != "" && provider == strings.ToLower(l.Provider) {
		return l.APIKey
	}
	switch provider {
	case "openai":
		return l.OpenAIAPIKey
	case "gemini":
		return l.GeminiAPIKey
	case "claude", "anthropic":
		return l.AnthropicAPIKey
	default:
		return l.APIKey
	}
}

// EnrichmentConfig tunes crawling of sparse articles.
type EnrichmentConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Timeout           time.Duration `yaml:"timeout"`
	MinParagraphChars int           `yaml:"minParagraphChars"`
	MaxInputChars     int           `yaml:"maxInputChars"`
	Languages         []string      `yaml:"languages"`
	Summarizer        string        `yaml:"summarizer"`
}

// SanitizerConfig tunes the batch content cleaner.
type SanitizerConfig struct {
	Model        string        `yaml:"model"`
	ChunkSize    int           `yaml:"chunkSize"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Timeout      time.Duration `yaml:"timeout"`
	WorkDir      string        `yaml:"workDir"`
}

// MLConfig describes neural-service integration parameters.
type MLConfig struct {
	InferenceURL string `yaml:"inferenceUrl"`
	APIKey       string `yaml:"apiKey"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// HTTPConfig configures the query API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig sets the slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration (if present) over the defaults and applies
// environment overrides. Unreadable files fall back to defaults.
func Load() Config {
	path := os.Getenv(configPathEnv)
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit path.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		slog.Warn("cannot read config, falling back to defaults", "path", path, "error", err)
	default:
		fileCfg := defaultConfig()
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			slog.Warn("cannot parse config, falling back to defaults", "path", path, "error", err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.Email.AllowedSenders = validEntries("sender", cfg.Email.AllowedSenders, emailPattern)
	cfg.Email.AllowedDomains = validEntries("domain", cfg.Email.AllowedDomains, domainPattern)

	return cfg
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		databaseDSNEnv:    &c.Database.DSN,
		openAIAPIKeyEnv:   &c.LLM.OpenAIAPIKey,
		geminiAPIKeyEnv:   &c.LLM.GeminiAPIKey,
		claudeAPIKeyEnv:   &c.LLM.AnthropicAPIKey,
		emailAddressEnv:   &c.Email.Address,
		emailPasswordEnv:  &c.Email.Password,
		imapServerEnv:     &c.Email.Server,
		telegramTokenEnv:  &c.Notifications.Telegram.BotToken,
		telegramChatIDEnv: &c.Notifications.Telegram.ChatID,
		llmProviderEnv:    &c.LLM.Provider,
		llmModelEnv:       &c.LLM.Model,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	// host:port form for IMAP_SERVER
	if host, port, ok := strings.Cut(c.Email.Server, ":"); ok {
		if p, err := strconv.Atoi(port); err == nil {
			c.Email.Server = host
			c.Email.Port = p
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("unknown timezone, reverting to default", "timezone", tz, "default", defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func validEntries(kind string, entries []string, pattern *regexp.Regexp) []string {
	valid := make([]string, 0, len(entries))
	var invalid []string
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if pattern.MatchString(e) {
			valid = append(valid, strings.ToLower(e))
			continue
		}
		invalid = append(invalid, e)
	}
	if len(invalid) > 0 {
		slog.Warn("invalid allowlist entries in config", "kind", kind, "entries", strings.Join(invalid, ", "))
	}
	return valid
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "file:newsdigest.db?_pragma=busy_timeout(5000)"},
		Scheduler: SchedulerConfig{Frequency: 60, Timezone: defaultTimezone, location: tz},
		Email: EmailConfig{
			Server:  "imap.gmail.com",
			Port:    993,
			Mailbox: "INBOX",
		},
		Search: SearchConfig{MinRelevanceScore: 0.5, DedupThreshold: 0.95},
		Output: OutputConfig{MaxResults: 10, PageSize: 10},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			EmbeddingProvider: "openai",
			EmbeddingModel:    "text-embedding-3-small",
			RequestsPerMinute: 60,
			Temperature:       0.1,
			Workers:           3,
		},
		Enrichment: EnrichmentConfig{
			Enabled:           true,
			Timeout:           10 * time.Second,
			MinParagraphChars: 200,
			MaxInputChars:     2000,
			Summarizer:        "llm",
		},
		Sanitizer: SanitizerConfig{
			Model:        "gpt-4o-mini",
			ChunkSize:    50,
			PollInterval: 60 * time.Second,
			Timeout:      24 * time.Hour,
		},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
