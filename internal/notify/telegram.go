package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"go.uber.org/zap"
)

const (
	// EnvBotToken and EnvChatID hold the Telegram credentials.
	EnvBotToken = "TG_BOT_TOKEN"
	EnvChatID   = "TG_CHAT_ID"

	defaultTelegramURL = "https://api.telegram.org"
)

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" jsonschema:"title=Enabled,description=Send Telegram notifications,default=false"`
	Token   string `json:"-" yaml:"-" jsonschema:"-"`
	ChatID  string `json:"-" yaml:"-" jsonschema:"-"`
	// BaseURL overrides the Telegram Bot API endpoint.
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url" jsonschema:"title=Base URL"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" jsonschema:"title=Timeout,default=10s"`
}

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	client  *resty.Client
	token   string
	chatID  string
	enabled bool
	log     *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// NewTelegram creates a Telegram notifier. It is disabled unless cfg.Enabled
// is set and both credentials are present.
func NewTelegram(cfg TelegramConfig, log *logger.Logger) *Telegram {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTelegramURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Telegram{
		client:   client,
		token:    cfg.Token,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.Token != "" && cfg.ChatID != "",
		log:      log,
		now:      time.Now,
		mu:       sync.Mutex{},
		lastSent: time.Time{},
	}
}

// Enabled reports whether messages are actually sent.
func (t *Telegram) Enabled() bool {
	return t.enabled
}

// Send implements Notifier.
func (t *Telegram) Send(ctx context.Context, text string, throttle time.Duration) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if throttle > 0 && !t.lastSent.IsZero() && now.Sub(t.lastSent) < throttle {
		return
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{
			ChatID:                t.chatID,
			Text:                  text,
			DisableWebPagePreview: true,
		}).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		t.log.Warn("Telegram notification failed", zap.String("error", t.redact(err)))

		return
	}

	if resp.IsError() {
		t.log.Warn("Telegram notification rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)

		return
	}

	t.lastSent = now
}

// redact hides the bot token, which is part of the request URL.
func (t *Telegram) redact(err error) string {
	if t.token == "" {
		return err.Error()
	}

	return strings.ReplaceAll(err.Error(), t.token, "<redacted>")
}

var _ Notifier = (*Telegram)(nil)
