// Package telegram sends announcements through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bissquit/promo-garden/internal/notify"
)

const (
	defaultAPIBase = "https://api.telegram.org"

	// Bot API global limit is ~30 messages/second; group chats are
	// throttled far harder, so we stay well under.
	defaultRateLimit = 1.0
)

// Config holds telegram sender configuration.
type Config struct {
	Enabled   bool    `koanf:"enabled"`
	BotToken  string  `koanf:"bot_token"`
	RateLimit float64 `koanf:"rate_limit"`
	// APIBase overrides the Bot API endpoint, for tests.
	APIBase string `koanf:"api_base"`
}

// Sender implements the telegram announcement sender.
type Sender struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewSender creates a new telegram sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.BotToken == "" {
		return nil, errors.New("telegram sender: bot token is required when enabled")
	}
	if config.APIBase == "" {
		config.APIBase = defaultAPIBase
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	slog.Info("telegram sender configured",
		"enabled", config.Enabled,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Channel returns the channel identifier.
func (s *Sender) Channel() notify.Channel {
	return notify.ChannelTelegram
}

// SendText sends a MarkdownV2 message. On a formatting rejection the
// message is resent as plain text rather than dropped.
func (s *Sender) SendText(ctx context.Context, target, text string) error {
	err := s.call(ctx, "sendMessage", map[string]any{
		"chat_id":    target,
		"text":       text,
		"parse_mode": "MarkdownV2",
	})
	if errors.Is(err, errBadRequest) {
		slog.Warn("markdown rejected, resending as plain text", "chat_id", target)
		return s.call(ctx, "sendMessage", map[string]any{
			"chat_id": target,
			"text":    text,
		})
	}
	return err
}

// SendMedia sends a photo by URL with a MarkdownV2 caption.
func (s *Sender) SendMedia(ctx context.Context, target, imageURL, caption string) error {
	return s.call(ctx, "sendPhoto", map[string]any{
		"chat_id":    target,
		"photo":      imageURL,
		"caption":    caption,
		"parse_mode": "MarkdownV2",
	})
}

var errBadRequest = errors.New("telegram: bad request")

func (s *Sender) call(ctx context.Context, method string, payload map[string]any) error {
	if !s.config.Enabled {
		slog.Debug("telegram sender disabled, skipping", "method", method)
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.config.APIBase, s.config.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	apiErr := readAPIError(resp.Body)
	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %s: %s", errBadRequest, method, apiErr)
	}
	return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, apiErr)
}

func readAPIError(r io.Reader) string {
	var apiResp struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&apiResp); err != nil || apiResp.Description == "" {
		return "unknown error"
	}
	return apiResp.Description
}
