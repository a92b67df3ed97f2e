// Package whatsapp sends announcements through an Evolution API
// instance, a self-hosted WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/promo-garden/internal/notify"
)

// Config holds whatsapp sender configuration.
type Config struct {
	Enabled  bool   `koanf:"enabled"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	Instance string `koanf:"instance"`
}

// Sender implements the whatsapp announcement sender.
type Sender struct {
	config Config
	client *http.Client
}

// NewSender creates a new whatsapp sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.BaseURL == "" || config.APIKey == "" || config.Instance == "" {
			return nil, errors.New("whatsapp sender: base_url, api_key and instance are required when enabled")
		}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	slog.Info("whatsapp sender configured",
		"enabled", config.Enabled,
		"instance", config.Instance,
	)

	return &Sender{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Channel returns the channel identifier.
func (s *Sender) Channel() notify.Channel {
	return notify.ChannelWhatsapp
}

// SendText sends a plain text message to a group or contact.
func (s *Sender) SendText(ctx context.Context, target, text string) error {
	return s.call(ctx, "/message/sendText/"+s.config.Instance, map[string]any{
		"number": target,
		"text":   text,
	})
}

// SendMedia sends an image by URL with a caption.
func (s *Sender) SendMedia(ctx context.Context, target, imageURL, caption string) error {
	return s.call(ctx, "/message/sendMedia/"+s.config.Instance, map[string]any{
		"number":    target,
		"mediatype": "image",
		"media":     imageURL,
		"caption":   caption,
	})
}

func (s *Sender) call(ctx context.Context, path string, payload map[string]any) error {
	if !s.config.Enabled {
		slog.Debug("whatsapp sender disabled, skipping", "path", path)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp %s: %w", path, err)
	}
	defer resp.Body.Close()

	// Evolution API answers 200 or 201 depending on version.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp %s: status %d: %s", path, resp.StatusCode, detail)
	}
	return nil
}
