// Package routing decides which chat each deal category is announced
// in. The routing table lives in a JSON file edited by operators and by
// the ops API, and is re-read on every decision so edits apply without a
// restart.
package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Config is the persisted routing table.
type Config struct {
	TelegramGroups  map[string]TargetList `json:"telegram_groups"`
	WhatsappGroups  map[string]TargetList `json:"whatsapp_groups"`
	CategoryRouting CategoryRouting       `json:"category_routing"`
}

// TargetList is the set of chat targets for one category. Routing
// documents written by the dashboard store a single scalar target per
// category; both the scalar and the list shape unmarshal.
type TargetList []string

func (t *TargetList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TargetList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = TargetList(many)
	return nil
}

// CategoryRouting gates per-category fan-out. When disabled, every deal
// goes to the default targets only.
type CategoryRouting struct {
	Enabled        bool `json:"enabled"`
	SendToTelegram bool `json:"send_to_telegram"`
	SendToWhatsapp bool `json:"send_to_whatsapp"`
}

// Decision is the resolved target set for one deal.
type Decision struct {
	TelegramChats  []string
	WhatsappGroups []string
}

// Defaults are the static fallback targets used when the routing table
// has no entry for a category and no "default" entry.
type Defaults struct {
	TelegramChat  string `koanf:"telegram_chat"`
	WhatsappGroup string `koanf:"whatsapp_group"`
}

const defaultKey = "default"

func defaultConfig() *Config {
	return &Config{
		TelegramGroups: map[string]TargetList{},
		WhatsappGroups: map[string]TargetList{},
		CategoryRouting: CategoryRouting{
			Enabled:        true,
			SendToTelegram: true,
			SendToWhatsapp: true,
		},
	}
}

// Router resolves categories to chat targets from a file-backed table.
type Router struct {
	path     string
	defaults Defaults

	mu sync.Mutex // serializes Save against concurrent Decide loads
}

func NewRouter(path string, defaults Defaults) *Router {
	return &Router{path: path, defaults: defaults}
}

// Load reads the routing table from disk. A missing or unreadable file
// yields the permissive default table rather than an error, so a broken
// routing file never stops the pipeline.
func (r *Router) Load() *Config {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("routing config unreadable, using defaults", "path", r.path, "error", err)
		}
		return defaultConfig()
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		slog.Warn("routing config malformed, using defaults", "path", r.path, "error", err)
		return defaultConfig()
	}
	return cfg
}

// Save atomically rewrites the routing table.
func (r *Router) Save(cfg *Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode routing config: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create routing config dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write routing config: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace routing config: %w", err)
	}
	return nil
}

// Decide resolves the targets for a category, reading the table fresh.
// Resolution per channel: category entry, then "default" entry, then the
// static default target. When category routing is disabled the category
// entry is skipped and every deal lands on the default targets; the
// per-channel send flags still gate each channel.
func (r *Router) Decide(category string) Decision {
	cfg := r.Load()

	if !cfg.CategoryRouting.Enabled {
		category = ""
	}

	var d Decision
	if cfg.CategoryRouting.SendToTelegram {
		d.TelegramChats = resolve(cfg.TelegramGroups, category, r.defaults.TelegramChat)
	}
	if cfg.CategoryRouting.SendToWhatsapp {
		d.WhatsappGroups = resolve(cfg.WhatsappGroups, category, r.defaults.WhatsappGroup)
	}
	return d
}

func resolve(groups map[string]TargetList, category, fallback string) []string {
	if targets := groups[category]; len(targets) > 0 {
		return targets
	}
	if targets := groups[defaultKey]; len(targets) > 0 {
		return targets
	}
	if fallback != "" {
		return []string{fallback}
	}
	return nil
}
