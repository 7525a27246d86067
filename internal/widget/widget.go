// Package widget holds the presentation settings handed to the chat widget
// when it mounts.
package widget

import (
	"errors"
	"fmt"
	"os"

	"github.com/ashureev/webhook-chat/internal/lifecycle"
	"gopkg.in/yaml.v3"
)

// Config is the chat widget presentation.
type Config struct {
	Mode            string                       `yaml:"mode" json:"mode"`
	InitialMessages []string                     `yaml:"initial_messages" json:"initialMessages"`
	I18n            map[string]map[string]string `yaml:"i18n" json:"i18n"`
}

// Default returns the built-in presentation.
func Default() Config {
	return Config{
		Mode: "fullscreen",
		InitialMessages: []string{
			"👋 Olá, treinador!",
			"Bem-vindo à Pokédex Interativa do Unilavras! ⚡ Diga \"oi\" para começar sua busca por Pokémon clássicos! 🔍🎒",
		},
		I18n: map[string]map[string]string{
			"en": {
				"title":            "PokédexBot Unilavras",
				"subtitle":         "✨Fale com a IA e capture um Pokémon!✨",
				"inputPlaceholder": "💬 Bora conversar! 💬",
			},
		},
	}
}

// Load reads a YAML override file and merges it over the defaults. An empty
// path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read widget config: %w", err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("parse widget config %s: %w", path, err)
	}
	cfg.merge(override)
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	if len(o.InitialMessages) > 0 {
		c.InitialMessages = o.InitialMessages
	}
	for locale, texts := range o.I18n {
		if c.I18n[locale] == nil {
			c.I18n[locale] = make(map[string]string, len(texts))
		}
		for k, v := range texts {
			c.I18n[locale][k] = v
		}
	}
}

// MountConfig builds the widget mount request pointed at the relay path.
func (c Config) MountConfig(relayPath string) lifecycle.MountConfig {
	return lifecycle.MountConfig{
		WebhookURL:      relayPath,
		Target:          "#" + string(lifecycle.RegionChatSurface),
		Mode:            c.Mode,
		InitialMessages: c.InitialMessages,
		I18n:            c.I18n,
	}
}
