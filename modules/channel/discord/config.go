package discord

import (
	"fmt"
	"net/url"
	"strings"
)

// Gateway intents: GUILDS | GUILD_MESSAGES | DIRECT_MESSAGES | MESSAGE_CONTENT.
const defaultIntents = 1 | 1<<9 | 1<<12 | 1<<15

const (
	defaultAPIURL           = "https://discord.com/api/v10"
	defaultGatewayURL       = "wss://gateway.discord.gg/?v=10&encoding=json"
	defaultMaxMessageLength = 2000
)

// Config holds the Discord channel configuration.
type Config struct {
	Token string `yaml:"token"`
	// AllowChannels lists the server channel IDs the bot answers in. "*"
	// allows every channel. Direct messages are always answered.
	AllowChannels    []string `yaml:"allow_channels"`
	MaxMessageLength int      `yaml:"max_message_length"`
	Intents          int      `yaml:"intents"`
	APIURL           string   `yaml:"api_url"`
	GatewayURL       string   `yaml:"gateway_url"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = defaultMaxMessageLength
	}
	if c.Intents == 0 {
		c.Intents = defaultIntents
	}
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.GatewayURL == "" {
		c.GatewayURL = defaultGatewayURL
	}
	c.Token = strings.TrimPrefix(strings.TrimSpace(c.Token), "Bot ")
}

// validate checks configuration field constraints.
func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("discord: token is required")
	}
	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("discord: api_url must be a valid http/https URL, got %q", c.APIURL)
	}
	if u, err := url.Parse(c.GatewayURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("discord: gateway_url must be a valid ws/wss URL, got %q", c.GatewayURL)
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > defaultMaxMessageLength {
		return fmt.Errorf("discord: max_message_length must be 1-%d, got %d", defaultMaxMessageLength, c.MaxMessageLength)
	}
	if c.Intents&(1<<15) == 0 {
		return fmt.Errorf("discord: intents must include MESSAGE_CONTENT (1<<15)")
	}
	return nil
}
