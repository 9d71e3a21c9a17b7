package discord

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestConfigure(t *testing.T) {
	t.Parallel()

	yamlData := `
token: "Bot abc.def.ghi"
allow_channels: ["123", "456"]
api_url: "http://localhost:9999/api/"
`
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(yamlData), &node); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	d := &Discord{}
	if err := d.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	c := d.config
	if c.Token != "abc.def.ghi" {
		t.Errorf("Token = %q, want Bot prefix stripped", c.Token)
	}
	if len(c.AllowChannels) != 2 {
		t.Errorf("AllowChannels = %v", c.AllowChannels)
	}
	if c.APIURL != "http://localhost:9999/api" {
		t.Errorf("APIURL = %q", c.APIURL)
	}
	if c.GatewayURL != defaultGatewayURL {
		t.Errorf("GatewayURL = %q", c.GatewayURL)
	}
	if c.MaxMessageLength != 2000 {
		t.Errorf("MaxMessageLength = %d, want 2000", c.MaxMessageLength)
	}
	if c.Intents != 37377 {
		t.Errorf("Intents = %d, want 37377", c.Intents)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing token", func(c *Config) { c.Token = "" }, "token is required"},
		{"bad api url", func(c *Config) { c.APIURL = "ftp://x" }, "api_url"},
		{"bad gateway url", func(c *Config) { c.GatewayURL = "https://gateway" }, "gateway_url"},
		{"message too long", func(c *Config) { c.MaxMessageLength = 4000 }, "max_message_length"},
		{"no message content intent", func(c *Config) { c.Intents = 1 }, "MESSAGE_CONTENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Config{Token: "tok"}
			c.defaults()
			tt.mutate(&c)
			err := c.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
