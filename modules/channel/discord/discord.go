// Package discord implements the Discord channel: a gateway websocket
// session for inbound messages and the REST API for replies and typing
// indicators.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/llamacord/internal/channel"
	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/internal/security"
	"github.com/flemzord/llamacord/pkg/message"
)

func init() {
	core.RegisterModule(&Discord{})
}

// Compile-time interface guards.
var (
	_ channel.Channel        = (*Discord)(nil)
	_ channel.TypingChannel  = (*Discord)(nil)
	_ channel.LimitedChannel = (*Discord)(nil)
	_ channel.AllowListed    = (*Discord)(nil)
	_ core.Configurable      = (*Discord)(nil)
	_ core.Provisioner       = (*Discord)(nil)
	_ core.Validator         = (*Discord)(nil)
	_ core.Starter           = (*Discord)(nil)
	_ core.Stopper           = (*Discord)(nil)
)

// Discord implements the Discord bot channel.
type Discord struct {
	config    Config
	client    *Client
	gateway   *Gateway
	logger    *slog.Logger
	allowList *channel.AllowList
	inbox     func(message.InboundMessage) error
	botUser   *User
}

// ModuleInfo implements core.Module.
func (d *Discord) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.discord",
		New: func() core.Module { return &Discord{} },
	}
}

// Configure implements core.Configurable.
func (d *Discord) Configure(node *yaml.Node) error {
	if err := node.Decode(&d.config); err != nil {
		return fmt.Errorf("discord: decode config: %w", err)
	}
	d.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (d *Discord) Provision(ctx *core.AppContext) error {
	d.config.defaults()
	d.logger = ctx.Logger
	d.client = NewClient(d.config.Token, d.config.APIURL)
	d.allowList = channel.NewAllowList(d.config.AllowChannels)

	if r, ok := core.Service[*security.Redactor](ctx, security.RedactorService); ok {
		r.AddLiteral(d.config.Token)
	}
	return nil
}

// Validate implements core.Validator.
func (d *Discord) Validate() error {
	if err := d.config.validate(); err != nil {
		return err
	}
	if len(d.config.AllowChannels) == 0 && d.logger != nil {
		d.logger.Warn("discord: allow_channels is empty, only direct messages will be answered")
	}
	return nil
}

// Start implements core.Starter. It checks the token, then opens the
// gateway session.
func (d *Discord) Start() error {
	if d.inbox == nil {
		return errors.New("discord: inbox not set, call SetInbox before Start")
	}

	user, err := d.client.GetCurrentUser(context.Background())
	if err != nil {
		return fmt.Errorf("discord: get current user failed (check token): %w", err)
	}
	d.botUser = user
	d.logger.Info("discord: bot authenticated", "id", user.ID, "username", user.Username)

	d.gateway = NewGateway(d.config.GatewayURL, d.config.Token, d.config.Intents, d.handleEvent, d.logger)
	d.gateway.Start()
	return nil
}

// Stop implements core.Stopper.
func (d *Discord) Stop(_ context.Context) error {
	d.logger.Info("discord: channel stopping")
	if d.gateway != nil {
		d.gateway.Stop()
	}
	return nil
}

// handleEvent converts MESSAGE_CREATE events and pushes them to the inbox.
func (d *Discord) handleEvent(event string, data json.RawMessage) {
	if event != eventMessageCreate {
		return
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		d.logger.Warn("discord: skipping undecodable message", "error", err)
		return
	}

	msg := convertInbound(data, &m, d.selfID(), string(d.ModuleInfo().ID))
	if err := d.inbox(msg); err != nil {
		d.logger.Warn("discord: inbox rejected message",
			"message_id", m.ID,
			"channel_id", m.ChannelID,
			"error", err,
		)
	}
}

func (d *Discord) selfID() string {
	if d.gateway != nil {
		if id := d.gateway.SelfID(); id != "" {
			return id
		}
	}
	if d.botUser != nil {
		return d.botUser.ID
	}
	return ""
}

// Send implements channel.Channel. One call posts one message.
func (d *Discord) Send(ctx context.Context, msg message.OutboundMessage) error {
	if msg.Chat.ID == "" {
		return errors.New("discord: outbound message has no channel ID")
	}
	_, err := d.client.CreateMessage(ctx, msg.Chat.ID, buildCreateMessage(msg))
	return err
}

// SetInbox implements channel.Channel.
func (d *Discord) SetInbox(fn func(msg message.InboundMessage) error) {
	d.inbox = fn
}

// SendTyping implements channel.TypingChannel.
func (d *Discord) SendTyping(ctx context.Context, chat message.Chat) error {
	return d.client.TriggerTyping(ctx, chat.ID)
}

// MaxMessageLength implements channel.LimitedChannel.
func (d *Discord) MaxMessageLength() int {
	return d.config.MaxMessageLength
}

// AllowList implements channel.AllowListed.
func (d *Discord) AllowList() *channel.AllowList {
	return d.allowList
}
