// Package toolserver exposes the conversation pipeline as MCP tools over
// stdio: chat, reset and history, keyed by a caller-supplied user ID.
package toolserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/llamacord/internal/router"
	"github.com/flemzord/llamacord/pkg/message"
)

// ChannelName is the channel recorded on messages submitted through MCP.
const ChannelName = "mcp"

// Config configures a Server.
type Config struct {
	Pipeline *router.Pipeline
	Name     string
	Version  string
	Logger   *slog.Logger
}

// Server serves the pipeline as MCP tools.
type Server struct {
	pipeline *router.Pipeline
	mcp      *server.MCPServer
	logger   *slog.Logger
}

// New creates a Server and registers its tools.
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("toolserver: pipeline is required")
	}
	if cfg.Name == "" {
		cfg.Name = "llamacord"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		pipeline: cfg.Pipeline,
		logger:   cfg.Logger,
		mcp: server.NewMCPServer(cfg.Name, cfg.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send a message to the model as the given user and return its reply. "+
			"The conversation context is shared with the chat channels."),
		mcp.WithString("user", mcp.Required(), mcp.Description("User identifier owning the conversation context")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
	), s.handleChat)

	s.mcp.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Clear the conversation context of the given user."),
		mcp.WithString("user", mcp.Required(), mcp.Description("User identifier owning the conversation context")),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleReset)

	s.mcp.AddTool(mcp.NewTool("history",
		mcp.WithDescription("Show the conversation context of the given user, oldest turn first."),
		mcp.WithString("user", mcp.Required(), mcp.Description("User identifier owning the conversation context")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleHistory)

	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve reads JSON-RPC requests from in and writes responses to out until
// ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("toolserver: serving MCP over stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handleChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	collector := &collector{}
	res := s.pipeline.WithSender(collector).Execute(ctx, inbound(user, text))

	reply := strings.Join(collector.texts(), "\n")
	switch {
	case res.Outcome == router.OutcomeFiltered:
		return mcp.NewToolResultError("message ignored: " + string(res.Reason)), nil
	case res.Outcome == router.OutcomeFailed:
		if reply == "" && res.Err != nil {
			reply = res.Err.Error()
		}
		return mcp.NewToolResultError(reply), nil
	}
	return mcp.NewToolResultText(reply), nil
}

func (s *Server) handleReset(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.pipeline.Reset(s.pipeline.Mode().KeyFor(user)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(router.ReplyCleared), nil
}

func (s *Server) handleHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	turns, err := s.pipeline.Snapshot(s.pipeline.Mode().KeyFor(user))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(turns) == 0 {
		return mcp.NewToolResultText(router.ReplyEmptyHistory), nil
	}
	return mcp.NewToolResultText(router.RenderHistory(turns)), nil
}

// inbound builds the direct message a tool call stands for.
func inbound(user, text string) message.InboundMessage {
	return message.InboundMessage{
		ID:        "mcp-" + user + "-" + time.Now().UTC().Format("20060102T150405.000000000"),
		Timestamp: time.Now(),
		Channel:   ChannelName,
		Sender:    message.Sender{ID: user, Username: user},
		Chat:      message.Chat{ID: ChannelName + ":" + user, Type: message.ChatDM},
		Content:   text,
	}
}

// collector is a ResponseSender that keeps fragments instead of delivering them.
type collector struct {
	mu   sync.Mutex
	sent []string
}

func (c *collector) Send(_ context.Context, msg message.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg.Text)
	return nil
}

func (c *collector) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}
