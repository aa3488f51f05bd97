package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// SettingsTool handles the pid_settings MCP tool.
type SettingsTool struct {
	repo     store.Repository
	userID   string
	fallback domain.Credentials
}

// NewSettingsTool creates a SettingsTool for one local user.
func NewSettingsTool(repo store.Repository, userID string, fallback domain.Credentials) *SettingsTool {
	return &SettingsTool{repo: repo, userID: userID, fallback: fallback}
}

// Definition returns the MCP tool definition for registration.
func (t *SettingsTool) Definition() mcp.Tool {
	return mcp.NewTool("pid_settings",
		mcp.WithDescription(
			"Show or change the advisory credentials. With no arguments, reports whether "+
				"an API key is configured and which model is used. The key is never echoed.",
		),
		mcp.WithString("api_key",
			mcp.Description("API key for the chat completion service."),
		),
		mcp.WithString("model",
			mcp.Description("Model identifier. An empty string resets to the default."),
		),
	)
}

// Handle processes the pid_settings tool call.
func (t *SettingsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	if _, ok := args["api_key"]; ok {
		key := strings.TrimSpace(req.GetString("api_key", ""))
		if key == "" {
			return mcp.NewToolResultError("api_key cannot be blank"), nil
		}
		if err := t.repo.PutSetting(ctx, t.userID, domain.SettingAPIKey, key); err != nil {
			return nil, fmt.Errorf("saving api key: %w", err)
		}
	}
	if _, ok := args["model"]; ok {
		model := strings.TrimSpace(req.GetString("model", ""))
		var err error
		if model == "" {
			err = t.repo.DeleteSetting(ctx, t.userID, domain.SettingModel)
		} else {
			err = t.repo.PutSetting(ctx, t.userID, domain.SettingModel, model)
		}
		if err != nil {
			return nil, fmt.Errorf("saving model: %w", err)
		}
	}

	creds, err := store.LoadCredentials(ctx, t.repo, t.userID, t.fallback)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	key := "not configured"
	if creds.HasAPIKey() {
		key = "configured"
	}
	return mcp.NewToolResultText(fmt.Sprintf("**API key:** %s\n**Model:** %s\n", key, creds.Model)), nil
}
