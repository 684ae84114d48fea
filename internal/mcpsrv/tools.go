package mcpsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptvault/promptvault/internal/prompts"
)

type listPromptsArgs struct {
	Tag string `json:"tag,omitempty" jsonschema:"description=Only return prompts carrying this tag"`
}

type getPromptArgs struct {
	ID string `json:"id" jsonschema:"description=Identifier of the prompt to fetch"`
}

type savePromptArgs struct {
	ID    string   `json:"id,omitempty" jsonschema:"description=Identifier of an existing prompt to update; omit to create"`
	Title string   `json:"title" jsonschema:"description=Short human-readable title"`
	Body  string   `json:"body" jsonschema:"description=The prompt text itself"`
	Tags  []string `json:"tags,omitempty" jsonschema:"description=Free-form tags for filtering"`
}

type deletePromptArgs struct {
	ID string `json:"id" jsonschema:"description=Identifier of the prompt to delete"`
}

// reflectSchema derives a tool input schema from a typed argument struct.
func reflectSchema[A any]() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	b, err := json.Marshal(r.Reflect(new(A)))
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return b
}

// bindArgs maps the call's argument object onto a typed struct.
func bindArgs(req mcp.CallToolRequest, dst any) error {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewToolWithRawSchema("list_prompts",
			"List the caller's saved prompts, optionally filtered by tag.",
			reflectSchema[listPromptsArgs]()),
		s.handleListPrompts,
	)
	s.mcp.AddTool(
		mcp.NewToolWithRawSchema("get_prompt",
			"Fetch one saved prompt by id.",
			reflectSchema[getPromptArgs]()),
		s.handleGetPrompt,
	)
	s.mcp.AddTool(
		mcp.NewToolWithRawSchema("save_prompt",
			"Create a prompt, or update an existing one when id is given.",
			reflectSchema[savePromptArgs]()),
		s.handleSavePrompt,
	)
	s.mcp.AddTool(
		mcp.NewToolWithRawSchema("delete_prompt",
			"Delete one saved prompt by id.",
			reflectSchema[deletePromptArgs]()),
		s.handleDeletePrompt,
	)
}

func textJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleListPrompts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ai, ok := AuthInfoFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}
	var args listPromptsArgs
	if err := bindArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.store.List(ctx, ai.Extra.UserID)
	if err != nil {
		s.log.ErrorContext(ctx, "tool.list_prompts.fail", slog.String("err", err.Error()))
		return mcp.NewToolResultError("prompt store unavailable"), nil
	}
	if args.Tag != "" {
		filtered := items[:0]
		for _, p := range items {
			if slices.Contains(p.Tags, args.Tag) {
				filtered = append(filtered, p)
			}
		}
		items = filtered
	}
	if items == nil {
		items = []*prompts.Prompt{}
	}
	return textJSON(items)
}

func (s *Server) handleGetPrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ai, ok := AuthInfoFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}
	var args getPromptArgs
	if err := bindArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.ID == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	p, err := s.store.Get(ctx, ai.Extra.UserID, args.ID)
	if errors.Is(err, prompts.ErrNotFound) {
		return mcp.NewToolResultError("prompt not found"), nil
	}
	if err != nil {
		s.log.ErrorContext(ctx, "tool.get_prompt.fail", slog.String("err", err.Error()))
		return mcp.NewToolResultError("prompt store unavailable"), nil
	}
	return textJSON(p)
}

func (s *Server) handleSavePrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ai, ok := AuthInfoFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}
	var args savePromptArgs
	if err := bindArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Title == "" || args.Body == "" {
		return mcp.NewToolResultError("title and body are required"), nil
	}

	now := time.Now().UTC()
	p := &prompts.Prompt{
		ID:        args.ID,
		UserID:    ai.Extra.UserID,
		Title:     args.Title,
		Body:      args.Body,
		Tags:      args.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if prev, err := s.store.Get(ctx, ai.Extra.UserID, p.ID); err == nil {
		p.CreatedAt = prev.CreatedAt
	}
	if err := s.store.Put(ctx, p); err != nil {
		s.log.ErrorContext(ctx, "tool.save_prompt.fail", slog.String("err", err.Error()))
		return mcp.NewToolResultError("prompt store unavailable"), nil
	}
	return textJSON(p)
}

func (s *Server) handleDeletePrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ai, ok := AuthInfoFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}
	var args deletePromptArgs
	if err := bindArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.ID == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	err := s.store.Delete(ctx, ai.Extra.UserID, args.ID)
	if errors.Is(err, prompts.ErrNotFound) {
		return mcp.NewToolResultError("prompt not found"), nil
	}
	if err != nil {
		s.log.ErrorContext(ctx, "tool.delete_prompt.fail", slog.String("err", err.Error()))
		return mcp.NewToolResultError("prompt store unavailable"), nil
	}
	return textJSON(map[string]bool{"deleted": true})
}
