package mcp

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
)

// ToolDefinition describes a tool and its JSON input schema.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	ReadOnly    bool           `json:"-"`
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func enumProp(description string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

var termProp = map[string]any{
	"type":        "string",
	"description": "Term key {year}-{half}, e.g. 2-1",
	"pattern":     credit.TermPattern,
}

var creditsProp = map[string]any{
	"type":        "number",
	"description": "Credits, a multiple of 0.5 between 0 and 30",
	"minimum":     0,
	"maximum":     credit.MaxCredits,
	"multipleOf":  0.5,
}

func bucketNames() []string {
	out := make([]string, 0, len(credit.Buckets))
	for _, b := range credit.Buckets {
		out = append(out, string(b))
	}
	return out
}

func activityTypeNames() []string {
	out := make([]string, 0, len(activity.Types))
	for _, t := range activity.Types {
		out = append(out, string(t))
	}
	return out
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	tracks := []string{string(credit.TrackPrimary), string(credit.TrackSecondary)}

	return []ToolDefinition{
		// Terms
		{
			Name:        "list_terms",
			Description: "List registered terms in order with their credit sums",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "add_term",
			Description: "Register a new term such as 5-1",
			InputSchema: objectSchema(map[string]any{"term": termProp}, "term"),
		},
		{
			Name:        "remove_term",
			Description: "Unregister a non-canonical term that has no credit entries",
			InputSchema: objectSchema(map[string]any{"term": termProp}, "term"),
		},

		// Credits
		{
			Name:        "add_credit",
			Description: "Record credits for a course in a term and bucket",
			InputSchema: objectSchema(map[string]any{
				"term":        termProp,
				"bucket":      enumProp("Requirement bucket", bucketNames()),
				"credits":     creditsProp,
				"course_name": stringProp("Course name"),
				"major_track": enumProp("Which major a major-bucket entry counts toward", tracks),
				"note":        stringProp("Free text note"),
			}, "term", "bucket", "credits"),
		},
		{
			Name:        "update_credit",
			Description: "Change the credits, course name, major track or note of an entry",
			InputSchema: objectSchema(map[string]any{
				"id":          stringProp("Entry ID"),
				"credits":     creditsProp,
				"course_name": stringProp("Course name"),
				"major_track": enumProp("Which major a major-bucket entry counts toward", tracks),
				"note":        stringProp("Free text note"),
			}, "id", "credits"),
		},
		{
			Name:        "remove_credit",
			Description: "Delete a credit entry. Unknown ids are ignored",
			InputSchema: objectSchema(map[string]any{"id": stringProp("Entry ID")}, "id"),
		},
		{
			Name:        "clear_credits",
			Description: "Delete every credit entry. Terms are kept",
			InputSchema: objectSchema(map[string]any{
				"confirm": map[string]any{"type": "boolean", "description": "Must be true"},
			}, "confirm"),
		},
		{
			Name:        "list_credits",
			Description: "List credit entries in insertion order, optionally for one term",
			InputSchema: objectSchema(map[string]any{"term": termProp}),
			ReadOnly:    true,
		},

		// Requirements
		{
			Name:        "get_progress",
			Description: "Evaluate totals, requirement rows and graduation eligibility",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "set_second_major",
			Description: "Enable or disable second major tracking",
			InputSchema: objectSchema(map[string]any{
				"enabled": map[string]any{"type": "boolean", "description": "Second major enabled"},
			}, "enabled"),
		},

		// Account and sync
		{
			Name:        "begin_sign_in",
			Description: "Start interactive sign-in; returns the URL to open",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "complete_sign_in",
			Description: "Finish sign-in with the callback URL the browser was redirected to, then reconcile with the cloud copy",
			InputSchema: objectSchema(map[string]any{
				"callback_url": stringProp("Full redirect URL including code and state"),
			}, "callback_url"),
		},
		{
			Name:        "sign_out",
			Description: "Sign out locally (default) or on every device. Local data is kept",
			InputSchema: objectSchema(map[string]any{
				"scope": enumProp("Session scope", []string{"local", "global"}),
			}),
		},
		{
			Name:        "get_account",
			Description: "Show sign-in state, user and the last sync or auth error",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "dismiss_error",
			Description: "Clear the last sync or auth error",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "sync_now",
			Description: "Push the local ledger to the cloud copy now",
			InputSchema: objectSchema(map[string]any{}),
		},

		// Activity
		{
			Name:        "get_recent_activity",
			Description: "Get recent ledger and sync activity, newest first",
			InputSchema: objectSchema(map[string]any{
				"entry_id": stringProp("Entry ID to filter by"),
				"term":     termProp,
				"types": map[string]any{
					"type":        "array",
					"description": "Filter by activity types",
					"items":       enumProp("Activity type", activityTypeNames()),
				},
				"since":  map[string]any{"type": "string", "format": "date-time", "description": "Only entries at or after this RFC 3339 time"},
				"limit":  map[string]any{"type": "integer", "description": "Maximum number of entries"},
				"offset": map[string]any{"type": "integer", "description": "Offset for pagination"},
			}),
			ReadOnly: true,
		},
	}
}

func registerTools(server *sdkmcp.Server, handler *Handler) {
	for _, def := range buildToolCatalog() {
		def := def
		tool := &sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}
		if def.ReadOnly {
			tool.Annotations = &sdkmcp.ToolAnnotations{ReadOnlyHint: true}
		}
		server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			var args json.RawMessage
			if req != nil && req.Params != nil {
				args = req.Params.Arguments
			}
			result, err := handler.Handle(ctx, def.Name, args)
			return toolResult(result, err)
		})
	}
}

// toolResult renders a handler outcome as JSON text content. Domain errors
// become tool errors so the model can read the recovery hint.
func toolResult(result any, err error) (*sdkmcp.CallToolResult, error) {
	if err != nil {
		apiErr := MapError(err)
		if apiErr == nil {
			return nil, err
		}
		data, mErr := json.Marshal(apiErr)
		if mErr != nil {
			return nil, mErr
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
			IsError: true,
		}, nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}
