// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes directive evaluation tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/engine"
	"github.com/starford/ansuz/internal/eval"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/value"
)

const contractURI = "ansuz://directive-language"

// Server wraps the MCP server with directive tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *noteservice.Service
	engine   *engine.Engine
	registry *eval.Registry
}

// New creates a new MCP server with all tools registered. registry lists
// the builtins reported by get_directive_reference; nil uses the default
// set.
func New(svc *noteservice.Service, eng *engine.Engine, registry *eval.Registry) *Server {
	if registry == nil {
		registry = eval.DefaultRegistry()
	}
	s := &Server{svc: svc, engine: eng, registry: registry}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("evaluate_directive",
		mcp.WithDescription("Evaluate one directive and return its display text and typed value. "+
			"Mutating directives change notes. Read the language reference first via "+
			"the get_directive_reference tool or the "+contractURI+" resource."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Directive source including the brackets, e.g. [add(1, 2)]")),
		mcp.WithString("note_id", mcp.Description("Optional id of the note hosting the directive; required for . access")),
	), s.evaluateDirective)

	s.mcp.AddTool(mcp.NewTool("render_note",
		mcp.WithDescription("Render a note with every directive replaced by its value."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Id of the note to render")),
	), s.renderNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes as id, path and name, optionally under a path prefix."),
		mcp.WithString("path", mcp.Description("Optional path prefix to filter by (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_directive_reference",
		mcp.WithDescription("Returns the directive language reference and the available builtins. "+
			"Call this before writing directives into notes."),
	), s.getDirectiveReference)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Directive Language",
			mcp.WithResourceDescription("Syntax and rules of the note directive language."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type directiveResult struct {
	Display   string       `json:"display"`
	Value     *value.Wire  `json:"value,omitempty"`
	Error     *apperr.Wire `json:"error,omitempty"`
	FromCache bool         `json:"from_cache"`
	Mutations int          `json:"mutations,omitempty"`
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) evaluateDirective(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	noteID := req.GetString("note_id", "")
	if noteID != "" {
		if _, err := s.svc.GetNoteByID(ctx, noteID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", noteID)), nil
		}
	}

	out, err := s.engine.Execute(ctx, engine.Request{Source: src, NoteID: noteID})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := directiveResult{Display: out.Display(), FromCache: out.FromCache, Mutations: len(out.Mutations)}
	if out.Err != nil {
		w := out.Err.Encode()
		res.Error = &w
	} else if w, err := value.Encode(out.Value); err == nil {
		res.Value = &w
	}
	return jsonResult(res), nil
}

func (s *Server) renderNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rendered, err := s.engine.RenderNote(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(rendered.Text), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := req.GetString("path", "")

	var lines []string
	for _, n := range s.svc.ListNotes(ctx) {
		if prefix != "" && !strings.HasPrefix(n.Path, prefix) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", n.ID, n.Path, n.Name))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getDirectiveReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := DirectiveContract + "\n## Builtins\n\n" + strings.Join(s.registry.Names(), ", ") + "\n"
	return mcp.NewToolResultText(text), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DirectiveContract,
		},
	}, nil
}
