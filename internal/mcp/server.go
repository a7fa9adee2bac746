// Package mcp exposes a parser session as Model Context Protocol tools over
// stdio.
package mcp

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	cdebug "github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/indexing"
	"github.com/standardbeagle/cccomplete/internal/version"
)

// Tool names.
const (
	ToolComplete        = "complete"
	ToolCallTip         = "calltip"
	ToolFindDeclaration = "find_declaration"
	ToolParseFile       = "parse_file"
	ToolDumpTree        = "dump_tree"
)

type handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Server serves the tools of one manager. The manager stays owned by the
// caller.
type Server struct {
	manager  *indexing.Manager
	server   *mcp.Server
	log      *cdebug.Logger
	handlers map[string]handler
}

// NewServer creates the server and registers its tools.
func NewServer(m *indexing.Manager) (*Server, error) {
	if m == nil {
		return nil, fmt.Errorf("mcp server needs a manager")
	}
	s := &Server{
		manager:  m,
		log:      m.Logger(),
		handlers: make(map[string]handler),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "cccomplete-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

func caretProperties(props map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	props["file"] = &jsonschema.Schema{
		Type:        "string",
		Description: "File the caret is in; selects locals and the enclosing class",
	}
	props["line_number"] = &jsonschema.Schema{
		Type:        "integer",
		Description: "1-based caret line in file",
	}
	return props
}

func (s *Server) registerTools() {
	s.addTool(&mcp.Tool{
		Name:        ToolComplete,
		Description: "Complete the C/C++ expression that ends the given line, e.g. 'obj.ba' or 'ns::Type::'. Returns ranked candidates with kind and signature.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: caretProperties(map[string]*jsonschema.Schema{
				"line": {
					Type:        "string",
					Description: "Text of the current line up to the caret",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum candidates (0 = config default)",
				},
			}),
			Required: []string{"line"},
		},
	}, s.handleComplete)

	s.addTool(&mcp.Tool{
		Name:        ToolCallTip,
		Description: "Signatures of the function call the caret is in, with the current argument highlighted.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: caretProperties(map[string]*jsonschema.Schema{
				"line": {
					Type:        "string",
					Description: "Text up to the caret, e.g. 'x = add(1, '",
				},
			}),
			Required: []string{"line"},
		},
	}, s.handleCallTip)

	s.addTool(&mcp.Tool{
		Name:        ToolFindDeclaration,
		Description: "Declaration and implementation locations of a complete expression such as 'Foo::run' or 'obj.member'.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: caretProperties(map[string]*jsonschema.Schema{
				"expression": {
					Type:        "string",
					Description: "Expression naming the symbol",
				},
			}),
			Required: []string{"expression"},
		},
	}, s.handleFindDeclaration)

	s.addTool(&mcp.Tool{
		Name:        ToolParseFile,
		Description: "Parse a file, or unsaved content for it, into the token tree. Optionally report syntax errors found by tree-sitter.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File path, relative to the project root or absolute",
				},
				"content": {
					Type:        "string",
					Description: "Buffer content to parse instead of the file on disk",
				},
				"check_syntax": {
					Type:        "boolean",
					Description: "Also run the tree-sitter syntax check",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleParseFile)

	s.addTool(&mcp.Tool{
		Name:        ToolDumpTree,
		Description: "Dump the token tree as text ('kind name [declLine,implLine]'), json, yaml or an outline of scopes, or summary statistics.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"format": {
					Type:        "string",
					Description: "text, json, yaml, outline or stats",
					Enum:        []any{"text", "json", "yaml", "outline", "stats"},
				},
			},
		},
	}, s.handleDumpTree)
}

func (s *Server) addTool(tool *mcp.Tool, h handler) {
	name := tool.Name
	wrapped := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.recoverFromPanic(name, func() (*mcp.CallToolResult, error) {
			start := time.Now()
			res, err := h(ctx, req)
			s.log.Log(cdebug.ComponentMCP, "%s done in %v", name, time.Since(start))
			return res, err
		})
	}
	s.handlers[name] = wrapped
	s.server.AddTool(tool, wrapped)
}

// recoverFromPanic turns handler errors and panics into error results the
// client can read.
func (s *Server) recoverFromPanic(operation string, fn func() (*mcp.CallToolResult, error)) (res *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Log(cdebug.ComponentMCP, "panic in %s: %v\n%s", operation, r, debug.Stack())
			res, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()
	res, err = fn()
	if err != nil {
		s.log.Log(cdebug.ComponentMCP, "%s: %v", operation, err)
		return createErrorResponse(operation, err)
	}
	return res, nil
}

// Handler returns the registered handler of a tool, or nil.
func (s *Server) Handler(name string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil
	}
	return h
}

// Start serves on stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.log.Log(cdebug.ComponentMCP, "serving %d tools over stdio", len(s.handlers))
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves on transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}
