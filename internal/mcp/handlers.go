package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/cccomplete/internal/indexing"
	"github.com/standardbeagle/cccomplete/internal/parser"
	"github.com/standardbeagle/cccomplete/internal/resolver"
	"github.com/standardbeagle/cccomplete/pkg/pathutil"
)

// CaretParams locate the caret of a query.
type CaretParams struct {
	File       string `json:"file,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
}

func (c CaretParams) caret() resolver.Caret {
	return resolver.Caret{File: c.File, Line: c.LineNumber}
}

// CompleteParams are the arguments of the complete tool.
type CompleteParams struct {
	CaretParams
	Line string `json:"line"`
	Max  int    `json:"max,omitempty"`
}

// CompleteResponse lists the candidates of one completion.
type CompleteResponse struct {
	Expression string               `json:"expression"`
	Count      int                  `json:"count"`
	Candidates []resolver.Candidate `json:"candidates"`
}

// CallTipParams are the arguments of the calltip tool.
type CallTipParams struct {
	CaretParams
	Line string `json:"line"`
}

// CallTipEntry is one signature with its highlighted argument.
type CallTipEntry struct {
	Signature string `json:"signature"`
	Argument  int    `json:"argument"`
	Highlight string `json:"highlight,omitempty"`
}

// FindDeclarationParams are the arguments of the find_declaration tool.
type FindDeclarationParams struct {
	CaretParams
	Expression string `json:"expression"`
}

// ParseFileParams are the arguments of the parse_file tool.
type ParseFileParams struct {
	Path        string  `json:"path"`
	Content     *string `json:"content,omitempty"`
	CheckSyntax bool    `json:"check_syntax,omitempty"`
}

// ParseFileResponse reports one parse.
type ParseFileResponse struct {
	Path        string              `json:"path"`
	Inserted    int                 `json:"inserted"`
	Removed     int                 `json:"removed"`
	Unchanged   bool                `json:"unchanged,omitempty"`
	Includes    []string            `json:"includes,omitempty"`
	DurationMs  float64             `json:"duration_ms"`
	TreeTokens  int                 `json:"tree_tokens"`
	Diagnostics []parser.Diagnostic `json:"diagnostics,omitempty"`
}

// DumpTreeParams are the arguments of the dump_tree tool.
type DumpTreeParams struct {
	Format string `json:"format,omitempty"`
}

func decode(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (s *Server) handleComplete(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p CompleteParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Line) == "" {
		return nil, fmt.Errorf("line is required")
	}
	cands, err := s.manager.Complete(p.Line, p.caret())
	if err != nil {
		return nil, err
	}
	if p.Max > 0 && len(cands) > p.Max {
		cands = cands[:p.Max]
	}
	if cands == nil {
		cands = []resolver.Candidate{}
	}
	return createJSONResponse(CompleteResponse{
		Expression: resolver.ExpressionAtCaret(p.Line),
		Count:      len(cands),
		Candidates: cands,
	})
}

func (s *Server) handleCallTip(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p CallTipParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if p.Line == "" {
		return nil, fmt.Errorf("line is required")
	}
	tips, err := s.manager.CallTips(p.Line, p.caret())
	if err != nil {
		return nil, err
	}
	out := make([]CallTipEntry, 0, len(tips))
	for _, tip := range tips {
		out = append(out, CallTipEntry{Signature: tip.Signature, Argument: tip.Commas, Highlight: tip.Highlight()})
	}
	return createJSONResponse(map[string]any{"tips": out, "count": len(out)})
}

func (s *Server) handleFindDeclaration(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p FindDeclarationParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Expression) == "" {
		return nil, fmt.Errorf("expression is required")
	}
	locs, err := s.manager.FindDeclaration(p.Expression, p.caret())
	if err != nil {
		return nil, err
	}
	root := s.manager.Config().Project.Root
	for i := range locs {
		locs[i].File = pathutil.ToRelative(locs[i].File, root)
		if locs[i].ImplFile != "" {
			locs[i].ImplFile = pathutil.ToRelative(locs[i].ImplFile, root)
		}
	}
	if locs == nil {
		locs = []indexing.Location{}
	}
	return createJSONResponse(map[string]any{"declarations": locs, "count": len(locs)})
}

func (s *Server) handleParseFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ParseFileParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	var res *parser.Result
	var err error
	if p.Content != nil {
		res, err = s.manager.ParseBuffer(ctx, p.Path, *p.Content)
	} else {
		res, err = s.manager.ParseFile(ctx, p.Path)
	}
	if err != nil {
		return nil, err
	}

	out := ParseFileResponse{
		Path:       pathutil.ToRelative(res.Path, s.manager.Config().Project.Root),
		Inserted:   res.Inserted,
		Removed:    res.Removed,
		Unchanged:  res.Unchanged,
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
		TreeTokens: s.manager.Tree().Len(),
	}
	for _, inc := range res.Includes {
		out.Includes = append(out.Includes, inc.Path)
	}
	if p.CheckSyntax {
		var src []byte
		if p.Content != nil {
			src = []byte(*p.Content)
		} else if src, err = os.ReadFile(res.Path); err != nil {
			return nil, err
		}
		if out.Diagnostics, err = parser.CheckSyntax(src); err != nil {
			return nil, err
		}
	}
	return createJSONResponse(out)
}

func (s *Server) handleDumpTree(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p DumpTreeParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if p.Format == "stats" {
		return createJSONResponse(s.manager.Stats())
	}
	var b strings.Builder
	if err := s.manager.Dump(&b, p.Format); err != nil {
		return nil, err
	}
	return createTextResponse(b.String()), nil
}
