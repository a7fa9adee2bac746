package resolver

import (
	"sort"
	"strings"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// CallTip is one signature offered for the call around the caret.
// HighlightStart and HighlightEnd delimit the parameter being typed, or are
// both -1 when no parameter applies.
type CallTip struct {
	Index          int    `json:"index" yaml:"index"`
	Signature      string `json:"signature" yaml:"signature"`
	Commas         int    `json:"commas" yaml:"commas"`
	HighlightStart int    `json:"highlight_start" yaml:"highlight_start"`
	HighlightEnd   int    `json:"highlight_end" yaml:"highlight_end"`
}

// Highlight returns the highlighted parameter text.
func (c CallTip) Highlight() string {
	if c.HighlightStart < 0 || c.HighlightEnd > len(c.Signature) {
		return ""
	}
	return c.Signature[c.HighlightStart:c.HighlightEnd]
}

// CallTips returns the signatures of the function whose argument list the
// text before the caret is inside. req.Expr holds that text.
func (r *Resolver) CallTips(req Request) ([]CallTip, error) {
	if r == nil || r.tree == nil {
		return nil, errors.NewResolveError(req.Expr, errors.ErrNilTree)
	}
	open := FindFunctionOpenParenthesis(req.Expr)
	if open < 0 {
		return nil, nil
	}
	commas := countTopLevelCommas(req.Expr[open+1:])
	callee := ExpressionAtCaret(strings.TrimRight(req.Expr[:open], " \t"))
	if callee == "" {
		return nil, nil
	}

	var tips []CallTip
	_ = r.tree.View(func(s *tree.Store) error {
		st := newState(s, req.Caret, req.SearchScope)
		calleeReq := req
		calleeReq.Expr = callee
		calleeReq.IsPrefix = false
		calleeReq.CaseSensitive = true
		calleeReq.KindMask = 0
		matches := st.resolve(calleeReq).Matches

		seen := make(map[string]bool)
		for _, idx := range st.tipTokens(matches) {
			sig := tipSignature(s, idx)
			if sig == "" || seen[sig] {
				continue
			}
			seen[sig] = true
			start, end := CallTipHighlight(sig, commas)
			tips = append(tips, CallTip{Index: idx, Signature: sig, Commas: commas, HighlightStart: start, HighlightEnd: end})
		}
		return nil
	})
	sort.SliceStable(tips, func(i, j int) bool { return tips[i].Signature < tips[j].Signature })
	r.log.Log(debug.ComponentResolver, "call tips for %q: %d", callee, len(tips))
	return tips, nil
}

// tipTokens expands the callee matches into the tokens that carry a
// parameter list. A class contributes its constructors.
func (st *state) tipTokens(matches types.TokenIdxSet) []int {
	var out []int
	for _, idx := range matches.Sorted() {
		tok := st.s.Get(idx)
		switch {
		case tok.Kind.Matches(types.KindAnyFunction):
			out = append(out, idx)
		case tok.Kind.Matches(types.KindAnyAggregate):
			def := st.definitionOf(idx)
			out = append(out, st.s.FindChildren(def, tok.Name, types.KindConstructor).Sorted()...)
		case tok.Kind.Matches(types.KindMacro | types.KindVariable | types.KindTypedef):
			if tok.Args != "" {
				out = append(out, idx)
			}
		}
	}
	return out
}

// FindFunctionOpenParenthesis returns the offset of the innermost unclosed
// '(' in text, or -1. A statement boundary before it ends the search.
func FindFunctionOpenParenthesis(text string) int {
	depth := 0
	for i := len(text) - 1; i >= 0; i-- {
		switch c := text[i]; c {
		case '"', '\'':
			// skip back over the literal
			for j := i - 1; j >= 0; j-- {
				if text[j] == c && (j == 0 || text[j-1] != '\\') {
					i = j
					break
				}
			}
		case ')':
			depth++
		case '(':
			if depth == 0 {
				return i
			}
			depth--
		case ';', '{', '}':
			if depth == 0 {
				return -1
			}
		}
	}
	return -1
}

func countTopLevelCommas(args string) int {
	n, depth := 0, 0
	for i := 0; i < len(args); i++ {
		switch c := args[i]; c {
		case '"', '\'':
			i = skipQuoted(args, i)
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				n++
			}
		}
	}
	return n
}

// CallTipHighlight returns the byte range of the parameter the caller is
// typing, given the number of top-level commas already typed. A trailing
// variadic parameter absorbs extra commas. Both values are -1 when no
// parameter applies.
func CallTipHighlight(tip string, typedCommas int) (int, int) {
	open, closing, depth := -1, -1, 0
	for i := 0; i < len(tip); i++ {
		switch tip[i] {
		case '(':
			if depth == 0 {
				open, closing = i, -1
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				closing = i
			}
		}
	}
	if open < 0 {
		return -1, -1
	}
	if closing < 0 {
		closing = len(tip)
	}

	param, start := 0, open+1
	depth = 0
	for i := open + 1; i < closing; i++ {
		switch tip[i] {
		case '(', '<', '[', '{':
			depth++
		case ')', '>', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth > 0 {
				continue
			}
			if param == typedCommas {
				return trimSpan(tip, start, i)
			}
			param++
			start = i + 1
		}
	}
	if param == typedCommas || (param < typedCommas && strings.HasSuffix(strings.TrimSpace(tip[start:closing]), "...")) {
		return trimSpan(tip, start, closing)
	}
	return -1, -1
}

func trimSpan(s string, start, end int) (int, int) {
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	if start >= end {
		return -1, -1
	}
	return start, end
}

// tipSignature is the pretty-printed token, except that a macro shows only
// its parameter list.
func tipSignature(s *tree.Store, idx int) string {
	if tok := s.Get(idx); tok != nil && tok.Kind == types.KindMacro {
		return tok.Name + tok.Args
	}
	return prettyPrint(s, idx)
}

// prettyPrint renders a token as a one-line declaration.
func prettyPrint(s *tree.Store, idx int) string {
	tok := s.Get(idx)
	if tok == nil {
		return ""
	}
	name := qualifiedDisplayName(s, tok)
	switch tok.Kind {
	case types.KindFunction:
		sig := name + tok.FormattedArgs()
		if tok.Type != "" {
			sig = tok.Type + " " + sig
		}
		if tok.IsConst {
			sig += " const"
		}
		return sig
	case types.KindConstructor, types.KindDestructor:
		return name + tok.FormattedArgs()
	case types.KindVariable:
		if tok.Type == "" {
			return name
		}
		return tok.Type + " " + name
	case types.KindTypedef:
		return "typedef " + tok.AliasOf + " " + name
	case types.KindTemplateAlias:
		return "template" + tok.TemplateArgument + " using " + tok.Name + " = " + tok.AliasOf
	case types.KindMacro:
		return strings.TrimSpace("#define " + tok.Name + tok.Args + " " + tok.AliasOf)
	case types.KindClass, types.KindStruct, types.KindUnion:
		out := tok.Kind.String() + " " + name
		if tok.AncestorsString != "" {
			out += " : " + tok.AncestorsString
		}
		return out
	case types.KindEnum, types.KindNamespace:
		return tok.Kind.String() + " " + name
	}
	return name
}

// qualifiedDisplayName qualifies tok by its named enclosing scopes. Locals
// and the members of anonymous aggregates are not qualified by them.
func qualifiedDisplayName(s *tree.Store, tok *types.Token) string {
	name := tok.DisplayName()
	if tok.IsLocal {
		return name
	}
	for _, a := range s.Ancestors(tok.Index) {
		at := s.Get(a)
		if at.IsUnnamed {
			continue
		}
		if at.Kind.Matches(types.KindAnyFunction) {
			break
		}
		name = at.Name + "::" + name
	}
	return name
}
