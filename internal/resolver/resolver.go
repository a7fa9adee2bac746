// Package resolver turns a partially typed C/C++ expression into the set of
// tokens that complete it. It reads the token tree only; every exported
// method takes the tree's read lock for its whole duration, so a query never
// interleaves with a parse batch.
package resolver

import (
	"strings"
	"time"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// Resolver answers completion queries against one token tree.
type Resolver struct {
	tree *tree.Tree
	log  *debug.Logger
}

// New creates a resolver over t. A nil logger discards output.
func New(t *tree.Tree, log *debug.Logger) *Resolver {
	if log == nil {
		log = debug.Discard()
	}
	return &Resolver{tree: t, log: log}
}

// Caret locates the cursor of a query. Line is 1-based; zero means unknown.
type Caret struct {
	File string
	Line int
}

// Request is one expression query.
type Request struct {
	Expr string
	// SearchScope lists the enclosing token indices to start from;
	// types.GlobalScope stands for the global scope. When nil the scope is
	// derived from Caret.
	SearchScope    types.TokenIdxSet
	Caret          Caret
	IsPrefix       bool
	CaseSensitive  bool
	UseInheritance bool
	// KindMask filters the final result; zero means any kind.
	KindMask types.TokenKind
}

// MatchOptions control how names are compared in GenerateResultSet.
type MatchOptions struct {
	IsPrefix       bool
	CaseSensitive  bool
	UseInheritance bool
	KindMask       types.TokenKind
}

func (o MatchOptions) mask() types.TokenKind {
	if o.KindMask == 0 {
		return types.KindAny
	}
	return o.KindMask
}

// Resolution is the outcome of one expression together with the scope each
// component was looked up in.
type Resolution struct {
	Components []ParserComponent
	Scopes     []types.TokenIdxSet
	Matches    types.TokenIdxSet
}

// ResolveExpression returns the tokens matching req. A miss is an empty set,
// not an error.
func (r *Resolver) ResolveExpression(req Request) (types.TokenIdxSet, error) {
	res, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}

// Resolve is ResolveExpression with the intermediate scopes kept.
func (r *Resolver) Resolve(req Request) (*Resolution, error) {
	var out *Resolution
	if err := r.ResolveView(req, func(_ *tree.Store, res *Resolution) { out = res }); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveView resolves req and hands the result to fn while still holding
// the read lock, so fn sees the tokens the matches were resolved against.
// fn must not call back into the Resolver or the tree's locking methods.
func (r *Resolver) ResolveView(req Request, fn func(s *tree.Store, res *Resolution)) error {
	if r == nil || r.tree == nil {
		return errors.NewResolveError(req.Expr, errors.ErrNilTree)
	}
	start := time.Now()
	var res *Resolution
	_ = r.tree.View(func(s *tree.Store) error {
		st := newState(s, req.Caret, req.SearchScope)
		res = st.resolve(req)
		fn(s, res)
		return nil
	})
	r.log.Log(debug.ComponentResolver, "%q: %d components, %d matches (%v)",
		req.Expr, len(res.Components), res.Matches.Len(), time.Since(start))
	return nil
}

// GenerateResultSet collects the members of the tokens in scope whose name
// matches text. The scope itself defines which private members are visible.
func (r *Resolver) GenerateResultSet(scope types.TokenIdxSet, text string, opts MatchOptions) (types.TokenIdxSet, error) {
	if r == nil || r.tree == nil {
		return nil, errors.NewResolveError(text, errors.ErrNilTree)
	}
	var out types.TokenIdxSet
	_ = r.tree.View(func(s *tree.Store) error {
		st := newState(s, Caret{}, scope)
		out = st.generate(scope, text, opts)
		return nil
	})
	return out, nil
}

// ResolveActualType maps a variable, function or alias token to the tokens
// of its type.
func (r *Resolver) ResolveActualType(idx int) (types.TokenIdxSet, error) {
	if r == nil || r.tree == nil {
		return nil, errors.ErrNilTree
	}
	var out types.TokenIdxSet
	_ = r.tree.View(func(s *tree.Store) error {
		st := newState(s, Caret{}, nil)
		out = st.actualType(idx, 0)
		return nil
	})
	return out, nil
}

// ResolveOperator replaces every class in typeSet that defines the member
// operator for op by the operator's return type.
func (r *Resolver) ResolveOperator(typeSet types.TokenIdxSet, op OperatorKind) (types.TokenIdxSet, error) {
	if r == nil || r.tree == nil {
		return nil, errors.ErrNilTree
	}
	var out types.TokenIdxSet
	_ = r.tree.View(func(s *tree.Store) error {
		st := newState(s, Caret{}, nil)
		out = st.resolveOperator(typeSet, op)
		return nil
	})
	return out, nil
}

// FindCurrentFunctionScope returns the innermost function whose body in file
// contains line, or -1.
func (r *Resolver) FindCurrentFunctionScope(file string, line int) int {
	if r == nil || r.tree == nil {
		return -1
	}
	fn := -1
	_ = r.tree.View(func(s *tree.Store) error {
		if f, ok := s.LookupFile(file); ok {
			fn = currentFunction(s, f, line)
		}
		return nil
	})
	return fn
}

// PrettyPrint renders token idx of s as a one-line signature. The caller
// holds the tree's lock.
func PrettyPrint(s *tree.Store, idx int) string {
	return prettyPrint(s, idx)
}

// PrettyPrintToken renders a token as a one-line signature.
func (r *Resolver) PrettyPrintToken(idx int) string {
	if r == nil || r.tree == nil {
		return ""
	}
	var out string
	_ = r.tree.View(func(s *tree.Store) error {
		out = prettyPrint(s, idx)
		return nil
	})
	return out
}

// resolve consumes the components left to right, replacing the current
// scope by the types of each matched component.
func (st *state) resolve(req Request) *Resolution {
	comps := BreakUpComponents(req.Expr)
	if len(comps) == 0 {
		if strings.ContainsAny(req.Expr, ".:>") {
			// a broken member chain matches nothing
			return &Resolution{Matches: types.NewTokenIdxSet()}
		}
		comps = []ParserComponent{{Kind: ComponentSearchText}}
	}
	res := &Resolution{Components: comps, Matches: types.NewTokenIdxSet()}
	opts := MatchOptions{
		IsPrefix:       req.IsPrefix,
		CaseSensitive:  req.CaseSensitive,
		UseInheritance: req.UseInheritance,
		KindMask:       req.KindMask,
	}

	scope := st.initial
	for i, comp := range comps {
		res.Scopes = append(res.Scopes, scope.Clone())
		if i == len(comps)-1 {
			res.Matches = st.generate(scope, comp.Text, opts)
			break
		}
		scope = st.step(scope, comp, i == 0, opts)
		if scope.Len() == 0 {
			break
		}
	}
	return res
}

// step resolves one non-final component to the set of type tokens whose
// members the next component is looked up in.
func (st *state) step(scope types.TokenIdxSet, comp ParserComponent, first bool, opts MatchOptions) types.TokenIdxSet {
	next := types.NewTokenIdxSet()
	switch {
	case comp.Text == "" && comp.Operator == OperatorScope:
		next.Add(types.GlobalScope)
		return next
	case comp.Kind == ComponentTypeCast:
		for _, origin := range scope.Sorted() {
			next.Union(st.lookupType(comp.Text, origin, 0))
			if next.Len() > 0 {
				break
			}
		}
		return st.expandAliases(next)
	case first && comp.Text == "this":
		for idx := range st.context {
			next.Add(idx)
		}
		return next
	}

	mask := types.KindAny
	if comp.Kind == ComponentNamespace {
		mask = types.KindAnyContainer
	}
	matches := st.generate(scope, comp.Text, MatchOptions{
		CaseSensitive:  true,
		UseInheritance: opts.UseInheritance,
		KindMask:       mask,
	})

	for _, m := range matches.Sorted() {
		tok := st.s.Get(m)
		var found types.TokenIdxSet
		pointer := false
		switch {
		case tok.Kind.Matches(types.KindNamespace | types.KindEnum):
			found = types.NewTokenIdxSet(m)
		case tok.Kind.Matches(types.KindAnyAggregate):
			found = types.NewTokenIdxSet(st.definitionOf(m))
			if comp.TemplateArgs != "" {
				ResolveTemplateMap(st.s, m, comp.TemplateArgs, st.tmap)
			}
		case tok.IsAlias():
			found = st.chaseAlias(m, comp.TemplateArgs, 0)
		case tok.Kind == types.KindConstructor:
			found = types.NewTokenIdxSet(tok.Parent)
		case tok.Kind.Matches(types.KindFunction | types.KindDestructor | types.KindVariable):
			found = st.actualType(m, 0)
			pointer = isPointerType(tok.Type)
			if comp.Kind == ComponentFunction && tok.Kind == types.KindVariable && !isFunctionPointer(tok) {
				found = st.resolveOperator(found, OperatorParen)
			}
		default:
			continue
		}

		switch {
		case comp.Operator == OperatorSquare && !pointer:
			found = st.resolveOperator(found, OperatorSquare)
		case comp.Operator == OperatorParen:
			found = st.resolveOperator(found, OperatorParen)
		case comp.Operator == OperatorArrow && !pointer && tok.Kind.Matches(types.KindVariable|types.KindAnyFunction):
			found = st.resolveOperator(found, OperatorArrow)
		}
		next.Union(found)
	}
	return next
}
