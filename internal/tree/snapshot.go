package tree

import (
	"fmt"
	"sort"

	"github.com/standardbeagle/cccomplete/internal/types"
)

// Record is the serializable form of one token. File references are paths.
type Record struct {
	Index            int              `json:"index" yaml:"index"`
	Name             string           `json:"name" yaml:"name"`
	Kind             string           `json:"kind" yaml:"kind"`
	Access           string           `json:"access,omitempty" yaml:"access,omitempty"`
	File             string           `json:"file,omitempty" yaml:"file,omitempty"`
	Line             int              `json:"line" yaml:"line"`
	ImplFile         string           `json:"impl_file,omitempty" yaml:"impl_file,omitempty"`
	ImplLine         int              `json:"impl_line,omitempty" yaml:"impl_line,omitempty"`
	ImplLineStart    int              `json:"impl_line_start,omitempty" yaml:"impl_line_start,omitempty"`
	ImplLineEnd      int              `json:"impl_line_end,omitempty" yaml:"impl_line_end,omitempty"`
	Args             string           `json:"args,omitempty" yaml:"args,omitempty"`
	BaseArgs         string           `json:"base_args,omitempty" yaml:"base_args,omitempty"`
	Type             string           `json:"type,omitempty" yaml:"type,omitempty"`
	BaseType         string           `json:"base_type,omitempty" yaml:"base_type,omitempty"`
	AncestorsString  string           `json:"ancestors_string,omitempty" yaml:"ancestors_string,omitempty"`
	Ancestors        []types.Ancestor `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
	TemplateArgument string           `json:"template_argument,omitempty" yaml:"template_argument,omitempty"`
	TemplateParams   []string         `json:"template_params,omitempty" yaml:"template_params,omitempty"`
	AliasOf          string           `json:"alias_of,omitempty" yaml:"alias_of,omitempty"`
	Qualifier        string           `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	Doc              string           `json:"doc,omitempty" yaml:"doc,omitempty"`
	Flags            []string         `json:"flags,omitempty" yaml:"flags,omitempty"`
	Parent           int              `json:"parent" yaml:"parent"`
	Files            []string         `json:"files,omitempty" yaml:"files,omitempty"`
}

// Snapshot is a complete serializable copy of a store.
type Snapshot struct {
	Files  []string            `json:"files" yaml:"files"`
	Usings map[string][]string `json:"usings,omitempty" yaml:"usings,omitempty"`
	Tokens []Record            `json:"tokens" yaml:"tokens"`
}

type flagField struct {
	name string
	get  func(*types.Token) *bool
}

var flagFields = []flagField{
	{"operator", func(t *types.Token) *bool { return &t.IsOperator }},
	{"const", func(t *types.Token) *bool { return &t.IsConst }},
	{"static", func(t *types.Token) *bool { return &t.IsStatic }},
	{"local", func(t *types.Token) *bool { return &t.IsLocal }},
	{"temp", func(t *types.Token) *bool { return &t.IsTemp }},
	{"unnamed", func(t *types.Token) *bool { return &t.IsUnnamed }},
	{"forward", func(t *types.Token) *bool { return &t.IsForward }},
	{"virtual", func(t *types.Token) *bool { return &t.IsVirtual }},
}

// Records lists every live token in index order.
func (s *Store) Records() []Record {
	out := make([]Record, 0, s.count)
	for _, tok := range s.tokens {
		if tok == nil {
			continue
		}
		r := Record{
			Index:            tok.Index,
			Name:             tok.Name,
			Kind:             tok.Kind.String(),
			Access:           tok.Access.String(),
			File:             s.FilePath(tok.File),
			Line:             tok.Line,
			ImplFile:         s.FilePath(tok.ImplFile),
			ImplLine:         tok.ImplLine,
			ImplLineStart:    tok.ImplLineStart,
			ImplLineEnd:      tok.ImplLineEnd,
			Args:             tok.Args,
			BaseArgs:         tok.BaseArgs,
			Type:             tok.Type,
			BaseType:         tok.BaseType,
			AncestorsString:  tok.AncestorsString,
			Ancestors:        tok.Ancestors,
			TemplateArgument: tok.TemplateArgument,
			TemplateParams:   tok.TemplateParams,
			AliasOf:          tok.AliasOf,
			Qualifier:        tok.Qualifier,
			Doc:              tok.Doc,
			Parent:           tok.Parent,
		}
		for _, ff := range flagFields {
			if *ff.get(tok) {
				r.Flags = append(r.Flags, ff.name)
			}
		}
		for f := range tok.Files {
			r.Files = append(r.Files, s.FilePath(f))
		}
		sort.Strings(r.Files)
		out = append(out, r)
	}
	return out
}

// Snapshot captures the store, including its file table and using-directives.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		Files:  append([]string(nil), s.paths...),
		Usings: make(map[string][]string, len(s.usings)),
		Tokens: s.Records(),
	}
	for f, ns := range s.usings {
		snap.Usings[s.FilePath(f)] = append([]string(nil), ns...)
	}
	return snap
}

// FromSnapshot rebuilds a store. Token indices are preserved.
func FromSnapshot(snap *Snapshot) (*Store, error) {
	s := NewStore()
	for _, p := range snap.Files {
		s.FileIndex(p)
	}
	fileOf := func(p string) types.FileIdx {
		if p == "" {
			return types.NoFile
		}
		return s.FileIndex(p)
	}

	byIndex := make(map[int]*Record, len(snap.Tokens))
	maxIdx := -1
	for i := range snap.Tokens {
		r := &snap.Tokens[i]
		if r.Index < 0 {
			return nil, fmt.Errorf("record %q has negative index %d", r.Name, r.Index)
		}
		if _, dup := byIndex[r.Index]; dup {
			return nil, fmt.Errorf("duplicate record index %d", r.Index)
		}
		byIndex[r.Index] = r
		maxIdx = max(maxIdx, r.Index)
	}

	s.tokens = make([]*types.Token, maxIdx+1)
	for idx, r := range byIndex {
		tok := types.NewToken(r.Name, types.ParseTokenKind(r.Kind))
		tok.Index = idx
		tok.Access = types.ParseAccessKind(r.Access)
		tok.File = fileOf(r.File)
		tok.Line = r.Line
		tok.ImplFile = fileOf(r.ImplFile)
		tok.ImplLine = r.ImplLine
		tok.ImplLineStart = r.ImplLineStart
		tok.ImplLineEnd = r.ImplLineEnd
		tok.Args = r.Args
		tok.BaseArgs = r.BaseArgs
		tok.Type = r.Type
		tok.BaseType = r.BaseType
		tok.AncestorsString = r.AncestorsString
		tok.Ancestors = append([]types.Ancestor(nil), r.Ancestors...)
		tok.TemplateArgument = r.TemplateArgument
		tok.TemplateParams = append([]string(nil), r.TemplateParams...)
		tok.AliasOf = r.AliasOf
		tok.Qualifier = r.Qualifier
		tok.Doc = r.Doc
		tok.Parent = r.Parent
		for _, name := range r.Flags {
			for _, ff := range flagFields {
				if ff.name == name {
					*ff.get(tok) = true
				}
			}
		}
		for _, p := range r.Files {
			tok.Files[fileOf(p)] = struct{}{}
		}
		s.tokens[idx] = tok
	}

	// link in a second pass so parents may follow their children
	for idx, tok := range s.tokens {
		if tok == nil {
			s.free = append(s.free, idx)
			continue
		}
		s.count++
		if parent := s.Get(tok.Parent); parent != nil && tok.Parent != idx {
			parent.Children.Add(idx)
		} else {
			tok.Parent = types.GlobalScope
			s.globals.Add(idx)
		}
		s.nameSet(tok.Name).Add(idx)
	}
	for idx, tok := range s.tokens {
		if tok == nil {
			continue
		}
		for f := range tok.Files {
			s.RegisterFile(idx, f)
		}
	}
	// reuse low slots first
	sort.Sort(sort.Reverse(sort.IntSlice(s.free)))

	for p, ns := range snap.Usings {
		s.SetUsedNamespaces(s.FileIndex(p), ns)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot is inconsistent: %w", err)
	}
	return s, nil
}
