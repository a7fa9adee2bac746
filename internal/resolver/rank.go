package resolver

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// Candidate is one ranked completion.
type Candidate struct {
	Index     int             `json:"index" yaml:"index"`
	Name      string          `json:"name" yaml:"name"`
	Kind      types.TokenKind `json:"-" yaml:"-"`
	KindName  string          `json:"kind" yaml:"kind"`
	Signature string          `json:"signature" yaml:"signature"`
	Score     float64         `json:"score" yaml:"score"`
}

// Rank orders a result set for display: exact matches, then prefix
// matches, then by Jaro-Winkler similarity to the typed text. Ties go to
// locals and members before types and macros, then to the name. The tiers
// compare case-insensitively unless caseSensitive is set.
//
// Rank takes its own read lock, so indices in set may have been reused by a
// parse since they were resolved; ResolveRanked does both under one lock.
func (r *Resolver) Rank(set types.TokenIdxSet, typed string, caseSensitive bool) []Candidate {
	if r == nil || r.tree == nil {
		return nil
	}
	var out []Candidate
	_ = r.tree.View(func(s *tree.Store) error {
		out = rank(s, set, typed, caseSensitive)
		return nil
	})
	return out
}

// ResolveRanked resolves req and ranks the matches against the text typed
// after the last operator, both against the same tree state.
func (r *Resolver) ResolveRanked(req Request) ([]Candidate, error) {
	var out []Candidate
	err := r.ResolveView(req, func(s *tree.Store, res *Resolution) {
		typed := ""
		if n := len(res.Components); n > 0 {
			typed = res.Components[n-1].Text
		}
		out = rank(s, res.Matches, typed, req.CaseSensitive)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type ranked struct {
	Candidate
	tier     int
	priority int
}

func rank(s *tree.Store, set types.TokenIdxSet, typed string, caseSensitive bool) []Candidate {
	items := make([]ranked, 0, set.Len())
	lowered := strings.ToLower(typed)
	for idx := range set {
		tok := s.Get(idx)
		if tok == nil {
			continue
		}
		it := ranked{
			Candidate: Candidate{
				Index:     idx,
				Name:      tok.Name,
				Kind:      tok.Kind,
				KindName:  tok.Kind.String(),
				Signature: prettyPrint(s, idx),
				Score:     similarity(lowered, strings.ToLower(tok.Name)),
			},
			priority: kindPriority(tok),
		}
		name, text := tok.Name, typed
		if !caseSensitive {
			name, text = strings.ToLower(name), lowered
		}
		switch {
		case name == text:
			it.tier = 0
		case strings.HasPrefix(name, text):
			it.tier = 1
		default:
			it.tier = 2
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Index < b.Index
	})
	out := make([]Candidate, len(items))
	for i, it := range items {
		out[i] = it.Candidate
	}
	return out
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(score)
}

func kindPriority(tok *types.Token) int {
	switch {
	case tok.IsLocal:
		return 0
	case tok.Kind == types.KindVariable:
		return 1
	case tok.Kind.Matches(types.KindAnyFunction):
		return 2
	case tok.Kind == types.KindEnumerator:
		return 3
	case tok.Kind.Matches(types.KindAnyAggregate | types.KindEnum | types.KindTypedef | types.KindTemplateAlias):
		return 4
	case tok.Kind == types.KindNamespace:
		return 5
	}
	return 6
}
