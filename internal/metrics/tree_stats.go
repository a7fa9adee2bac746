package metrics

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// TreeStats summarizes the contents of a token tree.
type TreeStats struct {
	// File-level metrics
	TotalFiles           int64
	LanguageDistribution map[string]FileLanguageStats
	AverageTokensPerFile float64

	// Token-level metrics
	TotalTokens      int64
	KindDistribution map[string]int64
	Locals           int64
	Forwards         int64 // declarations never completed by a definition
	Implemented      int64 // functions with a body somewhere
	Unnamed          int64

	// Structure
	MaxNestingDepth int64
	TopLevelTokens  int64
}

// FileLanguageStats represents metrics for a specific language
type FileLanguageStats struct {
	FileCount      int64
	TokenCount     int64
	FileExtensions map[string]int64 // extension -> count
}

var languagesByExtension = map[string]string{
	".c":   "C",
	".h":   "C/C++ header",
	".hh":  "C++ header",
	".hpp": "C++ header",
	".hxx": "C++ header",
	".inl": "C++ header",
	".tcc": "C++ header",
	".cc":  "C++",
	".cpp": "C++",
	".cxx": "C++",
	".c++": "C++",
}

// ComputeTreeStats walks every live token of s. The caller holds the tree's
// read lock.
func ComputeTreeStats(s *tree.Store) *TreeStats {
	ts := &TreeStats{
		LanguageDistribution: make(map[string]FileLanguageStats),
		KindDistribution:     make(map[string]int64),
	}

	for _, f := range s.Files() {
		path := s.FilePath(f)
		ext := strings.ToLower(filepath.Ext(path))
		lang, ok := languagesByExtension[ext]
		if !ok {
			lang = "Other"
		}
		stats, exists := ts.LanguageDistribution[lang]
		if !exists {
			stats = FileLanguageStats{FileExtensions: make(map[string]int64)}
		}
		stats.FileCount++
		stats.TokenCount += int64(s.FileTokens(f).Len())
		stats.FileExtensions[ext]++
		ts.LanguageDistribution[lang] = stats
		ts.TotalFiles++
	}

	for idx := 0; idx < s.Cap(); idx++ {
		tok := s.Get(idx)
		if tok == nil {
			continue
		}
		ts.TotalTokens++
		ts.KindDistribution[tok.Kind.String()]++
		if tok.IsLocal {
			ts.Locals++
		}
		if tok.IsForward {
			ts.Forwards++
		}
		if tok.IsUnnamed {
			ts.Unnamed++
		}
		if tok.Kind.Matches(types.KindAnyFunction) && tok.HasImplementation() {
			ts.Implemented++
		}
		if tok.Parent == types.GlobalScope {
			ts.TopLevelTokens++
		}
		if depth := int64(len(s.Ancestors(idx))); depth > ts.MaxNestingDepth {
			ts.MaxNestingDepth = depth
		}
	}

	if ts.TotalFiles > 0 {
		ts.AverageTokensPerFile = float64(ts.TotalTokens) / float64(ts.TotalFiles)
	}
	return ts
}

// FormatAsJSON returns stats formatted as JSON-serializable map
func (ts *TreeStats) FormatAsJSON() map[string]interface{} {
	languageStats := make([]map[string]interface{}, 0, len(ts.LanguageDistribution))
	for lang, stats := range ts.LanguageDistribution {
		languageStats = append(languageStats, map[string]interface{}{
			"language":   lang,
			"files":      stats.FileCount,
			"tokens":     stats.TokenCount,
			"extensions": stats.FileExtensions,
		})
	}
	sort.Slice(languageStats, func(i, j int) bool {
		return languageStats[i]["language"].(string) < languageStats[j]["language"].(string)
	})

	return map[string]interface{}{
		"summary": map[string]interface{}{
			"total_files":     ts.TotalFiles,
			"total_tokens":    ts.TotalTokens,
			"tokens_per_file": ts.AverageTokensPerFile,
		},
		"languages": languageStats,
		"kinds":     ts.KindDistribution,
		"tokens": map[string]interface{}{
			"locals":      ts.Locals,
			"forwards":    ts.Forwards,
			"implemented": ts.Implemented,
			"unnamed":     ts.Unnamed,
			"top_level":   ts.TopLevelTokens,
			"max_depth":   ts.MaxNestingDepth,
		},
	}
}

// FormatAsText returns stats formatted as human-readable text
func (ts *TreeStats) FormatAsText() string {
	var sb strings.Builder

	sb.WriteString("TOKEN TREE REPORT\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("  Total Files:        %d\n", ts.TotalFiles))
	sb.WriteString(fmt.Sprintf("  Total Tokens:       %d\n", ts.TotalTokens))
	sb.WriteString(fmt.Sprintf("  Tokens per File:    %.1f\n", ts.AverageTokensPerFile))

	sb.WriteString("\nLANGUAGES\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────\n")
	type langStats struct {
		name  string
		stats FileLanguageStats
	}
	var langs []langStats
	for name, stats := range ts.LanguageDistribution {
		langs = append(langs, langStats{name, stats})
	}
	sort.Slice(langs, func(i, j int) bool {
		if langs[i].stats.FileCount != langs[j].stats.FileCount {
			return langs[i].stats.FileCount > langs[j].stats.FileCount
		}
		return langs[i].name < langs[j].name
	})
	for _, lang := range langs {
		sb.WriteString(fmt.Sprintf("  %-14s %5d files  %8d tokens\n",
			lang.name+":", lang.stats.FileCount, lang.stats.TokenCount))
	}

	sb.WriteString("\nKINDS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────\n")
	kinds := make([]string, 0, len(ts.KindDistribution))
	for k := range ts.KindDistribution {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("  %-18s %d\n", k+":", ts.KindDistribution[k]))
	}

	sb.WriteString("\nSTRUCTURE\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("  Top Level:          %d\n", ts.TopLevelTokens))
	sb.WriteString(fmt.Sprintf("  Max Nesting:        %d\n", ts.MaxNestingDepth))
	sb.WriteString(fmt.Sprintf("  Locals:             %d\n", ts.Locals))
	sb.WriteString(fmt.Sprintf("  Forward Only:       %d\n", ts.Forwards))
	sb.WriteString(fmt.Sprintf("  Implemented:        %d\n", ts.Implemented))

	return sb.String()
}
