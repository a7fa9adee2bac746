package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from a .cccomplete.kdl file.
// A missing file yields (nil, nil).
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KDLFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}
	anchorRoot(cfg, projectRoot)
	return cfg, nil
}

// anchorRoot resolves a relative project root against the directory holding the config file.
func anchorRoot(cfg *Config, projectRoot string) {
	if cfg.Project.Root != "" {
		root := cfg.Project.Root
		if !filepath.IsAbs(root) {
			root = filepath.Join(projectRoot, root)
		}
		cfg.Project.Root = filepath.Clean(root)
	} else {
		cfg.Project.Root = absOr(projectRoot)
	}
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}

func parseKDL(content string) (*Config, error) {
	cfg := Default("")
	cfg.Project.Root = ""
	cfg.Project.Name = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children { // project { root "." name "foo" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "parser":
			parseParserSection(cfg, n)
		case "completion":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "case_sensitive":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Completion.CaseSensitive = b
					}
				case "use_inheritance":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Completion.UseInheritance = b
					}
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Completion.MaxResults = v
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				case "exclude":
					cfg.Index.Exclude = DeduplicatePatterns(append(cfg.Index.Exclude, collectStringArgs(cn)...))
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "parallel_file_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.ParallelFileWorkers = v
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.DebounceMs = v
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.Enabled = b
					}
				case "dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Cache.Dir = s
					}
				}
			}
		case "debug":
			if b, ok := firstBoolArg(n); ok {
				cfg.Debug = b
			}
		case "include_dirs":
			// top-level shorthand for parser { include_dirs ... }
			cfg.Parser.IncludeDirs = append(cfg.Parser.IncludeDirs, collectStringArgs(n)...)
		default:
			log.Printf("WARNING: unknown node '%s' in %s", nodeName(n), KDLFileName)
		}
	}

	return cfg, nil
}

func parseParserSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "include_dirs":
			cfg.Parser.IncludeDirs = append(cfg.Parser.IncludeDirs, collectStringArgs(cn)...)
		case "extensions":
			if exts := collectStringArgs(cn); len(exts) > 0 {
				cfg.Parser.Extensions = exts
			}
		case "macro":
			// macro "NAME" "replacement"
			if len(cn.Arguments) >= 1 {
				name, _ := cn.Arguments[0].Value.(string)
				value := ""
				if len(cn.Arguments) >= 2 {
					value = fmt.Sprint(cn.Arguments[1].Value)
				}
				if name != "" {
					cfg.Parser.Macros[name] = value
				}
			}
		case "skip_block_bodies":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Parser.SkipBlockBodies = b
			}
		case "want_preprocessor":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Parser.WantPreprocessor = b
			}
		case "store_documentation":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Parser.StoreDocumentation = b
			}
		case "follow_includes":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Parser.FollowIncludes = b
			}
		}
	}
}

// Helper functions leveraging kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		log.Printf("WARNING: invalid integer value for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// Inline format: include_dirs "a" "b"
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude { "pattern" }, where the node name is the string value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
