package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/cccomplete/internal/config"
	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/indexing"
	"github.com/standardbeagle/cccomplete/internal/version"
)

var Version = version.Version

// errFailures is returned by commands that ran fine but found problems
// (failed regression cases, syntax errors). main maps it to exit status 1
// without the fatal error banner.
var errFailures = errors.New("failures reported")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		if !errors.Is(err, errFailures) {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "cccomplete",
		Usage:                  "C/C++ code completion engine",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file (.cccomplete.kdl or .cccomplete.toml) or the directory holding it",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:    "include-dir",
				Aliases: []string{"I"},
				Usage:   "Additional #include search directory, searched after configured ones",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Write component trace lines to stderr",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Load and save the token tree snapshot in the cache directory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Aliases:   []string{"p"},
				Usage:     "Parse files (the whole project by default) and dump the token tree",
				ArgsUsage: "[files or directories...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Dump format: text, json, yaml or outline",
						Value:   indexing.FormatText,
					},
					&cli.IntFlag{
						Name:  "max-depth",
						Usage: "Outline depth limit (0 = unlimited)",
					},
					&cli.BoolFlag{
						Name:  "locals",
						Usage: "Include function body locals in the outline",
					},
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "Print tree statistics instead of the dump",
					},
				},
				Action: parseCommand,
			},
			{
				Name:      "complete",
				Usage:     "Complete the expression ending the given text",
				ArgsUsage: "<text before caret>",
				Flags: append(caretFlags(),
					&cli.IntFlag{
						Name:    "max",
						Aliases: []string{"m"},
						Usage:   "Maximum candidates (0 = config default)",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				),
				Action: completeCommand,
			},
			{
				Name:      "calltip",
				Usage:     "Show the signatures of the call the caret is in",
				ArgsUsage: "<text before caret>",
				Flags:     caretFlags(),
				Action:    calltipCommand,
			},
			{
				Name:      "decl",
				Aliases:   []string{"def"},
				Usage:     "Find the declaration and implementation of an expression",
				ArgsUsage: "<expression>",
				Flags: append(caretFlags(),
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				),
				Action: declCommand,
			},
			{
				Name:      "test",
				Aliases:   []string{"t"},
				Usage:     "Run the completion test cases at the end of source files",
				ArgsUsage: "[files or directories...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "pattern",
						Usage: "File name glob used for directories",
						Value: "*.c*",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print passing cases too",
					},
				},
				Action: testCommand,
			},
			{
				Name:      "check",
				Usage:     "Report syntax errors found by tree-sitter",
				ArgsUsage: "<files...>",
				Action:    checkCommand,
			},
			{
				Name:  "watch",
				Usage: "Parse the project and keep the tree current as files change",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve prometheus metrics on this address (e.g. :9090)",
					},
				},
				Action: watchCommand,
			},
			{
				Name:  "mcp",
				Usage: "Start MCP (Model Context Protocol) server with stdio transport",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "index",
						Usage: "Parse the whole project before serving",
					},
				},
				Action: mcpCommand,
			},
		},
	}
}

func caretFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "File the caret is in (selects locals and the enclosing class)",
		},
		&cli.IntFlag{
			Name:    "line-number",
			Aliases: []string{"n"},
			Usage:   "1-based caret line in --file",
		},
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	var root string
	if rootFlag := c.String("root"); rootFlag != "" {
		abs, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		root = abs
	}

	searchDir := root
	if configPath := c.String("config"); configPath != "" {
		info, err := os.Stat(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		searchDir = configPath
		if !info.IsDir() {
			searchDir = filepath.Dir(configPath)
		}
	}

	cfg, err := config.LoadWithRoot(searchDir, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", searchDir, err)
	}

	if root != "" {
		cfg.Project.Root = root
		cfg.Project.Name = filepath.Base(root)
	}
	for _, dir := range c.StringSlice("include-dir") {
		// relative to the working directory, unlike config entries
		cfg.Parser.IncludeDirs = config.DeduplicatePatterns(append(cfg.Parser.IncludeDirs, absOr(dir)))
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if c.Bool("cache") {
		cfg.Cache.Enabled = true
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openManager creates the parser session for a command. The caller closes it.
func openManager(c *cli.Context, log *debug.Logger) (*indexing.Manager, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = debug.FromEnv(errWriter(c))
	}
	if cfg.Debug {
		log.Enable(true)
	}
	return indexing.NewManager(cfg, indexing.WithLogger(log)), nil
}

func absOr(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}
