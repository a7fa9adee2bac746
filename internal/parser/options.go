package parser

import "github.com/standardbeagle/cccomplete/internal/config"

// Options controls one parse. A ParserThread never modifies its options.
type Options struct {
	// UseBuffer parses the source text handed to NewParserThread instead of
	// reading the file from disk.
	UseBuffer bool
	// SkipBlockBodies skips function bodies, so no parameters or locals are
	// recorded.
	SkipBlockBodies bool
	// WantPreprocessor records #define macros as tokens and expands the
	// object-like ones.
	WantPreprocessor bool
	// StoreDocumentation keeps doc comments on tokens.
	StoreDocumentation bool
	// FollowIncludes asks the caller to queue the files named by #include.
	FollowIncludes bool
	// Macros is the initial object-like replacement table.
	Macros map[string]string
}

// OptionsFromConfig derives parse options from the parser section of a config.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		SkipBlockBodies:    cfg.Parser.SkipBlockBodies,
		WantPreprocessor:   cfg.Parser.WantPreprocessor,
		StoreDocumentation: cfg.Parser.StoreDocumentation,
		FollowIncludes:     cfg.Parser.FollowIncludes,
		Macros:             cfg.Parser.Macros,
	}
}

// DefaultOptions matches the defaults of a new config.
func DefaultOptions() Options {
	return Options{
		WantPreprocessor:   true,
		StoreDocumentation: true,
		FollowIncludes:     true,
	}
}
