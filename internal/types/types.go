package types

import (
	"strings"
)

// FileIdx identifies a source file inside one token tree.
type FileIdx int

// NoFile marks a token attribute that has no file (e.g. a missing implementation).
const NoFile FileIdx = -1

// GlobalScope is the parent index of top-level tokens.
const GlobalScope = -1

// UnnamedPrefix starts the generated names of anonymous struct/union/enum tokens.
const UnnamedPrefix = "__Unnamed"

// TokenKind classifies a token. Values are bits so that lookups can take a kind mask.
type TokenKind uint32

const (
	KindNamespace TokenKind = 1 << iota
	KindClass
	KindStruct
	KindUnion
	KindEnum
	KindEnumerator
	KindFunction
	KindConstructor
	KindDestructor
	KindVariable
	KindTypedef
	KindMacro
	KindTemplateAlias

	KindUndefined TokenKind = 0
)

// Kind masks used by lookups.
const (
	KindAnyAggregate = KindClass | KindStruct | KindUnion
	KindAnyContainer = KindNamespace | KindAnyAggregate | KindEnum | KindTypedef | KindTemplateAlias
	KindAnyFunction  = KindFunction | KindConstructor | KindDestructor
	KindAny          = TokenKind(0xFFFFFFFF)
)

var kindNames = map[TokenKind]string{
	KindNamespace:     "namespace",
	KindClass:         "class",
	KindStruct:        "struct",
	KindUnion:         "union",
	KindEnum:          "enum",
	KindEnumerator:    "enumerator",
	KindFunction:      "function",
	KindConstructor:   "constructor",
	KindDestructor:    "destructor",
	KindVariable:      "variable",
	KindTypedef:       "typedef",
	KindMacro:         "macro",
	KindTemplateAlias: "template-alias",
}

func (k TokenKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "undefined"
}

// ParseTokenKind is the inverse of String. Unknown names map to KindUndefined.
func ParseTokenKind(s string) TokenKind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUndefined
}

// Matches reports whether k is included in mask.
func (k TokenKind) Matches(mask TokenKind) bool {
	return k&mask != 0
}

// AccessKind is the C++ member access of a token.
type AccessKind uint8

const (
	AccessUndefined AccessKind = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a AccessKind) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return ""
	}
}

// ParseAccessKind maps "public"/"protected"/"private" to an AccessKind.
func ParseAccessKind(s string) AccessKind {
	switch s {
	case "public":
		return AccessPublic
	case "protected":
		return AccessProtected
	case "private":
		return AccessPrivate
	default:
		return AccessUndefined
	}
}

// Ancestor is one entry of a class base list.
type Ancestor struct {
	Name    string     `json:"name" yaml:"name"`
	Access  AccessKind `json:"access" yaml:"access"`
	Virtual bool       `json:"virtual,omitempty" yaml:"virtual,omitempty"`
}

// Token is one named symbol stored in a token tree.
type Token struct {
	Index int
	Name  string
	Kind  TokenKind

	Access AccessKind

	File     FileIdx
	Line     int
	ImplFile FileIdx
	ImplLine int

	// ImplLineStart and ImplLineEnd are the lines of the opening and closing
	// brace of a function or class body.
	ImplLineStart int
	ImplLineEnd   int

	Args     string
	BaseArgs string
	Type     string
	BaseType string

	AncestorsString string
	Ancestors       []Ancestor

	TemplateArgument string
	TemplateParams   []string

	// AliasOf is the aliased type text of typedefs, using-aliases and template aliases.
	AliasOf string

	// Qualifier holds the scope path of an out-of-line definition (e.g. "A::B")
	// until the token is merged into its owning scope.
	Qualifier string

	Doc string

	IsOperator bool
	IsConst    bool
	IsStatic   bool
	IsLocal    bool
	IsTemp     bool
	IsUnnamed  bool
	IsForward  bool
	IsVirtual  bool

	Parent   int
	Children TokenIdxSet

	// Files lists every file this token is registered under.
	Files map[FileIdx]struct{}
}

// NewToken returns a token with no location and global parent.
func NewToken(name string, kind TokenKind) *Token {
	return &Token{
		Index:    -1,
		Name:     name,
		Kind:     kind,
		File:     NoFile,
		ImplFile: NoFile,
		Parent:   GlobalScope,
		Children: NewTokenIdxSet(),
		Files:    make(map[FileIdx]struct{}),
	}
}

// DisplayName is the name decorated with its template argument list.
func (t *Token) DisplayName() string {
	if t.TemplateArgument != "" && t.Kind != KindVariable {
		return t.Name + t.TemplateArgument
	}
	return t.Name
}

// HasImplementation reports whether a definition location is known.
func (t *Token) HasImplementation() bool {
	return t.ImplFile != NoFile
}

// IsContainer reports whether members can be looked up inside the token.
func (t *Token) IsContainer() bool {
	return t.Kind.Matches(KindNamespace | KindAnyAggregate | KindEnum)
}

// IsAlias reports whether the token only names another type.
func (t *Token) IsAlias() bool {
	return t.Kind.Matches(KindTypedef | KindTemplateAlias)
}

// IsUnnamedName reports whether name is a generated anonymous-aggregate name.
func IsUnnamedName(name string) bool {
	return strings.HasPrefix(name, UnnamedPrefix)
}

// FormattedArgs collapses runs of whitespace in the argument text.
func (t *Token) FormattedArgs() string {
	return strings.Join(strings.Fields(t.Args), " ")
}

// Clone copies the token without its tree linkage.
func (t *Token) Clone() *Token {
	c := *t
	c.Index = -1
	c.Children = NewTokenIdxSet()
	c.Files = make(map[FileIdx]struct{})
	if t.Ancestors != nil {
		c.Ancestors = append([]Ancestor(nil), t.Ancestors...)
	}
	if t.TemplateParams != nil {
		c.TemplateParams = append([]string(nil), t.TemplateParams...)
	}
	return &c
}
