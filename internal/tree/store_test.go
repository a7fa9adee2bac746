package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cccomplete/internal/types"
)

func mk(name string, kind types.TokenKind, parent int, file types.FileIdx, line int) *types.Token {
	tok := types.NewToken(name, kind)
	tok.Parent = parent
	tok.File = file
	tok.Line = line
	return tok
}

func TestInsertAndLookup(t *testing.T) {
	s := NewStore()
	f := s.FileIndex("a.h")
	ns := s.Insert(mk("ns", types.KindNamespace, types.GlobalScope, f, 1))
	cls := s.Insert(mk("Foo", types.KindClass, ns, f, 2))
	bar := s.Insert(mk("Bar", types.KindFunction, cls, f, 3))
	barVar := s.Insert(mk("Bar", types.KindVariable, cls, f, 4))

	assert.Equal(t, 4, s.Len())
	assert.True(t, s.Children(types.GlobalScope).Has(ns))
	assert.True(t, s.Children(ns).Has(cls))
	assert.Equal(t, types.NewTokenIdxSet(bar, barVar), s.FindByName("Bar"))
	assert.Equal(t, types.NewTokenIdxSet(bar), s.FindChildren(cls, "Bar", types.KindAnyFunction))
	assert.Equal(t, -1, s.FindFirstChild(ns, "Bar", types.KindAny))
	assert.Equal(t, "ns::Foo::Bar", s.QualifiedName(bar))
	assert.Equal(t, []int{cls, ns}, s.Ancestors(bar))
	assert.Equal(t, types.NewTokenIdxSet(ns, cls, bar, barVar), s.FileTokens(f))
	require.NoError(t, s.Validate())
}

func TestInsertUnknownParentFallsBackToGlobal(t *testing.T) {
	s := NewStore()
	idx := s.Insert(mk("x", types.KindVariable, 42, types.NoFile, 1))
	assert.Equal(t, types.GlobalScope, s.Get(idx).Parent)
	require.NoError(t, s.Validate())
}

func TestRemoveCascadesAndReusesSlots(t *testing.T) {
	s := NewStore()
	f := s.FileIndex("a.h")
	cls := s.Insert(mk("C", types.KindClass, types.GlobalScope, f, 1))
	m := s.Insert(mk("m", types.KindFunction, cls, f, 2))
	local := s.Insert(mk("i", types.KindVariable, m, f, 3))
	other := s.Insert(mk("other", types.KindVariable, types.GlobalScope, f, 9))

	s.Remove(cls)
	assert.Nil(t, s.Get(cls))
	assert.Nil(t, s.Get(m))
	assert.Nil(t, s.Get(local))
	assert.NotNil(t, s.Get(other))
	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.FindByName("m"))
	require.NoError(t, s.Validate())

	reused := s.Insert(mk("new", types.KindVariable, types.GlobalScope, f, 10))
	assert.Contains(t, []int{cls, m, local}, reused)
	assert.Equal(t, 4, s.Cap())
	require.NoError(t, s.Validate())
}

func TestRegisterFilePropagatesToAncestors(t *testing.T) {
	s := NewStore()
	h := s.FileIndex("a.h")
	c := s.FileIndex("a.cc")
	ns := s.Insert(mk("ns", types.KindNamespace, types.GlobalScope, h, 1))
	fn := s.Insert(mk("f", types.KindFunction, ns, h, 2))

	s.SetImplementation(fn, c, 10, 10, 12)
	assert.Contains(t, s.Get(ns).Files, c)
	assert.True(t, s.FileTokens(c).Has(ns))
	require.NoError(t, s.Validate())
}

func TestRemoveFile(t *testing.T) {
	s := NewStore()
	h := s.FileIndex("a.h")
	c := s.FileIndex("a.cc")

	ns := s.Insert(mk("ns", types.KindNamespace, types.GlobalScope, h, 1))
	cls := s.Insert(mk("A", types.KindClass, ns, h, 2))
	decl := s.Insert(mk("f", types.KindFunction, cls, h, 3))
	s.SetImplementation(decl, c, 20, 20, 25)
	local := s.Insert(mk("tmp", types.KindVariable, decl, c, 21))
	cOnly := s.Insert(mk("helper", types.KindFunction, ns, c, 5))
	s.AddUsingNamespace(c, "std")

	removed := s.RemoveFile(c)
	assert.Equal(t, 2, removed)
	assert.Nil(t, s.Get(local))
	assert.Nil(t, s.Get(cOnly))
	assert.Equal(t, types.NoFile, s.Get(decl).ImplFile)
	assert.NotContains(t, s.Get(ns).Files, c)
	assert.Empty(t, s.UsedNamespaces(c))
	assert.Nil(t, s.FileTokens(c))
	require.NoError(t, s.Validate())

	s.RemoveFile(h)
	assert.Equal(t, 0, s.Len())
	require.NoError(t, s.Validate())
}

func TestRemoveFileHandsOverOwnership(t *testing.T) {
	s := NewStore()
	h := s.FileIndex("a.h")
	c := s.FileIndex("a.cc")

	cls := s.Insert(mk("A", types.KindClass, types.GlobalScope, h, 2))
	s.Get(cls).ImplLineStart, s.Get(cls).ImplLineEnd = 2, 9
	decl := s.Insert(mk("f", types.KindFunction, cls, h, 3))
	s.SetImplementation(decl, c, 20, 20, 25)

	s.RemoveFile(h)
	require.NoError(t, s.Validate())

	a := s.Get(cls)
	require.NotNil(t, a)
	assert.True(t, a.IsForward, "class defined in the removed file survives as a forward declaration")
	assert.Equal(t, c, a.File)

	f := s.Get(decl)
	require.NotNil(t, f)
	assert.Equal(t, c, f.File)
	assert.Equal(t, 20, f.Line, "declaration falls back to its definition")

	s.RemoveFile(c)
	assert.Equal(t, 0, s.Len())
}

func TestUsedNamespaces(t *testing.T) {
	s := NewStore()
	f := s.FileIndex("x.cc")
	s.AddUsingNamespace(f, "std")
	s.AddUsingNamespace(f, "boost")
	s.AddUsingNamespace(f, "std")
	assert.Equal(t, []string{"std", "boost"}, s.UsedNamespaces(f))
	s.SetUsedNamespaces(f, nil)
	assert.Empty(t, s.UsedNamespaces(f))
}

func TestFileTable(t *testing.T) {
	s := NewStore()
	a := s.FileIndex("/src/a.h")
	b := s.FileIndex("/src/b.h")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, s.FileIndex("/src/a.h"))
	got, ok := s.LookupFile("/src/b.h")
	assert.True(t, ok)
	assert.Equal(t, b, got)
	_, ok = s.LookupFile("/nope")
	assert.False(t, ok)
	assert.Equal(t, "/src/b.h", s.FilePath(b))
	assert.Equal(t, "", s.FilePath(types.NoFile))
}

func TestValidateDetectsCorruption(t *testing.T) {
	s := NewStore()
	f := s.FileIndex("a.h")
	cls := s.Insert(mk("C", types.KindClass, types.GlobalScope, f, 1))
	m := s.Insert(mk("m", types.KindVariable, cls, f, 2))
	require.NoError(t, s.Validate())

	s.Get(m).Parent = 99
	assert.Error(t, s.Validate())
	s.Get(m).Parent = cls

	s.Get(cls).Children.Add(77)
	assert.Error(t, s.Validate())
	s.Get(cls).Children.Remove(77)

	s.names["ghost"] = types.NewTokenIdxSet(m)
	assert.Error(t, s.Validate())
	delete(s.names, "ghost")

	require.NoError(t, s.Validate())
}

func TestDump(t *testing.T) {
	s := NewStore()
	f := s.FileIndex("a.h")
	ns := s.Insert(mk("ns", types.KindNamespace, types.GlobalScope, f, 1))
	cls := s.Insert(mk("Vec", types.KindClass, ns, f, 2))
	s.Get(cls).TemplateArgument = "<typename T>"
	fn := s.Insert(mk("size", types.KindFunction, cls, f, 4))
	s.SetImplementation(fn, f, 4, 4, 4)
	s.Insert(mk("data", types.KindVariable, cls, f, 3))
	s.Insert(mk("g", types.KindVariable, types.GlobalScope, f, 10))

	want := "namespace ns [1,0]\n" +
		"  class Vec<typename T> [2,0]\n" +
		"    variable data [3,0]\n" +
		"    function size [4,4]\n" +
		"variable g [10,0]\n"
	assert.Equal(t, want, s.DumpString())
}

func TestDumpDeepNestingIsIterative(t *testing.T) {
	s := NewStore()
	parent := types.GlobalScope
	for i := 0; i < 20000; i++ {
		parent = s.Insert(mk("n", types.KindNamespace, parent, types.NoFile, i))
	}
	out := s.DumpString()
	assert.NotEmpty(t, out)
	require.NoError(t, s.Validate())
	s.Remove(s.Children(types.GlobalScope).Sorted()[0])
	assert.Equal(t, 0, s.Len())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewStore()
	h := s.FileIndex("a.h")
	c := s.FileIndex("a.cc")
	cls := s.Insert(mk("Derived", types.KindClass, types.GlobalScope, h, 1))
	tok := s.Get(cls)
	tok.Ancestors = []types.Ancestor{{Name: "Base", Access: types.AccessPublic}}
	tok.AncestorsString = "Base"
	gone := s.Insert(mk("gone", types.KindVariable, types.GlobalScope, h, 2))
	fn := s.Insert(mk("run", types.KindFunction, cls, h, 3))
	s.Get(fn).IsVirtual = true
	s.Get(fn).IsConst = true
	s.SetImplementation(fn, c, 30, 30, 40)
	s.Remove(gone)
	s.AddUsingNamespace(c, "std")

	restored, err := FromSnapshot(s.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, s.DumpString(), restored.DumpString())
	assert.Equal(t, s.Records(), restored.Records())
	assert.Equal(t, []string{"std"}, restored.UsedNamespaces(c))

	// the freed slot is reused after restore
	idx := restored.Insert(mk("new", types.KindVariable, types.GlobalScope, h, 5))
	assert.Equal(t, gone, idx)
}

func TestFromSnapshotRejectsDuplicates(t *testing.T) {
	_, err := FromSnapshot(&Snapshot{Tokens: []Record{
		{Index: 0, Name: "a", Kind: "variable", Parent: -1},
		{Index: 0, Name: "b", Kind: "variable", Parent: -1},
	}})
	assert.Error(t, err)
}

func TestFromSnapshotRejectsCycles(t *testing.T) {
	_, err := FromSnapshot(&Snapshot{Tokens: []Record{
		{Index: 0, Name: "a", Kind: "class", Parent: 1},
		{Index: 1, Name: "b", Kind: "class", Parent: 0},
	}})
	assert.Error(t, err)
}
