package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cccomplete/internal/types"
)

// commit merges every unit of staging into dest.
func commit(dest, staging *Store) {
	for _, u := range staging.MergeUnits() {
		dest.Merge(staging, u)
	}
}

func TestMergeUnitsDescendIntoNamespaces(t *testing.T) {
	st := NewStore()
	ns := st.Insert(mk("ns", types.KindNamespace, types.GlobalScope, 0, 1))
	a := st.Insert(mk("A", types.KindClass, ns, 0, 2))
	b := st.Insert(mk("b", types.KindVariable, ns, 0, 3))
	empty := st.Insert(mk("empty", types.KindNamespace, types.GlobalScope, 0, 5))
	g := st.Insert(mk("g", types.KindFunction, types.GlobalScope, 0, 6))

	assert.Equal(t, []int{a, b, empty, g}, st.MergeUnits())
}

func TestMergeReusesNamespaces(t *testing.T) {
	dest := NewStore()
	f1 := dest.FileIndex("a.h")
	f2 := dest.FileIndex("b.h")

	st1 := NewStore()
	ns := st1.Insert(mk("lib", types.KindNamespace, types.GlobalScope, f1, 1))
	st1.Insert(mk("A", types.KindClass, ns, f1, 2))
	commit(dest, st1)

	st2 := NewStore()
	ns2 := st2.Insert(mk("lib", types.KindNamespace, types.GlobalScope, f2, 1))
	st2.Insert(mk("B", types.KindClass, ns2, f2, 2))
	commit(dest, st2)

	libs := dest.FindByName("lib")
	require.Equal(t, 1, libs.Len())
	lib := libs.Sorted()[0]
	assert.Equal(t, 2, dest.Children(lib).Len())
	assert.Contains(t, dest.Get(lib).Files, f1)
	assert.Contains(t, dest.Get(lib).Files, f2)
	require.NoError(t, dest.Validate())

	dest.RemoveFile(f1)
	assert.NotNil(t, dest.Get(lib), "namespace still used by b.h")
	assert.Equal(t, 1, dest.Children(lib).Len())
	require.NoError(t, dest.Validate())
}

func TestMergeUpgradesForwardDeclaration(t *testing.T) {
	dest := NewStore()
	fwdFile := dest.FileIndex("fwd.h")
	defFile := dest.FileIndex("def.h")

	st := NewStore()
	fwd := mk("Widget", types.KindClass, types.GlobalScope, fwdFile, 3)
	fwd.IsForward = true
	st.Insert(fwd)
	commit(dest, st)

	st = NewStore()
	def := mk("Widget", types.KindClass, types.GlobalScope, defFile, 10)
	def.ImplLineStart, def.ImplLineEnd = 10, 20
	def.Ancestors = []types.Ancestor{{Name: "Base", Access: types.AccessPublic}}
	defIdx := st.Insert(def)
	st.Insert(mk("draw", types.KindFunction, defIdx, defFile, 12))
	commit(dest, st)

	widgets := dest.FindByName("Widget")
	require.Equal(t, 1, widgets.Len())
	w := dest.Get(widgets.Sorted()[0])
	assert.False(t, w.IsForward)
	assert.Equal(t, defFile, w.File)
	assert.Equal(t, 10, w.Line)
	assert.Equal(t, 20, w.ImplLineEnd)
	assert.Len(t, w.Ancestors, 1)
	assert.Equal(t, 1, w.Children.Len())

	// a later forward declaration is absorbed by the definition
	st = NewStore()
	again := mk("Widget", types.KindClass, types.GlobalScope, fwdFile, 4)
	again.IsForward = true
	st.Insert(again)
	commit(dest, st)
	assert.Equal(t, 1, dest.FindByName("Widget").Len())
	require.NoError(t, dest.Validate())
}

func TestMergePairsOutOfLineDefinition(t *testing.T) {
	dest := NewStore()
	h := dest.FileIndex("shape.h")
	c := dest.FileIndex("shape.cc")

	st := NewStore()
	ns := st.Insert(mk("geo", types.KindNamespace, types.GlobalScope, h, 1))
	cls := st.Insert(mk("Shape", types.KindClass, ns, h, 2))
	area := mk("area", types.KindFunction, cls, h, 4)
	area.BaseArgs = "()"
	area.IsConst = true
	st.Insert(area)
	scale := mk("scale", types.KindFunction, cls, h, 5)
	scale.BaseArgs = "(double)"
	st.Insert(scale)
	count := mk("count", types.KindVariable, cls, h, 6)
	count.IsStatic = true
	st.Insert(count)
	commit(dest, st)

	st = NewStore()
	def := mk("area", types.KindFunction, types.GlobalScope, c, 10)
	def.Qualifier = "geo::Shape"
	def.BaseArgs = "()"
	def.IsConst = true
	def.ImplFile, def.ImplLine, def.ImplLineStart, def.ImplLineEnd = c, 10, 10, 14
	defIdx := st.Insert(def)
	st.Insert(mk("r", types.KindVariable, defIdx, c, 11))

	// overload that has no declaration stays a separate token
	other := mk("scale", types.KindFunction, types.GlobalScope, c, 20)
	other.Qualifier = "geo::Shape"
	other.BaseArgs = "(int)"
	other.ImplFile, other.ImplLine = c, 20
	st.Insert(other)

	static := mk("count", types.KindVariable, types.GlobalScope, c, 30)
	static.Qualifier = "geo::Shape"
	st.Insert(static)
	commit(dest, st)
	require.NoError(t, dest.Validate())

	areas := dest.FindByName("area")
	require.Equal(t, 1, areas.Len())
	a := dest.Get(areas.Sorted()[0])
	assert.Equal(t, h, a.File)
	assert.Equal(t, 4, a.Line)
	assert.Equal(t, c, a.ImplFile)
	assert.Equal(t, 10, a.ImplLine)
	assert.Equal(t, 14, a.ImplLineEnd)
	assert.Equal(t, 1, a.Children.Len(), "locals of the definition attach to the declaration")

	shape := dest.FindFirstChild(dest.FindFirstChild(types.GlobalScope, "geo", types.KindNamespace), "Shape", types.KindClass)
	assert.Equal(t, 2, dest.FindChildren(shape, "scale", types.KindFunction).Len())

	cnt := dest.Get(dest.FindFirstChild(shape, "count", types.KindVariable))
	assert.Equal(t, c, cnt.ImplFile)
	assert.Equal(t, 30, cnt.ImplLine)

	// reparse of the implementation file is idempotent
	before := dest.DumpString()
	dest.RemoveFile(c)
	commit(dest, st)
	assert.Equal(t, before, dest.DumpString())
	require.NoError(t, dest.Validate())
}

func TestMergeDeclarationAfterDefinition(t *testing.T) {
	dest := NewStore()
	f := dest.FileIndex("a.cc")

	st := NewStore()
	def := mk("f", types.KindFunction, types.GlobalScope, f, 10)
	def.BaseArgs = "(int)"
	def.ImplFile, def.ImplLine = f, 10
	st.Insert(def)
	decl := mk("f", types.KindFunction, types.GlobalScope, f, 2)
	decl.BaseArgs = "(int)"
	decl.Doc = "adds one"
	st.Insert(decl)
	commit(dest, st)

	fs := dest.FindByName("f")
	require.Equal(t, 1, fs.Len())
	tok := dest.Get(fs.Sorted()[0])
	assert.Equal(t, 2, tok.Line)
	assert.Equal(t, 10, tok.ImplLine)
	assert.Equal(t, "adds one", tok.Doc)
}

func TestMergeQualifierSearchesOuterScopes(t *testing.T) {
	dest := NewStore()
	f := dest.FileIndex("a.cc")
	outer := dest.Insert(mk("outer", types.KindNamespace, types.GlobalScope, f, 1))
	dest.Insert(mk("Impl", types.KindClass, outer, f, 2))
	inner := dest.Insert(mk("inner", types.KindNamespace, outer, f, 3))

	assert.Equal(t, dest.FindFirstChild(outer, "Impl", types.KindClass), dest.resolveQualifier(inner, "Impl"))
	assert.Equal(t, dest.FindFirstChild(outer, "Impl", types.KindClass), dest.resolveQualifier(types.GlobalScope, "::outer::Impl"))
	assert.Equal(t, inner, dest.resolveQualifier(inner, "Missing"))
	assert.Equal(t, dest.FindFirstChild(outer, "Impl", types.KindClass), dest.resolveQualifier(types.GlobalScope, "outer::Impl<T>"))
}
