package tree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/cccomplete/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTreeViewUpdate(t *testing.T) {
	tr := New(nil)
	require.NoError(t, tr.Update(func(s *Store) error {
		s.Insert(mk("a", types.KindVariable, types.GlobalScope, s.FileIndex("x.h"), 1))
		return nil
	}))
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, uint64(1), tr.Epoch())

	var names []string
	require.NoError(t, tr.View(func(s *Store) error {
		for idx := range s.Children(types.GlobalScope) {
			names = append(names, s.Get(idx).Name)
		}
		return nil
	}))
	assert.Equal(t, []string{"a"}, names)

	tr.Clear()
	assert.Equal(t, 0, tr.Len())
}

// Readers never observe a file half removed and half re-inserted.
func TestTreeReparseIsAtomicForReaders(t *testing.T) {
	tr := New(nil)
	var file types.FileIdx
	_ = tr.Update(func(s *Store) error {
		file = s.FileIndex("a.h")
		return nil
	})
	build := func(s *Store) {
		st := NewStore()
		cls := st.Insert(mk("C", types.KindClass, types.GlobalScope, file, 1))
		for i := 0; i < 5; i++ {
			st.Insert(mk("m", types.KindVariable, cls, file, 2+i))
		}
		for _, u := range st.MergeUnits() {
			s.Merge(st, u)
		}
	}
	_ = tr.Update(func(s *Store) error { build(s); return nil })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = tr.Update(func(s *Store) error {
				s.RemoveFile(file)
				build(s)
				return nil
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = tr.View(func(s *Store) error {
				assert.Equal(t, 6, s.Len())
				return s.Validate()
			})
		}
	}()
	wg.Wait()
}

func TestTreeReplace(t *testing.T) {
	tr := New(nil)
	s := NewStore()
	s.Insert(mk("x", types.KindVariable, types.GlobalScope, types.NoFile, 1))
	tr.Replace(s)
	assert.Equal(t, 1, tr.Len())
}
