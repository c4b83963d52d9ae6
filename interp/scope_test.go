package interp

import "testing"

func TestScopeSetGetShadowing(t *testing.T) {
	s := NewScope(nil)
	s.Set("x", NewInt(1))
	s.Set("x", NewInt(2))

	v, ok := s.Get("x")
	if !ok || v.Int != 2 {
		t.Fatalf("Get(x) = %v, %v, want the most recent binding 2", v, ok)
	}
}

func TestScopeOuterChainLookup(t *testing.T) {
	outer := NewScope(nil)
	outer.Set("x", NewInt(1))
	inner := NewScope(outer)

	v, ok := inner.Get("x")
	if !ok || v.Int != 1 {
		t.Fatalf("Get(x) through the outer chain = %v, %v, want 1, true", v, ok)
	}
	if _, ok := inner.GetLocal("x"); ok {
		t.Fatalf("GetLocal must not see bindings from the outer chain")
	}
}

func TestScopeAssignUpdatesNearestBinding(t *testing.T) {
	outer := NewScope(nil)
	outer.Set("x", NewInt(1))
	inner := NewScope(outer)

	if ok := inner.Assign("x", NewInt(42)); !ok {
		t.Fatalf("Assign(x) = false, want true")
	}
	v, _ := outer.Get("x")
	if v.Int != 42 {
		t.Fatalf("outer's x = %d, want 42", v.Int)
	}

	if ok := inner.Assign("never_declared", NewInt(1)); ok {
		t.Fatalf("Assign of an undeclared name must report false")
	}
}

func TestScopeSelfExcludedFromFree(t *testing.T) {
	bp := &Blueprint{Name: "Thing"}
	obj := NewObjectInstance(bp)
	self := NewObject(obj)

	s := NewScope(nil)
	s.SetSelf("self", self)
	s.Set("other", NewInt(1))

	before := obj.RefCount()
	s.Free()
	if obj.RefCount() != before {
		t.Fatalf("Free() must not touch the self binding's ref count: before=%d after=%d", before, obj.RefCount())
	}
	if _, ok := s.GetLocal("other"); ok {
		t.Fatalf("Free() must clear non-self bindings")
	}
}

func TestScopeSetDeepCopiesValue(t *testing.T) {
	s := NewScope(nil)
	arr := NewArray([]Value{NewInt(1)})
	s.Set("a", arr)

	arr.Arr.Elems[0] = NewInt(99)
	v, _ := s.Get("a")
	if v.Arr.Elems[0].Int != 1 {
		t.Fatalf("Set must deep-copy its value, but the scope's binding changed alongside the original")
	}
}

func TestScopeBindingsMostRecentWins(t *testing.T) {
	s := NewScope(nil)
	s.Set("x", NewInt(1))
	s.Set("y", NewInt(2))
	s.Set("x", NewInt(3))

	got := s.Bindings()
	if len(got) != 2 {
		t.Fatalf("Bindings() returned %d entries, want 2", len(got))
	}
	if got["x"].Int != 3 {
		t.Fatalf("Bindings()[x] = %d, want the most recent value 3", got["x"].Int)
	}
}
