package interp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeepCopyArrayIsIndependent(t *testing.T) {
	orig := NewArray([]Value{NewInt(1), NewInt(2)})
	copy := deepCopy(orig)

	copy.Arr.Elems[0] = NewInt(99)
	if orig.Arr.Elems[0].Int != 1 {
		t.Fatalf("mutating the copy changed the original: %v", orig.Arr.Elems[0])
	}
	if copy.Arr == orig.Arr {
		t.Fatalf("deepCopy returned the same backing pointer")
	}
}

func TestDeepCopyNestedArray(t *testing.T) {
	inner := NewArray([]Value{NewInt(1)})
	orig := NewArray([]Value{inner})
	copy := deepCopy(orig)

	copy.Arr.Elems[0].Arr.Elems[0] = NewInt(42)
	if orig.Arr.Elems[0].Arr.Elems[0].Int != 1 {
		t.Fatalf("nested deep copy shared state with the original")
	}
}

func TestDeepCopySharesObjectByReference(t *testing.T) {
	bp := &Blueprint{Name: "Point"}
	obj := NewObjectInstance(bp)
	orig := NewObject(obj)
	copy := deepCopy(orig)
	if copy.Obj != orig.Obj {
		t.Fatalf("deepCopy of an Object must share the same pointer, got distinct pointers")
	}
}

func TestValueEqualNumericCoercion(t *testing.T) {
	cases := []struct {
		a, b Value
		want bool
	}{
		{NewInt(2), NewFloat(2.0), true},
		{NewInt(2), NewFloat(2.5), false},
		{NewBool(true), NewInt(1), true},
		{NewBool(false), NewInt(0), true},
		{NewInt(3), NewInt(3), true},
		{NewString("a"), NewString("a"), true},
		{NewString("a"), NewString("b"), false},
		{Null(), Null(), true},
		{NewInt(1), NewString("1"), false},
	}
	for _, c := range cases {
		if got := valueEqual(c.a, c.b); got != c.want {
			t.Errorf("valueEqual(%v, %v) = %v, want %v", c.a.Inspect(), c.b.Inspect(), got, c.want)
		}
	}
}

func TestValueEqualArraysComparePointerIdentity(t *testing.T) {
	a := NewArray([]Value{NewInt(1)})
	b := NewArray([]Value{NewInt(1)})
	if valueEqual(a, b) {
		t.Fatalf("two distinct arrays with equal contents must not compare equal")
	}
	if !valueEqual(a, a) {
		t.Fatalf("an array must compare equal to itself")
	}
}

func TestInspectRendersContainers(t *testing.T) {
	arr := NewArray([]Value{NewInt(1), NewString("x"), NewBool(true)})
	if got, want := arr.Inspect(), "[1, x, true]"; got != want {
		t.Errorf("Inspect() = %q, want %q", got, want)
	}

	tup := NewTuple([]Value{NewInt(1), NewInt(2)})
	if got, want := tup.Inspect(), "(1, 2)"; got != want {
		t.Errorf("Inspect() = %q, want %q", got, want)
	}
}

func TestNumericValueCoercion(t *testing.T) {
	type result struct {
		F  float64
		OK bool
	}
	cases := map[string]struct {
		in   Value
		want result
	}{
		"int":    {NewInt(4), result{4, true}},
		"float":  {NewFloat(1.5), result{1.5, true}},
		"true":   {NewBool(true), result{1, true}},
		"false":  {NewBool(false), result{0, true}},
		"string": {NewString("4"), result{0, false}},
	}
	for name, c := range cases {
		f, ok := numericValue(c.in)
		got := result{f, ok}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("%s: numericValue() mismatch (-want +got):\n%s", name, diff)
		}
	}
}
