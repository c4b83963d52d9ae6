package interp

import "fmt"

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
	KindTuple
	KindDict
	KindFunction
	KindBlueprint
	KindObject
	KindBoundMethod
	KindCoroutine
	KindSuperProxy
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindDict:
		return "dict"
	case KindFunction:
		return "function"
	case KindBlueprint:
		return "blueprint"
	case KindObject:
		return "object"
	case KindBoundMethod:
		return "bound_method"
	case KindCoroutine:
		return "coroutine"
	case KindSuperProxy:
		return "super"
	default:
		return "unknown"
	}
}

// Value is the runtime's tagged union. Primitives are stored inline
// and copied by value. Heap variants carry a pointer;
// Array/Tuple/Dict/Function are deep-copied on read (see deepCopy),
// Object/BoundMethod/Coroutine are shared through an explicit
// reference count, and Blueprint is a shared, non-counted pointer
// owned by the interpreter's blueprint registry.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Str   string

	Arr   *ArrayVal
	Tup   *TupleVal
	Dict  *Dictionary
	Fn    *Function
	Bp    *Blueprint
	Obj   *Object
	Bound *BoundMethod
	Coro  *Coroutine
}

// ArrayVal is the heap payload of a Kind=KindArray value.
type ArrayVal struct {
	Elems []Value
}

// TupleVal is the heap payload of a Kind=KindTuple value. Its length
// is fixed at construction; operators that would change length
// (append, etc.) are rejected by the call machinery for tuples.
type TupleVal struct {
	Elems []Value
}

// Null returns the Null value.
func Null() Value { return Value{Kind: KindNull} }

// NewInt constructs an Int value.
func NewInt(i int64) Value { return Value{Kind: KindInt, Int: i} }

// NewFloat constructs a Float value.
func NewFloat(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// NewBool constructs a Bool value.
func NewBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NewString constructs a String value. Strings are immutable Go
// strings under the hood, so deep-copying one is always value-safe
// without recursive work.
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }

// NewArray constructs a fresh Array value wrapping the given elements.
// The caller transfers ownership of elems to the returned value.
func NewArray(elems []Value) Value {
	return Value{Kind: KindArray, Arr: &ArrayVal{Elems: elems}}
}

// NewTuple constructs a fresh, fixed-length Tuple value.
func NewTuple(elems []Value) Value {
	return Value{Kind: KindTuple, Tup: &TupleVal{Elems: elems}}
}

// NewDict wraps an existing Dictionary in a Value.
func NewDict(d *Dictionary) Value { return Value{Kind: KindDict, Dict: d} }

// NewFunction wraps a Function definition in a Value.
func NewFunction(f *Function) Value { return Value{Kind: KindFunction, Fn: f} }

// NewBlueprint wraps a Blueprint pointer in a Value. Blueprints are
// never ref-counted; they live for the lifetime of the interpreter's
// blueprint registry.
func NewBlueprint(b *Blueprint) Value { return Value{Kind: KindBlueprint, Bp: b} }

// NewObject wraps a ref-counted Object in a Value, incrementing its
// reference count to account for the new reference.
func NewObject(o *Object) Value {
	o.IncRef()
	return Value{Kind: KindObject, Obj: o}
}

// NewBoundMethod wraps a ref-counted BoundMethod in a Value,
// incrementing its reference count.
func NewBoundMethod(b *BoundMethod) Value {
	b.IncRef()
	return Value{Kind: KindBoundMethod, Bound: b}
}

// NewCoroutine wraps a ref-counted Coroutine (or GatherTask variant)
// in a Value, incrementing its reference count.
func NewCoroutine(c *Coroutine) Value {
	c.IncRef()
	return Value{Kind: KindCoroutine, Coro: c}
}

// SuperProxy is the marker value produced by evaluating the `super`
// keyword inside an instance method. It carries no payload: attribute
// access on it is resolved against the enclosing method's class's
// parent blueprint by the evaluator, never against the value itself.
func SuperProxy() Value { return Value{Kind: KindSuperProxy} }

// IsTruthy reports the Bool payload. Callers must check Kind==KindBool
// themselves; operators that require a Bool operand raise a runtime
// error otherwise.
func (v Value) IsTruthy() bool { return v.Bool }

// deepCopy returns a logically equivalent Value that shares no
// mutable state with v, except for the ref-counted and Blueprint
// variants, which are intentionally shared.
func deepCopy(v Value) Value {
	switch v.Kind {
	case KindArray:
		elems := make([]Value, len(v.Arr.Elems))
		for i, e := range v.Arr.Elems {
			elems[i] = deepCopy(e)
		}
		return NewArray(elems)
	case KindTuple:
		elems := make([]Value, len(v.Tup.Elems))
		for i, e := range v.Tup.Elems {
			elems[i] = deepCopy(e)
		}
		return NewTuple(elems)
	case KindDict:
		return NewDict(v.Dict.deepCopy())
	case KindFunction:
		return NewFunction(v.Fn.deepCopy())
	case KindObject:
		return NewObject(v.Obj)
	case KindBoundMethod:
		return NewBoundMethod(v.Bound)
	case KindCoroutine:
		return NewCoroutine(v.Coro)
	default:
		// Primitives, Null, Blueprint, SuperProxy: bitwise copy is
		// already a correct deep copy.
		return v
	}
}

// freeContents decrements reference counts held by v. It is the
// evaluator's substitute for a garbage collector: a fresh container
// frees its contents when discarded unused. The underlying memory is
// reclaimed by the Go runtime either way; freeContents maintains the
// logical ref counts so object and coroutine lifetimes stay
// observable and testable.
func freeContents(v Value) {
	switch v.Kind {
	case KindArray:
		for _, e := range v.Arr.Elems {
			freeContents(e)
		}
	case KindTuple:
		for _, e := range v.Tup.Elems {
			freeContents(e)
		}
	case KindDict:
		v.Dict.freeContents()
	case KindFunction:
		// Function values own a source-text slice only when
		// is_source_owner is set; nothing else to release.
	case KindObject:
		v.Obj.DecRef()
	case KindBoundMethod:
		v.Bound.DecRef()
	case KindCoroutine:
		v.Coro.DecRef()
	}
}

// valueEqual implements `==`: strings compare by content,
// arrays/tuples/dicts compare by pointer identity, numbers/bools
// coerce through float64, everything else compares false across
// differing kinds.
func valueEqual(a, b Value) bool {
	an, aIsNum := numericValue(a)
	bn, bIsNum := numericValue(b)
	if aIsNum && bIsNum {
		return an == bn
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindString:
		return a.Str == b.Str
	case KindArray:
		return a.Arr == b.Arr
	case KindTuple:
		return a.Tup == b.Tup
	case KindDict:
		return a.Dict == b.Dict
	case KindObject:
		return a.Obj == b.Obj
	case KindBoundMethod:
		return a.Bound == b.Bound
	case KindCoroutine:
		return a.Coro == b.Coro
	case KindBlueprint:
		return a.Bp == b.Bp
	case KindFunction:
		return a.Fn == b.Fn
	default:
		return false
	}
}

// numericValue coerces Int/Float/Bool to a float64 for comparison
// purposes; Bool contributes 0 or 1.
func numericValue(v Value) (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Inspect renders a debug representation of v, used by the debug log
// ring buffer and by error messages; it never allocates a fresh
// container so it carries no freshness implications.
func (v Value) Inspect() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindString:
		return v.Str
	case KindArray:
		return inspectSeq(v.Arr.Elems, "[", "]")
	case KindTuple:
		return inspectSeq(v.Tup.Elems, "(", ")")
	case KindDict:
		return v.Dict.Inspect()
	case KindFunction:
		return fmt.Sprintf("<function %s>", v.Fn.Name)
	case KindBlueprint:
		return fmt.Sprintf("<blueprint %s>", v.Bp.Name)
	case KindObject:
		return fmt.Sprintf("<object %s>", v.Obj.Blueprint.Name)
	case KindBoundMethod:
		return "<bound method>"
	case KindCoroutine:
		return fmt.Sprintf("<coroutine %s %s>", v.Coro.Name, v.Coro.ID)
	case KindSuperProxy:
		return "<super>"
	default:
		return "<unknown>"
	}
}

func inspectSeq(elems []Value, open, close string) string {
	s := open
	for i, e := range elems {
		if i > 0 {
			s += ", "
		}
		s += e.Inspect()
	}
	return s + close
}
