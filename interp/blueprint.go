package interp

import "github.com/pkg/errors"

// Blueprint is a class-like template: a name, an optional parent for
// single inheritance, a scope holding class attributes and methods,
// and a cached `init` lookup. Blueprints are shared, non-counted
// pointers owned by the interpreter's blueprint registry and released
// only at shutdown.
type Blueprint struct {
	Name    string
	Parent  *Blueprint
	Class   *Scope
	initFn  *Function
	initSet bool
}

// NewBlueprintDef returns a new Blueprint definition. The caller is
// expected to pass it to Interpreter.RegisterBlueprint, which owns the
// returned pointer for the program's lifetime.
func NewBlueprintDef(name string, parent *Blueprint) *Blueprint {
	return &Blueprint{Name: name, Parent: parent, Class: NewScope(nil)}
}

// Init returns the cached `init` method, resolving and caching it on
// first use by walking the class's own scope only. Callers that need
// an inherited init walk the parent chain via resolveInitChain.
func (b *Blueprint) Init() (*Function, bool) {
	if b.initSet {
		return b.initFn, b.initFn != nil
	}
	b.initSet = true
	if v, ok := b.Class.GetLocal("init"); ok && v.Kind == KindFunction {
		b.initFn = v.Fn
	}
	return b.initFn, b.initFn != nil
}

// resolveInitChain walks the parent chain looking for the nearest
// init, the way ResolveAttr walks for any other attribute.
func (b *Blueprint) resolveInitChain() (*Function, bool) {
	for cur := b; cur != nil; cur = cur.Parent {
		if fn, ok := cur.Init(); ok {
			return fn, true
		}
	}
	return nil, false
}

// Object is a ref-counted instance of a Blueprint. Its attribute
// scope is isolated (outer == nil), never part of a lexical chain.
type Object struct {
	Blueprint  *Blueprint
	Attributes *Scope
	refCount   int
}

// NewObjectInstance allocates a fresh, isolated Object with an
// initial reference count of one, held by the caller.
func NewObjectInstance(bp *Blueprint) *Object {
	return &Object{Blueprint: bp, Attributes: NewScope(nil), refCount: 1}
}

// IncRef increments the object's reference count.
func (o *Object) IncRef() { o.refCount++ }

// DecRef decrements the object's reference count, freeing its
// instance scope (and transitively its contents) at zero.
func (o *Object) DecRef() {
	o.refCount--
	if o.refCount <= 0 {
		o.Attributes.Free()
	}
}

// RefCount reports the current reference count.
func (o *Object) RefCount() int { return o.refCount }

// resolveResult carries back an attribute lookup's value together
// with whether it was a plain value or should be bound as a method.
type resolveResult struct {
	value      Value
	isMethod   bool
	methodFunc *Function
}

// ResolveAttr looks up obj.name: instance attributes first, then the
// blueprint chain, nearest class first. The distinguished `blueprint`
// attribute and the container `len` fast path are handled by the
// evaluator before it falls into ResolveAttr.
func (o *Object) ResolveAttr(name string) (resolveResult, bool) {
	if v, ok := o.Attributes.GetLocal(name); ok {
		return resolveResult{value: v}, true
	}
	for bp := o.Blueprint; bp != nil; bp = bp.Parent {
		if v, ok := bp.Class.GetLocal(name); ok {
			if v.Kind == KindFunction {
				return resolveResult{isMethod: true, methodFunc: v.Fn}, true
			}
			return resolveResult{value: v}, true
		}
	}
	return resolveResult{}, false
}

// ResolveSuperAttr resolves `super.m`: the search begins at
// fromClass's parent, never at fromClass itself. The caller reports
// an error outside an instance method or when fromClass has no parent.
func ResolveSuperAttr(fromClass *Blueprint, name string) (resolveResult, bool) {
	if fromClass == nil || fromClass.Parent == nil {
		return resolveResult{}, false
	}
	for bp := fromClass.Parent; bp != nil; bp = bp.Parent {
		if v, ok := bp.Class.GetLocal(name); ok {
			if v.Kind == KindFunction {
				return resolveResult{isMethod: true, methodFunc: v.Fn}, true
			}
			return resolveResult{value: v}, true
		}
	}
	return resolveResult{}, false
}

// ErrNoParent is returned (wrapped) when `super` is used where the
// enclosing class has no parent blueprint.
var ErrNoParent = errors.New("super used on a blueprint with no parent")

// ErrSuperOutsideMethod is returned (wrapped) when `super` is used
// outside an instance method body.
var ErrSuperOutsideMethod = errors.New("super used outside an instance method")
