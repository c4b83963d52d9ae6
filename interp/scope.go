package interp

// symbolNode is one link in a Scope's insertion-ordered symbol list.
// Scopes are small in practice (function locals, block locals), so a
// linked list keeps insertion order without a second index structure.
type symbolNode struct {
	name string
	val  Value
	next *symbolNode
}

// Scope is a lexical name -> Value binding frame. outer is nil at the
// top of a closure chain, and always nil for the instance-attribute
// scope of an Object, which is isolated from any lexical chain.
type Scope struct {
	outer *Scope
	head  *symbolNode
	// selfName, when non-empty, marks the symbol installed as a
	// direct (non-deep-copied) reference rather than a Set() copy,
	// so freeing the scope does not decrement/free the receiver it
	// did not logically own a copy of.
	selfName string
}

// NewScope creates a scope whose outer chain is the given parent, or
// an isolated scope when outer is nil.
func NewScope(outer *Scope) *Scope {
	return &Scope{outer: outer}
}

// Set deep-copies v and binds it to name in the current frame. A
// second Set of the same name in the same frame shadows the first by
// prepending a new node; Get always finds the most recent binding
// because it scans from head.
func (s *Scope) Set(name string, v Value) {
	s.head = &symbolNode{name: name, val: deepCopy(v), next: s.head}
}

// SetSelf installs v as a direct, non-deep-copied reference under
// name and records it as the scope's self binding so Free skips it:
// freeing a method scope must not destroy the receiver.
func (s *Scope) SetSelf(name string, v Value) {
	s.head = &symbolNode{name: name, val: v, next: s.head}
	s.selfName = name
}

// Get walks the outer chain and returns a borrowed view of name's
// value: the caller must not mutate heap payloads through it, and
// must deepCopy before storing it elsewhere if ownership is required.
func (s *Scope) Get(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.outer {
		for n := sc.head; n != nil; n = n.next {
			if n.name == name {
				return n.val, true
			}
		}
	}
	return Value{}, false
}

// GetLocal searches only the current frame, used for redeclaration
// checks and for `self`/parameter lookups that must not leak into an
// enclosing closure.
func (s *Scope) GetLocal(name string) (Value, bool) {
	for n := s.head; n != nil; n = n.next {
		if n.name == name {
			return n.val, true
		}
	}
	return Value{}, false
}

// Assign updates the nearest binding of name in the outer chain in
// place, deep-copying v the same way Set does. It reports whether a
// binding was found.
func (s *Scope) Assign(name string, v Value) bool {
	for sc := s; sc != nil; sc = sc.outer {
		for n := sc.head; n != nil; n = n.next {
			if n.name == name {
				n.val = deepCopy(v)
				return true
			}
		}
	}
	return false
}

// Bindings returns every name bound directly in this frame (not the
// outer chain), most-recent shadowing wins. The module loader uses
// this to export a finished module's top-level scope as a Dict.
func (s *Scope) Bindings() map[string]Value {
	out := map[string]Value{}
	for n := s.head; n != nil; n = n.next {
		if _, exists := out[n.name]; !exists {
			out[n.name] = n.val
		}
	}
	return out
}

// Free releases every binding owned by this frame, skipping the self
// binding if one was installed via SetSelf. Scopes are stack-nested:
// a function or block scope is freed on exit.
func (s *Scope) Free() {
	for n := s.head; n != nil; n = n.next {
		if n.name == s.selfName {
			continue
		}
		freeContents(n.val)
	}
	s.head = nil
}
