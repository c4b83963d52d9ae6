package interp

// Param describes one formal parameter: its name and, for parameters
// with a default, the default expression's value, evaluated once at
// definition time.
type Param struct {
	Name       string
	HasDefault bool
	Default    Value
}

// Function is a user-defined callable. A Function is created once per
// `funct`/`async funct` declaration and stored in a scope; every deep
// copy duplicates the parameter vector, default values, name, and a
// source-text slice. Only a copy whose IsSourceOwner is true owns that
// slice.
type Function struct {
	Name          string
	Params        []Param
	IsAsync       bool
	IsMethod      bool // true when declared inside a blueprint body
	DefiningClass *Blueprint

	// DefScope is the lexical closure: the scope active where the
	// function was declared. Call machinery enters a new scope whose
	// outer is this one.
	DefScope *Scope

	// SourceText is the function body's own source slice; BodyStart
	// and BodyEnd are lexer-state snapshots bracketing it. The Go
	// runtime owns the string's memory either way; IsSourceOwner
	// tracks which copy is logically responsible for the slice so copy
	// semantics stay uniform with the other heap values.
	SourceText    string
	IsSourceOwner bool
	BodyStart     LexerState
	BodyEnd       LexerState
}

// deepCopy duplicates the parameter vector, name, and source text,
// always producing a copy that owns its own source-text slice.
func (f *Function) deepCopy() *Function {
	params := make([]Param, len(f.Params))
	copy(params, f.Params)
	nf := &Function{
		Name:          f.Name,
		Params:        params,
		IsAsync:       f.IsAsync,
		IsMethod:      f.IsMethod,
		DefiningClass: f.DefiningClass,
		DefScope:      f.DefScope,
		SourceText:    f.SourceText,
		IsSourceOwner: true,
		BodyStart:     f.BodyStart,
		BodyEnd:       f.BodyEnd,
	}
	return nf
}
