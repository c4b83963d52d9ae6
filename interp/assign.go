package interp

// ReleaseIfFresh frees v's contents when isFresh is true, the external
// statement executor's equivalent of the evaluator's own freshness
// bookkeeping for values it discards after use, e.g. the subject of a
// `for` loop or an expression statement whose value nobody binds.
func ReleaseIfFresh(v Value, isFresh bool) {
	if isFresh {
		freeContents(v)
	}
}

// AssignIndexed implements `target[index] = value` for arrays and
// dicts, the lvalue counterpart of the evaluator's indexing, applied
// by the external statement executor.
func (interp *Interpreter) AssignIndexed(target, index, value Value, line, col int) *ScriptException {
	switch target.Kind {
	case KindArray:
		if index.Kind != KindInt {
			return NewRuntimeException(line, col, "array index must be an Int")
		}
		elems := target.Arr.Elems
		i := normalizeIndex(index.Int, len(elems))
		if i < 0 || i >= len(elems) {
			return NewRuntimeException(line, col, "array index out of range")
		}
		freeContents(elems[i])
		elems[i] = deepCopy(value)
		return nil
	case KindDict:
		if index.Kind != KindString {
			return NewRuntimeException(line, col, "dict key must be a string")
		}
		target.Dict.Set(index.Str, value)
		return nil
	default:
		return NewRuntimeException(line, col, "value of type %s does not support indexed assignment", target.Kind)
	}
}

// AssignAttr implements `target.attr = value` for objects; instance
// attributes live in the object's own isolated scope.
func (interp *Interpreter) AssignAttr(target Value, name string, value Value, line, col int) *ScriptException {
	if target.Kind != KindObject {
		return NewRuntimeException(line, col, "value of type %s does not support attribute assignment", target.Kind)
	}
	target.Obj.Attributes.Set(name, value)
	return nil
}
