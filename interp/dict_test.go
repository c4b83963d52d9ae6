package interp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDictionarySetGetOrder(t *testing.T) {
	d := NewDictionary()
	d.Set("b", NewInt(2))
	d.Set("a", NewInt(1))
	d.Set("c", NewInt(3))

	if diff := cmp.Diff([]string{"b", "a", "c"}, d.Keys()); diff != "" {
		t.Errorf("Keys() insertion-order mismatch (-want +got):\n%s", diff)
	}

	v, ok := d.TryGet("a", true)
	if !ok || v.Int != 1 {
		t.Fatalf("TryGet(a) = %v, %v, want 1, true", v, ok)
	}
	if _, ok := d.TryGet("z", true); ok {
		t.Fatalf("TryGet(z) found a key that was never set")
	}
}

func TestDictionarySetReplacesInPlace(t *testing.T) {
	d := NewDictionary()
	d.Set("a", NewInt(1))
	d.Set("b", NewInt(2))
	d.Set("a", NewInt(99))

	if diff := cmp.Diff([]string{"a", "b"}, d.Keys()); diff != "" {
		t.Errorf("re-setting an existing key must not move it in iteration order (-want +got):\n%s", diff)
	}
	v, _ := d.TryGet("a", true)
	if v.Int != 99 {
		t.Fatalf("TryGet(a) after overwrite = %d, want 99", v.Int)
	}
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
}

func TestDictionaryDelete(t *testing.T) {
	d := NewDictionary()
	d.Set("a", NewInt(1))
	d.Set("b", NewInt(2))

	if !d.Delete("a") {
		t.Fatalf("Delete(a) = false, want true")
	}
	if d.Delete("a") {
		t.Fatalf("Delete(a) a second time should report false")
	}
	if _, ok := d.TryGet("a", true); ok {
		t.Fatalf("a should no longer be present")
	}
	if diff := cmp.Diff([]string{"b"}, d.Keys()); diff != "" {
		t.Errorf("Keys() after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestDictionarySetDeepCopiesValue(t *testing.T) {
	d := NewDictionary()
	arr := NewArray([]Value{NewInt(1)})
	d.Set("a", arr)

	arr.Arr.Elems[0] = NewInt(99)
	got, _ := d.TryGet("a", false)
	if got.Arr.Elems[0].Int != 1 {
		t.Fatalf("Set must deep-copy its value, but the dict's copy changed alongside the original")
	}
}

func TestDictionaryDeepCopyIsIndependent(t *testing.T) {
	d := NewDictionary()
	d.Set("a", NewArray([]Value{NewInt(1)}))

	clone := d.deepCopy()
	v, _ := clone.TryGet("a", false)
	v.Arr.Elems[0] = NewInt(99)

	orig, _ := d.TryGet("a", false)
	if orig.Arr.Elems[0].Int != 1 {
		t.Fatalf("mutating a deep-copied dict's contents affected the original")
	}
}

func TestDictionaryInspectRoundTrip(t *testing.T) {
	d := NewDictionary()
	d.Set("a", NewInt(1))
	d.Set("b", NewInt(2))
	if got, want := d.Inspect(), `{"a": 1, "b": 2}`; got != want {
		t.Errorf("Inspect() = %q, want %q", got, want)
	}
}

func TestDictionaryGrowthPreservesEntries(t *testing.T) {
	d := NewDictionary()
	const n = 50
	for i := 0; i < n; i++ {
		d.Set(string(rune('a'+i%26))+string(rune('0'+i/26)), NewInt(int64(i)))
	}
	if d.Len() != n {
		t.Fatalf("Len() = %d, want %d after growth", d.Len(), n)
	}
	for i := 0; i < n; i++ {
		key := string(rune('a'+i%26)) + string(rune('0'+i/26))
		v, ok := d.TryGet(key, true)
		if !ok || v.Int != int64(i) {
			t.Fatalf("TryGet(%q) = %v, %v, want %d, true", key, v, ok, i)
		}
	}
}
