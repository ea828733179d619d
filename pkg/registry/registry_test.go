package registry

import "testing"

func TestLookupMissing(t *testing.T) {
	Reset()
	_, ok := Lookup[func() int]("nope:sym")
	if ok {
		t.Fatalf("expected ok=false for missing ref")
	}
}

func TestRegisterAndLookup(t *testing.T) {
	Reset()
	Register("colony_test:double", func(n int) int { return n * 2 })

	fn, ok := Lookup[func(int) int]("colony_test:double")
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if got := fn(21); got != 42 {
		t.Fatalf("fn(21) = %d, want 42", got)
	}
}

func TestLookupWrongType(t *testing.T) {
	Reset()
	Register("colony_test:str", "not a function")

	_, ok := Lookup[func() int]("colony_test:str")
	if ok {
		t.Fatalf("expected ok=false for mismatched type")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Reset()
	Register("colony_test:dup", 1)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("colony_test:dup", 2)
}
