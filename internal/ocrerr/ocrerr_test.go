package ocrerr

import (
	"errors"
	"testing"
)

func TestErrorsIsMatchesKindRegardlessOfCause(t *testing.T) {
	err := New(Input, "decode.image", errors.New("bad header"))

	if !errors.Is(err, Input) {
		t.Fatalf("errors.Is(err, Input) = false, want true")
	}
	if errors.Is(err, Weight) {
		t.Fatalf("errors.Is(err, Weight) = true, want false")
	}
}

func TestErrorMessageIncludesOpKindAndCause(t *testing.T) {
	cause := errors.New("bad header")
	err := New(Input, "decode.image", cause)

	got := err.Error()
	want := "decode.image: input: bad header"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(Resource, "backend.init", nil)

	got := err.Error()
	want := "backend.init: resource"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(Arithmetic, "generate.sample", cause)

	if errors.Unwrap(err) != cause {
		t.Fatalf("Unwrap() did not return the wrapped cause")
	}
}

func TestKindStringCoversAllKinds(t *testing.T) {
	cases := map[Kind]string{
		Configuration: "configuration",
		Weight:        "weight",
		Input:         "input",
		Resource:      "resource",
		Arithmetic:    "arithmetic",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
