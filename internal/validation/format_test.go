package validation

import (
	"errors"
	"testing"
)

type color string

var colors = []color{"red", "green", "blue"}

func TestFormatValidValues(t *testing.T) {
	if got := FormatValidValues(colors); got != "red, green, blue" {
		t.Fatalf("unexpected list %q", got)
	}
	if got := FormatValidValues([]color{}); got != "" {
		t.Fatalf("expected empty list, got %q", got)
	}
}

func TestFormatInvalidValueError(t *testing.T) {
	base := errors.New("invalid color")
	err := FormatInvalidValueError(base, color("mauve"), colors)
	if !errors.Is(err, base) {
		t.Fatalf("expected error to wrap %v", base)
	}
	want := `invalid color: "mauve" (valid: red, green, blue)`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
