package utils

import (
	"reflect"
	"testing"
)

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  abc-01 "); got != "ABC-01" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeCode(""); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestUniqueStrings_PreservesOrder(t *testing.T) {
	got := UniqueStrings([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := SplitAndTrim(" a, b ,, c ")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if SplitAndTrim("  ") != nil {
		t.Fatal("expected nil for blank input")
	}
}

func TestDecimalFromString(t *testing.T) {
	if got := DecimalFromString(" 1.50 "); got.String() != "1.5" {
		t.Fatalf("got %s", got)
	}
	if got := DecimalFromString("not a number"); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}
