package modelserver

import (
	"reflect"
	"testing"
)

func TestOutputTail(t *testing.T) {
	tail := newOutputTail(3)
	if got := tail.lines(); len(got) != 0 {
		t.Fatalf("new tail has lines: %v", got)
	}

	tail.add("a")
	tail.add("b")
	if got := tail.lines(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("partial lines() = %v", got)
	}

	tail.add("c")
	tail.add("d")
	tail.add("e")
	want := []string{"... 2 earlier lines omitted", "c", "d", "e"}
	if got := tail.lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("evicted lines() = %v, want %v", got, want)
	}
}

func TestOutputTailMinimumSize(t *testing.T) {
	tail := newOutputTail(0)
	tail.add("x")
	tail.add("y")
	want := []string{"... 1 earlier lines omitted", "y"}
	if got := tail.lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines() = %v, want %v", got, want)
	}
}
