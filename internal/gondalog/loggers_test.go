package gondalog

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWritesToGivenWriters(t *testing.T) {
	var out, errW bytes.Buffer
	l := New(&out, &errW, true)
	l.Out.Print("hello")
	l.Err.Print("oops")

	if !strings.Contains(out.String(), "hello") {
		t.Errorf("got %q, want it to contain hello", out.String())
	}
	if !strings.Contains(errW.String(), "oops") {
		t.Errorf("got %q, want it to contain oops", errW.String())
	}
	if !l.Verbose {
		t.Errorf("expected Verbose to be carried through")
	}
}

func TestDiscardWritesNowhereAndNeverPanics(t *testing.T) {
	l := Discard()
	l.Out.Print("swallowed")
	l.Err.Print("swallowed")
	if l.Verbose {
		t.Errorf("expected Discard to default Verbose to false")
	}
}
