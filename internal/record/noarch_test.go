package record

import "testing"

func TestMaterializeNoarchPythonRewritesSitePackages(t *testing.T) {
	paths := []string{"site-packages/numpy/__init__.py"}
	out := MaterializeNoarchPython(paths, "lib/python3.11/site-packages", "bin")
	if len(out) != 1 {
		t.Fatalf("got %d rewrites, want 1", len(out))
	}
	if out[0].Target != "lib/python3.11/site-packages/numpy/__init__.py" {
		t.Errorf("got target %q", out[0].Target)
	}
	if out[0].IsEntryPoint {
		t.Errorf("site-packages entries are not entry points")
	}
}

func TestMaterializeNoarchPythonRewritesScripts(t *testing.T) {
	paths := []string{"python-scripts/f2py"}
	out := MaterializeNoarchPython(paths, "lib/site-packages", "bin")
	if out[0].Target != "bin/f2py" {
		t.Errorf("got target %q", out[0].Target)
	}
	if !out[0].IsEntryPoint {
		t.Errorf("expected a python-scripts entry to be flagged as an entry point")
	}
}

func TestMaterializeNoarchPythonLeavesOtherPathsUnchanged(t *testing.T) {
	paths := []string{"share/doc/numpy/README"}
	out := MaterializeNoarchPython(paths, "lib/site-packages", "bin")
	if out[0].Target != paths[0] {
		t.Errorf("got target %q, want unchanged %q", out[0].Target, paths[0])
	}
}

func TestPythonSatisfiesEmptyConstraintAlwaysTrue(t *testing.T) {
	ok, err := PythonSatisfies("", "3.11.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Errorf("expected an empty requires_python to be satisfied by any interpreter")
	}
}

func TestPythonSatisfiesRange(t *testing.T) {
	ok, err := PythonSatisfies(">=3.8,<3.12", "3.11.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Errorf("expected 3.11.4 to satisfy >=3.8,<3.12")
	}
	ok, err = PythonSatisfies(">=3.8,<3.12", "3.12.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected 3.12.0 not to satisfy >=3.8,<3.12")
	}
}

func TestNormalizeRequiresPythonRejectsGarbage(t *testing.T) {
	if _, err := NormalizeRequiresPython("not a constraint!!"); err == nil {
		t.Errorf("expected an error for a malformed requires_python string")
	}
}
