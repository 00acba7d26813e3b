package record

import "testing"

const sampleRepodata = `{
  "repodata_version": 1,
  "info": {"subdir": "linux-64"},
  "packages": {
    "numpy-1.22.0-py310h1234_0.tar.bz2": {
      "name": "numpy",
      "version": "1.22.0",
      "build": "py310h1234_0",
      "build_number": 0,
      "depends": ["python >=3.10,<3.11"],
      "md5": "aaaa",
      "size": 123,
      "timestamp": 1000
    }
  },
  "packages.conda": {
    "numpy-1.23.0-py310h5678_0.conda": {
      "name": "numpy",
      "version": "1.23.0",
      "build": "py310h5678_0",
      "build_number": 0,
      "depends": ["python >=3.10,<3.11"],
      "sha256": "bbbb",
      "size": 456,
      "timestamp": 2000,
      "license": "BSD-3-Clause"
    }
  }
}`

func TestLoadSubdirParsesBothPackageMaps(t *testing.T) {
	recs, err := LoadSubdir("conda-forge", "linux-64", []byte(sampleRepodata))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	byVersion := map[string]*PackageRecord{}
	for _, r := range recs {
		byVersion[r.Version.String()] = r
	}
	old, ok := byVersion["1.22.0"]
	if !ok {
		t.Fatalf("missing 1.22.0 record")
	}
	if old.MD5 != "aaaa" {
		t.Errorf("got md5 %q", old.MD5)
	}
	neu, ok := byVersion["1.23.0"]
	if !ok {
		t.Fatalf("missing 1.23.0 record")
	}
	if neu.SHA256 != "bbbb" {
		t.Errorf("got sha256 %q", neu.SHA256)
	}
	if neu.License != "BSD-3-Clause" {
		t.Errorf("got license %q", neu.License)
	}
}

func TestLoadSubdirCondaFormatAffectsFn(t *testing.T) {
	recs, err := LoadSubdir("conda-forge", "linux-64", []byte(sampleRepodata))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range recs {
		if r.Version.String() == "1.23.0" {
			if got, want := r.Fn(), "numpy-1.23.0-py310h5678_0.conda"; got != want {
				t.Errorf("got fn %q, want %q", got, want)
			}
		}
		if r.Version.String() == "1.22.0" {
			if got, want := r.Fn(), "numpy-1.22.0-py310h1234_0.tar.bz2"; got != want {
				t.Errorf("got fn %q, want %q", got, want)
			}
		}
	}
}

func TestLoadSubdirBadJSON(t *testing.T) {
	if _, err := LoadSubdir("conda-forge", "linux-64", []byte("not json")); err == nil {
		t.Errorf("expected an error for malformed repodata")
	}
}

func TestApplyPatchOverridesByPrimaryKey(t *testing.T) {
	current := []*PackageRecord{
		mkRecord("conda-forge", "1.0", 0, "0", 100),
	}
	patched := mkRecord("conda-forge", "1.0", 0, "0", 999)
	patched.MD5 = "patched"
	patch := []*PackageRecord{patched}

	merged := ApplyPatch(current, patch)
	if len(merged) != 1 {
		t.Fatalf("got %d records, want 1", len(merged))
	}
	if merged[0].MD5 != "patched" {
		t.Errorf("expected patch to override current record")
	}
}

func TestApplyPatchAddsNewRecords(t *testing.T) {
	current := []*PackageRecord{mkRecord("conda-forge", "1.0", 0, "0", 100)}
	patch := []*PackageRecord{mkRecord("conda-forge", "2.0", 0, "0", 200)}
	merged := ApplyPatch(current, patch)
	if len(merged) != 2 {
		t.Fatalf("got %d records, want 2", len(merged))
	}
}
