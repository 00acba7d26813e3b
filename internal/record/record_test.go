package record

import (
	"testing"

	"github.com/gonda-project/gonda/internal/version"
)

func mkRecord(channel string, v string, buildNumber int, build string, timestamp int64) *PackageRecord {
	return &PackageRecord{
		Channel:     channel,
		Subdir:      "linux-64",
		Name:        "numpy",
		Version:     version.MustParse(v),
		Build:       build,
		BuildNumber: buildNumber,
		Timestamp:   timestamp,
	}
}

func TestPrimaryKeyUniquePerField(t *testing.T) {
	base := mkRecord("conda-forge", "1.0", 0, "py310_0", 100)
	variants := []*PackageRecord{
		mkRecord("defaults", "1.0", 0, "py310_0", 100),
		mkRecord("conda-forge", "1.1", 0, "py310_0", 100),
		mkRecord("conda-forge", "1.0", 1, "py310_0", 100),
		mkRecord("conda-forge", "1.0", 0, "py39_0", 100),
	}
	for _, v := range variants {
		if base.PrimaryKey() == v.PrimaryKey() {
			t.Errorf("expected distinct primary keys for %+v and %+v", base, v)
		}
	}
	same := mkRecord("conda-forge", "1.0", 0, "py310_0", 999)
	if base.PrimaryKey() != same.PrimaryKey() {
		t.Errorf("expected timestamp to not affect primary key identity")
	}
}

func TestHashPrefersSHA256(t *testing.T) {
	r := &PackageRecord{MD5: "abc", SHA256: "def"}
	algo, digest := r.Hash()
	if algo != "sha256" || digest != "def" {
		t.Errorf("got (%q, %q), want (sha256, def)", algo, digest)
	}
}

func TestHashFallsBackToMD5(t *testing.T) {
	r := &PackageRecord{MD5: "abc"}
	algo, digest := r.Hash()
	if algo != "md5" || digest != "abc" {
		t.Errorf("got (%q, %q), want (md5, abc)", algo, digest)
	}
}

func TestFnUsesTarBz2ByDefault(t *testing.T) {
	r := mkRecord("conda-forge", "1.22.0", 0, "py310h1234_0", 0)
	if got, want := r.Fn(), "numpy-1.22.0-py310h1234_0.tar.bz2"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestByQueryOrderVersionDescending(t *testing.T) {
	recs := []*PackageRecord{
		mkRecord("conda-forge", "1.0", 0, "py310_0", 0),
		mkRecord("conda-forge", "2.0", 0, "py310_0", 0),
		mkRecord("conda-forge", "1.5", 0, "py310_0", 0),
	}
	ByQueryOrder(recs, nil)
	want := []string{"2.0", "1.5", "1.0"}
	for i, w := range want {
		if recs[i].Version.String() != w {
			t.Errorf("position %d: got %s, want %s", i, recs[i].Version, w)
		}
	}
}

func TestByQueryOrderChannelPriorityFirst(t *testing.T) {
	recs := []*PackageRecord{
		mkRecord("slow-channel", "9.0", 0, "0", 0),
		mkRecord("fast-channel", "1.0", 0, "0", 0),
	}
	priority := map[string]int{"fast-channel": 0, "slow-channel": 5}
	ByQueryOrder(recs, priority)
	if recs[0].Channel != "fast-channel" {
		t.Errorf("expected higher-priority channel first regardless of version, got %s", recs[0].Channel)
	}
}

func TestByQueryOrderBuildNumberThenTimestamp(t *testing.T) {
	recs := []*PackageRecord{
		mkRecord("conda-forge", "1.0", 0, "0", 100),
		mkRecord("conda-forge", "1.0", 2, "0", 50),
		mkRecord("conda-forge", "1.0", 1, "0", 999),
	}
	ByQueryOrder(recs, nil)
	want := []int{2, 1, 0}
	for i, w := range want {
		if recs[i].BuildNumber != w {
			t.Errorf("position %d: got build number %d, want %d", i, recs[i].BuildNumber, w)
		}
	}

	tied := []*PackageRecord{
		mkRecord("conda-forge", "1.0", 1, "0", 100),
		mkRecord("conda-forge", "1.0", 1, "0", 999),
	}
	ByQueryOrder(tied, nil)
	if tied[0].Timestamp != 999 {
		t.Errorf("equal build numbers: got timestamp %d first, want 999", tied[0].Timestamp)
	}
}
