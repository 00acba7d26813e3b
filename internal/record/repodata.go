package record

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/gondaerrors"
	"github.com/gonda-project/gonda/internal/version"
)

// repodataFile mirrors repodata.json's on-disk shape: repodata_version,
// info.subdir, and two maps from filename to record fields (legacy
// tar.bz2 entries under "packages", .conda entries under "packages.conda").
type repodataFile struct {
	RepodataVersion int `json:"repodata_version"`
	Info            struct {
		Subdir string `json:"subdir"`
	} `json:"info"`
	Packages      map[string]repodataEntry `json:"packages"`
	PackagesConda map[string]repodataEntry `json:"packages.conda"`
}

type repodataEntry struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Build         string          `json:"build"`
	BuildNumber   int             `json:"build_number"`
	Depends       []string        `json:"depends"`
	Constrains    []string        `json:"constrains,omitempty"`
	Features      json.RawMessage `json:"features,omitempty"`
	TrackFeatures json.RawMessage `json:"track_features,omitempty"`
	MD5           string          `json:"md5"`
	SHA256        string          `json:"sha256,omitempty"`
	Size          int64           `json:"size"`
	Timestamp     int64           `json:"timestamp,omitempty"`
	Noarch        json.RawMessage `json:"noarch,omitempty"`
	License       string          `json:"license,omitempty"`
	Platform      string          `json:"platform,omitempty"`
}

// LoadSubdir parses one subdir's repodata.json into PackageRecords.
// Duplicates sharing a primary key collapse to the first one seen.
// Unknown fields are captured per-entry into Extra.
func LoadSubdir(channel, subdir string, data []byte) ([]*PackageRecord, error) {
	var raw repodataFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &gondaerrors.BadRepodata{Channel: channel, Subdir: subdir, Cause: err}
	}

	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return nil, &gondaerrors.BadRepodata{Channel: channel, Subdir: subdir, Cause: err}
	}

	seen := make(map[string]bool)
	var out []*PackageRecord

	appendEntries := func(entries map[string]repodataEntry, extraKey string, isConda bool) error {
		var rawEntries map[string]json.RawMessage
		if blob, ok := rawMap[extraKey]; ok {
			_ = json.Unmarshal(blob, &rawEntries)
		}
		for fn, e := range entries {
			rec, err := toRecord(channel, subdir, e, isConda)
			if err != nil {
				return errors.Wrapf(err, "repodata entry %s", fn)
			}
			key := rec.PrimaryKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			if raw, ok := rawEntries[fn]; ok {
				for k, v := range extraFields(raw) {
					if rec.Extra == nil {
						rec.Extra = make(map[string]json.RawMessage)
					}
					rec.Extra[k] = v
				}
			}
			out = append(out, rec)
		}
		return nil
	}

	if err := appendEntries(raw.Packages, "packages", false); err != nil {
		return nil, &gondaerrors.BadRepodata{Channel: channel, Subdir: subdir, Cause: err}
	}
	if err := appendEntries(raw.PackagesConda, "packages.conda", true); err != nil {
		return nil, &gondaerrors.BadRepodata{Channel: channel, Subdir: subdir, Cause: err}
	}

	return out, nil
}

var knownFields = map[string]bool{
	"name": true, "version": true, "build": true, "build_number": true,
	"depends": true, "constrains": true, "features": true, "track_features": true,
	"md5": true, "sha256": true, "size": true, "timestamp": true, "noarch": true,
	"license": true, "platform": true,
}

func extraFields(raw json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	extra := make(map[string]json.RawMessage)
	for k, v := range m {
		if !knownFields[k] {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func toRecord(channel, subdir string, e repodataEntry, isConda bool) (*PackageRecord, error) {
	v, err := version.Parse(e.Version)
	if err != nil {
		return nil, err
	}
	rec := &PackageRecord{
		Channel:     channel,
		Subdir:      subdir,
		Name:        e.Name,
		Version:     v,
		Build:       e.Build,
		BuildNumber: e.BuildNumber,
		Depends:     e.Depends,
		Constrains:  e.Constrains,
		License:     e.License,
		Size:        e.Size,
		MD5:         e.MD5,
		SHA256:      e.SHA256,
		Timestamp:   e.Timestamp,
		Platform:    e.Platform,
	}
	if len(e.Features) > 0 {
		_ = json.Unmarshal(e.Features, &rec.Features)
	}
	if len(e.TrackFeatures) > 0 {
		_ = json.Unmarshal(e.TrackFeatures, &rec.TrackFeature)
	}
	if len(e.Noarch) > 0 {
		var s string
		if json.Unmarshal(e.Noarch, &s) == nil {
			rec.NoarchKind = Noarch(s)
		} else {
			var b bool
			if json.Unmarshal(e.Noarch, &b) == nil && b {
				rec.NoarchKind = NoarchGeneric
			}
		}
	}
	if isConda {
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra["__conda_format"] = json.RawMessage(`true`)
	}
	return rec, nil
}

// ApplyPatch merges a smaller "patch" record set over a "current" one,
// the way repodata's two-phase load works: patches override by primary
// key.
func ApplyPatch(current, patch []*PackageRecord) []*PackageRecord {
	byKey := make(map[string]*PackageRecord, len(current))
	order := make([]string, 0, len(current))
	for _, r := range current {
		k := r.PrimaryKey()
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = r
	}
	for _, r := range patch {
		k := r.PrimaryKey()
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = r
	}
	out := make([]*PackageRecord, len(order))
	for i, k := range order {
		out[i] = byKey[k]
	}
	return out
}
