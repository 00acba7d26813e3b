// Package history implements the append-only transaction ledger conda
// writes to conda-meta/history: one entry per transaction recording which
// specs were requested and the net install/remove/update delta, plus an
// input-hash mechanism for detecting whether an environment's package set
// still matches what its specs would resolve to today.
// The reproducibility hash follows the same idea as a dependency lock
// file's input hash, adapted from JSON to conda's traditional
// line-oriented history format.
package history

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/fsutil"
)

// FileName is the history file's name beneath conda-meta/.
const FileName = "history"

// Action is one line recorded for a package within an entry: a verb plus
// the "name-version-build" token, matching the textual form conda's
// history file has always used.
type Action struct {
	Verb string // "install", "remove", "update", "downgrade"
	Spec string // "name-version-build" or a requested match spec text
}

// Entry is one transaction's worth of history: a timestamp header, the
// specs explicitly requested by the user for this transaction, and the
// resulting package actions.
type Entry struct {
	Timestamp time.Time
	Comment   string   // the "# cmd: ..." line, if any
	Specs     []string // "# update specs: ..." — requested match specs
	Actions   []Action
}

// History is the parsed conda-meta/history ledger for one prefix.
type History struct {
	Prefix  string
	Entries []Entry
}

// Load reads and parses prefix's conda-meta/history file. A missing file
// is not an error: it means the prefix has no recorded transactions yet.
func Load(prefix string) (*History, error) {
	h := &History{Prefix: prefix}
	path := filepath.Join(prefix, "conda-meta", FileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var cur *Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "==> ") && strings.HasSuffix(line, " <=="):
			if cur != nil {
				h.Entries = append(h.Entries, *cur)
			}
			ts, _ := time.Parse("2006-01-02 15:04:05", strings.TrimSuffix(strings.TrimPrefix(line, "==> "), " <=="))
			cur = &Entry{Timestamp: ts}
		case strings.HasPrefix(line, "# cmd: "):
			if cur != nil {
				cur.Comment = strings.TrimPrefix(line, "# cmd: ")
			}
		case strings.HasPrefix(line, "# update specs: "):
			if cur != nil {
				cur.Specs = splitSpecs(strings.TrimPrefix(line, "# update specs: "))
			}
		case strings.HasPrefix(line, "+"):
			if cur != nil {
				cur.Actions = append(cur.Actions, Action{Verb: "install", Spec: line[1:]})
			}
		case strings.HasPrefix(line, "-"):
			if cur != nil {
				cur.Actions = append(cur.Actions, Action{Verb: "remove", Spec: line[1:]})
			}
		}
	}
	if cur != nil {
		h.Entries = append(h.Entries, *cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return h, nil
}

func splitSpecs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Append adds one entry to the ledger and atomically rewrites the file.
func (h *History) Append(e Entry) error {
	h.Entries = append(h.Entries, e)
	return h.write()
}

func (h *History) write() error {
	var b strings.Builder
	for _, e := range h.Entries {
		fmt.Fprintf(&b, "==> %s <==\n", e.Timestamp.Format("2006-01-02 15:04:05"))
		if e.Comment != "" {
			fmt.Fprintf(&b, "# cmd: %s\n", e.Comment)
		}
		if len(e.Specs) > 0 {
			fmt.Fprintf(&b, "# update specs: %s\n", strings.Join(e.Specs, ","))
		}
		for _, a := range e.Actions {
			sign := "+"
			if a.Verb == "remove" {
				sign = "-"
			}
			fmt.Fprintf(&b, "%s%s\n", sign, a.Spec)
		}
	}
	path := filepath.Join(h.Prefix, "conda-meta", FileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	return fsutil.AtomicWriteFile(path, []byte(b.String()), 0o644)
}

// RequestedSpecs reduces the ledger to the current set of explicitly
// requested match specs, in the sense conda uses for `conda list --revisions`
// and for reproducibility checking: later entries override earlier ones
// naming the same package.
func (h *History) RequestedSpecs() []string {
	byName := make(map[string]string)
	var order []string
	for _, e := range h.Entries {
		for _, s := range e.Specs {
			name := specName(s)
			if _, ok := byName[name]; !ok {
				order = append(order, name)
			}
			byName[name] = s
		}
	}
	sort.Strings(order)
	out := make([]string, len(order))
	for i, n := range order {
		out[i] = byName[n]
	}
	return out
}

func specName(s string) string {
	for i, r := range s {
		if r == '=' || r == '<' || r == '>' || r == '!' || r == ' ' || r == '[' {
			return s[:i]
		}
	}
	return s
}

// InputHash returns a digest over the current requested-specs set (the
// channel configuration is not part of it): two environments with the
// same InputHash are expected to resolve to the same package set, so a
// mismatch after an external
// edit is the signal that re-solving (or flagging a doctor "pinned"
// failure) is warranted. Computed as sha256 over the canonical, sorted
// requested-specs text, newline-joined.
func (h *History) InputHash() []byte {
	specs := h.RequestedSpecs()
	sorted := append([]string(nil), specs...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return sum[:]
}
