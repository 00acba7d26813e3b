// Package gondaerrors defines the structured error taxonomy shared by every
// core package. Callers (CLI, library users) use errors.As to recover a
// specific kind and decide how to render it; nothing in the core panics to
// signal a domain failure.
package gondaerrors

import "fmt"

// BadVersion is returned when a version string does not conform to the
// conda version grammar.
type BadVersion struct {
	Input string
	Cause error
}

func (e *BadVersion) Error() string {
	return fmt.Sprintf("bad version %q: %v", e.Input, e.Cause)
}

func (e *BadVersion) Unwrap() error { return e.Cause }

// BadSpec is returned when a MatchSpec string cannot be parsed.
type BadSpec struct {
	Input string
	Cause error
}

func (e *BadSpec) Error() string {
	return fmt.Sprintf("bad match spec %q: %v", e.Input, e.Cause)
}

func (e *BadSpec) Unwrap() error { return e.Cause }

// BadRepodata is returned when a channel's repodata.json cannot be parsed.
type BadRepodata struct {
	Channel string
	Subdir  string
	Cause   error
}

func (e *BadRepodata) Error() string {
	return fmt.Sprintf("bad repodata for %s/%s: %v", e.Channel, e.Subdir, e.Cause)
}

func (e *BadRepodata) Unwrap() error { return e.Cause }

// BadArchive is returned when a package archive cannot be opened or is
// structurally invalid.
type BadArchive struct {
	Path  string
	Cause error
}

func (e *BadArchive) Error() string {
	return fmt.Sprintf("bad archive %s: %v", e.Path, e.Cause)
}

func (e *BadArchive) Unwrap() error { return e.Cause }

// PackageNotFoundError indicates a user-requested name has no candidates
// in the working index at all.
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package not found: %s", e.Name)
}

// NothingProvidesError indicates a dependency has no candidate record that
// could satisfy it in the reduced working set.
type NothingProvidesError struct {
	Dependent string
	Spec      string
}

func (e *NothingProvidesError) Error() string {
	return fmt.Sprintf("nothing provides %q (required by %s)", e.Spec, e.Dependent)
}

// ConflictNode is one link in the human-readable conflict chain attached to
// an UnsatisfiableError: "which requested spec -> which dependency chain ->
// which conflict".
type ConflictNode struct {
	// Description is a short human-readable statement of this link, e.g.
	// `requested "numpy>=1.20"` or `numpy 1.22.0 depends on "python>=3.9"`.
	Description string
	Children    []ConflictNode
}

// UnsatisfiableError carries the full conflict tree the solver produced
// when no assignment could satisfy every clause. It is a first-class
// value, never an exception payload (see DESIGN NOTES).
type UnsatisfiableError struct {
	Requested []string
	Tree      []ConflictNode
	Rejected  []string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("could not satisfy requested specs %v: %d conflict branch(es), %d record(s) rejected",
		e.Requested, len(e.Tree), len(e.Rejected))
}

// SolverTimeout is returned when the solver's wall-clock cap elapses
// before a solution (or proof of unsatisfiability) was found.
type SolverTimeout struct {
	Elapsed string
}

func (e *SolverTimeout) Error() string {
	return fmt.Sprintf("solver timed out after %s", e.Elapsed)
}

// PrefixLocked is returned when a transaction cannot acquire the per-prefix
// lock file.
type PrefixLocked struct {
	Prefix string
	Cause  error
}

func (e *PrefixLocked) Error() string {
	return fmt.Sprintf("prefix %s is locked: %v", e.Prefix, e.Cause)
}

func (e *PrefixLocked) Unwrap() error { return e.Cause }

// CorruptPrefix is returned when a prefix's PrefixRecord invariants are
// violated. BadRecord names the specific file that broke the invariant, so
// the loader never silently drops a record.
type CorruptPrefix struct {
	Prefix    string
	BadRecord string
	Reason    string
}

func (e *CorruptPrefix) Error() string {
	return fmt.Sprintf("corrupt prefix %s: record %s: %s", e.Prefix, e.BadRecord, e.Reason)
}

// PrefixTooLong is returned during prefix-placeholder rewriting of a binary
// file when the replacement prefix is longer than the placeholder it
// replaces.
type PrefixTooLong struct {
	File        string
	Placeholder int
	Replacement int
}

func (e *PrefixTooLong) Error() string {
	return fmt.Sprintf("replacement prefix (%d bytes) is longer than placeholder (%d bytes) in %s",
		e.Replacement, e.Placeholder, e.File)
}

// LinkFailed wraps a failure while materializing one record's files.
type LinkFailed struct {
	Package string
	File    string
	Cause   error
}

func (e *LinkFailed) Error() string {
	if e.File != "" {
		return fmt.Sprintf("link failed for %s (%s): %v", e.Package, e.File, e.Cause)
	}
	return fmt.Sprintf("link failed for %s: %v", e.Package, e.Cause)
}

func (e *LinkFailed) Unwrap() error { return e.Cause }

// CorruptDownload is returned when a fetched archive's checksum does not
// match the record's declared hash. The cache deletes the file before
// returning this error.
type CorruptDownload struct {
	Path     string
	Expected string
	Actual   string
}

func (e *CorruptDownload) Error() string {
	return fmt.Sprintf("corrupt download %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// ChecksumMismatch is a narrower integrity failure used outside the
// download path (e.g. verifying an already-extracted file against
// paths.json).
type ChecksumMismatch struct {
	File     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.File, e.Expected, e.Actual)
}

// Cancelled is returned when a cancellation token fires mid-operation.
type Cancelled struct {
	Stage string
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("cancelled during %s", e.Stage)
}

// PartialTransaction is returned when a rollback itself did not fully
// succeed; Indeterminate lists the packages left in an indeterminate state
// so the caller knows what --force-reinstall must cover.
type PartialTransaction struct {
	Indeterminate []string
	Cause         error
}

func (e *PartialTransaction) Error() string {
	return fmt.Sprintf("partial transaction, indeterminate packages %v: %v", e.Indeterminate, e.Cause)
}

func (e *PartialTransaction) Unwrap() error { return e.Cause }
