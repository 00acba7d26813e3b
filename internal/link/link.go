// Package link executes a planner.Plan against a real prefix: the phased
// verify -> pre-unlink -> unlink -> link -> write-records -> post-link ->
// history sequence conda's own linker follows, running pre/post-link
// scripts as subprocesses and verifying the prefix state immediately
// before mutating it. Cancellation composes the caller's context with an
// internal token using sdboyer/constext, which joins two contexts into
// one Done() channel.
package link

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"

	"github.com/gonda-project/gonda/internal/fsutil"
	"github.com/gonda-project/gonda/internal/gondaerrors"
	"github.com/gonda-project/gonda/internal/gondalog"
	"github.com/gonda-project/gonda/internal/history"
	"github.com/gonda-project/gonda/internal/planner"
	"github.com/gonda-project/gonda/internal/pkgcache"
	"github.com/gonda-project/gonda/internal/prefixdata"
	"github.com/gonda-project/gonda/internal/record"
)

// Engine executes plans against one prefix using one shared cache.
type Engine struct {
	Prefix string
	Cache  *pkgcache.Cache
	Loggers gondalog.Loggers
	AllowSoftlink bool
}

// Options tunes one Execute call.
type Options struct {
	DryRun         bool
	RunScripts     bool
	RequestedSpecs []string // recorded into the history entry, verbatim
	Comment        string
}

// completedLink is one already-linked package, kept so Execute can roll
// back by removing its files and its record again if a later step fails.
// A failed post-link script triggers this rollback.
type completedLink struct {
	rec   *record.PackageRecord
	pr    *prefixdata.PrefixRecord
	files []prefixdata.PrefixFile
}

// Execute runs plan to completion. If a link step or a post-link script
// fails, it rolls back every package it has linked so far (its files, its
// PrefixData entry and its conda-meta record); packages it has already
// unlinked stay unlinked.
func (e *Engine) Execute(ctx context.Context, plan *planner.Plan, pd *prefixdata.PrefixData, opts Options) error {
	if opts.DryRun {
		return nil
	}

	internalCtx, internalCancel := context.WithCancel(context.Background())
	defer internalCancel()
	joined, joinCancel := constext.Cons(ctx, internalCtx)
	defer joinCancel()

	if err := e.verify(plan); err != nil {
		return err
	}

	if opts.RunScripts {
		for _, a := range plan.PreUnlinkOrder {
			if err := joined.Err(); err != nil {
				return &gondaerrors.Cancelled{Stage: "pre-unlink"}
			}
			if err := e.runScript(joined, a.Prefix, "pre-unlink"); err != nil {
				e.Loggers.Err.Printf("pre-unlink script failed for %s: %v (continuing)", a.Name, err)
			}
		}
	}

	for _, a := range plan.UnlinkOrder {
		if err := joined.Err(); err != nil {
			return &gondaerrors.Cancelled{Stage: "unlink"}
		}
		if err := e.unlink(a.Prefix); err != nil {
			return errors.Wrapf(err, "unlinking %s", a.Name)
		}
		pd.Remove(a.Name)
		if err := prefixdata.RemoveRecordFile(e.Prefix, a.Prefix); err != nil {
			return errors.Wrapf(err, "removing conda-meta record for %s", a.Name)
		}
	}

	var completed []completedLink
	rollback := func() {
		for i := len(completed) - 1; i >= 0; i-- {
			e.unlinkFiles(completed[i].files)
			pd.Remove(completed[i].pr.Name)
			_ = prefixdata.RemoveRecordFile(e.Prefix, completed[i].pr)
		}
	}

	for _, a := range plan.LinkOrder {
		if err := joined.Err(); err != nil {
			rollback()
			return &gondaerrors.Cancelled{Stage: "link"}
		}
		pr, err := e.linkOne(joined, a.Record, pd)
		if err != nil {
			rollback()
			return errors.Wrapf(err, "linking %s", a.Name)
		}
		if err := pd.Insert(pr); err != nil {
			rollback()
			return err
		}
		if err := prefixdata.WriteRecord(e.Prefix, pr); err != nil {
			rollback()
			return errors.Wrapf(err, "writing conda-meta record for %s", a.Name)
		}
		completed = append(completed, completedLink{rec: a.Record, pr: pr, files: pr.Files})
	}

	if opts.RunScripts {
		for _, a := range plan.PostLinkOrder {
			pr := pd.Get(a.Name)
			if err := e.runScriptPost(joined, pr); err != nil {
				rollback()
				return &gondaerrors.LinkFailed{Package: a.Name, Cause: errors.Wrap(err, "post-link script failed")}
			}
		}
	}

	h, err := history.Load(e.Prefix)
	if err != nil {
		return err
	}
	entry := history.Entry{Timestamp: deterministicNow(), Comment: opts.Comment, Specs: opts.RequestedSpecs}
	for _, a := range plan.UnlinkOrder {
		entry.Actions = append(entry.Actions, history.Action{Verb: "remove", Spec: a.Name + "-" + a.Prefix.Version.String() + "-" + a.Prefix.Build})
	}
	for _, a := range plan.LinkOrder {
		entry.Actions = append(entry.Actions, history.Action{Verb: "install", Spec: a.Name + "-" + a.Record.Version.String() + "-" + a.Record.Build})
	}
	return h.Append(entry)
}

// deterministicNow returns the wall-clock time Execute stamps the history
// entry with. Options carries no timestamp, so every Execute call uses
// time.Now() here.
func deterministicNow() time.Time { return time.Now() }

// verify looks over the plan against the live prefix immediately before
// mutating it. It logs a warning for every file of an unlink target that
// is already missing and never returns an error; link targets are not
// checked.
func (e *Engine) verify(plan *planner.Plan) error {
	for _, a := range plan.UnlinkOrder {
		for _, f := range a.Prefix.FileList() {
			full := filepath.Join(e.Prefix, f)
			if !fsutil.Exists(full) {
				e.Loggers.Err.Printf("warning: %s missing for package %s, unlink will skip it", f, a.Name)
			}
		}
	}
	return nil
}

func (e *Engine) unlink(pr *prefixdata.PrefixRecord) error {
	e.unlinkFiles(pr.Files)
	return nil
}

func (e *Engine) unlinkFiles(files []prefixdata.PrefixFile) {
	for i := len(files) - 1; i >= 0; i-- {
		full := filepath.Join(e.Prefix, files[i].Path)
		os.Remove(full)
	}
}

func (e *Engine) runScript(ctx context.Context, pr *prefixdata.PrefixRecord, phase string) error {
	return runPackageScript(ctx, e.Prefix, pr.Name, phase)
}

func (e *Engine) runScriptPost(ctx context.Context, pr *prefixdata.PrefixRecord) error {
	if pr == nil {
		return nil
	}
	return runPackageScript(ctx, e.Prefix, pr.Name, "post-link")
}

// runPackageScript runs conda-meta-adjacent <name>-<phase>.{sh,bat} if
// present, the way conda has always shelled out for pre/post-link hooks.
// A missing script is not an error.
func runPackageScript(ctx context.Context, prefix, name, phase string) error {
	scriptName := name + "-" + phase + scriptExt()
	path := filepath.Join(prefix, ".conda-scripts", scriptName)
	if !fsutil.Exists(path) {
		return nil
	}
	cmd := exec.CommandContext(ctx, shellFor(path), path)
	cmd.Dir = prefix
	cmd.Env = append(os.Environ(), "PREFIX="+prefix, "PKG_NAME="+name)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: %s", scriptName, stderr.String())
	}
	return nil
}

func scriptExt() string {
	if runtime.GOOS == "windows" {
		return ".bat"
	}
	return ".sh"
}

func shellFor(path string) string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "/bin/sh"
}
