package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/gondalog"
	"github.com/gonda-project/gonda/internal/link"
	"github.com/gonda-project/gonda/internal/pkgcache"
	"github.com/gonda-project/gonda/internal/planner"
	"github.com/gonda-project/gonda/internal/prefixdata"
	"github.com/gonda-project/gonda/internal/record"
	"github.com/gonda-project/gonda/internal/solver"
	"github.com/gonda-project/gonda/internal/version"
)

type installCommand struct {
	prefix   string
	cacheDir string
	dryRun   bool
}

func (c *installCommand) Name() string      { return "install" }
func (c *installCommand) Args() string      { return "[-p prefix] [-dry-run] <match-spec>..." }
func (c *installCommand) ShortHelp() string { return "install packages into a prefix" }

func (c *installCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix")
	fs.StringVar(&c.cacheDir, "cache-dir", "", "package cache directory")
	fs.BoolVar(&c.dryRun, "dry-run", false, "compute the plan without executing it")
}

func (c *installCommand) Run(ctx context.Context, loggers gondalog.Loggers, args []string) error {
	if c.prefix == "" {
		return errors.New("missing -p prefix")
	}
	if len(args) == 0 {
		return errors.New("no match specs given")
	}

	requested := make([]version.MatchSpec, 0, len(args))
	for _, a := range args {
		m, err := version.ParseMatchSpec(a)
		if err != nil {
			return errors.Wrapf(err, "parsing %q", a)
		}
		requested = append(requested, m)
	}

	pd, err := prefixdata.Load(c.prefix)
	if err != nil {
		return errors.Wrap(err, "loading prefix")
	}

	idx := record.NewIndex()
	installed := make(map[string]*record.PackageRecord)
	for _, pr := range pd.All() {
		rec := pr.PackageRecord
		installed[pr.Name] = &rec
	}

	sol, err := solver.Solve(&solver.Problem{
		Index:     idx,
		Installed: installed,
		Requested: requested,
		Options:   solver.Options{ChannelPriority: true},
	})
	if err != nil {
		return errors.Wrap(err, "resolving")
	}

	plan, err := planner.Compute(pd.ByName(), sol.Records)
	if err != nil {
		return errors.Wrap(err, "planning")
	}

	if c.dryRun {
		for _, a := range plan.LinkOrder {
			loggers.Out.Printf("install %s-%s-%s", a.Name, a.Record.Version, a.Record.Build)
		}
		for _, a := range plan.UnlinkOrder {
			loggers.Out.Printf("remove %s-%s-%s", a.Name, a.Prefix.Version, a.Prefix.Build)
		}
		return nil
	}

	cache, err := pkgcache.New(c.cacheDir, nil)
	if err != nil {
		return errors.Wrap(err, "opening cache")
	}

	engine := &link.Engine{Prefix: c.prefix, Cache: cache, Loggers: loggers}

	specTexts := make([]string, len(requested))
	for i, r := range requested {
		specTexts[i] = r.String()
	}

	return engine.Execute(ctx, plan, pd, link.Options{
		RunScripts:     true,
		RequestedSpecs: specTexts,
		Comment:        "gonda install",
	})
}

