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
)

type removeCommand struct {
	prefix   string
	cacheDir string
}

func (c *removeCommand) Name() string      { return "remove" }
func (c *removeCommand) Args() string      { return "[-p prefix] <package-name>..." }
func (c *removeCommand) ShortHelp() string { return "remove packages from a prefix" }

func (c *removeCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix")
	fs.StringVar(&c.cacheDir, "cache-dir", "", "package cache directory")
}

func (c *removeCommand) Run(ctx context.Context, loggers gondalog.Loggers, args []string) error {
	if c.prefix == "" {
		return errors.New("missing -p prefix")
	}
	if len(args) == 0 {
		return errors.New("no package names given")
	}

	pd, err := prefixdata.Load(c.prefix)
	if err != nil {
		return errors.Wrap(err, "loading prefix")
	}

	doomed := make(map[string]bool, len(args))
	for _, name := range args {
		if pd.Get(name) == nil {
			return errors.Errorf("package %q is not installed", name)
		}
		doomed[name] = true
	}

	target := make(map[string]*record.PackageRecord)
	for name, pr := range pd.ByName() {
		if doomed[name] {
			continue
		}
		rec := pr.PackageRecord
		target[name] = &rec
	}

	plan, err := planner.Compute(pd.ByName(), target)
	if err != nil {
		return errors.Wrap(err, "planning")
	}

	cache, err := pkgcache.New(c.cacheDir, nil)
	if err != nil {
		return errors.Wrap(err, "opening cache")
	}

	engine := &link.Engine{Prefix: c.prefix, Cache: cache, Loggers: loggers}
	return engine.Execute(ctx, plan, pd, link.Options{
		RunScripts: true,
		Comment:    "gonda remove",
	})
}
