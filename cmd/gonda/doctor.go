package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/doctor"
	"github.com/gonda-project/gonda/internal/gondalog"
)

type doctorCommand struct {
	prefix  string
	verbose bool
}

func (c *doctorCommand) Name() string      { return "doctor" }
func (c *doctorCommand) Args() string      { return "[-p prefix] [-v]" }
func (c *doctorCommand) ShortHelp() string { return "run environment health checks against a prefix" }

func (c *doctorCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix")
	fs.BoolVar(&c.verbose, "v", false, "verbose findings")
}

func (c *doctorCommand) Run(ctx context.Context, loggers gondalog.Loggers, args []string) error {
	if c.prefix == "" {
		return errors.New("missing -p prefix")
	}
	reports, err := doctor.RunAll(c.prefix, c.verbose)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		loggers.Out.Println("no problems found")
		return nil
	}
	for _, r := range reports {
		loggers.Out.Printf("== %s ==", r.Name)
		for _, f := range r.Findings {
			loggers.Out.Printf("  %s %s: %s", f.Package, f.Path, f.Message)
		}
	}
	return nil
}
