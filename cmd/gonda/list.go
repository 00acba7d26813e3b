package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/gondalog"
	"github.com/gonda-project/gonda/internal/prefixdata"
)

type listCommand struct {
	prefix string
}

func (c *listCommand) Name() string      { return "list" }
func (c *listCommand) Args() string      { return "[-p prefix]" }
func (c *listCommand) ShortHelp() string { return "list the packages installed in a prefix" }

func (c *listCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix")
}

func (c *listCommand) Run(ctx context.Context, loggers gondalog.Loggers, args []string) error {
	if c.prefix == "" {
		return errors.New("missing -p prefix")
	}
	pd, err := prefixdata.Load(c.prefix)
	if err != nil {
		return errors.Wrap(err, "loading prefix")
	}
	for _, pr := range pd.All() {
		loggers.Out.Printf("%-30s %s-%s", pr.Name, pr.Version, pr.Build)
	}
	return nil
}
