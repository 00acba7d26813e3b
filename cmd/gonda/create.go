package main

import (
	"context"
	"flag"
	"os"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/envregistry"
	"github.com/gonda-project/gonda/internal/gondalog"
)

type createCommand struct {
	prefix   string
	registry string
}

func (c *createCommand) Name() string      { return "create" }
func (c *createCommand) Args() string      { return "-p prefix" }
func (c *createCommand) ShortHelp() string { return "create an empty prefix and register it" }

func (c *createCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "prefix to create")
	fs.StringVar(&c.registry, "registry", "", "environments registry file")
}

func (c *createCommand) Run(ctx context.Context, loggers gondalog.Loggers, args []string) error {
	if c.prefix == "" {
		return errors.New("missing -p prefix")
	}
	if err := os.MkdirAll(c.prefix, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", c.prefix)
	}
	if err := os.MkdirAll(c.prefix+"/conda-meta", 0o755); err != nil {
		return errors.Wrap(err, "creating conda-meta")
	}
	if c.registry != "" {
		reg := envregistry.Open(c.registry)
		if err := reg.Append(c.prefix); err != nil {
			return errors.Wrap(err, "registering prefix")
		}
	}
	loggers.Out.Printf("created prefix at %s", c.prefix)
	return nil
}
