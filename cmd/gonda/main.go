// Command gonda is a prototype conda-compatible package manager core: it
// resolves dependencies, plans a transaction, and links packages into a
// prefix.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gonda-project/gonda/internal/gondalog"
)

type command interface {
	Name() string
	Args() string
	ShortHelp() string
	Register(*flag.FlagSet)
	Run(ctx context.Context, loggers gondalog.Loggers, args []string) error
}

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	os.Exit(c.Run())
}

// Config specifies a full configuration for one gonda invocation.
type Config struct {
	Args           []string
	Stdout, Stderr io.Writer
}

// Run executes the configured command line and returns an exit code.
func (c *Config) Run() (exitCode int) {
	commands := []command{
		&installCommand{},
		&removeCommand{},
		&listCommand{},
		&createCommand{},
		&doctorCommand{},
	}

	loggers := gondalog.New(c.Stdout, c.Stderr, false)

	if len(c.Args) < 2 {
		usage(loggers, commands)
		return 1
	}

	name := c.Args[1]
	if name == "-h" || name == "-help" || name == "--help" {
		usage(loggers, commands)
		return 0
	}

	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(c.Stderr)
		cmd.Register(fs)
		if err := fs.Parse(c.Args[2:]); err != nil {
			return 1
		}
		if err := cmd.Run(context.Background(), loggers, fs.Args()); err != nil {
			loggers.Err.Printf("gonda %s: %v", name, err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(c.Stderr, "gonda: unknown command %q\n\n", name)
	usage(loggers, commands)
	return 1
}

func usage(loggers gondalog.Loggers, commands []command) {
	loggers.Err.Println("Usage: gonda <command> [arguments]")
	loggers.Err.Println()
	loggers.Err.Println("Commands:")
	for _, cmd := range commands {
		loggers.Err.Printf("  %-10s %s", cmd.Name(), cmd.ShortHelp())
	}
}
