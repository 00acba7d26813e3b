// Package gondacontext holds the configuration threaded explicitly
// through a run rather than read from a package-level global, read from
// a TOML config tree via pelletier/go-toml's Tree.Query.
package gondacontext

import (
	semver "github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/gondalog"
	"github.com/gonda-project/gonda/internal/record"
	"github.com/gonda-project/gonda/internal/solver"
)

// ToolVersion is this binary's own semantic version, checked against any
// min_gonda_version constraint a condarc or channel declares.
const ToolVersion = "0.1.0"

// Context is the resolved configuration for one invocation: channels,
// solver options, and the loggers to report through. It is built once per
// process and passed down, never read from a package-level mutable
// global.
type Context struct {
	Channels        []record.Channel
	Aliases         *record.AliasResolver
	PkgCacheDirs    []string
	AlwaysSoftlink  bool
	AllowSoftlinks  bool
	ChannelPriority bool
	DefaultSolverOptions solver.Options
	Loggers         gondalog.Loggers
}

// New returns a Context with conda's conventional defaults: channel
// priority enabled, no softlinks, and no cache directories (PkgCacheDirs
// stays empty until LoadCondarc reads pkgs_dirs).
func New(loggers gondalog.Loggers) *Context {
	return &Context{
		Aliases:         record.NewAliasResolver(),
		ChannelPriority: true,
		DefaultSolverOptions: solver.Options{
			ChannelPriority: true,
		},
		Loggers: loggers,
	}
}

// rawConfig mirrors the subset of .condarc this module reads.
type rawConfig struct {
	Channels         []string `toml:"channels"`
	PkgDirs          []string `toml:"pkgs_dirs"`
	AlwaysSoftlink   bool     `toml:"always_softlink"`
	AllowSoftlinks   bool     `toml:"allow_softlinks"`
	ChannelPriority  string   `toml:"channel_priority"`
	MinGondaVersion  string   `toml:"min_gonda_version"`
}

// LoadCondarc merges a .condarc-style TOML document into c. conda's real
// condarc is YAML; this module's configuration surface is expressed as
// TOML instead, consistent with the rest of this module's config
// tooling, rather than introducing a second parser for a format nothing
// else here reads.
func (c *Context) LoadCondarc(data []byte) error {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return errors.Wrap(err, "parsing condarc")
	}

	var raw rawConfig
	if q, err := tree.Query("$.channels"); err == nil {
		if vals := q.Values(); len(vals) > 0 {
			if arr, ok := vals[0].([]interface{}); ok {
				for _, v := range arr {
					if s, ok := v.(string); ok {
						raw.Channels = append(raw.Channels, s)
					}
				}
			}
		}
	}
	if err := tree.Unmarshal(&raw); err != nil {
		return errors.Wrap(err, "unmarshalling condarc")
	}

	for i, name := range raw.Channels {
		c.Channels = append(c.Channels, record.Channel{Name: name, Priority: i})
	}
	if len(raw.PkgDirs) > 0 {
		c.PkgCacheDirs = raw.PkgDirs
	}
	c.AlwaysSoftlink = raw.AlwaysSoftlink
	c.AllowSoftlinks = raw.AllowSoftlinks || raw.AlwaysSoftlink
	switch raw.ChannelPriority {
	case "disabled":
		c.ChannelPriority = false
	case "strict", "flexible", "":
		c.ChannelPriority = true
	}
	c.DefaultSolverOptions.ChannelPriority = c.ChannelPriority

	if raw.MinGondaVersion != "" {
		if err := checkMinVersion(raw.MinGondaVersion, ToolVersion); err != nil {
			return err
		}
	}
	return nil
}

// checkMinVersion reports an error if running is older than the
// constraint required (e.g. ">=0.2.0"), the same way a channel can
// require a minimum conda client version before serving its packages.
func checkMinVersion(constraint, running string) error {
	cs, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "parsing min_gonda_version %q", constraint)
	}
	v, err := semver.NewVersion(running)
	if err != nil {
		return errors.Wrapf(err, "parsing tool version %q", running)
	}
	if !cs.Check(v) {
		return errors.Errorf("this condarc requires gonda %s, running %s", constraint, running)
	}
	return nil
}
