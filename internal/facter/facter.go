// Package facter collects host facts from Facter and flattens them into a
// single-level mapping.
package facter

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"puppetcheckin/internal/logging"
	"puppetcheckin/internal/sal"
)

const (
	// DefaultBin is the Puppet binary used to render facts.
	DefaultBin = "/opt/puppetlabs/bin/puppet"
	// DefaultLibDir holds the Sal-specific custom facts.
	DefaultLibDir = "/usr/local/sal/facter"
	// DefaultTimeout bounds a single Facter run.
	DefaultTimeout = 60 * time.Second

	// LibEnvVar is the variable Facter searches for custom facts.
	LibEnvVar = "FACTERLIB"
	// VersionKey records which module version produced the facts.
	VersionKey = "checkin_module_version"

	envelopeKey = "values"
)

var factsArgs = []string{"facts", "--render-as", "json"}

// Collector runs Facter and normalises its output.
type Collector struct {
	Fs      afero.Fs
	Runner  Runner
	Log     logging.Logger
	Environ func() []string
	Bin     string
	LibDir  string
	Timeout time.Duration
}

// New returns a Collector using the default paths and the real filesystem.
func New(log logging.Logger) *Collector {
	return &Collector{
		Fs:      afero.NewOsFs(),
		Runner:  &ExecRunner{Log: log},
		Log:     log,
		Environ: os.Environ,
		Bin:     DefaultBin,
		LibDir:  DefaultLibDir,
		Timeout: DefaultTimeout,
	}
}

// Collect runs Facter and returns the flattened facts. A missing binary is not
// an error. On any failure the returned map is empty and non-nil.
func (c *Collector) Collect(ctx context.Context) (sal.FactMap, error) {
	start := time.Now()
	facts := sal.FactMap{}

	if _, err := c.Fs.Stat(c.Bin); err != nil {
		if os.IsNotExist(err) {
			c.Log.WithField("bin", c.Bin).Debug("Facter not installed, skipping facts")
			return facts, nil
		}
		return facts, errors.Wrapf(err, "stat %s", c.Bin)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	out, err := c.Runner.Run(ctx, c.Bin, factsArgs, childEnv(c.Environ(), c.LibDir))
	if err != nil {
		return facts, errors.Wrap(err, "run facter")
	}

	raw, err := Decode(out)
	if err != nil {
		return facts, errors.Wrap(err, "decode facter output")
	}
	if values, ok := raw[envelopeKey].(map[string]any); ok {
		raw = values
	}

	facts = Flatten(raw)
	facts[VersionKey] = sal.Version

	c.Log.WithField("count", len(facts)).
		WithField("duration", time.Since(start)).
		Debug("Collected facts")
	return facts, nil
}

// childEnv returns environ with the custom facts directory set. The calling
// process's own environment is left untouched.
func childEnv(environ []string, libDir string) []string {
	env := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if strings.HasPrefix(kv, LibEnvVar+"=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, LibEnvVar+"="+libDir)
}
