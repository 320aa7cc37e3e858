// Package config holds the tracer's runtime configuration: target
// architecture, logging verbosity, and the Event Sink dial target.
// Patterned after runsc/config's flag registration: RegisterFlags binds
// one flag per field of a fresh *Config on a flag.FlagSet, and parsing
// that FlagSet fills the Config in. The OCI-annotation-override machinery
// has no equivalent in this tracer.
package config

import (
	"flag"
	"fmt"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/tracelog"
)

// Config is every value the rest of this module needs to start a trace.
type Config struct {
	// Arch is the tracee's expected address-space width. "auto" (the
	// default) lets the attach path detect it from the target binary.
	Arch string
	// Verbosity is the tracelog.Level the tracer runs at.
	Verbosity tracelog.Level
	// SinkAddress is the dial target for the external Event Sink; this
	// module only threads it through, never parses or connects with it.
	SinkAddress string
	// UnhandledWarnRate caps unhandled-syscall warnings per second; 0
	// disables rate limiting.
	UnhandledWarnRate float64
}

// Default returns the tracer's out-of-the-box configuration.
func Default() Config {
	return Config{
		Arch:              "auto",
		Verbosity:         tracelog.Warn,
		UnhandledWarnRate: 50,
	}
}

// RegisterFlags registers one flag per Config field against fs, seeded
// with def's values as defaults.
func RegisterFlags(fs *flag.FlagSet, def Config) *Config {
	c := &Config{}
	fs.StringVar(&c.Arch, "arch", def.Arch, `tracee address-space width: "i386", "x86_64", or "auto" to detect from the target binary`)
	fs.IntVar((*int)(&c.Verbosity), "verbosity", int(def.Verbosity), "log verbosity, 0 (silent) through 4 (trace every syscall)")
	fs.StringVar(&c.SinkAddress, "sink", def.SinkAddress, "dial target for the event sink")
	fs.Float64Var(&c.UnhandledWarnRate, "unhandled-warn-rate", def.UnhandledWarnRate, "max unhandled-syscall warnings logged per second, 0 to disable rate limiting")
	return c
}

// ResolveMode maps the configured Arch string to an abi.Mode, returning an
// error for anything other than "i386" or "x86_64" ("auto" must be
// resolved by the caller before ResolveMode is called, since detecting the
// real width requires inspecting the tracee).
func (c Config) ResolveMode() (abi.Mode, error) {
	switch c.Arch {
	case "i386":
		return abi.I386, nil
	case "x86_64":
		return abi.X86_64, nil
	default:
		return 0, fmt.Errorf("config: unresolved or unknown arch %q", c.Arch)
	}
}
