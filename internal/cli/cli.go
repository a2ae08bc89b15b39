// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/retroenv/procmirror/internal/config"
	"github.com/retroenv/procmirror/internal/options"
)

// ParseFlags parses command line flags and returns the program options
func ParseFlags() (options.Program, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	if err := flags.Parse(os.Args[1:]); err != nil {
		return opts, &UsageError{flags: flags, msg: err.Error()}
	}

	args := flags.Args()
	if err := validateArgs(flags, args); err != nil {
		return opts, err
	}
	if len(args) > 0 {
		opts.ProcessName = args[0]
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: procmirror [options] [process name]\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(flags *flag.FlagSet, args []string) error {
	if len(args) > 1 {
		for _, arg := range args[1:] {
			if strings.HasPrefix(arg, "-") {
				return &UsageError{
					flags: flags,
					msg:   fmt.Sprintf("Potential argument %s found after process name, please pass the process name as last argument", arg),
				}
			}
		}
		return &UsageError{flags: flags, msg: "only one process name can be given"}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	if opts.TickInterval < 0 {
		return fmt.Errorf("invalid tick interval %s", opts.TickInterval)
	}
	if opts.PID < 0 {
		return fmt.Errorf("invalid process id %d", opts.PID)
	}
	if opts.Dump != "" && (opts.PID != 0 || opts.ProcessName != "") {
		return &UsageError{msg: "a dump directory can not be combined with a live process"}
	}
	opts.ProcessName = strings.TrimSpace(opts.ProcessName)
	return nil
}

// Apply overrides the configuration file values with the given flags.
func Apply(opts options.Program, cfg *config.File) {
	if opts.ProcessName != "" {
		cfg.ProcessName = opts.ProcessName
	}
	if opts.Module != "" {
		cfg.Module = opts.Module
	}
	if opts.Signatures != "" {
		cfg.Signatures = opts.Signatures
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.LayoutBuild != "" {
		cfg.LayoutBuild = opts.LayoutBuild
	}
	if opts.TickInterval > 0 {
		cfg.TickInterval = opts.TickInterval
	}
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Config, "c", "", "YAML configuration file name")
	flags.StringVar(&opts.Signatures, "signatures", "", "signature catalogue file, the embedded catalogue is used if no name given")
	flags.StringVar(&opts.Dump, "dump", "", "directory of an offline memory dump to mirror once instead of a live process")
	flags.StringVar(&opts.Output, "o", "", "name of the dump snapshot output file, printed on console if no name given")
	flags.StringVar(&opts.Module, "m", "", "name of the module to scan for static addresses")
	flags.StringVar(&opts.Listen, "listen", "", "listen address of the read-only status server, for example 127.0.0.1:8090")
	flags.StringVar(&opts.LayoutBuild, "build", "", "target build of the layout catalogue")
	flags.DurationVar(&opts.TickInterval, "tick", time.Duration(0), "scheduler tick interval")
	flags.IntVar(&opts.PID, "pid", 0, "process id to attach to instead of searching by name")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
