// Package options contains the program options.
package options

import "time"

// Parameters contains file path options.
type Parameters struct {
	Config     string `flag:"c" usage:"YAML configuration file"`
	Signatures string `flag:"signatures" usage:"signature catalogue file (default: embedded)"`
	Dump       string `flag:"dump" usage:"read an offline memory dump directory instead of a live process"`
	Output     string `flag:"o" usage:"output file of the dump snapshot (default: stdout)"`
	Module     string `flag:"m" usage:"name of the module to scan (default: main executable)"`
}

// Flags contains behavior options.
type Flags struct {
	Listen       string        `flag:"listen" usage:"address of the status server, disabled if empty"`
	LayoutBuild  string        `flag:"build" usage:"target build of the layout catalogue"`
	TickInterval time.Duration `flag:"tick" usage:"scheduler tick interval"`
	PID          int           `flag:"pid" usage:"attach to the process id instead of searching by name"`
	Debug        bool          `flag:"debug" usage:"enable debug logging"`
	Quiet        bool          `flag:"q" usage:"quiet mode"`
}

// Program options of the mirror.
type Program struct {
	Parameters
	Flags

	ProcessName string // positional target process name
}
