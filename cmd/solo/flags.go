package main

import "time"

// GlobalFlags holds persistent flags shared by every command.
// Zero values leave the config file (or its defaults) untouched.
type GlobalFlags struct {
	ConfigPath string
	Marker     string
	Grace      time.Duration
	KillWait   time.Duration
}

// RunFlags holds flags for the run command.
type RunFlags struct {
	Listen string
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	JSON bool
}
