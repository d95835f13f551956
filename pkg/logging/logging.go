// Package logging configures the process-wide structured logger. Every
// component logs through charmbracelet/log with key-value pairs; Init wires
// the level and caller reporting once at startup.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Init configures the default logger. Call it once from the command layer
// before any component starts logging.
func Init(debug bool) {
	log.SetOutput(os.Stderr)
	log.SetTimeFormat("15:04:05")

	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Named returns a logger with a component prefix, so log lines read as
// "repository: ..." or "sync: ...".
func Named(component string) *log.Logger {
	return log.Default().WithPrefix(component)
}
