// Package logging provides the process-wide structured logger, adapted
// from streamspace's api/internal/logger package: a single package-level
// zerolog.Logger plus component-scoped constructors.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the base logger every component logger is derived from.
var Log zerolog.Logger

func init() {
	Log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Initialize configures the base logger's level and output format. pretty
// selects a human-readable console writer (development); otherwise
// structured JSON is written straight to stderr (production).
func Initialize(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)

	var w zerolog.ConsoleWriter
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		Log = zerolog.New(w).With().Timestamp().Str("service", "devtools-bridge").Logger()
		return nil
	}
	Log = zerolog.New(os.Stderr).With().Timestamp().Str("service", "devtools-bridge").Logger()
	return nil
}

func scoped(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}

func Agent() zerolog.Logger  { return scoped("agent") }
func Mux() zerolog.Logger    { return scoped("mux") }
func RPC() zerolog.Logger    { return scoped("rpc") }
func HTTP() zerolog.Logger   { return scoped("http") }
func Server() zerolog.Logger { return scoped("server") }
