// Package logging provides leveled log helpers on top of the standard
// logger, optionally writing to a rotating log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/natefinch/lumberjack"
)

// Config controls where log messages go.
type Config struct {
	// File is the log file; empty means stdout
	File string `yaml:"file"`

	// MaxSizeMB is the size in megabytes at which the log file is rotated
	MaxSizeMB int `yaml:"maxSizeMB"`

	// MaxAgeDays is the number of days rotated files are kept
	MaxAgeDays int `yaml:"maxAgeDays"`

	// Verbose enables debug messages
	Verbose bool `yaml:"verbose"`
}

var verbose atomic.Bool

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup redirects the standard logger according to c. The returned closer
// releases the log file, if any.
func Setup(c Config) io.Closer {
	verbose.Store(c.Verbose)
	log.SetFlags(log.LstdFlags)
	if c.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}
	fmt.Printf("Sending log messages to: %s\n", c.File)
	l := &lumberjack.Logger{
		Filename: c.File,
		MaxSize:  c.MaxSizeMB,  // megabytes
		MaxAge:   c.MaxAgeDays, // days
	}
	log.SetOutput(l)
	return l
}

// SetVerbose toggles debug output.
func SetVerbose(v bool) { verbose.Store(v) }

// Debugf logs at DEBUG level when verbose output is enabled.
func Debugf(format string, args ...interface{}) {
	if verbose.Load() {
		log.Printf(" DEBUG "+format, args...)
	}
}

// Infof logs at INFO level.
func Infof(format string, args ...interface{}) {
	log.Printf(" INFO "+format, args...)
}

// Warningf logs at WARNING level.
func Warningf(format string, args ...interface{}) {
	log.Printf(" WARNING "+format, args...)
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...interface{}) {
	log.Printf(" ERROR "+format, args...)
}
