// Package logger implements a key-value metrics logger. Values are
// recorded between dumps and then written by each registered Writer
// at a single step.
//
// A Logger is not safe for concurrent use.
package logger

import (
	"fmt"
	"sort"
)

// Writer writes the values recorded by a Logger
type Writer interface {
	// Name identifies the Writer so that keys can be excluded from it
	Name() string

	// Write writes values at step. Keys are sorted.
	Write(step int, keys []string, values map[string]float64) error

	// Close flushes the Writer and releases its resources
	Close() error
}

// Logger records key-value pairs and writes them to a number of
// Writers on each Dump
type Logger struct {
	writers  []Writer
	values   map[string]float64
	excludes map[string]map[string]bool
}

// New returns a new Logger that writes to writers
func New(writers ...Writer) *Logger {
	return &Logger{
		writers:  writers,
		values:   make(map[string]float64),
		excludes: make(map[string]map[string]bool),
	}
}

// Record records value under key until the next call to Dump,
// replacing any previous value. The value is not written to Writers
// whose name is in exclude.
func (l *Logger) Record(key string, value float64, exclude ...string) {
	l.values[key] = value

	if len(exclude) == 0 {
		delete(l.excludes, key)
		return
	}
	names := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		names[name] = true
	}
	l.excludes[key] = names
}

// Dump writes all recorded values at step and clears them
func (l *Logger) Dump(step int) error {
	defer l.clear()
	if len(l.values) == 0 {
		return nil
	}

	for _, w := range l.writers {
		keys := make([]string, 0, len(l.values))
		values := make(map[string]float64, len(l.values))
		for key, value := range l.values {
			if l.excludes[key][w.Name()] {
				continue
			}
			keys = append(keys, key)
			values[key] = value
		}
		if len(keys) == 0 {
			continue
		}
		sort.Strings(keys)

		if err := w.Write(step, keys, values); err != nil {
			return fmt.Errorf("dump: could not write to %v: %w", w.Name(),
				err)
		}
	}
	return nil
}

// Close closes all Writers. The first error encountered is returned.
func (l *Logger) Close() error {
	var first error
	for _, w := range l.writers {
		if err := w.Close(); err != nil && first == nil {
			first = fmt.Errorf("close: could not close %v: %w", w.Name(),
				err)
		}
	}
	return first
}

func (l *Logger) clear() {
	l.values = make(map[string]float64)
	l.excludes = make(map[string]map[string]bool)
}
