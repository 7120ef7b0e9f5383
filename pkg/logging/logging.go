// Copyright 2025 UniRep Synchronizer
//
// Package logging provides component-prefixed *log.Logger instances,
// matching the convention used throughout the teacher repo
// (database.Client, anchor.EventWatcher, attestation.Service, ...):
// log.New(log.Writer(), "[Component] ", log.LstdFlags).
package logging

import (
	"log"
	"os"
)

// New returns a logger prefixed with the given component name.
func New(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}

// NewWithWriter is New but against an explicit writer — used by tests
// that want to capture log output.
func NewWithWriter(w interface {
	Write([]byte) (int, error)
}, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}
