// Package trace records the scheduler's command executions as a Chrome
// trace event file (load the result in chrome://tracing). One duration
// event is written per command, on a virtual thread per worker.
package trace

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Trace event format:
// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU/edit

// A duration ("X") event in the JSON Array Format. The format permits
// omitting the closing bracket, which keeps the writer append-only.
type event struct {
	Name     string `json:"name"`
	Phase    string `json:"ph"`
	Start    uint64 `json:"ts"`  // microseconds since Start()
	Duration uint64 `json:"dur"` // microseconds
	Pid      uint64 `json:"pid"`
	Tid      uint64 `json:"tid"` // worker index
}

var rec struct {
	mu    sync.Mutex
	f     *os.File
	begun time.Time
}

// Start creates path and records all following Span calls into it until
// Stop. Without a Start, spans are no-ops.
func Start(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte{'['}); err != nil {
		f.Close()
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.f = f
	rec.begun = time.Now()
	return nil
}

// Stop closes the file opened by Start.
func Stop() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.f == nil {
		return nil
	}
	err := rec.f.Close()
	rec.f = nil
	return err
}

// Span starts measuring one command on the given worker and returns the
// function which finishes the measurement and writes the event.
func Span(name string, worker int) func() {
	began := time.Now()
	return func() {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if rec.f == nil {
			return
		}
		ev := event{
			Name:     name,
			Phase:    "X",
			Start:    uint64(began.Sub(rec.begun) / time.Microsecond),
			Duration: uint64(time.Since(began) / time.Microsecond),
			Tid:      uint64(worker),
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return // an unencodable event is not worth failing the build
		}
		rec.f.Write(append(b, ','))
	}
}
