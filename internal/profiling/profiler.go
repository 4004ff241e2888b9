// Package profiling captures CPU, heap and execution-trace profiles for a
// single CLI run, e.g. to see where chunking or index builds spend time on
// a large lease.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names the profile files to write. Empty paths are skipped.
type Options struct {
	CPU   string
	Heap  string
	Trace string
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Trace != ""
}

// Run is an in-progress profiling run.
type Run struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
}

// Start begins CPU profiling and tracing as requested by opts. The heap
// profile is written by Stop, so it reflects the end of the run.
func Start(opts Options) (*Run, error) {
	r := &Run{opts: opts}

	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		r.cpuFile = f
	}

	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			_ = r.stopCPU()
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			_ = r.stopCPU()
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
		r.traceFile = f
	}

	return r, nil
}

// Stop ends CPU profiling and tracing and writes the heap profile.
// It is safe to call more than once.
func (r *Run) Stop() error {
	if r == nil {
		return nil
	}
	var errs []error

	if err := r.stopCPU(); err != nil {
		errs = append(errs, err)
	}
	if r.traceFile != nil {
		trace.Stop()
		if err := r.traceFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close trace file: %w", err))
		}
		r.traceFile = nil
	}
	if r.opts.Heap != "" {
		if err := writeHeap(r.opts.Heap); err != nil {
			errs = append(errs, err)
		}
		r.opts.Heap = ""
	}

	return errors.Join(errs...)
}

func (r *Run) stopCPU() error {
	if r.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := r.cpuFile.Close()
	r.cpuFile = nil
	if err != nil {
		return fmt.Errorf("failed to close CPU profile: %w", err)
	}
	return nil
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect first so the profile shows live objects only.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
