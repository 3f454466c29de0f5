// Package prof wires the runtime profilers into CLI runs so that slow
// bundle passes can be inspected with pprof and the execution tracer.
package prof

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Session owns the profilers started for a single command invocation.
type Session struct {
	cpu     *os.File
	trace   *os.File
	memPath string
	stopped bool
}

// Start begins the requested profilers. An empty path disables the matching
// profiler. On error every profiler already started is stopped again.
func Start(cpuPath, memPath, tracePath string) (*Session, error) {
	s := &Session{}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		s.cpu = f
	}
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			_ = s.Stop()
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			_ = s.Stop()
			return nil, err
		}
		s.trace = f
	}
	// Заполняем после успешного старта, чтобы откат не писал heap profile.
	s.memPath = memPath
	return s, nil
}

// Stop ends the active profilers and writes the heap profile if one was
// requested. Calling Stop more than once is a no-op.
func (s *Session) Stop() error {
	if s == nil || s.stopped {
		return nil
	}
	s.stopped = true

	var firstErr error
	if s.trace != nil {
		trace.Stop()
		if err := s.trace.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.trace = nil
	}
	if s.cpu != nil {
		pprof.StopCPUProfile()
		if err := s.cpu.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.cpu = nil
	}
	if s.memPath != "" {
		if err := writeHeap(s.memPath); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
