// Package dynlib loads shared libraries at runtime and resolves their
// exported symbols by name. Vendor GPU libraries are optional on every
// machine, so nothing here links against them at build time.
//
// Symbol lookup is a try-resolve: an absent symbol is reported as
// (0, false), never as an error the caller has to classify.
package dynlib

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that none of the candidate libraries could be loaded.
	ErrNotFound = errors.New("dynlib: library not found")
	// ErrUnsupported reports that this platform has no runtime loader.
	ErrUnsupported = errors.New("dynlib: runtime loading not supported on this platform")
)

// Library is a loaded shared library. The handle is released exactly once
// by Close; lookups after Close report every symbol as absent.
type Library struct {
	Path   string
	handle uintptr
	closed bool
}

// Open loads the first candidate that the platform loader accepts. Bare
// file names go through the default search path, absolute paths are used
// as given.
func Open(candidates ...string) (*Library, error) {
	var lastErr error
	for _, name := range candidates {
		if name == "" {
			continue
		}
		h, err := load(name)
		if err == nil {
			return &Library{Path: name, handle: h}, nil
		}
		if errors.Is(err, ErrUnsupported) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: no candidates", ErrNotFound)
	}
	return nil, fmt.Errorf("%w: %v", ErrNotFound, lastErr)
}

// Lookup resolves a single exported symbol.
func (l *Library) Lookup(name string) (Proc, bool) {
	if l == nil || l.closed {
		return 0, false
	}
	addr, err := symbol(l.handle, name)
	if err != nil || addr == 0 {
		return 0, false
	}
	return Proc(addr), true
}

// Resolve returns the first of names that the library exports. It is used
// for versioned entry points such as nvmlInit_v2 / nvmlInit.
func (l *Library) Resolve(names ...string) (Proc, bool) {
	for _, name := range names {
		if p, ok := l.Lookup(name); ok {
			return p, true
		}
	}
	return 0, false
}

// Close unloads the library. Calling it more than once is a no-op.
func (l *Library) Close() error {
	if l == nil || l.closed {
		return nil
	}
	l.closed = true
	if err := unload(l.handle); err != nil {
		return fmt.Errorf("dynlib: unload %s: %w", l.Path, err)
	}
	return nil
}

// Proc is the address of a resolved C function.
type Proc uintptr

// Call invokes the function with the platform C calling convention and
// returns the first result register. Pointer arguments converted to
// uintptr in the call expression stay live for the duration of the call.
//
//go:uintptrescapes
func (p Proc) Call(args ...uintptr) uintptr {
	return call(uintptr(p), args...)
}

// NewCallback wraps a Go function so that C code can call it. fn must take
// and return uintptr-sized values.
func NewCallback(fn any) uintptr {
	return newCallback(fn)
}
