//go:build !windows && !darwin && !freebsd && !linux

package dynlib

func load(string) (uintptr, error) { return 0, ErrUnsupported }

func symbol(uintptr, string) (uintptr, error) { return 0, ErrUnsupported }

func unload(uintptr) error { return nil }

func call(uintptr, ...uintptr) uintptr { return 0 }

func newCallback(any) uintptr { return 0 }
