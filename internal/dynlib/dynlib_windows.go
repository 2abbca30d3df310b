//go:build windows

package dynlib

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func load(name string) (uintptr, error) {
	h, err := windows.LoadLibrary(name)
	if err != nil {
		return 0, err
	}
	return uintptr(h), nil
}

func symbol(handle uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(handle), name)
}

func unload(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}

//go:uintptrescapes
func call(fn uintptr, args ...uintptr) uintptr {
	r1, _, _ := syscall.SyscallN(fn, args...)
	return r1
}

func newCallback(fn any) uintptr {
	return windows.NewCallback(fn)
}
