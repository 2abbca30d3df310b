//go:build darwin || freebsd || linux

package dynlib

import "github.com/ebitengine/purego"

func load(name string) (uintptr, error) {
	return purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

func symbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func unload(handle uintptr) error {
	return purego.Dlclose(handle)
}

//go:uintptrescapes
func call(fn uintptr, args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(fn, args...)
	return r1
}

func newCallback(fn any) uintptr {
	return purego.NewCallback(fn)
}
