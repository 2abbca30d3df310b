//go:build linux || windows

package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/Dicklesworthstone/sysglance/internal/dynlib"
)

const (
	nvmlSuccess         = 0
	nvmlTemperatureGPU  = 0
	nvmlDeviceNameBytes = 96
)

type nvmlUtilization struct {
	GPU    uint32
	Memory uint32
}

type nvmlMemory struct {
	Total uint64
	Free  uint64
	Used  uint64
}

func nvmlStatus(op string, ret uintptr) error {
	return fmt.Errorf("%s: nvml return %d", op, int32(ret))
}

// loadNVML loads the NVML shared object from the first candidate path and
// runs nvmlInit. A library that loads but fails to initialize is unloaded
// before returning.
func loadNVML(paths []string) (*dllNVML, error) {
	lib, err := dynlib.Open(paths...)
	if err != nil {
		return nil, err
	}
	initFn, ok := lib.Resolve("nvmlInit_v2", "nvmlInit")
	if !ok {
		return nil, errors.Join(fmt.Errorf("%w: nvmlInit", ErrMissingSymbol), lib.Close())
	}
	if ret := initFn.Call(); int32(ret) != nvmlSuccess {
		return nil, errors.Join(fmt.Errorf("%w: %w", ErrInit, nvmlStatus(lib.Path, ret)), lib.Close())
	}
	return &dllNVML{lib: lib}, nil
}

type dllNVML struct {
	lib *dynlib.Library
}

func (n *dllNVML) HasSymbol(name string) bool {
	_, ok := n.lib.Lookup(name)
	return ok
}

func (n *dllNVML) DeviceByIndex(index int) (NVMLDevice, error) {
	byIndex, ok := n.lib.Lookup(nvmlSymHandleByIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingSymbol, nvmlSymHandleByIndex)
	}
	var handle uintptr
	if ret := byIndex.Call(uintptr(index), uintptr(unsafe.Pointer(&handle))); int32(ret) != nvmlSuccess {
		return nil, nvmlStatus("device handle", ret)
	}
	d := &dllNVMLDevice{handle: handle}
	d.util, _ = n.lib.Lookup(nvmlSymUtilization)
	d.temp, _ = n.lib.Lookup(nvmlSymTemperature)
	d.mem, _ = n.lib.Lookup(nvmlSymMemoryInfo)
	d.name, _ = n.lib.Lookup(nvmlSymName)
	return d, nil
}

func (n *dllNVML) Close() error {
	var shutdownErr error
	if shutdown, ok := n.lib.Lookup("nvmlShutdown"); ok {
		if ret := shutdown.Call(); int32(ret) != nvmlSuccess {
			shutdownErr = nvmlStatus("shutdown", ret)
		}
	}
	return errors.Join(shutdownErr, n.lib.Close())
}

// dllNVMLDevice keeps the entry points resolved when the handle was
// obtained. A zero Proc means the symbol is absent.
type dllNVMLDevice struct {
	handle uintptr
	util   dynlib.Proc
	temp   dynlib.Proc
	mem    dynlib.Proc
	name   dynlib.Proc
}

func missing(sym string) error { return fmt.Errorf("%w: %s", ErrMissingSymbol, sym) }

func (d *dllNVMLDevice) Utilization() (uint32, error) {
	if d.util == 0 {
		return 0, missing(nvmlSymUtilization)
	}
	var u nvmlUtilization
	if ret := d.util.Call(d.handle, uintptr(unsafe.Pointer(&u))); int32(ret) != nvmlSuccess {
		return 0, nvmlStatus("utilization", ret)
	}
	return u.GPU, nil
}

func (d *dllNVMLDevice) Temperature() (uint32, error) {
	if d.temp == 0 {
		return 0, missing(nvmlSymTemperature)
	}
	var t uint32
	if ret := d.temp.Call(d.handle, nvmlTemperatureGPU, uintptr(unsafe.Pointer(&t))); int32(ret) != nvmlSuccess {
		return 0, nvmlStatus("temperature", ret)
	}
	return t, nil
}

func (d *dllNVMLDevice) MemoryInfo() (NVMLMemory, error) {
	if d.mem == 0 {
		return NVMLMemory{}, missing(nvmlSymMemoryInfo)
	}
	var m nvmlMemory
	if ret := d.mem.Call(d.handle, uintptr(unsafe.Pointer(&m))); int32(ret) != nvmlSuccess {
		return NVMLMemory{}, nvmlStatus("memory info", ret)
	}
	return NVMLMemory{Total: m.Total, Used: m.Used}, nil
}

func (d *dllNVMLDevice) Name() (string, error) {
	if d.name == 0 {
		return "", missing(nvmlSymName)
	}
	buf := make([]byte, nvmlDeviceNameBytes)
	if ret := d.name.Call(d.handle, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf))); int32(ret) != nvmlSuccess {
		return "", nvmlStatus("name", ret)
	}
	return cString(buf), nil
}
