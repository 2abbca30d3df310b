package gpu

import (
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/sysglance/internal/model"
)

const (
	nvmlSymHandleByIndex = "nvmlDeviceGetHandleByIndex_v2"
	nvmlSymUtilization   = "nvmlDeviceGetUtilizationRates"
	nvmlSymTemperature   = "nvmlDeviceGetTemperature"
	nvmlSymMemoryInfo    = "nvmlDeviceGetMemoryInfo"
	nvmlSymName          = "nvmlDeviceGetName"
)

// NVMLLibrary is an initialized NVML library. Close shuts NVML down and
// unloads the shared object.
type NVMLLibrary interface {
	HasSymbol(name string) bool
	DeviceByIndex(index int) (NVMLDevice, error)
	Close() error
}

// NVMLDevice is a device handle returned by NVMLLibrary.
type NVMLDevice interface {
	Utilization() (uint32, error)
	Temperature() (uint32, error)
	MemoryInfo() (NVMLMemory, error)
	Name() (string, error)
}

// NVMLMemory is the frame buffer usage of a device, in bytes.
type NVMLMemory struct {
	Total uint64
	Used  uint64
}

func probeNVML(open func() (NVMLLibrary, error)) (_ *NVMLBinding, err error) {
	if open == nil {
		return nil, ErrDisabled
	}
	lib, err := open()
	if err != nil {
		return nil, fmt.Errorf("nvml: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, lib.Close())
		}
	}()

	for _, sym := range []string{nvmlSymHandleByIndex, nvmlSymUtilization} {
		if !lib.HasSymbol(sym) {
			return nil, fmt.Errorf("nvml: %w: %s", ErrMissingSymbol, sym)
		}
	}
	dev, err := lib.DeviceByIndex(0)
	if err != nil {
		return nil, fmt.Errorf("nvml: device 0: %w", err)
	}

	b := &NVMLBinding{
		lib:       lib,
		dev:       dev,
		hasTemp:   lib.HasSymbol(nvmlSymTemperature),
		hasMemory: lib.HasSymbol(nvmlSymMemoryInfo),
	}
	if b.hasMemory {
		if mem, merr := dev.MemoryInfo(); merr == nil {
			b.vramTotal = model.BytesToGiB(mem.Total)
		}
	}
	if lib.HasSymbol(nvmlSymName) {
		if name, nerr := dev.Name(); nerr == nil {
			b.name = name
		}
	}
	return b, nil
}

func (b *NVMLBinding) measure(r *Reading) {
	if util, err := b.dev.Utilization(); err == nil {
		r.Load = float64(util)
	}
	if b.hasTemp {
		if temp, err := b.dev.Temperature(); err == nil {
			r.Temperature = float64(temp)
		}
	}
	if b.hasMemory {
		if mem, err := b.dev.MemoryInfo(); err == nil {
			r.VRAMUsed = model.BytesToGiB(mem.Used)
			r.VRAMTotal = model.BytesToGiB(mem.Total)
		}
	}
}
