//go:build linux

package gpu

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// openNVML initializes NVML through dynlib first, which unloads the shared
// object again when nvmlInit fails. Only an initialized library is handed
// to go-nvml, which takes its own reference on both the shared object and
// the NVML init count; Close drops both.
func openNVML(paths []string) (NVMLLibrary, error) {
	gate, err := loadNVML(paths)
	if err != nil {
		return nil, err
	}
	lib := nvml.New(nvml.WithLibraryPath(gate.lib.Path))
	if ret := lib.Init(); ret != nvml.SUCCESS {
		initErr := fmt.Errorf("%w: %w", ErrInit, nvmlReturnError(gate.lib.Path, ret))
		if ret != nvml.ERROR_LIBRARY_NOT_FOUND {
			// NVML is still initialized by the gate, so this shutdown
			// succeeds and go-nvml unloads its handle.
			if ret := lib.Shutdown(); ret != nvml.SUCCESS {
				initErr = errors.Join(initErr, nvmlReturnError("shutdown", ret))
			}
		}
		return nil, errors.Join(initErr, gate.Close())
	}
	return &goNVML{lib: lib, gate: gate}, nil
}

func nvmlReturnError(op string, ret nvml.Return) error {
	return fmt.Errorf("%s: nvml return %d", op, int32(ret))
}

type goNVML struct {
	lib  nvml.Interface
	gate *dllNVML
}

func (g *goNVML) HasSymbol(name string) bool {
	return g.lib.Extensions().LookupSymbol(name) == nil
}

func (g *goNVML) DeviceByIndex(index int) (NVMLDevice, error) {
	dev, ret := g.lib.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, nvmlReturnError("device handle", ret)
	}
	return goNVMLDevice{dev: dev}, nil
}

func (g *goNVML) Close() error {
	var shutdownErr error
	if ret := g.lib.Shutdown(); ret != nvml.SUCCESS {
		shutdownErr = nvmlReturnError("shutdown", ret)
	}
	return errors.Join(shutdownErr, g.gate.Close())
}

type goNVMLDevice struct {
	dev nvml.Device
}

func (d goNVMLDevice) Utilization() (uint32, error) {
	u, ret := d.dev.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return 0, nvmlReturnError("utilization", ret)
	}
	return u.Gpu, nil
}

func (d goNVMLDevice) Temperature() (uint32, error) {
	t, ret := d.dev.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, nvmlReturnError("temperature", ret)
	}
	return t, nil
}

func (d goNVMLDevice) MemoryInfo() (NVMLMemory, error) {
	m, ret := d.dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return NVMLMemory{}, nvmlReturnError("memory info", ret)
	}
	return NVMLMemory{Total: m.Total, Used: m.Used}, nil
}

func (d goNVMLDevice) Name() (string, error) {
	name, ret := d.dev.GetName()
	if ret != nvml.SUCCESS {
		return "", nvmlReturnError("name", ret)
	}
	return name, nil
}
